package calculator

// SpanAlpha converts an EMA span into its smoothing factor 2/(span+1).
func SpanAlpha(span int) float64 {
	return 2.0 / (float64(span) + 1.0)
}

// EMA computes an unadjusted exponential moving average:
// y[0] = x[0], y[t] = (1-alpha)*y[t-1] + alpha*x[t].
// Leading missing values stay missing and the first valid value seeds the
// average. A missing value after the seed repeats the previous average.
func EMA(values []float64, alpha float64) []float64 {
	out := newMissing(len(values))
	seeded := false
	var prev float64
	for i, v := range values {
		if IsMissing(v) {
			if seeded {
				out[i] = prev
			}
			continue
		}
		if !seeded {
			prev = v
			seeded = true
		} else {
			prev = (1-alpha)*prev + alpha*v
		}
		out[i] = prev
	}
	return out
}

// EMASpan is EMA with the smoothing factor derived from a span.
func EMASpan(values []float64, span int) []float64 {
	return EMA(values, SpanAlpha(span))
}

func sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
