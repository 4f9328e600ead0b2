package calculator

import "math"

// missing is the marker for values that cannot be computed yet (warm-up)
// or at all (zero-range windows).
var missing = math.NaN()

// IsMissing reports whether v is the missing-value marker.
func IsMissing(v float64) bool { return math.IsNaN(v) }

func newMissing(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = missing
	}
	return out
}

// RollingMean computes the simple moving average over the given window.
// A position is missing unless the whole window holds valid values.
func RollingMean(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		sum := 0.0
		for _, v := range w {
			sum += v
		}
		return sum / float64(len(w))
	})
}

// RollingMin returns the lowest value of each full window.
func RollingMin(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v < m {
				m = v
			}
		}
		return m
	})
}

// RollingMax returns the highest value of each full window.
func RollingMax(values []float64, window int) []float64 {
	return rolling(values, window, func(w []float64) float64 {
		m := w[0]
		for _, v := range w[1:] {
			if v > m {
				m = v
			}
		}
		return m
	})
}

func rolling(values []float64, window int, agg func([]float64) float64) []float64 {
	out := newMissing(len(values))
	if window <= 0 {
		return out
	}
	valid := 0
	for i, v := range values {
		if !IsMissing(v) {
			valid++
		}
		if i >= window && !IsMissing(values[i-window]) {
			valid--
		}
		if i+1 >= window && valid == window {
			out[i] = agg(values[i+1-window : i+1])
		}
	}
	return out
}
