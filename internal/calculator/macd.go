package calculator

import "errors"

// MACD computes the classic EMA-difference MACD.
func MACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil, nil, errors.New("macd spans must be positive")
	}
	line = sub(EMASpan(closes, fast), EMASpan(closes, slow))
	sig = EMASpan(line, signal)
	hist = sub(line, sig)
	return line, sig, hist, nil
}

// zeroLag de-lags an EMA by adding the gap between it and an EMA of
// itself with the same span: zlag = ema1 + (ema1 - ema2).
func zeroLag(values []float64, span int) []float64 {
	ema1 := EMASpan(values, span)
	ema2 := EMASpan(ema1, span)
	out := make([]float64, len(values))
	for i := range values {
		out[i] = ema1[i] + (ema1[i] - ema2[i])
	}
	return out
}

// ZeroLagMACD computes the double-EMA de-lagged MACD. Both the fast and
// slow averages and the signal line go through the same two-stage
// construction; hist = line - signal.
func ZeroLagMACD(closes []float64, fast, slow, signal int) (line, sig, hist []float64, err error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, nil, nil, errors.New("zero lag macd spans must be positive")
	}
	line = sub(zeroLag(closes, fast), zeroLag(closes, slow))
	sig = zeroLag(line, signal)
	hist = sub(line, sig)
	return line, sig, hist, nil
}
