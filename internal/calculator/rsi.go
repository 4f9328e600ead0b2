package calculator

import "errors"

// RSI computes the Wilder-smoothed relative strength index of a close
// series. Gains and losses are smoothed with an unadjusted EMA using
// alpha = 1/length. The first position is always missing because it has
// no prior close. A flat window (no gains and no losses) is missing; a
// window without losses is 100.
func RSI(closes []float64, length int) ([]float64, error) {
	if length <= 0 {
		return nil, errors.New("rsi length must be positive")
	}
	up := newMissing(len(closes))
	down := newMissing(len(closes))
	for i := 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if IsMissing(change) {
			continue
		}
		up[i], down[i] = 0, 0
		if change > 0 {
			up[i] = change
		} else {
			down[i] = -change
		}
	}

	alpha := 1.0 / float64(length)
	avgUp := EMA(up, alpha)
	avgDown := EMA(down, alpha)

	out := newMissing(len(closes))
	for i := range closes {
		u, d := avgUp[i], avgDown[i]
		switch {
		case IsMissing(u) || IsMissing(d):
		case d == 0 && u == 0:
		case d == 0:
			out[i] = 100
		default:
			out[i] = 100 - 100/(1+u/d)
		}
	}
	return out, nil
}

// StochRSI applies the stochastic formula to an RSI series:
// 100*(rsi - min(rsi, n))/(max(rsi, n) - min(rsi, n)), then smooths it
// into K (mean over k) and D (mean of K over d). Zero-range windows are
// missing, never infinite.
func StochRSI(rsi []float64, rsiLength, k, d int) (stoch, kLine, dLine []float64, err error) {
	if rsiLength <= 0 || k <= 0 || d <= 0 {
		return nil, nil, nil, errors.New("stoch rsi windows must be positive")
	}
	lowest := RollingMin(rsi, rsiLength)
	highest := RollingMax(rsi, rsiLength)
	stoch = newMissing(len(rsi))
	for i := range rsi {
		rng := highest[i] - lowest[i]
		if IsMissing(rng) || IsMissing(rsi[i]) || rng == 0 {
			continue
		}
		stoch[i] = 100 * (rsi[i] - lowest[i]) / rng
	}
	kLine = RollingMean(stoch, k)
	dLine = RollingMean(kLine, d)
	return stoch, kLine, dLine, nil
}
