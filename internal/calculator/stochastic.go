package calculator

import "errors"

// Stochastic computes the oscillator
// raw = 100*(close - min(low, periodK))/(max(high, periodK) - min(low, periodK)),
// K = mean(raw, smoothK), D = mean(K, periodD). Zero-range windows are missing.
func Stochastic(high, low, closes []float64, periodK, smoothK, periodD int) (k, d []float64, err error) {
	raw, err := rawStochastic(high, low, closes, periodK, false)
	if err != nil {
		return nil, nil, err
	}
	if smoothK <= 0 || periodD <= 0 {
		return nil, nil, errors.New("stochastic smoothing windows must be positive")
	}
	k = RollingMean(raw, smoothK)
	d = RollingMean(k, periodD)
	return k, d, nil
}

// StochasticFamily computes the smoothed K line of a display family such
// as "5-3-3" (periodK=5, smoothK=3). Unlike Stochastic, a zero-range window
// yields 0 so a flat market still produces a displayable value.
func StochasticFamily(high, low, closes []float64, periodK, smoothK int) ([]float64, error) {
	raw, err := rawStochastic(high, low, closes, periodK, true)
	if err != nil {
		return nil, err
	}
	if smoothK <= 0 {
		return nil, errors.New("stochastic smoothing window must be positive")
	}
	return RollingMean(raw, smoothK), nil
}

func rawStochastic(high, low, closes []float64, periodK int, zeroOnFlat bool) ([]float64, error) {
	if len(high) != len(closes) || len(low) != len(closes) {
		return nil, errors.New("high, low and close must have the same length")
	}
	if periodK <= 0 {
		return nil, errors.New("stochastic period must be positive")
	}
	lowest := RollingMin(low, periodK)
	highest := RollingMax(high, periodK)
	raw := newMissing(len(closes))
	for i := range closes {
		if IsMissing(lowest[i]) || IsMissing(highest[i]) || IsMissing(closes[i]) {
			continue
		}
		rng := highest[i] - lowest[i]
		if rng == 0 {
			if zeroOnFlat {
				raw[i] = 0
			}
			continue
		}
		raw[i] = 100 * (closes[i] - lowest[i]) / rng
	}
	return raw, nil
}

// Family names one Stochastic display variant.
type Family struct {
	Name    string `yaml:"name"`
	PeriodK int    `yaml:"period_k"`
	SmoothK int    `yaml:"smooth_k"`
	PeriodD int    `yaml:"period_d"`
}

// DefaultFamilies are the two display variants shown on the dashboard.
var DefaultFamilies = []Family{
	{Name: "5-3-3", PeriodK: 5, SmoothK: 3, PeriodD: 3},
	{Name: "14-3-3", PeriodK: 14, SmoothK: 3, PeriodD: 3},
}
