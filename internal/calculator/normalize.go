package calculator

import (
	"math"

	"github.com/shopspring/decimal"
)

// NormalizeHistogram maps a histogram value into [0, 100] relative to the
// window's low and high. When the window straddles zero, the low maps to 0,
// zero to 50 and the high to 100, each side scaled linearly. When zero lies outside
// the window the mapping is linear from low (0) to high (100). A
// degenerate window (high == low) always yields 50.
func NormalizeHistogram(hist, lo, hi float64) float64 {
	if hi == lo {
		return 50
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	var v float64
	switch {
	case lo < 0 && hi > 0 && hist <= 0:
		v = 50 * (hist - lo) / -lo
	case lo < 0 && hi > 0:
		v = 50 + 50*hist/hi
	default:
		v = 100 * (hist - lo) / (hi - lo)
	}
	return clip(v, 0, 100)
}

// NormalizeSeries normalizes each value against the series' own min and max.
func NormalizeSeries(hist []float64) []float64 {
	if len(hist) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, h := range hist {
		if h < lo {
			lo = h
		}
		if h > hi {
			hi = h
		}
	}
	out := make([]float64, len(hist))
	for i, h := range hist {
		out[i] = NormalizeHistogram(h, lo, hi)
	}
	return out
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Round rounds half away from zero to the given number of decimal places.
// Missing values pass through unchanged.
func Round(v float64, places int32) float64 {
	if IsMissing(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
