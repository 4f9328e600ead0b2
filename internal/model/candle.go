package model

import "time"

// Candle represents a single closed OHLCV bar. OpenTime is the bar-open
// instant in UTC and is the unique key within a series.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Series is an ordered run of candles for one (symbol, interval).
type Series []Candle

// Last returns the most recent candle and false when the series is empty.
func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// IsSorted reports whether open times are strictly increasing.
func (s Series) IsSorted() bool {
	for i := 1; i < len(s); i++ {
		if !s[i].OpenTime.After(s[i-1].OpenTime) {
			return false
		}
	}
	return true
}

// Closes extracts close prices.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Close
	}
	return out
}

// Highs extracts high prices.
func (s Series) Highs() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.High
	}
	return out
}

// Lows extracts low prices.
func (s Series) Lows() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Low
	}
	return out
}
