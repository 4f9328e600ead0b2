package calculator

import "fmt"

// Params holds the indicator lengths for one interval.
type Params struct {
	RSI struct {
		Length int `yaml:"length"`
	} `yaml:"rsi"`
	StochRSI struct {
		RSILength int `yaml:"rsi_length"`
		K         int `yaml:"k"`
		D         int `yaml:"d"`
	} `yaml:"stoch_rsi"`
	MACD        MACDParams `yaml:"macd"`
	MACDZeroLag MACDParams `yaml:"macd_zero_lag"`
	Stochastic  struct {
		PeriodK int `yaml:"period_k"`
		SmoothK int `yaml:"smooth_k"`
		PeriodD int `yaml:"period_d"`
	} `yaml:"stochastic"`
}

// MACDParams are the EMA spans of a MACD variant.
type MACDParams struct {
	Fast   int `yaml:"fast_length"`
	Slow   int `yaml:"slow_length"`
	Signal int `yaml:"signal_length"`
}

// FallbackInterval supplies parameters for intervals without their own set.
const FallbackInterval = "1h"

func newParams(stochK int) Params {
	var p Params
	p.RSI.Length = 14
	p.StochRSI.RSILength = 14
	p.StochRSI.K = 3
	p.StochRSI.D = 3
	p.MACD = MACDParams{Fast: 12, Slow: 26, Signal: 9}
	p.MACDZeroLag = MACDParams{Fast: 12, Slow: 24, Signal: 9}
	p.Stochastic.PeriodK = stochK
	p.Stochastic.SmoothK = 3
	p.Stochastic.PeriodD = 3
	return p
}

// DefaultParams returns the built-in per-interval parameter sets.
func DefaultParams() map[string]Params {
	return map[string]Params{
		"1h": newParams(14),
		"4h": newParams(5),
		"1d": newParams(5),
	}
}

// ParamsFor picks the set for an interval, falling back to the "1h" set and
// finally to the built-in defaults.
func ParamsFor(sets map[string]Params, interval string) Params {
	if p, ok := sets[interval]; ok {
		return p
	}
	if p, ok := sets[FallbackInterval]; ok {
		return p
	}
	return DefaultParams()[FallbackInterval]
}

// Validate checks that every window is positive.
func (p Params) Validate() error {
	checks := []struct {
		name string
		v    int
	}{
		{"rsi.length", p.RSI.Length},
		{"stoch_rsi.rsi_length", p.StochRSI.RSILength},
		{"stoch_rsi.k", p.StochRSI.K},
		{"stoch_rsi.d", p.StochRSI.D},
		{"macd.fast_length", p.MACD.Fast},
		{"macd.slow_length", p.MACD.Slow},
		{"macd.signal_length", p.MACD.Signal},
		{"macd_zero_lag.fast_length", p.MACDZeroLag.Fast},
		{"macd_zero_lag.slow_length", p.MACDZeroLag.Slow},
		{"macd_zero_lag.signal_length", p.MACDZeroLag.Signal},
		{"stochastic.period_k", p.Stochastic.PeriodK},
		{"stochastic.smooth_k", p.Stochastic.SmoothK},
		{"stochastic.period_d", p.Stochastic.PeriodD},
	}
	for _, c := range checks {
		if c.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", c.name, c.v)
		}
	}
	return nil
}
