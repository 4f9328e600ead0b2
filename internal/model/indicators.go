package model

// IndicatorRow is a candle extended with every computed indicator column.
// Rows only exist in memory for the duration of one analysis.
type IndicatorRow struct {
	Candle

	RSI       float64
	StochRSI  float64
	StochRSIK float64
	StochRSID float64

	MACDLine   float64
	MACDSignal float64
	MACDHist   float64

	ZeroLagLine   float64
	ZeroLagSignal float64
	ZeroLagHist   float64

	StochasticK float64
	StochasticD float64
}

// Record renders the row as a flat column map. A non-empty prefix is
// prepended to every column name without touching the values.
func (r IndicatorRow) Record(prefix string) map[string]float64 {
	cols := map[string]float64{
		"Open":                 r.Open,
		"High":                 r.High,
		"Low":                  r.Low,
		"Close":                r.Close,
		"Volume":               r.Volume,
		"rsi":                  r.RSI,
		"stoch_rsi":            r.StochRSI,
		"k":                    r.StochRSIK,
		"d":                    r.StochRSID,
		"macd_line":            r.MACDLine,
		"signal_line":          r.MACDSignal,
		"macd_hist":            r.MACDHist,
		"macd_zero_lag_line":   r.ZeroLagLine,
		"macd_zero_lag_signal": r.ZeroLagSignal,
		"macd_zero_lag_hist":   r.ZeroLagHist,
		"stoch":                r.StochasticK,
		"stoch_d":              r.StochasticD,
	}
	if prefix == "" {
		return cols
	}
	out := make(map[string]float64, len(cols))
	for k, v := range cols {
		out[prefix+k] = v
	}
	return out
}
