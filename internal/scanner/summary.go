package scanner

import (
	"fmt"

	"PairScanner/internal/calculator"
	"PairScanner/internal/model"
)

// summarize reduces the retained rows of one interval to its latest values.
// The zero-lag histogram and its range are recomputed over the retained
// closes only.
func summarize(interval string, rows []model.IndicatorRow, p calculator.Params, families []calculator.Family) (model.TimeframeSummary, error) {
	last := rows[len(rows)-1]
	highs := make([]float64, len(rows))
	lows := make([]float64, len(rows))
	closes := make([]float64, len(rows))
	for i, r := range rows {
		highs[i], lows[i], closes[i] = r.High, r.Low, r.Close
	}

	tf := model.TimeframeSummary{
		Interval:    interval,
		RSI:         calculator.Round(last.RSI, 2),
		StochRSIK:   calculator.Round(last.StochRSIK, 2),
		StochRSID:   calculator.Round(last.StochRSID, 2),
		MACDHist:    calculator.Round(last.MACDHist, 6),
		StochasticK: calculator.Round(last.StochasticK, 2),
		StochasticD: calculator.Round(last.StochasticD, 2),
		Close:       calculator.Round(last.Close, 6),
	}

	for _, f := range families {
		k, err := calculator.StochasticFamily(highs, lows, closes, f.PeriodK, f.SmoothK)
		if err != nil {
			return tf, fmt.Errorf("stoch %s: %w", f.Name, err)
		}
		v := k[len(k)-1]
		if calculator.IsMissing(v) {
			return tf, fmt.Errorf("stoch %s: %d rows are not enough", f.Name, len(rows))
		}
		tf.Stoch = append(tf.Stoch, model.StochValue{Family: f.Name, Value: calculator.Round(v, 2)})
	}

	z := p.MACDZeroLag
	_, _, hist, err := calculator.ZeroLagMACD(closes, z.Fast, z.Slow, z.Signal)
	if err != nil {
		return tf, fmt.Errorf("zero lag macd: %w", err)
	}
	lo, hi, ok := valueRange(hist)
	if !ok {
		return tf, fmt.Errorf("zero lag macd: no values")
	}
	tf.ZeroLagHist = calculator.Round(hist[len(hist)-1], 6)
	tf.ZeroLagHistMin = calculator.Round(lo, 6)
	tf.ZeroLagHistMax = calculator.Round(hi, 6)
	return tf, nil
}

func valueRange(values []float64) (lo, hi float64, ok bool) {
	for _, v := range values {
		if calculator.IsMissing(v) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi, ok
}
