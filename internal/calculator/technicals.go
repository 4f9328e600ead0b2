package calculator

import "PairScanner/internal/model"

// Apply computes every indicator column over the series and drops any row
// that still holds a missing value. The warm-up rows at the start of the
// series are therefore always trimmed; a short series may yield no rows.
func Apply(series model.Series, p Params) ([]model.IndicatorRow, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	closes := series.Closes()
	highs := series.Highs()
	lows := series.Lows()

	rsi, err := RSI(closes, p.RSI.Length)
	if err != nil {
		return nil, err
	}
	stochRSI, k, d, err := StochRSI(rsi, p.StochRSI.RSILength, p.StochRSI.K, p.StochRSI.D)
	if err != nil {
		return nil, err
	}
	macdLine, macdSignal, macdHist, err := MACD(closes, p.MACD.Fast, p.MACD.Slow, p.MACD.Signal)
	if err != nil {
		return nil, err
	}
	zlLine, zlSignal, zlHist, err := ZeroLagMACD(closes, p.MACDZeroLag.Fast, p.MACDZeroLag.Slow, p.MACDZeroLag.Signal)
	if err != nil {
		return nil, err
	}
	stochK, stochD, err := Stochastic(highs, lows, closes, p.Stochastic.PeriodK, p.Stochastic.SmoothK, p.Stochastic.PeriodD)
	if err != nil {
		return nil, err
	}

	rows := make([]model.IndicatorRow, 0, len(series))
	for i, c := range series {
		row := model.IndicatorRow{
			Candle:        c,
			RSI:           rsi[i],
			StochRSI:      stochRSI[i],
			StochRSIK:     k[i],
			StochRSID:     d[i],
			MACDLine:      macdLine[i],
			MACDSignal:    macdSignal[i],
			MACDHist:      macdHist[i],
			ZeroLagLine:   zlLine[i],
			ZeroLagSignal: zlSignal[i],
			ZeroLagHist:   zlHist[i],
			StochasticK:   stochK[i],
			StochasticD:   stochD[i],
		}
		if hasMissing(row) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func hasMissing(r model.IndicatorRow) bool {
	for _, v := range []float64{
		r.Open, r.High, r.Low, r.Close, r.Volume,
		r.RSI, r.StochRSI, r.StochRSIK, r.StochRSID,
		r.MACDLine, r.MACDSignal, r.MACDHist,
		r.ZeroLagLine, r.ZeroLagSignal, r.ZeroLagHist,
		r.StochasticK, r.StochasticD,
	} {
		if IsMissing(v) {
			return true
		}
	}
	return false
}
