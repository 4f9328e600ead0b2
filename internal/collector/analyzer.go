// Package collector turns cached candle histories into indicator rows.
package collector

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"PairScanner/internal/calculator"
	"PairScanner/internal/model"
)

// HistorySource supplies candle histories; *cache.Cache implements it.
type HistorySource interface {
	GetHistory(ctx context.Context, symbol, interval, lookback string) (model.Series, error)
}

// Analyzer computes the indicator table of one (symbol, interval).
type Analyzer struct {
	source HistorySource
	params map[string]calculator.Params
	log    logrus.FieldLogger
}

// NewAnalyzer creates an Analyzer. A nil params map uses the built-in sets.
func NewAnalyzer(source HistorySource, params map[string]calculator.Params, log logrus.FieldLogger) *Analyzer {
	if params == nil {
		params = calculator.DefaultParams()
	}
	return &Analyzer{source: source, params: params, log: log}
}

// ParamsFor returns the indicator parameters used for interval.
func (a *Analyzer) ParamsFor(interval string) calculator.Params {
	return calculator.ParamsFor(a.params, interval)
}

// Analyze loads the history and applies every indicator. The result is
// empty, without error, when there is no history or it is too short to
// survive warm-up trimming.
func (a *Analyzer) Analyze(ctx context.Context, symbol, interval, lookback string) ([]model.IndicatorRow, error) {
	series, err := a.source.GetHistory(ctx, symbol, interval, lookback)
	if err != nil {
		return nil, fmt.Errorf("history %s %s: %w", symbol, interval, err)
	}
	if len(series) == 0 {
		a.log.WithFields(logrus.Fields{"symbol": symbol, "interval": interval}).Debug("empty history")
		return nil, nil
	}
	rows, err := calculator.Apply(series, a.ParamsFor(interval))
	if err != nil {
		return nil, fmt.Errorf("indicators %s %s: %w", symbol, interval, err)
	}
	return rows, nil
}

// AnalyzePrefixed is Analyze rendered as flat records whose column names
// carry prefix, e.g. "4h_rsi".
func (a *Analyzer) AnalyzePrefixed(ctx context.Context, symbol, interval, lookback, prefix string) ([]map[string]float64, error) {
	rows, err := a.Analyze(ctx, symbol, interval, lookback)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Record(prefix)
	}
	return out, nil
}
