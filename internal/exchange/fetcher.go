package exchange

import (
	"context"
	"time"

	"PairScanner/internal/model"
)

// CandleFetcher returns closed candles for one symbol and interval with
// open time at or after start, in ascending order.
type CandleFetcher interface {
	FetchCandles(ctx context.Context, symbol, interval string, start time.Time) (model.Series, error)
}

// SymbolLister returns the tradable perpetual symbols, sorted.
type SymbolLister interface {
	ListActiveSymbols(ctx context.Context) ([]string, error)
}

// Fetcher is the full upstream surface used by the scanner binary.
type Fetcher interface {
	CandleFetcher
	SymbolLister
	Name() string
}
