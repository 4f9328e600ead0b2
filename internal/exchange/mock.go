package exchange

import (
	"context"
	"sync"
	"time"

	"PairScanner/internal/model"
)

// FetchCall records one FetchCandles invocation.
type FetchCall struct {
	Symbol   string
	Interval string
	Start    time.Time
}

// MockFetcher returns controllable fixed data for development and testing.
// Candles are keyed by symbol then interval.
type MockFetcher struct {
	Candles map[string]map[string]model.Series
	Symbols []string
	// Err, when set, is returned by every call. FailSymbols fails only the
	// listed symbols.
	Err         error
	FailSymbols map[string]error

	mu    sync.Mutex
	calls []FetchCall
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchCandles(_ context.Context, symbol, interval string, start time.Time) (model.Series, error) {
	m.mu.Lock()
	m.calls = append(m.calls, FetchCall{Symbol: symbol, Interval: interval, Start: start})
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if err, ok := m.FailSymbols[symbol]; ok {
		return nil, err
	}
	var out model.Series
	for _, c := range m.Candles[symbol][interval] {
		if !c.OpenTime.Before(start) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MockFetcher) ListActiveSymbols(_ context.Context) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.Symbols...), nil
}

// Calls returns a copy of every recorded FetchCandles call.
func (m *MockFetcher) Calls() []FetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FetchCall(nil), m.calls...)
}

// Set stores a series for symbol and interval.
func (m *MockFetcher) Set(symbol, interval string, s model.Series) {
	if m.Candles == nil {
		m.Candles = map[string]map[string]model.Series{}
	}
	if m.Candles[symbol] == nil {
		m.Candles[symbol] = map[string]model.Series{}
	}
	m.Candles[symbol][interval] = s
}

// GenerateSeries builds count bars spaced by step starting at start, with a
// gently oscillating price around basePrice.
func GenerateSeries(start time.Time, step time.Duration, count int, basePrice float64) model.Series {
	bars := make(model.Series, count)
	for i := 0; i < count; i++ {
		wave := float64(i%7-3) * 0.004
		drift := float64(i-count/2) * 0.001
		p := basePrice * (1 + drift + wave)
		bars[i] = model.Candle{
			OpenTime: start.Add(time.Duration(i) * step).UTC(),
			Open:     p * 0.999,
			High:     p * 1.005,
			Low:      p * 0.995,
			Close:    p,
			Volume:   1000000,
		}
	}
	return bars
}
