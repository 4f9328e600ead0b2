// Package cache keeps a per-(symbol, interval) candle history on disk and
// tops it up from the exchange with as few requests as possible.
package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"PairScanner/internal/exchange"
	"PairScanner/internal/metrics"
	"PairScanner/internal/model"
)

// Cache serves candle histories backed by CSV files in a directory.
type Cache struct {
	store   fileStore
	fetcher exchange.CandleFetcher
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time

	locks sync.Map // key -> *sync.Mutex
}

// New creates a Cache rooted at dir. m may be nil.
func New(dir string, fetcher exchange.CandleFetcher, log logrus.FieldLogger, m *metrics.Metrics) *Cache {
	return &Cache{
		store:   fileStore{dir: dir},
		fetcher: fetcher,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

// SetClock replaces the wall clock used to decide whether a refresh is due.
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// GetHistory returns the cached series for symbol/interval, fetching only
// bars newer than the last cached one. Upstream failures degrade to the
// cached (possibly empty) series; only an unparsable lookback is an error.
func (c *Cache) GetHistory(ctx context.Context, symbol, interval, lookback string) (model.Series, error) {
	mu := c.lock(symbol + "_" + interval)
	mu.Lock()
	defer mu.Unlock()

	now := c.now().UTC()
	log := c.log.WithFields(logrus.Fields{"symbol": symbol, "interval": interval})

	step, ok := IntervalDuration(interval)
	if !ok {
		window, err := ParseLookback(lookback)
		if err != nil {
			return nil, err
		}
		c.count(interval, "bypass")
		return c.fetchWindow(ctx, log, symbol, interval, now.Add(-window)), nil
	}

	cached, err := c.store.load(symbol, interval)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("cache file unreadable, starting cold")
		cached = nil
	}

	last, ok := cached.Last()
	if !ok {
		window, err := ParseLookback(lookback)
		if err != nil {
			return nil, err
		}
		c.count(interval, "cold")
		return c.fetchWindow(ctx, log, symbol, interval, now.Add(-window)), nil
	}

	next := last.OpenTime.Add(step)
	if next.After(now) {
		c.count(interval, "fresh")
		return cached, nil
	}

	fresh, err := c.fetcher.FetchCandles(ctx, symbol, interval, next)
	if err != nil {
		c.upstreamError(interval)
		log.WithError(err).Warn("incremental fetch failed, serving stale cache")
		c.count(interval, "stale")
		return cached, nil
	}
	if len(fresh) == 0 {
		c.count(interval, "stale")
		return cached, nil
	}
	c.fetched(interval, len(fresh))
	c.count(interval, "incremental")

	merged := MergeCandles(cached, fresh)
	if err := c.store.save(symbol, interval, merged); err != nil {
		log.WithError(err).Error("persist cache")
	}
	return merged, nil
}

// fetchWindow fetches from start and persists a non-empty result. Errors
// yield an empty series.
func (c *Cache) fetchWindow(ctx context.Context, log logrus.FieldLogger, symbol, interval string, start time.Time) model.Series {
	series, err := c.fetcher.FetchCandles(ctx, symbol, interval, start)
	if err != nil {
		c.upstreamError(interval)
		log.WithError(err).Warn("fetch failed")
		return model.Series{}
	}
	if len(series) == 0 {
		return model.Series{}
	}
	c.fetched(interval, len(series))
	series = MergeCandles(series, nil)
	if err := c.store.save(symbol, interval, series); err != nil {
		log.WithError(err).Error("persist cache")
	}
	return series
}

func (c *Cache) lock(key string) *sync.Mutex {
	v, _ := c.locks.LoadOrStore(key, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (c *Cache) count(interval, outcome string) {
	if c.metrics != nil {
		c.metrics.CacheRequests.WithLabelValues(interval, outcome).Inc()
	}
}

func (c *Cache) upstreamError(interval string) {
	if c.metrics != nil {
		c.metrics.UpstreamErrors.WithLabelValues(interval).Inc()
	}
}

func (c *Cache) fetched(interval string, n int) {
	if c.metrics != nil {
		c.metrics.CandlesFetched.WithLabelValues(interval).Add(float64(n))
	}
}
