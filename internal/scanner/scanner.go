// Package scanner runs every symbol through every timeframe and publishes
// the consolidated snapshot.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"PairScanner/internal/calculator"
	"PairScanner/internal/metrics"
	"PairScanner/internal/model"
)

// ErrRequiredTimeframe marks a symbol that produced no rows for a required
// timeframe.
var ErrRequiredTimeframe = errors.New("required timeframe has no data")

// ErrNoTimeframes marks a symbol for which no timeframe produced a summary.
var ErrNoTimeframes = errors.New("no timeframe has data")

// Analyzer is the per-timeframe indicator source; *collector.Analyzer
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, symbol, interval, lookback string) ([]model.IndicatorRow, error)
	ParamsFor(interval string) calculator.Params
}

// Publisher receives each finished snapshot; *snapshot.Store implements it.
type Publisher interface {
	Publish(*model.Snapshot) error
}

// Result is the outcome of one symbol. Exactly one of Summary and Err is set.
type Result struct {
	Symbol   string
	Summary  *model.SymbolSummary
	Err      error
	Duration time.Duration
}

// OK reports whether the symbol produced a summary.
func (r Result) OK() bool { return r.Err == nil && r.Summary != nil }

// Report is everything one scan cycle produced.
type Report struct {
	Snapshot  *model.Snapshot
	Results   []Result
	StartedAt time.Time
	Duration  time.Duration
}

// Options tunes a Scanner. Zero values select the defaults.
type Options struct {
	Workers  int
	Families []calculator.Family
}

// Scanner orchestrates one scan cycle.
type Scanner struct {
	analyzer  Analyzer
	publisher Publisher
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	workers   int
	families  []calculator.Family
	now       func() time.Time
}

// New creates a Scanner. publisher and m may be nil.
func New(analyzer Analyzer, publisher Publisher, log logrus.FieldLogger, m *metrics.Metrics, opts Options) *Scanner {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	families := opts.Families
	if len(families) == 0 {
		families = calculator.DefaultFamilies
	}
	return &Scanner{
		analyzer:  analyzer,
		publisher: publisher,
		log:       log,
		metrics:   m,
		workers:   workers,
		families:  families,
		now:       time.Now,
	}
}

// ScanAll scans symbols and publishes the snapshot. A publish failure is
// returned together with the snapshot that could not be written.
func (s *Scanner) ScanAll(ctx context.Context, symbols []string, timeframes []Timeframe) (*model.Snapshot, error) {
	report, err := s.Run(ctx, symbols, timeframes)
	if report == nil {
		return nil, err
	}
	return report.Snapshot, err
}

// Run is ScanAll returning the per-symbol results as well.
func (s *Scanner) Run(ctx context.Context, symbols []string, timeframes []Timeframe) (*Report, error) {
	started := s.now()
	results := make([]Result, len(symbols))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, sym := range symbols {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(symbols); j++ {
				results[j] = Result{Symbol: symbols[j], Err: err}
			}
			break
		}
		i, sym := i, sym
		g.Go(func() error {
			results[i] = s.scanSymbol(ctx, sym, timeframes)
			return nil
		})
	}
	_ = g.Wait()

	var rows []model.SymbolSummary
	var failed []string
	for _, r := range results {
		if r.OK() {
			rows = append(rows, *r.Summary)
			continue
		}
		failed = append(failed, r.Symbol)
		s.log.WithFields(logrus.Fields{"symbol": r.Symbol}).WithError(r.Err).Warn("symbol failed")
	}

	snap := model.NewSnapshot(rows, failed, len(symbols), s.now())
	report := &Report{Snapshot: snap, Results: results, StartedAt: started, Duration: s.now().Sub(started)}
	s.observe(report)

	s.log.WithFields(logrus.Fields{
		"valid":    snap.TotalPairs,
		"failed":   len(snap.Failed),
		"duration": report.Duration.Round(time.Millisecond),
	}).Info("scan finished")

	if s.publisher == nil {
		return report, nil
	}
	if err := s.publisher.Publish(snap); err != nil {
		if s.metrics != nil {
			s.metrics.PublishErrors.Inc()
		}
		return report, fmt.Errorf("publish snapshot: %w", err)
	}
	if s.metrics != nil {
		s.metrics.LastScanSuccess.Set(float64(snap.GeneratedAt.Unix()))
	}
	return report, nil
}

// ScanSymbol analyzes one symbol across timeframes. A panic inside the
// analysis becomes a failed Result.
func (s *Scanner) ScanSymbol(ctx context.Context, symbol string, timeframes []Timeframe) Result {
	return s.scanSymbol(ctx, symbol, timeframes)
}

func (s *Scanner) scanSymbol(ctx context.Context, symbol string, timeframes []Timeframe) (res Result) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("symbol", symbol).Errorf("panic during analysis: %v\n%s", r, debug.Stack())
			res = Result{Symbol: symbol, Err: fmt.Errorf("panic: %v", r)}
		}
		res.Duration = time.Since(started)
		if s.metrics != nil {
			s.metrics.SymbolDuration.Observe(res.Duration.Seconds())
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{Symbol: symbol, Err: err}
	}

	summary := model.SymbolSummary{Symbol: symbol}
	for _, tf := range timeframes {
		rows, err := s.analyzer.Analyze(ctx, symbol, tf.Interval, tf.Lookback)
		if err != nil {
			return Result{Symbol: symbol, Err: err}
		}
		if len(rows) == 0 {
			if tf.Required {
				return Result{Symbol: symbol, Err: fmt.Errorf("%s: %w", tf.Interval, ErrRequiredTimeframe)}
			}
			continue
		}
		ts, err := summarize(tf.Interval, rows, s.analyzer.ParamsFor(tf.Interval), s.families)
		if err != nil {
			if !tf.Required {
				continue
			}
			return Result{Symbol: symbol, Err: fmt.Errorf("%s: %w", tf.Interval, err)}
		}
		summary.Timeframes = append(summary.Timeframes, ts)
	}
	if len(summary.Timeframes) == 0 {
		return Result{Symbol: symbol, Err: ErrNoTimeframes}
	}
	return Result{Symbol: symbol, Summary: &summary}
}

func (s *Scanner) observe(r *Report) {
	if s.metrics == nil {
		return
	}
	s.metrics.ScanDuration.Observe(r.Duration.Seconds())
	s.metrics.SymbolsValid.Set(float64(r.Snapshot.TotalPairs))
	s.metrics.SymbolsFailed.Set(float64(len(r.Snapshot.Failed)))
}
