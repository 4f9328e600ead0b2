package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"PairScanner/internal/exchange"
	"PairScanner/internal/model"
	"PairScanner/internal/notifier"
	"PairScanner/internal/recorder"
	"PairScanner/internal/scanner"
	"PairScanner/internal/symbols"
)

// ScanRunner runs one scan cycle; *scanner.Scanner implements it.
type ScanRunner interface {
	Run(ctx context.Context, symbols []string, timeframes []scanner.Timeframe) (*scanner.Report, error)
}

// SymbolRegistry supplies the symbols to scan; *symbols.Registry implements it.
type SymbolRegistry interface {
	Load() ([]string, error)
	Discover(ctx context.Context, lister exchange.SymbolLister) ([]string, error)
}

// SnapshotSource returns the current snapshot; *snapshot.Store implements it.
type SnapshotSource interface {
	Latest() (*model.Snapshot, error)
}

// Notifier delivers reports; *notifier.TelegramNotifier implements it.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Deps wires the scheduler. Notifier and Snapshots may be nil.
type Deps struct {
	Scanner    ScanRunner
	Registry   SymbolRegistry
	Lister     exchange.SymbolLister
	Snapshots  SnapshotSource
	Notifier   Notifier
	Recorder   recorder.Recorder
	Timeframes []scanner.Timeframe
	Log        logrus.FieldLogger
}

// Scheduler manages the scan and discovery cron tasks.
type Scheduler struct {
	Cron *cron.Cron
	Ctx  context.Context

	deps     Deps
	bg       sync.WaitGroup
	scanMu   sync.Mutex
	lastScan *scanner.Report
	reportMu sync.RWMutex
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, deps Deps) *Scheduler {
	cronLog := cron.PrintfLogger(deps.Log)
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		Ctx:  ctx,
		deps: deps,
	}
}

// RegisterAll registers the scan task and, when discoveryCron is set, the
// symbol discovery task.
func (s *Scheduler) RegisterAll(scanCron, discoveryCron string) error {
	if _, err := s.Cron.AddFunc(scanCron, func() { s.RunScanNow() }); err != nil {
		return fmt.Errorf("register scan task: %w", err)
	}
	if discoveryCron == "" {
		return nil
	}
	if _, err := s.Cron.AddFunc(discoveryCron, func() { s.RunDiscoveryNow() }); err != nil {
		return fmt.Errorf("register discovery task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.deps.Log.Info("scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs, including
// runs started by RunOnStart and /scan.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.bg.Wait()
	s.deps.Log.Info("scheduler stopped")
}

// RunOnStart refreshes the symbol list when discover is set, then scans.
// It runs in the background; Stop waits for it.
func (s *Scheduler) RunOnStart(discover bool) {
	s.goTracked(func() {
		if discover {
			s.RunDiscoveryNow()
		}
		if _, err := s.RunScanNow(); err != nil && !errors.Is(err, ErrScanRunning) {
			s.deps.Log.WithError(err).Error("startup scan")
		}
	})
}

func (s *Scheduler) goTracked(fn func()) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
}

// RunDiscoveryNow refreshes the symbol list from the exchange.
func (s *Scheduler) RunDiscoveryNow() error {
	if s.deps.Lister == nil {
		return nil
	}
	log := s.deps.Log.WithField("task", "discovery")
	log.Info("running symbol discovery")
	list, err := s.deps.Registry.Discover(s.Ctx, s.deps.Lister)
	evt := &recorder.DiscoveryEvent{At: time.Now().UTC(), Symbols: len(list)}
	if err != nil {
		evt.Error = err.Error()
		log.WithError(err).Error("symbol discovery failed")
	} else {
		log.WithField("symbols", len(list)).Info("symbol discovery finished")
	}
	if rerr := s.deps.Recorder.RecordDiscovery(evt); rerr != nil {
		log.WithError(rerr).Error("record discovery")
	}
	return err
}

// ErrScanRunning is returned when a scan is requested while one is active.
var ErrScanRunning = errors.New("scan already running")

// RunScanNow executes one scan cycle unless one is already running.
func (s *Scheduler) RunScanNow() (*scanner.Report, error) {
	if !s.scanMu.TryLock() {
		s.deps.Log.Warn("scan skipped: previous scan still running")
		return nil, ErrScanRunning
	}
	defer s.scanMu.Unlock()
	return s.scanTask()
}

func (s *Scheduler) scanTask() (*scanner.Report, error) {
	log := s.deps.Log.WithField("task", "scan")
	syms, err := s.deps.Registry.Load()
	if errors.Is(err, symbols.ErrNoSymbols) && s.deps.Lister != nil {
		log.Info("no symbol list yet, discovering")
		syms, err = s.deps.Registry.Discover(s.Ctx, s.deps.Lister)
	}
	if err != nil {
		log.WithError(err).Error("load symbols")
		s.trySend(fmt.Sprintf("❌ Scan aborted: %v", err))
		return nil, err
	}

	log.WithField("symbols", len(syms)).Info("running scan")
	report, err := s.deps.Scanner.Run(s.Ctx, syms, s.deps.Timeframes)
	if report == nil {
		log.WithError(err).Error("scan failed")
		return nil, err
	}

	rec := &recorder.ScanRecord{
		StartedAt: report.StartedAt,
		Duration:  report.Duration,
		Snapshot:  report.Snapshot,
	}
	for _, r := range report.Results {
		if !r.OK() && r.Err != nil {
			rec.Failures = append(rec.Failures, recorder.Failure{Symbol: r.Symbol, Reason: r.Err.Error()})
		}
	}
	if err != nil {
		rec.PublishError = err.Error()
		log.WithError(err).Error("publish snapshot")
	}
	if rerr := s.deps.Recorder.RecordScan(rec); rerr != nil {
		log.WithError(rerr).Error("record scan")
	}

	s.reportMu.Lock()
	s.lastScan = report
	s.reportMu.Unlock()

	msg := notifier.FormatScanReport(report.Snapshot, report.Duration)
	if err != nil {
		msg += fmt.Sprintf("\n⚠️ Snapshot not published: %v", err)
	}
	s.trySend(msg)
	return report, err
}

// LastReport returns the most recent scan report of this process.
func (s *Scheduler) LastReport() *scanner.Report {
	s.reportMu.RLock()
	defer s.reportMu.RUnlock()
	return s.lastScan
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	switch command {
	case "/scan":
		if !s.scanMu.TryLock() {
			return "⏳ A scan is already running."
		}
		s.scanMu.Unlock()
		s.goTracked(func() {
			if _, err := s.RunScanNow(); err != nil && !errors.Is(err, ErrScanRunning) {
				s.deps.Log.WithError(err).Error("manual scan")
			}
		})
		return "🔄 Scan started."
	case "/status":
		return notifier.FormatStatus(s.currentSnapshot(), time.Now())
	case "/failed":
		return notifier.FormatFailed(s.currentSnapshot())
	default:
		return "Available commands:\n• /scan\n• /status\n• /failed"
	}
}

func (s *Scheduler) currentSnapshot() *model.Snapshot {
	if s.deps.Snapshots != nil {
		if snap, err := s.deps.Snapshots.Latest(); err == nil {
			return snap
		}
	}
	if r := s.LastReport(); r != nil {
		return r.Snapshot
	}
	return nil
}

func (s *Scheduler) trySend(text string) {
	if s.deps.Notifier == nil {
		return
	}
	if err := s.deps.Notifier.Send(s.Ctx, text); err != nil {
		s.deps.Log.WithError(err).Error("send notification")
	}
}
