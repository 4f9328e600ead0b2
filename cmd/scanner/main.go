package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"PairScanner/internal/cache"
	"PairScanner/internal/collector"
	"PairScanner/internal/config"
	"PairScanner/internal/exchange"
	"PairScanner/internal/logger"
	"PairScanner/internal/metrics"
	"PairScanner/internal/notifier"
	"PairScanner/internal/recorder"
	"PairScanner/internal/scanner"
	"PairScanner/internal/scheduler"
	"PairScanner/internal/snapshot"
	"PairScanner/internal/symbols"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("load .env")
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("config validation")
	}

	log, logCloser, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	defer logCloser.Close()
	log.WithField("config", cfgPath).Info("PairScanner starting...")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	// Init exchange client
	fetcher := exchange.NewBinanceFetcher(exchange.BinanceOptions{
		BaseURL: cfg.Exchange.BaseURL,
		APIKey:  cfg.Exchange.APIKey,
		Proxy:   cfg.Proxy,
		Timeout: cfg.Exchange.Timeout,
	})
	log.WithField("source", fetcher.Name()).Info("exchange client ready")

	// Init pipeline
	candles := cache.New(cfg.Storage.CacheDir, fetcher, log, m)
	analyzer := collector.NewAnalyzer(candles, cfg.Scan.Indicators, log)
	store := snapshot.NewStore(cfg.Storage.SnapshotFile)
	scan := scanner.New(analyzer, store, log, m, scanner.Options{
		Workers:  cfg.Scan.Workers,
		Families: cfg.Scan.Families,
	})
	registry := &symbols.Registry{
		Path:       cfg.Symbols.File,
		Static:     cfg.Symbols.Static,
		QuoteAsset: cfg.Symbols.QuoteAsset,
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath, log)
		if err != nil {
			log.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := scheduler.Deps{
		Scanner:    scan,
		Registry:   registry,
		Lister:     fetcher,
		Snapshots:  store,
		Recorder:   rec,
		Timeframes: cfg.Scan.Timeframes,
		Log:        log,
	}
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		deps.Notifier = tn
	} else {
		log.Info("telegram not configured, reports disabled")
	}

	sched := scheduler.NewScheduler(ctx, deps)
	if err := sched.RegisterAll(cfg.Schedule.ScanCron, cfg.Schedule.DiscoveryCron); err != nil {
		log.WithError(err).Fatal("register cron tasks")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	metricsSrv := startMetricsServer(cfg.Metrics.Addr, m, log)

	if cfg.Schedule.RunOnStart != nil && *cfg.Schedule.RunOnStart {
		log.Info("run_on_start enabled, refreshing symbols and scanning now")
		sched.RunOnStart(len(cfg.Symbols.Static) == 0)
	}

	log.Info("PairScanner is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	cancel()
	if metricsSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		metricsSrv.Shutdown(shutdownCtx)
	}
	log.Info("PairScanner stopped")
}

func startMetricsServer(addr string, m *metrics.Metrics, log logrus.FieldLogger) *http.Server {
	if addr == "" {
		return nil
	}
	r := mux.NewRouter()
	r.Handle("/metrics", m.Handler()).Methods("GET")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithField("addr", addr).Info("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server")
		}
	}()
	return srv
}
