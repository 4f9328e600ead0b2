package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"PairScanner/internal/config"
	"PairScanner/internal/dashboard"
	"PairScanner/internal/logger"
	"PairScanner/internal/metrics"
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

	log, logCloser, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, File: cfg.Log.File})
	if err != nil {
		logrus.WithError(err).Fatal("init logger")
	}
	defer logCloser.Close()

	srv := dashboard.NewServer(dashboard.Options{
		SnapshotPath: cfg.Storage.SnapshotFile,
		StaleAfter:   cfg.Dashboard.StaleAfter,
		Log:          log,
		Metrics:      metrics.New(prometheus.NewRegistry()),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Watch(ctx, cfg.Dashboard.PollInterval)

	httpSrv := &http.Server{
		Addr:              cfg.Dashboard.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.Dashboard.Addr,
			"snapshot": cfg.Storage.SnapshotFile,
		}).Info("dashboard listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("dashboard server")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, stopping...")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("dashboard shutdown")
	}
	log.Info("dashboard stopped")
}
