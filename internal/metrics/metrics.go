// Package metrics defines the Prometheus collectors of the scanner and
// the dashboard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. Use New with a dedicated registry in tests.
type Metrics struct {
	// Candle cache
	CacheRequests  *prometheus.CounterVec // labels: interval, outcome=fresh|incremental|cold|bypass|stale
	UpstreamErrors *prometheus.CounterVec // labels: interval
	CandlesFetched *prometheus.CounterVec // labels: interval

	// Scan
	ScanDuration    prometheus.Histogram
	SymbolsValid    prometheus.Gauge
	SymbolsFailed   prometheus.Gauge
	SymbolDuration  prometheus.Histogram
	LastScanSuccess prometheus.Gauge // unix seconds
	PublishErrors   prometheus.Counter

	// Dashboard
	DashboardClients prometheus.Gauge
	SnapshotReloads  prometheus.Counter

	registry prometheus.Gatherer
}

// New creates and registers every collector with reg. When reg is also a
// Gatherer, Handler serves it; otherwise the default gatherer is used.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairscanner_cache_requests_total",
			Help: "Candle cache lookups by interval and outcome",
		}, []string{"interval", "outcome"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairscanner_upstream_errors_total",
			Help: "Failed upstream candle fetches",
		}, []string{"interval"}),
		CandlesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pairscanner_candles_fetched_total",
			Help: "Candles received from upstream",
		}, []string{"interval"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairscanner_scan_duration_seconds",
			Help:    "Duration of a full scan cycle",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		SymbolsValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairscanner_symbols_valid",
			Help: "Symbols with a summary in the last snapshot",
		}),
		SymbolsFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairscanner_symbols_failed",
			Help: "Symbols marked failed in the last snapshot",
		}),
		SymbolDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pairscanner_symbol_duration_seconds",
			Help:    "Time spent analyzing one symbol across all timeframes",
			Buckets: prometheus.DefBuckets,
		}),
		LastScanSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairscanner_last_scan_success_timestamp_seconds",
			Help: "Unix time of the last successfully published snapshot",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairscanner_snapshot_publish_errors_total",
			Help: "Snapshot publications that failed",
		}),
		DashboardClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pairscanner_dashboard_ws_clients",
			Help: "Connected dashboard websocket clients",
		}),
		SnapshotReloads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pairscanner_dashboard_snapshot_reloads_total",
			Help: "Snapshot file changes picked up by the dashboard",
		}),
	}

	reg.MustRegister(
		m.CacheRequests, m.UpstreamErrors, m.CandlesFetched,
		m.ScanDuration, m.SymbolsValid, m.SymbolsFailed, m.SymbolDuration,
		m.LastScanSuccess, m.PublishErrors,
		m.DashboardClients, m.SnapshotReloads,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.registry = g
	} else {
		m.registry = prometheus.DefaultGatherer
	}
	return m
}

// NewUnregistered returns metrics bound to a private registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
