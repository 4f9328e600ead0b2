package recorder

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists scan history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log logrus.FieldLogger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log logrus.FieldLogger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the dashboard or ad-hoc queries read while a scan writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at    INTEGER NOT NULL,
			generated_at  INTEGER NOT NULL,
			duration_ms   INTEGER,
			scanned_pairs INTEGER,
			valid_pairs   INTEGER,
			failed_pairs  INTEGER,
			publish_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_runs_ts ON scan_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS scan_failures (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol  TEXT NOT NULL,
			reason  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scan_failures_scan ON scan_failures(scan_id)`,

		`CREATE TABLE IF NOT EXISTS timeframe_summaries (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id          INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol           TEXT NOT NULL,
			interval         TEXT NOT NULL,
			close            REAL,
			rsi              REAL,
			stoch_rsi_k      REAL,
			stoch_rsi_d      REAL,
			macd_hist        REAL,
			stochastic_k     REAL,
			stochastic_d     REAL,
			zero_lag_hist    REAL,
			zero_lag_hist_min REAL,
			zero_lag_hist_max REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tf_summaries_symbol ON timeframe_summaries(symbol, interval)`,

		`CREATE TABLE IF NOT EXISTS stoch_values (
			id      INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id INTEGER NOT NULL REFERENCES scan_runs(id),
			symbol  TEXT NOT NULL,
			interval TEXT NOT NULL,
			family  TEXT NOT NULL,
			value   REAL
		)`,

		`CREATE TABLE IF NOT EXISTS discovery_runs (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			symbols   INTEGER,
			error     TEXT
		)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordScan stores a scan run with its failures and per-timeframe values
// in one transaction.
func (r *SQLiteRecorder) RecordScan(rec *ScanRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := rec.Snapshot
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`INSERT INTO scan_runs
		(started_at, generated_at, duration_ms, scanned_pairs, valid_pairs, failed_pairs, publish_error)
		VALUES (?,?,?,?,?,?,?)`,
		rec.StartedAt.Unix(), snap.GeneratedAt.Unix(), rec.Duration.Milliseconds(),
		snap.ScannedPairs, snap.TotalPairs, len(snap.Failed), rec.PublishError,
	)
	if err != nil {
		return fmt.Errorf("insert scan run: %w", err)
	}
	scanID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, f := range rec.Failures {
		if _, err := tx.Exec(`INSERT INTO scan_failures (scan_id, symbol, reason) VALUES (?,?,?)`,
			scanID, f.Symbol, f.Reason); err != nil {
			return fmt.Errorf("insert failure: %w", err)
		}
	}

	for _, row := range snap.Rows {
		for _, tf := range row.Timeframes {
			if _, err := tx.Exec(`INSERT INTO timeframe_summaries
				(scan_id, symbol, interval, close, rsi, stoch_rsi_k, stoch_rsi_d, macd_hist,
				 stochastic_k, stochastic_d, zero_lag_hist, zero_lag_hist_min, zero_lag_hist_max)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				scanID, row.Symbol, tf.Interval, nullable(tf.Close), nullable(tf.RSI),
				nullable(tf.StochRSIK), nullable(tf.StochRSID), nullable(tf.MACDHist),
				nullable(tf.StochasticK), nullable(tf.StochasticD),
				nullable(tf.ZeroLagHist), nullable(tf.ZeroLagHistMin), nullable(tf.ZeroLagHistMax),
			); err != nil {
				return fmt.Errorf("insert summary %s %s: %w", row.Symbol, tf.Interval, err)
			}
			for _, s := range tf.Stoch {
				if _, err := tx.Exec(`INSERT INTO stoch_values (scan_id, symbol, interval, family, value) VALUES (?,?,?,?,?)`,
					scanID, row.Symbol, tf.Interval, s.Family, nullable(s.Value)); err != nil {
					return fmt.Errorf("insert stoch %s %s: %w", row.Symbol, tf.Interval, err)
				}
			}
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordDiscovery(evt *DiscoveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO discovery_runs (timestamp, symbols, error) VALUES (?,?,?)`,
		evt.At.Unix(), evt.Symbols, evt.Error)
	return err
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}

// nullable maps non-finite values to NULL.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}
