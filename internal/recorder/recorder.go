package recorder

import (
	"time"

	"PairScanner/internal/model"
)

// Failure is one symbol that did not make it into a snapshot.
type Failure struct {
	Symbol string
	Reason string
}

// ScanRecord holds everything kept about one scan cycle.
type ScanRecord struct {
	StartedAt    time.Time
	Duration     time.Duration
	Snapshot     *model.Snapshot
	Failures     []Failure
	PublishError string
}

// DiscoveryEvent records one symbol discovery run.
type DiscoveryEvent struct {
	At      time.Time
	Symbols int
	Error   string
}

// Recorder persists scan history for later analysis.
type Recorder interface {
	RecordScan(rec *ScanRecord) error
	RecordDiscovery(evt *DiscoveryEvent) error
	Close() error
}
