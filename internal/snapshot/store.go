// Package snapshot publishes scan results as a single JSON document.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"PairScanner/internal/atomicfile"
	"PairScanner/internal/model"
)

// ErrNotFound is returned by Load when no snapshot has been published yet.
var ErrNotFound = errors.New("snapshot not found")

// Store writes snapshots to Path and remembers the last published one.
type Store struct {
	Path string

	mu     sync.RWMutex
	latest *model.Snapshot
}

// NewStore creates a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Publish replaces the document atomically. Readers see either the old or
// the new snapshot, never a partial file.
func (s *Store) Publish(snap *model.Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := atomicfile.WriteFile(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	s.mu.Lock()
	s.latest = snap
	s.mu.Unlock()
	return nil
}

// Load reads the published document from disk.
func (s *Store) Load() (*model.Snapshot, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", s.Path, err)
	}
	return &snap, nil
}

// Latest returns the last snapshot published through this Store, falling
// back to the file on disk.
func (s *Store) Latest() (*model.Snapshot, error) {
	s.mu.RLock()
	snap := s.latest
	s.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}
	return s.Load()
}
