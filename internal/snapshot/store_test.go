package snapshot

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairScanner/internal/model"
)

func sampleSnapshot() *model.Snapshot {
	row := model.SymbolSummary{
		Symbol: "BTCUSDT",
		Timeframes: []model.TimeframeSummary{{
			Interval:       "4h",
			Stoch:          []model.StochValue{{Family: "5-3-3", Value: 12.34}, {Family: "14-3-3", Value: 56.78}},
			ZeroLagHist:    -0.5,
			ZeroLagHistMin: -2,
			ZeroLagHistMax: 3,
			Close:          42000.5,
			RSI:            35.1,
		}},
	}
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return model.NewSnapshot([]model.SymbolSummary{row}, []string{"XUSDT"}, 2, at)
}

func TestStore_PublishLoadRoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "data", "snapshot.json"))
	snap := sampleSnapshot()
	require.NoError(t, s.Publish(snap))

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, snap.GeneratedAt, got.GeneratedAt)
	assert.Equal(t, []string{"XUSDT"}, got.Failed)
	assert.Equal(t, 1, got.TotalPairs)
	assert.Equal(t, 2, got.ScannedPairs)
	require.Len(t, got.Rows, 1)
	assert.Equal(t, snap.Rows[0], got.Rows[0])
}

func TestStore_DocumentShape(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
	require.NoError(t, s.Publish(sampleSnapshot()))

	raw, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "2024-01-01T12:00:00Z", doc["last_update"])
	assert.EqualValues(t, 1, doc["total_pairs"])
	rows := doc["df_valid"].([]any)
	row := rows[0].(map[string]any)
	assert.Equal(t, "BTCUSDT", row["Symbol"])
	assert.Equal(t, 12.34, row["4h Stoch 5-3-3"])
	assert.Equal(t, -0.5, row["4h_macd_zero_lag_hist"])
	assert.Equal(t, 42000.5, row["4h_Close"])
}

func TestStore_LoadMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "none.json"))
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Latest()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_FailedPublishKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "snapshot.json"))
	require.NoError(t, s.Publish(sampleSnapshot()))

	bad := sampleSnapshot()
	bad.Rows[0].Timeframes[0].Close = math.Inf(1) // encoded as null, still valid
	bad.Failed = nil
	require.NoError(t, os.Chmod(dir, 0o500))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o700) })
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}

	assert.Error(t, s.Publish(bad))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"XUSDT"}, got.Failed)
}

func TestStore_LatestPrefersMemory(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "snapshot.json"))
	snap := sampleSnapshot()
	require.NoError(t, s.Publish(snap))

	got, err := s.Latest()
	require.NoError(t, err)
	assert.Same(t, snap, got)
}
