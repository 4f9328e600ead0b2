package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairScanner/internal/logger"
	"PairScanner/internal/metrics"
)

func newTestServer(t *testing.T, content string) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan_results.json")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	s := NewServer(Options{
		SnapshotPath: path,
		StaleAfter:   90 * time.Minute,
		Log:          logger.Discard(),
		Metrics:      metrics.NewUnregistered(),
	})
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return s, path
}

func getJSON(t *testing.T, h http.Handler, target string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHealthCheck(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	code, body := getJSON(t, s.Router(), "/health")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["snapshot_available"])
	assert.Equal(t, false, body["stale"])
}

func TestGetSnapshot(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	code, body := getJSON(t, s.Router(), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["available"])
	assert.EqualValues(t, 2, body["total_pairs"])
	assert.EqualValues(t, 3, body["scanned_pairs"])
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	first := rows[0].(map[string]any)
	assert.Equal(t, "BTCUSDT", first["Symbol"])
	assert.Nil(t, first["1d_rsi"])
}

func TestGetSnapshot_NotPublished(t *testing.T) {
	s, _ := newTestServer(t, "")
	code, body := getJSON(t, s.Router(), "/api/v1/snapshot")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["available"])
	assert.Equal(t, true, body["stale"])
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, []any{}, body["rows"])
}

func TestGetPairs(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	q := url.Values{}
	q.Add("filter", "4h Stoch 5-3-3:outside:20:80")
	q.Add("filter", "15m_rsi:below:30")
	q.Set("sort", "4h Stoch 5-3-3")
	q.Set("desc", "true")

	code, body := getJSON(t, s.Router(), "/api/v1/pairs?"+q.Encode())
	require.Equal(t, http.StatusOK, code)
	rows := body["rows"].([]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "ETHUSDT", rows[0].(map[string]any)["Symbol"])
	assert.Equal(t, []any{"15m_rsi"}, body["missing_columns"])
	assert.EqualValues(t, 2, body["matched"])
}

func TestGetPairs_BadRequest(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	for _, target := range []string{
		"/api/v1/pairs?filter=bad",
		"/api/v1/pairs?desc=maybe",
		"/api/v1/pairs?limit=-1",
	} {
		code, _ := getJSON(t, s.Router(), target)
		assert.Equal(t, http.StatusBadRequest, code, target)
	}
}

func TestGetFailedAndColumns(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	_, body := getJSON(t, s.Router(), "/api/v1/failed")
	assert.Equal(t, []any{"DOGEUSDT"}, body["failed"])
	assert.EqualValues(t, 1, body["count"])

	_, body = getJSON(t, s.Router(), "/api/v1/columns")
	assert.Contains(t, body["columns"], "4h_macd_zero_lag_norm")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, sampleSnapshot)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "snapshot_reloads_total")
}

func TestReload(t *testing.T) {
	s, path := newTestServer(t, "")
	assert.False(t, s.Document().Available)
	assert.False(t, s.Reload(), "nothing changed")

	require.NoError(t, os.WriteFile(path, []byte(sampleSnapshot), 0o644))
	assert.True(t, s.Reload())
	assert.True(t, s.Document().Available)
	assert.False(t, s.Reload())

	require.NoError(t, os.WriteFile(path, []byte(`{"df_valid": [], "failed": [], "last_update": "2026-03-01T12:10:00Z"}`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.True(t, s.Reload())
	assert.Empty(t, s.Document().Records)
}

func TestWebsocketPushesUpdates(t *testing.T) {
	s, path := newTestServer(t, sampleSnapshot)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, 10*time.Millisecond)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	if resp != nil && resp.Body != nil {
		io.Copy(io.Discard, resp.Body)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var initial documentView
	require.NoError(t, conn.ReadJSON(&initial))
	assert.True(t, initial.Available)
	assert.Len(t, initial.Rows, 2)

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"df_valid": [], "failed": ["BTCUSDT","ETHUSDT"], "last_update": "2026-03-01T12:20:00Z"}`), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	var update map[string]any
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, []any{"BTCUSDT", "ETHUSDT"}, update["failed"])
}
