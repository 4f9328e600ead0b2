package exchange

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klineJSON(openMs, closeMs int64, price float64) string {
	p := strconv.FormatFloat(price, 'f', -1, 64)
	return fmt.Sprintf(`[%d,"%s","%s","%s","%s","10.5",%d,"0",1,"0","0","0"]`, openMs, p, p, p, p, closeMs)
}

func newTestFetcher(t *testing.T, h http.HandlerFunc, now time.Time) *BinanceFetcher {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	f := NewBinanceFetcher(BinanceOptions{BaseURL: srv.URL, APIKey: "k", Timeout: 5 * time.Second})
	f.now = func() time.Time { return now }
	return f
}

func TestFetchCandles_DropsOpenBar(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	hour := time.Hour.Milliseconds()
	now := base.Add(2*time.Hour + 30*time.Minute)

	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Equal(t, "1h", r.URL.Query().Get("interval"))
		assert.Equal(t, "k", r.Header.Get("X-MBX-APIKEY"))
		b := base.UnixMilli()
		rows := []string{
			klineJSON(b, b+hour-1, 1),
			klineJSON(b+hour, b+2*hour-1, 2),
			klineJSON(b+2*hour, b+3*hour-1, 3), // still open
		}
		fmt.Fprint(w, "["+strings.Join(rows, ",")+"]")
	}, now)

	got, err := f.FetchCandles(context.Background(), "BTCUSDT", "1h", base)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].OpenTime)
	assert.Equal(t, 2.0, got[1].Close)
	assert.Equal(t, 10.5, got[1].Volume)
}

func TestFetchCandles_Paginates(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	minute := time.Minute.Milliseconds()
	total := klineLimit + 10
	var pages int32

	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		start, err := strconv.ParseInt(r.URL.Query().Get("startTime"), 10, 64)
		assert.NoError(t, err)
		first := int((start - base.UnixMilli() + minute - 1) / minute)
		var rows []string
		for i := first; i < total && len(rows) < klineLimit; i++ {
			o := base.UnixMilli() + int64(i)*minute
			rows = append(rows, klineJSON(o, o+minute-1, float64(i)))
		}
		fmt.Fprint(w, "["+strings.Join(rows, ",")+"]")
	}, base.Add(48*time.Hour))

	got, err := f.FetchCandles(context.Background(), "ETHUSDT", "1m", base)
	require.NoError(t, err)
	assert.Len(t, got, total)
	assert.Equal(t, int32(2), atomic.LoadInt32(&pages))
	assert.True(t, got.IsSorted())
}

func TestFetchCandles_StatusError(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}, time.Now())

	_, err := f.FetchCandles(context.Background(), "NOPE", "1h", time.Now().Add(-time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestListActiveSymbols_FiltersAndSorts(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exchangeInfoPath, r.URL.Path)
		fmt.Fprint(w, `{"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","contractType":"PERPETUAL"},
			{"symbol":"BTCUSDT_240329","status":"TRADING","contractType":"CURRENT_QUARTER"},
			{"symbol":"LUNAUSDT","status":"SETTLING","contractType":"PERPETUAL"},
			{"symbol":"BTCUSDT","status":"TRADING","contractType":"PERPETUAL"}
		]}`)
	}, time.Now())

	got, err := f.ListActiveSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, got)
}

func TestParseKline_Short(t *testing.T) {
	_, err := parseKline(nil)
	assert.Error(t, err)
}

func TestMockFetcher_FiltersByStart(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &MockFetcher{}
	m.Set("BTCUSDT", "1h", GenerateSeries(base, time.Hour, 10, 100))

	got, err := m.FetchCandles(context.Background(), "BTCUSDT", "1h", base.Add(7*time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 3)
	require.Len(t, m.Calls(), 1)
	assert.Equal(t, "1h", m.Calls()[0].Interval)
}
