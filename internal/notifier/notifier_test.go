package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairScanner/internal/logger"
	"PairScanner/internal/model"
)

func newTestNotifier(t *testing.T, h http.Handler) *TelegramNotifier {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	n := NewTelegramNotifier("TOKEN", "42", "", logger.Discard())
	n.APIBase = srv.URL
	n.client.SetRetryWaitTime(time.Millisecond).SetRetryMaxWaitTime(5 * time.Millisecond)
	return n
}

func TestSend_PostsHTMLMessage(t *testing.T) {
	var got map[string]string
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"ok":true}`)
	}))

	require.NoError(t, n.Send(context.Background(), "<b>hi</b>"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "HTML", got["parse_mode"])
	assert.Equal(t, "<b>hi</b>", got["text"])
}

func TestSend_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusUnauthorized)
	}))

	err := n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestSend_RetriesServerErrors(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))

	require.NoError(t, n.Send(context.Background(), "x"))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSend_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))

	err := n.Send(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Equal(t, int32(DefaultSendRetries+1), atomic.LoadInt32(&calls))
}

func TestSend_StopsOnCancel(t *testing.T) {
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusTooManyRequests)
	}))
	n.client.SetRetryWaitTime(time.Second).SetRetryMaxWaitTime(time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := n.Send(ctx, "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStartPolling_RepliesToOwnChatOnly(t *testing.T) {
	var served int32
	replies := make(chan string, 4)
	mux := http.NewServeMux()
	mux.HandleFunc("/botTOKEN/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&served, 1) == 1 {
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":7,"message":{"text":"/status","chat":{"id":99}}},
				{"update_id":8,"message":{"text":" /status ","chat":{"id":42}}}
			]}`)
			return
		}
		assert.Equal(t, "9", r.URL.Query().Get("offset"))
		time.Sleep(10 * time.Millisecond)
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	})
	mux.HandleFunc("/botTOKEN/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		replies <- body["text"]
		fmt.Fprint(w, `{"ok":true}`)
	})
	n := newTestNotifier(t, mux)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var handled int32
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string {
			atomic.AddInt32(&handled, 1)
			return "ack " + cmd
		})
		close(done)
	}()

	select {
	case r := <-replies:
		assert.Equal(t, "ack /status", r)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply")
	}
	cancel()
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&handled))
}

func reportSnapshot() *model.Snapshot {
	row := func(sym string, v float64) model.SymbolSummary {
		return model.SymbolSummary{Symbol: sym, Timeframes: []model.TimeframeSummary{
			{Interval: "4h", Stoch: []model.StochValue{{Family: "5-3-3", Value: v}}},
		}}
	}
	rows := []model.SymbolSummary{row("AUSDT", 50), row("BUSDT", 3.5), row("CUSDT", 12), {Symbol: "DUSDT"}}
	return model.NewSnapshot(rows, []string{"XUSDT", "Y<USDT"}, 6, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
}

func TestFormatScanReport(t *testing.T) {
	msg := FormatScanReport(reportSnapshot(), 95*time.Second)

	assert.Contains(t, msg, "Valid: 4 / 6")
	assert.Contains(t, msg, "Failed: 2")
	assert.Contains(t, msg, "4h Stoch 5-3-3")
	assert.Less(t, strings.Index(msg, "BUSDT"), strings.Index(msg, "CUSDT"))
	assert.Less(t, strings.Index(msg, "CUSDT"), strings.Index(msg, "AUSDT"))
	assert.NotContains(t, msg, "DUSDT")
}

func TestFormatStatusAndFailed(t *testing.T) {
	snap := reportSnapshot()
	status := FormatStatus(snap, snap.GeneratedAt.Add(45*time.Minute))
	assert.Contains(t, status, "45m0s ago")
	assert.Contains(t, status, "Valid pairs: 4")

	failed := FormatFailed(snap)
	assert.Contains(t, failed, "Failed pairs (2)")
	assert.Contains(t, failed, "Y&lt;USDT")

	assert.Equal(t, "No snapshot published yet.", FormatStatus(nil, time.Now()))
	assert.Contains(t, FormatFailed(model.NewSnapshot(nil, nil, 0, time.Now())), "No failed")
}
