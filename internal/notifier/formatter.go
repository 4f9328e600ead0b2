package notifier

import (
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"time"

	"PairScanner/internal/model"
)

// Report ranking column: the most oversold pairs by "4h Stoch 5-3-3".
const (
	ReportInterval = "4h"
	ReportFamily   = "5-3-3"
	reportTop      = 10
	maxFailedShown = 30
)

// FormatScanReport summarizes a finished scan.
func FormatScanReport(snap *model.Snapshot, took time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Pair scan</b> | %s UTC\n\n", snap.GeneratedAt.Format("2006-01-02 15:04")))
	b.WriteString(fmt.Sprintf("Valid: %d / %d\n", snap.TotalPairs, snap.ScannedPairs))
	b.WriteString(fmt.Sprintf("Failed: %d\n", len(snap.Failed)))
	b.WriteString(fmt.Sprintf("Duration: %s\n", took.Round(time.Second)))

	top := oversold(snap, reportTop)
	if len(top) > 0 {
		b.WriteString(fmt.Sprintf("\n📉 <b>Lowest %s</b>\n", model.StochColumn(ReportInterval, ReportFamily)))
		for _, r := range top {
			b.WriteString(fmt.Sprintf("  %s: %.2f\n", html.EscapeString(r.symbol), r.value))
		}
	}
	return b.String()
}

// FormatStatus reports the age and counts of the current snapshot.
func FormatStatus(snap *model.Snapshot, now time.Time) string {
	if snap == nil {
		return "No snapshot published yet."
	}
	age := now.Sub(snap.GeneratedAt).Round(time.Minute)
	return fmt.Sprintf("📦 <b>Snapshot status</b>\n\nLast update: %s UTC (%s ago)\nValid pairs: %d\nFailed pairs: %d\nScanned: %d",
		snap.GeneratedAt.Format("2006-01-02 15:04"), age, snap.TotalPairs, len(snap.Failed), snap.ScannedPairs)
}

// FormatFailed lists the failed symbols of a snapshot.
func FormatFailed(snap *model.Snapshot) string {
	if snap == nil {
		return "No snapshot published yet."
	}
	if len(snap.Failed) == 0 {
		return "✅ No failed pairs."
	}
	shown := snap.Failed
	if len(shown) > maxFailedShown {
		shown = shown[:maxFailedShown]
	}
	escaped := make([]string, len(shown))
	for i, s := range shown {
		escaped[i] = html.EscapeString(s)
	}
	msg := fmt.Sprintf("⚠️ <b>Failed pairs (%d)</b>\n%s", len(snap.Failed), strings.Join(escaped, ", "))
	if len(snap.Failed) > maxFailedShown {
		msg += fmt.Sprintf("\n… and %d more", len(snap.Failed)-maxFailedShown)
	}
	return msg
}

type ranked struct {
	symbol string
	value  float64
}

func oversold(snap *model.Snapshot, n int) []ranked {
	var out []ranked
	for _, row := range snap.Rows {
		tf, ok := row.Timeframe(ReportInterval)
		if !ok {
			continue
		}
		v, ok := tf.StochFamily(ReportFamily)
		if !ok || math.IsNaN(v) {
			continue
		}
		out = append(out, ranked{row.Symbol, v})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].value < out[j].value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
