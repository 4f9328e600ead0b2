// Package dashboard serves the published snapshot with filtering, sorting
// and live updates.
package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"PairScanner/internal/calculator"
	"PairScanner/internal/model"
)

// Record is one snapshot row read generically: every numeric column keyed
// by name, null or non-finite values stored as NaN.
type Record struct {
	Symbol string
	Values map[string]float64
	order  []string
}

// Value returns a column value; missing and null both report false.
func (r Record) Value(column string) (float64, bool) {
	v, ok := r.Values[column]
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func (r *Record) set(column string, v float64) {
	if _, ok := r.Values[column]; !ok {
		r.order = append(r.order, column)
	}
	r.Values[column] = v
}

// MarshalJSON writes "Symbol" first and the columns in document order.
func (r Record) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	sym, err := json.Marshal(r.Symbol)
	if err != nil {
		return nil, err
	}
	b.WriteString(`{"Symbol":`)
	b.Write(sym)
	for _, col := range r.order {
		key, _ := json.Marshal(col)
		b.WriteByte(',')
		b.Write(key)
		b.WriteByte(':')
		v := r.Values[col]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// Document is the dashboard's view of the snapshot file. A missing or
// unreadable file yields Available=false rather than an error.
type Document struct {
	Available    bool
	Error        string
	LastUpdate   time.Time
	TotalPairs   int
	ScannedPairs int
	Failed       []string
	Records      []Record
	Columns      []string
}

// Stale reports whether the snapshot is older than after at now. An
// unavailable document is always stale; after <= 0 disables the check.
func (d Document) Stale(now time.Time, after time.Duration) bool {
	if !d.Available {
		return true
	}
	if after <= 0 {
		return false
	}
	return now.Sub(d.LastUpdate) > after
}

// LoadDocument reads and parses the snapshot file at path.
func LoadDocument(path string) Document {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Document{Error: "snapshot not published yet"}
		}
		return Document{Error: err.Error()}
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return Document{Error: err.Error()}
	}
	return doc
}

var lastUpdateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// ParseDocument decodes a snapshot document. Row columns keep the order
// they have in the file; a normalized zero-lag column is derived for every
// interval that carries hist, min and max.
func ParseDocument(data []byte) (Document, error) {
	var raw struct {
		Rows         []json.RawMessage `json:"df_valid"`
		Failed       []string          `json:"failed"`
		LastUpdate   string            `json:"last_update"`
		TotalPairs   int               `json:"total_pairs"`
		ScannedPairs int               `json:"scanned_pairs"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Document{}, fmt.Errorf("decode snapshot: %w", err)
	}

	doc := Document{
		Available:    true,
		TotalPairs:   raw.TotalPairs,
		ScannedPairs: raw.ScannedPairs,
		Failed:       raw.Failed,
		Records:      make([]Record, 0, len(raw.Rows)),
	}
	if doc.Failed == nil {
		doc.Failed = []string{}
	}
	for _, layout := range lastUpdateLayouts {
		if t, err := time.Parse(layout, raw.LastUpdate); err == nil {
			doc.LastUpdate = t.UTC()
			break
		}
	}

	seen := map[string]bool{}
	for i, rowData := range raw.Rows {
		rec, err := decodeRecord(rowData)
		if err != nil {
			return Document{}, fmt.Errorf("row %d: %w", i, err)
		}
		addNormalized(&rec)
		for _, col := range rec.order {
			if !seen[col] {
				seen[col] = true
				doc.Columns = append(doc.Columns, col)
			}
		}
		doc.Records = append(doc.Records, rec)
	}
	return doc, nil
}

func decodeRecord(data []byte) (Record, error) {
	rec := Record{Values: map[string]float64{}}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return rec, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return rec, fmt.Errorf("expected object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return rec, err
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return rec, err
		}
		if key == "Symbol" {
			rec.Symbol, _ = v.(string)
			continue
		}
		switch val := v.(type) {
		case nil:
			rec.set(key, math.NaN())
		case json.Number:
			f, err := val.Float64()
			if err != nil {
				f = math.NaN()
			}
			rec.set(key, f)
		}
	}
	if _, err := dec.Token(); err != nil {
		return rec, err
	}
	return rec, nil
}

// NormalizedColumn is the derived column name for an interval.
func NormalizedColumn(interval string) string {
	return model.MachineColumn(interval, "macd_zero_lag_norm")
}

func addNormalized(rec *Record) {
	suffix := "_" + model.ColZeroLagHist
	for _, col := range append([]string(nil), rec.order...) {
		interval, ok := strings.CutSuffix(col, suffix)
		if !ok {
			continue
		}
		hist, ok1 := rec.Value(col)
		lo, ok2 := rec.Value(model.MachineColumn(interval, model.ColZeroLagHistMin))
		hi, ok3 := rec.Value(model.MachineColumn(interval, model.ColZeroLagHistMax))
		if !ok1 || !ok2 || !ok3 {
			rec.set(NormalizedColumn(interval), math.NaN())
			continue
		}
		rec.set(NormalizedColumn(interval), calculator.Round(calculator.NormalizeHistogram(hist, lo, hi), 2))
	}
}
