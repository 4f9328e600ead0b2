package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Column suffixes of the machine-oriented snapshot columns.
const (
	ColZeroLagHist    = "macd_zero_lag_hist"
	ColZeroLagHistMin = "macd_zero_lag_hist_min"
	ColZeroLagHistMax = "macd_zero_lag_hist_max"
	ColClose          = "Close"
	ColRSI            = "rsi"
	ColStochRSIK      = "stoch_rsi_k"
	ColStochRSID      = "stoch_rsi_d"
	ColMACDHist       = "macd_hist"
	ColStochasticK    = "stochastic_k"
	ColStochasticD    = "stochastic_d"
)

// StochColumn returns the display column name, e.g. "4h Stoch 5-3-3".
func StochColumn(interval, family string) string {
	return interval + " Stoch " + family
}

// MachineColumn returns a machine column name, e.g. "4h_macd_zero_lag_hist".
func MachineColumn(interval, suffix string) string {
	return interval + "_" + suffix
}

// StochValue is the latest K value of one Stochastic display family.
type StochValue struct {
	Family string
	Value  float64
}

// TimeframeSummary holds the latest-bar values of one interval.
type TimeframeSummary struct {
	Interval string
	Stoch    []StochValue

	RSI         float64
	StochRSIK   float64
	StochRSID   float64
	MACDHist    float64
	StochasticK float64
	StochasticD float64

	ZeroLagHist    float64
	ZeroLagHistMin float64
	ZeroLagHistMax float64
	Close          float64
}

// StochFamily returns the value for a family name.
func (t TimeframeSummary) StochFamily(family string) (float64, bool) {
	for _, s := range t.Stoch {
		if s.Family == family {
			return s.Value, true
		}
	}
	return 0, false
}

// SymbolSummary is one snapshot row. It is immutable once added to a snapshot.
type SymbolSummary struct {
	Symbol     string
	Timeframes []TimeframeSummary
}

// Timeframe looks up the summary of one interval.
func (s SymbolSummary) Timeframe(interval string) (TimeframeSummary, bool) {
	for _, tf := range s.Timeframes {
		if tf.Interval == interval {
			return tf, true
		}
	}
	return TimeframeSummary{}, false
}

type column struct {
	key   string
	value float64
}

func (t TimeframeSummary) columns() []column {
	cols := make([]column, 0, len(t.Stoch)+10)
	for _, s := range t.Stoch {
		cols = append(cols, column{StochColumn(t.Interval, s.Family), s.Value})
	}
	iv := t.Interval
	return append(cols,
		column{MachineColumn(iv, ColZeroLagHist), t.ZeroLagHist},
		column{MachineColumn(iv, ColZeroLagHistMin), t.ZeroLagHistMin},
		column{MachineColumn(iv, ColZeroLagHistMax), t.ZeroLagHistMax},
		column{MachineColumn(iv, ColClose), t.Close},
		column{MachineColumn(iv, ColRSI), t.RSI},
		column{MachineColumn(iv, ColStochRSIK), t.StochRSIK},
		column{MachineColumn(iv, ColStochRSID), t.StochRSID},
		column{MachineColumn(iv, ColMACDHist), t.MACDHist},
		column{MachineColumn(iv, ColStochasticK), t.StochasticK},
		column{MachineColumn(iv, ColStochasticD), t.StochasticD},
	)
}

// MarshalJSON writes the flat record shape the dashboard filters on:
// "Symbol" first, then every timeframe's columns in timeframe order.
// Non-finite values are written as null.
func (s SymbolSummary) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`{"Symbol":`)
	sym, err := json.Marshal(s.Symbol)
	if err != nil {
		return nil, err
	}
	b.Write(sym)
	for _, tf := range s.Timeframes {
		for _, c := range tf.columns() {
			key, err := json.Marshal(c.key)
			if err != nil {
				return nil, err
			}
			b.WriteByte(',')
			b.Write(key)
			b.WriteByte(':')
			if math.IsNaN(c.value) || math.IsInf(c.value, 0) {
				b.WriteString("null")
				continue
			}
			b.WriteString(strconv.FormatFloat(c.value, 'f', -1, 64))
		}
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON parses the flat record shape back into timeframes, keeping
// the key order of the document. Unknown columns are ignored.
func (s *SymbolSummary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("symbol summary: expected object")
	}

	out := SymbolSummary{}
	index := map[string]int{}
	get := func(interval string) *TimeframeSummary {
		i, ok := index[interval]
		if !ok {
			out.Timeframes = append(out.Timeframes, TimeframeSummary{Interval: interval})
			i = len(out.Timeframes) - 1
			index[interval] = i
		}
		return &out.Timeframes[i]
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("symbol summary %q: %w", key, err)
		}
		if key == "Symbol" {
			if err := json.Unmarshal(raw, &out.Symbol); err != nil {
				return fmt.Errorf("symbol summary: %w", err)
			}
			continue
		}
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		value := math.NaN()
		if v != nil {
			value = *v
		}

		if interval, family, ok := strings.Cut(key, " Stoch "); ok {
			tf := get(interval)
			tf.Stoch = append(tf.Stoch, StochValue{Family: family, Value: value})
			continue
		}
		interval, suffix, ok := strings.Cut(key, "_")
		if !ok || !knownSuffix(suffix) {
			continue
		}
		var field *float64
		tf := get(interval)
		switch suffix {
		case ColZeroLagHist:
			field = &tf.ZeroLagHist
		case ColZeroLagHistMin:
			field = &tf.ZeroLagHistMin
		case ColZeroLagHistMax:
			field = &tf.ZeroLagHistMax
		case ColClose:
			field = &tf.Close
		case ColRSI:
			field = &tf.RSI
		case ColStochRSIK:
			field = &tf.StochRSIK
		case ColStochRSID:
			field = &tf.StochRSID
		case ColMACDHist:
			field = &tf.MACDHist
		case ColStochasticK:
			field = &tf.StochasticK
		case ColStochasticD:
			field = &tf.StochasticD
		}
		if field != nil {
			*field = value
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*s = out
	return nil
}

func knownSuffix(s string) bool {
	switch s {
	case ColZeroLagHist, ColZeroLagHistMin, ColZeroLagHistMax, ColClose,
		ColRSI, ColStochRSIK, ColStochRSID, ColMACDHist, ColStochasticK, ColStochasticD:
		return true
	}
	return false
}

// Snapshot is the published result of one scan cycle. Each snapshot fully
// replaces the previous one.
type Snapshot struct {
	Rows         []SymbolSummary `json:"df_valid"`
	Failed       []string        `json:"failed"`
	GeneratedAt  time.Time       `json:"last_update"`
	TotalPairs   int             `json:"total_pairs"`
	ScannedPairs int             `json:"scanned_pairs"`
}

// NewSnapshot builds a snapshot with non-nil slices so the document always
// carries arrays rather than nulls.
func NewSnapshot(rows []SymbolSummary, failed []string, scanned int, at time.Time) *Snapshot {
	if rows == nil {
		rows = []SymbolSummary{}
	}
	if failed == nil {
		failed = []string{}
	}
	return &Snapshot{
		Rows:         rows,
		Failed:       failed,
		GeneratedAt:  at.UTC(),
		TotalPairs:   len(rows),
		ScannedPairs: scanned,
	}
}
