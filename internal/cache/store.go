package cache

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"PairScanner/internal/atomicfile"
	"PairScanner/internal/model"
)

// TimeLayout is the timestamp format written to cache files.
const TimeLayout = "2006-01-02 15:04:05"

var header = []string{"Time", "Open", "High", "Low", "Close", "Volume"}

// readLayouts are tried in order when parsing the Time column.
var readLayouts = []string{
	TimeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// fileStore persists one CSV file per (symbol, interval).
type fileStore struct {
	dir string
}

func (s fileStore) path(symbol, interval string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(symbol + "_" + interval)
	return filepath.Join(s.dir, name+".csv")
}

// load returns os.ErrNotExist (wrapped) when nothing has been cached yet.
func (s fileStore) load(symbol, interval string) (model.Series, error) {
	f, err := os.Open(s.path(symbol, interval))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	series, err := decodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read cache %s %s: %w", symbol, interval, err)
	}
	return series, nil
}

func (s fileStore) save(symbol, interval string, series model.Series) error {
	var buf bytes.Buffer
	if err := encodeCSV(&buf, series); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(s.path(symbol, interval), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write cache %s %s: %w", symbol, interval, err)
	}
	return nil
}

func encodeCSV(w io.Writer, series model.Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	for _, c := range series {
		rec := []string{c.OpenTime.UTC().Format(TimeLayout), f(c.Open), f(c.High), f(c.Low), f(c.Close), f(c.Volume)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(r io.Reader) (model.Series, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("empty file")
	}
	idx := map[string]int{}
	for i, name := range rows[0] {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range header {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	series := make(model.Series, 0, len(rows)-1)
	for line, rec := range rows[1:] {
		t, err := parseTime(rec[idx["Time"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line+2, err)
		}
		c := model.Candle{OpenTime: t}
		for _, col := range []struct {
			name string
			dst  *float64
		}{{"Open", &c.Open}, {"High", &c.High}, {"Low", &c.Low}, {"Close", &c.Close}, {"Volume", &c.Volume}} {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx[col.name]]), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line+2, col.name, err)
			}
			*col.dst = v
		}
		series = append(series, c)
	}
	return MergeCandles(series, nil), nil
}

// parseTime reads a timestamp; values without an offset are UTC.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable time %q", s)
}
