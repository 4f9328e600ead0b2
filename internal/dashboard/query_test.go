package dashboard

import (
	"math"
	"testing"
)

func testDoc() Document {
	mk := func(sym string, kv ...any) Record {
		r := Record{Symbol: sym, Values: map[string]float64{}}
		for i := 0; i < len(kv); i += 2 {
			r.set(kv[i].(string), kv[i+1].(float64))
		}
		return r
	}
	return Document{
		Available: true,
		Columns:   []string{"4h Stoch 5-3-3", "1d_rsi"},
		Records: []Record{
			mk("BTCUSDT", "4h Stoch 5-3-3", 12.0, "1d_rsi", 55.0),
			mk("ETHUSDT", "4h Stoch 5-3-3", 85.0, "1d_rsi", 71.0),
			mk("SOLUSDT", "4h Stoch 5-3-3", math.NaN(), "1d_rsi", 28.0),
			mk("XRPUSDT", "4h Stoch 5-3-3", 50.0),
		},
	}
}

func symbols(rows []Record) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Symbol
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterModes(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"below", Filter{Column: "4h Stoch 5-3-3", Mode: ModeBelow, Low: 20}, []string{"BTCUSDT"}},
		{"above", Filter{Column: "4h Stoch 5-3-3", Mode: ModeAbove, High: 80}, []string{"ETHUSDT"}},
		{"outside", Filter{Column: "4h Stoch 5-3-3", Mode: ModeOutside, Low: 20, High: 80}, []string{"BTCUSDT", "ETHUSDT"}},
		{"between inclusive", Filter{Column: "4h Stoch 5-3-3", Mode: ModeBetween, Low: 12, High: 50}, []string{"BTCUSDT", "XRPUSDT"}},
		{"missing value never matches", Filter{Column: "1d_rsi", Mode: ModeAbove, High: 0}, []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(testDoc(), Query{Filters: []Filter{tt.f}})
			if got := symbols(res.Rows); !equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if res.Matched != len(tt.want) {
				t.Errorf("matched = %d, want %d", res.Matched, len(tt.want))
			}
		})
	}
}

func TestEvaluate_StrictBounds(t *testing.T) {
	res := Evaluate(testDoc(), Query{Filters: []Filter{{Column: "4h Stoch 5-3-3", Mode: ModeBelow, Low: 12}}})
	if len(res.Rows) != 0 {
		t.Errorf("below is strict, got %v", symbols(res.Rows))
	}
}

func TestEvaluate_FiltersCombine(t *testing.T) {
	res := Evaluate(testDoc(), Query{Filters: []Filter{
		{Column: "4h Stoch 5-3-3", Mode: ModeOutside, Low: 20, High: 80},
		{Column: "1d_rsi", Mode: ModeAbove, High: 60},
	}})
	if got := symbols(res.Rows); !equal(got, []string{"ETHUSDT"}) {
		t.Errorf("got %v", got)
	}
}

func TestEvaluate_MissingColumnSkipped(t *testing.T) {
	res := Evaluate(testDoc(), Query{
		Filters: []Filter{{Column: "15m Stoch 5-3-3", Mode: ModeBelow, Low: 20}},
		SortBy:  "1h_rsi",
	})
	if len(res.Rows) != 4 {
		t.Errorf("expected all rows when filter column is absent, got %d", len(res.Rows))
	}
	if !equal(res.MissingColumns, []string{"15m Stoch 5-3-3", "1h_rsi"}) {
		t.Errorf("missing columns = %v", res.MissingColumns)
	}
}

func TestEvaluate_SortMissingLast(t *testing.T) {
	res := Evaluate(testDoc(), Query{SortBy: "4h Stoch 5-3-3"})
	if got := symbols(res.Rows); !equal(got, []string{"BTCUSDT", "XRPUSDT", "ETHUSDT", "SOLUSDT"}) {
		t.Errorf("ascending got %v", got)
	}
	res = Evaluate(testDoc(), Query{SortBy: "4h Stoch 5-3-3", Descending: true})
	if got := symbols(res.Rows); !equal(got, []string{"ETHUSDT", "XRPUSDT", "BTCUSDT", "SOLUSDT"}) {
		t.Errorf("descending got %v", got)
	}
}

func TestEvaluate_SortBySymbolAndLimit(t *testing.T) {
	res := Evaluate(testDoc(), Query{SortBy: "Symbol", Descending: true, Limit: 2})
	if got := symbols(res.Rows); !equal(got, []string{"XRPUSDT", "SOLUSDT"}) {
		t.Errorf("got %v", got)
	}
	if res.Matched != 4 {
		t.Errorf("matched = %d, want 4 before limit", res.Matched)
	}
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("4h Stoch 5-3-3:outside:20:80")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Column != "4h Stoch 5-3-3" || f.Mode != ModeOutside || f.Low != 20 || f.High != 80 {
		t.Errorf("unexpected filter: %+v", f)
	}

	f, err = ParseFilter("1d_rsi:above:70")
	if err != nil || f.High != 70 {
		t.Errorf("above: %+v, %v", f, err)
	}

	for _, bad := range []string{
		"1d_rsi",
		"1d_rsi:below",
		"1d_rsi:below:x",
		"1d_rsi:below:1:2",
		"1d_rsi:between:80:20",
		"1d_rsi:around:5",
		":below:5",
	} {
		if _, err := ParseFilter(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
