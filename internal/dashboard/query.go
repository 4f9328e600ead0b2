package dashboard

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Mode selects how a Filter compares a column value with its bounds.
type Mode string

const (
	ModeBelow   Mode = "below"   // value < Low
	ModeAbove   Mode = "above"   // value > High
	ModeOutside Mode = "outside" // value < Low or value > High
	ModeBetween Mode = "between" // Low <= value <= High
)

// Filter restricts rows by one numeric column.
type Filter struct {
	Column string  `json:"column"`
	Mode   Mode    `json:"mode"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
}

// Validate checks the mode and, for two-sided modes, the bound order.
func (f Filter) Validate() error {
	if f.Column == "" {
		return fmt.Errorf("filter column is required")
	}
	switch f.Mode {
	case ModeBelow, ModeAbove:
	case ModeOutside, ModeBetween:
		if f.Low > f.High {
			return fmt.Errorf("filter %s: low %g is above high %g", f.Column, f.Low, f.High)
		}
	default:
		return fmt.Errorf("filter %s: unknown mode %q", f.Column, f.Mode)
	}
	return nil
}

// Match reports whether the record passes. A record without a value for
// the column never matches.
func (f Filter) Match(r Record) bool {
	v, ok := r.Value(f.Column)
	if !ok {
		return false
	}
	switch f.Mode {
	case ModeBelow:
		return v < f.Low
	case ModeAbove:
		return v > f.High
	case ModeOutside:
		return v < f.Low || v > f.High
	case ModeBetween:
		return v >= f.Low && v <= f.High
	}
	return false
}

// ParseFilter reads "column:below:X", "column:above:X",
// "column:between:L:H" or "column:outside:L:H".
func ParseFilter(s string) (Filter, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return Filter{}, fmt.Errorf("filter %q: want column:mode:value[:value]", s)
	}
	f := Filter{Column: strings.TrimSpace(parts[0]), Mode: Mode(strings.ToLower(parts[1]))}
	nums := make([]float64, 0, 2)
	for _, p := range parts[2:] {
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Filter{}, fmt.Errorf("filter %q: %w", s, err)
		}
		nums = append(nums, v)
	}
	switch f.Mode {
	case ModeBelow:
		if len(nums) != 1 {
			return Filter{}, fmt.Errorf("filter %q: below takes one value", s)
		}
		f.Low = nums[0]
	case ModeAbove:
		if len(nums) != 1 {
			return Filter{}, fmt.Errorf("filter %q: above takes one value", s)
		}
		f.High = nums[0]
	case ModeOutside, ModeBetween:
		if len(nums) != 2 {
			return Filter{}, fmt.Errorf("filter %q: %s takes two values", s, f.Mode)
		}
		f.Low, f.High = nums[0], nums[1]
	}
	return f, f.Validate()
}

// Query is a filter, sort and limit request over a Document.
type Query struct {
	Filters    []Filter
	SortBy     string
	Descending bool
	Limit      int
}

// Result is the outcome of Evaluate.
type Result struct {
	Rows           []Record `json:"rows"`
	Matched        int      `json:"matched"`
	MissingColumns []string `json:"missing_columns"`
}

// Evaluate applies q to the document. Filters on a column that no row has
// are skipped and reported in MissingColumns; so is an unknown sort column.
// Rows without the sort value go last; ties keep document order.
func Evaluate(doc Document, q Query) Result {
	present := make(map[string]bool, len(doc.Columns))
	for _, c := range doc.Columns {
		present[c] = true
	}
	res := Result{MissingColumns: []string{}}
	missing := func(col string) {
		for _, m := range res.MissingColumns {
			if m == col {
				return
			}
		}
		res.MissingColumns = append(res.MissingColumns, col)
	}

	active := make([]Filter, 0, len(q.Filters))
	for _, f := range q.Filters {
		if !present[f.Column] {
			missing(f.Column)
			continue
		}
		active = append(active, f)
	}

	rows := make([]Record, 0, len(doc.Records))
	for _, r := range doc.Records {
		keep := true
		for _, f := range active {
			if !f.Match(r) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}

	switch {
	case q.SortBy == "":
	case q.SortBy == "Symbol":
		sort.SliceStable(rows, func(i, j int) bool {
			if q.Descending {
				return rows[i].Symbol > rows[j].Symbol
			}
			return rows[i].Symbol < rows[j].Symbol
		})
	case !present[q.SortBy]:
		missing(q.SortBy)
	default:
		sort.SliceStable(rows, func(i, j int) bool {
			a, aok := rows[i].Value(q.SortBy)
			b, bok := rows[j].Value(q.SortBy)
			if !aok || !bok {
				return aok && !bok
			}
			if q.Descending {
				return a > b
			}
			return a < b
		})
	}

	res.Matched = len(rows)
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	res.Rows = rows
	return res
}
