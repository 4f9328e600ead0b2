package cache

import (
	"sort"

	"PairScanner/internal/model"
)

// MergeCandles unions cached and fresh bars keyed by open time. A fresh bar
// replaces a cached one with the same open time. The result is sorted.
// Merging the same input twice yields the same series.
func MergeCandles(cached, fresh model.Series) model.Series {
	byTime := make(map[int64]int, len(cached)+len(fresh))
	out := make(model.Series, 0, len(cached)+len(fresh))
	add := func(c model.Candle) {
		key := c.OpenTime.UnixNano()
		if i, ok := byTime[key]; ok {
			out[i] = c
			return
		}
		byTime[key] = len(out)
		out = append(out, c)
	}
	for _, c := range cached {
		add(c)
	}
	for _, c := range fresh {
		add(c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}
