package cache

import "time"

// intervalDurations lists the intervals the cache maintains incrementally.
// Anything else bypasses the cache logic and is fetched whole.
var intervalDurations = map[string]time.Duration{
	"15m": 15 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
}

// IntervalDuration returns the bar length of a cached interval.
func IntervalDuration(interval string) (time.Duration, bool) {
	d, ok := intervalDurations[interval]
	return d, ok
}
