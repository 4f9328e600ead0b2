package cache

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	naturaldate "github.com/tj/go-naturaldate"
)

// ErrUnknownLookback is returned when a lookback string cannot be parsed.
var ErrUnknownLookback = errors.New("unrecognized lookback")

var shorthandRe = regexp.MustCompile(`^(\d+)\s*([dw])$`)

var shorthandUnits = map[string]time.Duration{
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseLookback converts "7 day ago UTC", "12 hours ago", "36h" or "2w"
// into a duration. Relative phrases are resolved against the current UTC
// time.
func ParseLookback(lookback string) (time.Duration, error) {
	return parseLookbackAt(lookback, time.Now().UTC())
}

func parseLookbackAt(lookback string, ref time.Time) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(lookback))
	unknown := fmt.Errorf("%w: %q", ErrUnknownLookback, lookback)
	if s == "" {
		return 0, unknown
	}
	if m := shorthandRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return 0, unknown
		}
		return time.Duration(n) * shorthandUnits[m[2]], nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, unknown
		}
		return d, nil
	}

	phrase := strings.TrimSpace(strings.TrimSuffix(s, "utc"))
	t, err := naturaldate.Parse(phrase, ref, naturaldate.WithDirection(naturaldate.Past))
	if err != nil {
		return 0, unknown
	}
	d := ref.Sub(t)
	if d <= 0 {
		return 0, unknown
	}
	return d, nil
}
