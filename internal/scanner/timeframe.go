package scanner

// Timeframe is one interval scanned for every symbol. When Required is set
// a symbol without data for it is reported as failed; otherwise the
// interval is just left out of that symbol's summary.
type Timeframe struct {
	Interval string `yaml:"interval"`
	Lookback string `yaml:"lookback"`
	Required bool   `yaml:"required"`
}

// DefaultTimeframes is the scan plan used when none is configured.
func DefaultTimeframes() []Timeframe {
	return []Timeframe{
		{Interval: "15m", Lookback: "1 day ago UTC", Required: false},
		{Interval: "1h", Lookback: "7 day ago UTC", Required: true},
		{Interval: "4h", Lookback: "30 day ago UTC", Required: true},
		{Interval: "1d", Lookback: "180 day ago UTC", Required: true},
	}
}
