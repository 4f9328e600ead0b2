package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"PairScanner/internal/cache"
	"PairScanner/internal/calculator"
	"PairScanner/internal/scanner"
)

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Exchange struct {
		BaseURL string        `yaml:"base_url"`
		APIKey  string        `yaml:"api_key"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"exchange"`
	Symbols struct {
		File       string   `yaml:"file"`
		Static     []string `yaml:"static"`
		QuoteAsset string   `yaml:"quote_asset"`
	} `yaml:"symbols"`
	Scan struct {
		Workers    int                          `yaml:"workers"`
		Timeframes []scanner.Timeframe          `yaml:"timeframes"`
		Families   []calculator.Family          `yaml:"stoch_families"`
		Indicators map[string]calculator.Params `yaml:"indicators"`
	} `yaml:"scan"`
	Schedule struct {
		ScanCron      string `yaml:"scan_cron"`
		DiscoveryCron string `yaml:"discovery_cron"`
		RunOnStart    *bool  `yaml:"run_on_start"`
	} `yaml:"schedule"`
	Storage struct {
		CacheDir     string `yaml:"cache_dir"`
		SnapshotFile string `yaml:"snapshot_file"`
		SQLitePath   string `yaml:"sqlite_path"`
	} `yaml:"storage"`
	Dashboard struct {
		Addr         string        `yaml:"addr"`
		StaleAfter   time.Duration `yaml:"stale_after"`
		PollInterval time.Duration `yaml:"poll_interval"`
	} `yaml:"dashboard"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		File   string `yaml:"file"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error; defaults fill every unset field.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &c.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", &c.Telegram.ChatID},
		{"BINANCE_BASE_URL", &c.Exchange.BaseURL},
		{"BINANCE_API_KEY", &c.Exchange.APIKey},
		{"HTTPS_PROXY", &c.Proxy},
		{"SCAN_CRON", &c.Schedule.ScanCron},
		{"DISCOVERY_CRON", &c.Schedule.DiscoveryCron},
		{"CACHE_DIR", &c.Storage.CacheDir},
		{"SNAPSHOT_FILE", &c.Storage.SnapshotFile},
		{"SYMBOLS_FILE", &c.Symbols.File},
		{"SQLITE_PATH", &c.Storage.SQLitePath},
		{"DASHBOARD_ADDR", &c.Dashboard.Addr},
		{"METRICS_ADDR", &c.Metrics.Addr},
		{"LOG_LEVEL", &c.Log.Level},
		{"LOG_FORMAT", &c.Log.Format},
		{"LOG_FILE", &c.Log.File},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv("SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SCAN_WORKERS: %w", err)
		}
		c.Scan.Workers = n
	}
	if v := os.Getenv("RUN_ON_START"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("RUN_ON_START: %w", err)
		}
		c.Schedule.RunOnStart = &b
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Exchange.Timeout == 0 {
		c.Exchange.Timeout = 30 * time.Second
	}
	if c.Symbols.File == "" {
		c.Symbols.File = "data/trading_pairs.json"
	}
	if c.Scan.Workers == 0 {
		c.Scan.Workers = 1
	}
	if len(c.Scan.Timeframes) == 0 {
		c.Scan.Timeframes = scanner.DefaultTimeframes()
	}
	if len(c.Scan.Families) == 0 {
		c.Scan.Families = append([]calculator.Family(nil), calculator.DefaultFamilies...)
	}
	defaults := calculator.DefaultParams()
	if c.Scan.Indicators == nil {
		c.Scan.Indicators = defaults
	} else {
		for iv, p := range c.Scan.Indicators {
			c.Scan.Indicators[iv] = fillParams(p, calculator.ParamsFor(defaults, iv))
		}
		for iv, p := range defaults {
			if _, ok := c.Scan.Indicators[iv]; !ok {
				c.Scan.Indicators[iv] = p
			}
		}
	}
	if c.Schedule.ScanCron == "" {
		c.Schedule.ScanCron = "0 */30 * * * *"
	}
	if c.Schedule.DiscoveryCron == "" {
		c.Schedule.DiscoveryCron = "0 0 0 * * *"
	}
	if c.Schedule.RunOnStart == nil {
		on := true
		c.Schedule.RunOnStart = &on
	}
	if c.Storage.CacheDir == "" {
		c.Storage.CacheDir = "data/cache"
	}
	if c.Storage.SnapshotFile == "" {
		c.Storage.SnapshotFile = "data/scan_results.json"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "data/pair_scanner.db"
	}
	if c.Dashboard.Addr == "" {
		c.Dashboard.Addr = ":8080"
	}
	if c.Dashboard.StaleAfter == 0 {
		c.Dashboard.StaleAfter = 90 * time.Minute
	}
	if c.Dashboard.PollInterval == 0 {
		c.Dashboard.PollInterval = 5 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// fillParams replaces unset lengths in p with those of d, so a YAML entry
// may override only the fields it names.
func fillParams(p, d calculator.Params) calculator.Params {
	pick := func(v, def int) int {
		if v == 0 {
			return def
		}
		return v
	}
	p.RSI.Length = pick(p.RSI.Length, d.RSI.Length)
	p.StochRSI.RSILength = pick(p.StochRSI.RSILength, d.StochRSI.RSILength)
	p.StochRSI.K = pick(p.StochRSI.K, d.StochRSI.K)
	p.StochRSI.D = pick(p.StochRSI.D, d.StochRSI.D)
	p.MACD.Fast = pick(p.MACD.Fast, d.MACD.Fast)
	p.MACD.Slow = pick(p.MACD.Slow, d.MACD.Slow)
	p.MACD.Signal = pick(p.MACD.Signal, d.MACD.Signal)
	p.MACDZeroLag.Fast = pick(p.MACDZeroLag.Fast, d.MACDZeroLag.Fast)
	p.MACDZeroLag.Slow = pick(p.MACDZeroLag.Slow, d.MACDZeroLag.Slow)
	p.MACDZeroLag.Signal = pick(p.MACDZeroLag.Signal, d.MACDZeroLag.Signal)
	p.Stochastic.PeriodK = pick(p.Stochastic.PeriodK, d.Stochastic.PeriodK)
	p.Stochastic.SmoothK = pick(p.Stochastic.SmoothK, d.Stochastic.SmoothK)
	p.Stochastic.PeriodD = pick(p.Stochastic.PeriodD, d.Stochastic.PeriodD)
	return p
}

// TelegramEnabled reports whether both bot token and chat id are set.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.ChatID != ""
}

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if (c.Telegram.BotToken == "") != (c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram.bot_token and telegram.chat_id must be set together")
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if len(c.Scan.Timeframes) == 0 {
		return fmt.Errorf("scan.timeframes must not be empty")
	}
	seen := map[string]bool{}
	for i, tf := range c.Scan.Timeframes {
		if tf.Interval == "" {
			return fmt.Errorf("scan.timeframes[%d].interval is required", i)
		}
		if seen[tf.Interval] {
			return fmt.Errorf("scan.timeframes: duplicate interval %q", tf.Interval)
		}
		seen[tf.Interval] = true
		if _, err := cache.ParseLookback(tf.Lookback); err != nil {
			return fmt.Errorf("scan.timeframes[%d]: %w", i, err)
		}
	}
	for _, f := range c.Scan.Families {
		if f.Name == "" || f.PeriodK <= 0 || f.SmoothK <= 0 {
			return fmt.Errorf("scan.stoch_families: invalid family %+v", f)
		}
	}
	for iv, p := range c.Scan.Indicators {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("scan.indicators[%s]: %w", iv, err)
		}
	}
	if c.Schedule.ScanCron == "" {
		return fmt.Errorf("schedule.scan_cron is required")
	}
	if c.Storage.SnapshotFile == "" || c.Storage.CacheDir == "" {
		return fmt.Errorf("storage.snapshot_file and storage.cache_dir are required")
	}
	return nil
}
