package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Scan.Workers)
	assert.Len(t, cfg.Scan.Timeframes, 4)
	assert.Equal(t, "0 */30 * * * *", cfg.Schedule.ScanCron)
	assert.True(t, *cfg.Schedule.RunOnStart)
	assert.Equal(t, 30*time.Second, cfg.Exchange.Timeout)
	assert.Equal(t, 14, cfg.Scan.Indicators["1h"].Stochastic.PeriodK)
	assert.Equal(t, 5, cfg.Scan.Indicators["4h"].Stochastic.PeriodK)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_PartialIndicatorOverride(t *testing.T) {
	path := writeConfig(t, `
scan:
  indicators:
    4h:
      rsi: { length: 21 }
    15m:
      stochastic: { period_k: 9 }
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p4h := cfg.Scan.Indicators["4h"]
	assert.Equal(t, 21, p4h.RSI.Length)
	assert.Equal(t, 5, p4h.Stochastic.PeriodK, "unset fields keep the interval default")
	assert.Equal(t, 12, p4h.MACD.Fast)

	p15 := cfg.Scan.Indicators["15m"]
	assert.Equal(t, 9, p15.Stochastic.PeriodK)
	assert.Equal(t, 14, p15.RSI.Length)
	assert.Contains(t, cfg.Scan.Indicators, "1d")
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "telegram:\n  bot_token: from-file\n")
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("SCAN_WORKERS", "4")
	t.Setenv("RUN_ON_START", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.False(t, *cfg.Schedule.RunOnStart)
	assert.True(t, cfg.TelegramEnabled())
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("SCAN_WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "scan: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"half telegram", "telegram:\n  bot_token: x\n"},
		{"bad lookback", "scan:\n  timeframes:\n    - { interval: 1h, lookback: whenever }\n"},
		{"duplicate interval", "scan:\n  timeframes:\n    - { interval: 1h, lookback: 1d }\n    - { interval: 1h, lookback: 2d }\n"},
		{"negative workers", "scan:\n  workers: -2\n"},
		{"bad family", "scan:\n  stoch_families:\n    - { name: x, period_k: 0, smooth_k: 3 }\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			require.NoError(t, err)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestShippedConfigIsValid(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "USDT", cfg.Symbols.QuoteAsset)
	assert.Equal(t, 90*time.Minute, cfg.Dashboard.StaleAfter)
}
