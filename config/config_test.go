package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hedger/market"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.True(t, cfg.Exchange.DryRun)
	assert.Equal(t, 0.01, cfg.Risk.Fraction)
	assert.Equal(t, "file", cfg.State.Type)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.CheckLive(), "dry run needs no keys")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"valid config", func(*Config) {}, ""},
		{"risk fraction zero", func(c *Config) { c.Risk.Fraction = 0 }, "risk.fraction"},
		{"risk fraction above one", func(c *Config) { c.Risk.Fraction = 1.5 }, "risk.fraction"},
		{"bad state type", func(c *Config) { c.State.Type = "redis" }, "state.type"},
		{"missing symbol", func(c *Config) { c.TradingPairs[0].Symbol = "" }, "symbol is required"},
		{"unknown interval", func(c *Config) { c.TradingPairs[0].Interval = "7m" }, "interval"},
		{"zero leverage", func(c *Config) { c.TradingPairs[0].Leverage = 0 }, "leverage must be positive"},
		{"unknown strategy", func(c *Config) { c.TradingPairs[0].Strategy = "MagicBot" }, "unknown strategy"},
		{"missing params", func(c *Config) { c.TradingPairs[0].Long.Params = map[string]float64{} }, "missing params"},
		{
			"duplicate pair",
			func(c *Config) { c.TradingPairs = append(c.TradingPairs, c.TradingPairs[0]) },
			"duplicate trading pair BTCUSDT",
		},
		{
			"disabled pair skips strategy check",
			func(c *Config) {
				c.TradingPairs[0].Enabled = false
				c.TradingPairs[0].Strategy = "MagicBot"
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCheckLive(t *testing.T) {
	cfg := Default()
	cfg.Exchange.DryRun = false
	assert.ErrorContains(t, cfg.CheckLive(), "api_key")

	cfg.Exchange.APIKey = "real"
	assert.ErrorContains(t, cfg.CheckLive(), "api_secret")

	cfg.Exchange.APISecret = "real"
	assert.NoError(t, cfg.CheckLive())

	cfg.TradingPairs[0].Enabled = false
	assert.ErrorContains(t, cfg.CheckLive(), "no trading pair is enabled")
}

func TestMaxHolding(t *testing.T) {
	assert.Equal(t, 72*time.Hour, SideConfig{}.MaxHolding())
	assert.Equal(t, 12*time.Hour, SideConfig{MaxHoldingHours: 12}.MaxHolding())
	assert.Equal(t, 90*time.Minute, SideConfig{MaxHoldingHours: 1.5}.MaxHolding())
	assert.Equal(t, 48*time.Hour, SideConfig{Params: map[string]float64{"max_position_duration_hours": 48}}.MaxHolding())
	assert.Equal(t, 6*time.Hour, SideConfig{MaxHoldingHours: 6, Params: map[string]float64{"max_position_duration_hours": 48}}.MaxHolding())
}

func TestPairSideAndGenerator(t *testing.T) {
	p := Default().TradingPairs[0]
	assert.Equal(t, 40.0, p.Side(market.Long).Params["slow_RSI_threshold"])
	assert.Equal(t, 60.0, p.Side(market.Short).Params["slow_RSI_threshold"])

	g, err := p.NewGenerator()
	require.NoError(t, err)
	assert.Equal(t, "standard-two-rsi", g.Name())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"API_KEY":            "k",
		"API_SECRET":         "s",
		"TELEGRAM_BOT_TOKEN": "tok",
		"TELEGRAM_CHAT_ID":   "-100123",
	}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "k", cfg.Exchange.APIKey)
	assert.Equal(t, "s", cfg.Exchange.APISecret)
	assert.Equal(t, "tok", cfg.Telegram.BotToken)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)

	env["TELEGRAM_CHAT_ID"] = "abc"
	assert.Error(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
}

func TestTelegramUsable(t *testing.T) {
	assert.False(t, TelegramConfig{Enabled: true, BotToken: "YOUR_TELEGRAM_BOT_TOKEN"}.Usable())
	assert.False(t, TelegramConfig{Enabled: false, BotToken: "123:abc"}.Usable())
	assert.True(t, TelegramConfig{Enabled: true, BotToken: "123:abc"}.Usable())
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()

	for _, ext := range []string{".json", ".yaml"} {
		t.Run(ext, func(t *testing.T) {
			t.Setenv("API_KEY", "")
			cfg := Default()
			path := filepath.Join(tmpDir, "hedger"+ext)

			require.NoError(t, cfg.SaveToFile(path))
			_, err := os.Stat(path)
			require.NoError(t, err)

			loaded, err := LoadFromFile(path)
			require.NoError(t, err)

			assert.Equal(t, cfg.Risk, loaded.Risk)
			assert.Equal(t, cfg.State, loaded.State)
			require.Len(t, loaded.TradingPairs, 1)
			assert.Equal(t, cfg.TradingPairs[0], loaded.TradingPairs[0])
		})
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "min.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
risk:
  fraction: 0.02
trading_pairs:
  - symbol: ETHUSDT
    interval: 15m
    enabled: false
    strategy: StandardTwoRSI
`), 0o600))

	t.Setenv("API_KEY", "from-env")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0.001, cfg.Risk.FeeRate)
	assert.Equal(t, 0.2, cfg.Risk.MaxFeeRisk)
	assert.Equal(t, "file", cfg.State.Type)
	assert.Equal(t, "state.json", cfg.State.Path)
	assert.Equal(t, 1, cfg.TradingPairs[0].Leverage)
	assert.Equal(t, "from-env", cfg.Exchange.APIKey)
	assert.Empty(t, cfg.EnabledPairs())
}

func TestLoadInvalidFile(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path.yaml")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not: [valid"), 0o600))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}
