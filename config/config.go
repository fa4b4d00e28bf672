package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/hedger/market"
	"github.com/rustyeddy/hedger/risk"
	"github.com/rustyeddy/hedger/strategy"
)

const (
	DefaultMaxHolding = 72 * time.Hour

	// legacyMaxHoldingParam is read from a side's params when
	// max_holding_hours is not set.
	legacyMaxHoldingParam = "max_position_duration_hours"

	placeholderMarker = "YOUR_"
)

// Config is the complete bot configuration.
type Config struct {
	Exchange     ExchangeConfig `json:"exchange" yaml:"exchange"`
	Risk         RiskConfig     `json:"risk" yaml:"risk"`
	Telegram     TelegramConfig `json:"telegram" yaml:"telegram"`
	State        StateConfig    `json:"state" yaml:"state"`
	Journal      JournalConfig  `json:"journal" yaml:"journal"`
	Server       ServerConfig   `json:"server" yaml:"server"`
	Log          LogConfig      `json:"log" yaml:"log"`
	TradingPairs []PairConfig   `json:"trading_pairs" yaml:"trading_pairs"`
}

// ExchangeConfig holds credentials and the venue mode.
type ExchangeConfig struct {
	APIKey       string  `json:"api_key" yaml:"api_key"`
	APISecret    string  `json:"api_secret" yaml:"api_secret"`
	Testnet      bool    `json:"testnet" yaml:"testnet"`
	DryRun       bool    `json:"dry_run" yaml:"dry_run"`
	PaperBalance float64 `json:"paper_balance,omitempty" yaml:"paper_balance,omitempty"`
}

// RiskConfig is shared by every pair.
type RiskConfig struct {
	Fraction   float64 `json:"fraction" yaml:"fraction"`
	FeeRate    float64 `json:"fee_rate,omitempty" yaml:"fee_rate,omitempty"`
	MaxFeeRisk float64 `json:"max_fee_risk,omitempty" yaml:"max_fee_risk,omitempty"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	BotToken string `json:"bot_token,omitempty" yaml:"bot_token,omitempty"`
	ChatID   int64  `json:"chat_id,omitempty" yaml:"chat_id,omitempty"`
}

// Usable reports whether telegram is enabled with a real token.
func (t TelegramConfig) Usable() bool {
	return t.Enabled && t.BotToken != "" && !strings.Contains(t.BotToken, placeholderMarker)
}

// StateConfig selects the persistent state backend.
type StateConfig struct {
	Type string `json:"type" yaml:"type"` // "file" or "sqlite"
	Path string `json:"path" yaml:"path"`
}

type JournalConfig struct {
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type ServerConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
	JSON  bool   `json:"json,omitempty" yaml:"json,omitempty"`
}

// PairConfig configures one control loop.
type PairConfig struct {
	Symbol   string     `json:"symbol" yaml:"symbol"`
	Interval string     `json:"interval" yaml:"interval"`
	Leverage int        `json:"leverage" yaml:"leverage"`
	Enabled  bool       `json:"enabled" yaml:"enabled"`
	Strategy string     `json:"strategy" yaml:"strategy"`
	Long     SideConfig `json:"long" yaml:"long"`
	Short    SideConfig `json:"short" yaml:"short"`
}

// SideConfig is the per-side part of a pair.
type SideConfig struct {
	Enabled         bool               `json:"enabled" yaml:"enabled"`
	MaxHoldingHours float64            `json:"max_holding_hours,omitempty" yaml:"max_holding_hours,omitempty"`
	Params          map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// MaxHolding is the holding duration after which the side is closed at
// market.
func (s SideConfig) MaxHolding() time.Duration {
	h := s.MaxHoldingHours
	if h <= 0 {
		h = s.Params[legacyMaxHoldingParam]
	}
	if h <= 0 {
		return DefaultMaxHolding
	}
	return time.Duration(h * float64(time.Hour))
}

func (s SideConfig) strategySide() strategy.SideConfig {
	return strategy.SideConfig{Enabled: s.Enabled, Params: strategy.Params(s.Params)}
}

// Side returns the configuration of one side.
func (p PairConfig) Side(side market.Side) SideConfig {
	if side == market.Short {
		return p.Short
	}
	return p.Long
}

// NewGenerator builds the pair's signal generator from the registry.
func (p PairConfig) NewGenerator() (strategy.Generator, error) {
	return strategy.New(p.Strategy, p.Symbol, p.Long.strategySide(), p.Short.strategySide())
}

// EnabledPairs returns the pairs that should run.
func (c *Config) EnabledPairs() []PairConfig {
	var out []PairConfig
	for _, p := range c.TradingPairs {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// RiskInputs returns the sizing inputs shared by every order.
func (c *Config) RiskInputs() risk.Inputs {
	return risk.Inputs{RiskPct: c.Risk.Fraction, FeeRate: c.Risk.FeeRate, MaxFeeRisk: c.Risk.MaxFeeRisk}
}

// LoadFromFile loads configuration from a file (YAML, or JSON), applies
// defaults and environment overrides, and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Risk.FeeRate == 0 {
		c.Risk.FeeRate = risk.DefaultFeeRate
	}
	if c.Risk.MaxFeeRisk == 0 {
		c.Risk.MaxFeeRisk = risk.DefaultMaxFeeRisk
	}
	if c.State.Type == "" {
		c.State.Type = "file"
	}
	if c.State.Path == "" {
		c.State.Path = "state.json"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.TradingPairs {
		if c.TradingPairs[i].Leverage == 0 {
			c.TradingPairs[i].Leverage = 1
		}
	}
}

// ApplyEnv overrides credentials from API_KEY, API_SECRET,
// TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID when set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := getenv("API_SECRET"); v != "" {
		c.Exchange.APISecret = v
	}
	if v := getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = id
	}
	return nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid. Strategy names and
// parameters are checked by building every enabled pair's generator.
func (c *Config) Validate() error {
	if c.Risk.Fraction <= 0 || c.Risk.Fraction > 1 {
		return fmt.Errorf("risk.fraction must be in (0, 1]")
	}
	if c.Risk.FeeRate < 0 {
		return fmt.Errorf("risk.fee_rate must not be negative")
	}
	if c.Risk.MaxFeeRisk < 0 {
		return fmt.Errorf("risk.max_fee_risk must not be negative")
	}
	if c.State.Type != "file" && c.State.Type != "sqlite" {
		return fmt.Errorf("state.type must be 'file' or 'sqlite'")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path is required")
	}
	if c.Exchange.DryRun && c.Exchange.PaperBalance < 0 {
		return fmt.Errorf("exchange.paper_balance must not be negative")
	}

	seen := make(map[string]bool, len(c.TradingPairs))
	for i, p := range c.TradingPairs {
		if p.Symbol == "" {
			return fmt.Errorf("trading_pairs[%d].symbol is required", i)
		}
		if seen[p.Symbol] {
			return fmt.Errorf("duplicate trading pair %s", p.Symbol)
		}
		seen[p.Symbol] = true

		if _, err := market.ParseInterval(p.Interval); err != nil {
			return fmt.Errorf("%s: %w", p.Symbol, err)
		}
		if p.Leverage <= 0 {
			return fmt.Errorf("%s: leverage must be positive", p.Symbol)
		}
		if p.Long.MaxHoldingHours < 0 || p.Short.MaxHoldingHours < 0 {
			return fmt.Errorf("%s: max_holding_hours must not be negative", p.Symbol)
		}
		if !p.Enabled {
			continue
		}
		if _, err := p.NewGenerator(); err != nil {
			return fmt.Errorf("%s: %w", p.Symbol, err)
		}
	}
	return nil
}

// CheckLive refuses to start when nothing is enabled or, outside dry-run,
// when the exchange credentials are missing or still placeholders.
func (c *Config) CheckLive() error {
	if len(c.EnabledPairs()) == 0 {
		return fmt.Errorf("no trading pair is enabled")
	}
	if c.Exchange.DryRun {
		return nil
	}
	if c.Exchange.APIKey == "" || strings.Contains(c.Exchange.APIKey, placeholderMarker) {
		return fmt.Errorf("exchange.api_key is not configured (set API_KEY)")
	}
	if c.Exchange.APISecret == "" || strings.Contains(c.Exchange.APISecret, placeholderMarker) {
		return fmt.Errorf("exchange.api_secret is not configured (set API_SECRET)")
	}
	return nil
}

// Default returns a paper-trading configuration with one pair.
func Default() *Config {
	params := map[string]float64{
		strategy.FastRSIWindow:    7,
		strategy.SlowRSIWindow:    14,
		strategy.FastRSIThreshold: 50,
		strategy.SlowRSIThreshold: 40,
		strategy.ATRMultiplier:    1.5,
		strategy.TPSLRatio:        2,
	}
	short := make(map[string]float64, len(params))
	for k, v := range params {
		short[k] = v
	}
	short[strategy.SlowRSIThreshold] = 60

	return &Config{
		Exchange: ExchangeConfig{
			APIKey:       "YOUR_API_KEY",
			APISecret:    "YOUR_API_SECRET",
			DryRun:       true,
			PaperBalance: 10000,
		},
		Risk: RiskConfig{
			Fraction:   0.01,
			FeeRate:    risk.DefaultFeeRate,
			MaxFeeRisk: risk.DefaultMaxFeeRisk,
		},
		Telegram: TelegramConfig{BotToken: "YOUR_TELEGRAM_BOT_TOKEN"},
		State:    StateConfig{Type: "file", Path: "state.json"},
		Journal:  JournalConfig{DBPath: "journal.db"},
		Server:   ServerConfig{Addr: "127.0.0.1:9100"},
		Log:      LogConfig{Level: "info"},
		TradingPairs: []PairConfig{
			{
				Symbol:   "BTCUSDT",
				Interval: "1h",
				Leverage: 5,
				Enabled:  true,
				Strategy: "standard-two-rsi",
				Long:     SideConfig{Enabled: true, MaxHoldingHours: 72, Params: params},
				Short:    SideConfig{Enabled: true, MaxHoldingHours: 72, Params: short},
			},
		},
	}
}
