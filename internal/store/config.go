package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Mode         string   `yaml:"mode"`
	PollSeconds  int      `yaml:"poll_seconds"`
	Watchlist    []string `yaml:"watchlist"`
	MacroTag     string   `yaml:"macro_tag"`
	BarsLookback int      `yaml:"bars_lookback"`

	Regime struct {
		HighPanic float64 `yaml:"high_panic"`
		LowFear   float64 `yaml:"low_fear"`
	} `yaml:"regime"`

	Technical struct {
		RSIPeriod int `yaml:"rsi_period"`
	} `yaml:"technical"`

	Sentiment struct {
		MacroWindowHours      float64 `yaml:"macro_window_hours"`
		InstrumentWindowHours float64 `yaml:"instrument_window_hours"`
		MatchWeight           float64 `yaml:"match_weight"`
		BaseWeight            float64 `yaml:"base_weight"`
	} `yaml:"sentiment"`

	Strategy struct {
		Enabled            bool    `yaml:"enabled"`
		MinConfidence      float64 `yaml:"min_confidence"`
		GapRatio           float64 `yaml:"gap_ratio"`
		GapPct             float64 `yaml:"gap_pct"`
		GapSentiment       float64 `yaml:"gap_sentiment"`
		MomentumRatio      float64 `yaml:"momentum_ratio"`
		MomentumSentiment  float64 `yaml:"momentum_sentiment"`
		ReversionRatio     float64 `yaml:"reversion_ratio"`
		ReversionSentiment float64 `yaml:"reversion_sentiment"`
	} `yaml:"strategy"`

	Risk struct {
		InitialCash      float64            `yaml:"initial_cash"`
		CommissionRate   float64            `yaml:"commission_rate"`
		PerTradeFraction float64            `yaml:"per_trade_fraction"`
		MaxPositionSize  float64            `yaml:"max_position_size"`
		MaxExposurePct   float64            `yaml:"max_exposure_pct"`
		InstrumentLimit  float64            `yaml:"instrument_limit"`
		InstrumentLimits map[string]float64 `yaml:"instrument_limits"`
		AllowPyramiding  bool               `yaml:"allow_pyramiding"`
		TradingWindow    struct {
			Enabled      bool   `yaml:"enabled"`
			Start        string `yaml:"start"`
			End          string `yaml:"end"`
			TimeZone     string `yaml:"time_zone"`
			WeekdaysOnly bool   `yaml:"weekdays_only"`
		} `yaml:"trading_window"`
	} `yaml:"risk"`

	Lifecycle struct {
		StopLossPct     float64 `yaml:"stop_loss_pct"`
		TakeProfitPct   float64 `yaml:"take_profit_pct"`
		PartialFraction float64 `yaml:"partial_fraction"`
		MaxHoldingDays  int     `yaml:"max_holding_days"`
		HoldingDayMode  string  `yaml:"holding_day_mode"`
	} `yaml:"lifecycle"`

	DecisionCache struct {
		Enabled    bool `yaml:"enabled"`
		TTLSeconds int  `yaml:"ttl_seconds"`
		MaxEntries int  `yaml:"max_entries"`
	} `yaml:"decision_cache"`

	HTTP struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"http"`

	// Data selects the market-data and news feed. CSV reads
	// <dir>/<INSTRUMENT>.csv, <dir>/volatility.csv and <dir>/events.csv.
	Data struct {
		Source string `yaml:"source"`
		Dir    string `yaml:"dir"`
		Days   int    `yaml:"days"`
		Seed   int64  `yaml:"seed"`
	} `yaml:"data"`

	EOD struct {
		CloseAt  string `yaml:"close_at"`
		TimeZone string `yaml:"time_zone"`
	} `yaml:"eod"`

	Infra Infra `yaml:"-"`
}

// Infra is deployment wiring that comes from the environment, never the YAML file.
type Infra struct {
	DatabaseURL  string        `env:"DATABASE_URL"`
	RedisURL     string        `env:"REDIS_URL"`
	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"trade-events"`
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogDir       string        `env:"TRADER_LOG_DIR" envDefault:"logs"`
	LockTTL      time.Duration `env:"LOCK_TTL" envDefault:"30s"`
	// LogRetentionDays gzips journal files older than this many days; 0 disables.
	LogRetentionDays int `env:"TRADER_LOG_RETENTION_DAYS" envDefault:"0"`
}

func (c *Config) Validate() error {
	if c.Mode != "BACKTEST" && c.Mode != "PAPER" {
		return fmt.Errorf("invalid mode '%s': must be 'BACKTEST' or 'PAPER'", c.Mode)
	}
	if len(c.Watchlist) == 0 {
		return errors.New("watchlist cannot be empty")
	}
	if c.PollSeconds < 0 {
		return fmt.Errorf("poll_seconds must be >= 0, got %d", c.PollSeconds)
	}
	if c.BarsLookback < 5 {
		return fmt.Errorf("bars_lookback must be at least 5, got %d", c.BarsLookback)
	}
	if c.Regime.LowFear >= c.Regime.HighPanic {
		return fmt.Errorf("regime.low_fear (%.2f) must be below regime.high_panic (%.2f)", c.Regime.LowFear, c.Regime.HighPanic)
	}
	if c.Risk.InitialCash < 0 {
		return fmt.Errorf("risk.initial_cash must be >= 0, got %.2f", c.Risk.InitialCash)
	}
	if c.Risk.CommissionRate < 0 || c.Risk.CommissionRate >= 1 {
		return fmt.Errorf("risk.commission_rate must be in [0,1), got %.4f", c.Risk.CommissionRate)
	}
	if c.Risk.PerTradeFraction <= 0 || c.Risk.PerTradeFraction > 1 {
		return fmt.Errorf("risk.per_trade_fraction must be in (0,1], got %.2f", c.Risk.PerTradeFraction)
	}
	if c.Risk.MaxExposurePct <= 0 || c.Risk.MaxExposurePct > 100 {
		return fmt.Errorf("risk.max_exposure_pct must be between 0-100, got %.2f", c.Risk.MaxExposurePct)
	}
	if c.Risk.TradingWindow.Enabled {
		if _, err := time.Parse("15:04", c.Risk.TradingWindow.Start); err != nil {
			return fmt.Errorf("risk.trading_window.start: %w", err)
		}
		if _, err := time.Parse("15:04", c.Risk.TradingWindow.End); err != nil {
			return fmt.Errorf("risk.trading_window.end: %w", err)
		}
		if _, err := time.LoadLocation(c.Risk.TradingWindow.TimeZone); err != nil {
			return fmt.Errorf("risk.trading_window.time_zone: %w", err)
		}
	}
	if c.Lifecycle.StopLossPct <= 0 || c.Lifecycle.StopLossPct >= 100 {
		return fmt.Errorf("lifecycle.stop_loss_pct must be in (0,100), got %.2f", c.Lifecycle.StopLossPct)
	}
	if c.Lifecycle.PartialFraction <= 0 || c.Lifecycle.PartialFraction > 1 {
		return fmt.Errorf("lifecycle.partial_fraction must be in (0,1], got %.2f", c.Lifecycle.PartialFraction)
	}
	if c.Data.Source != "CSV" && c.Data.Source != "SYNTHETIC" {
		return fmt.Errorf("data.source must be 'CSV' or 'SYNTHETIC', got '%s'", c.Data.Source)
	}
	if c.Data.Source == "CSV" && c.Data.Dir == "" {
		return errors.New("data.dir is required when data.source is CSV")
	}
	if _, err := time.Parse("15:04", c.EOD.CloseAt); err != nil {
		return fmt.Errorf("eod.close_at: %w", err)
	}
	if _, err := time.LoadLocation(c.EOD.TimeZone); err != nil {
		return fmt.Errorf("eod.time_zone: %w", err)
	}
	if c.Lifecycle.HoldingDayMode != "TRADING" && c.Lifecycle.HoldingDayMode != "CALENDAR" {
		return fmt.Errorf("lifecycle.holding_day_mode must be 'TRADING' or 'CALENDAR', got '%s'", c.Lifecycle.HoldingDayMode)
	}
	return nil
}

// ApplyDefaults fills zero values. Booleans that default to true are only
// set by Default, since yaml cannot distinguish false from absent.
func (c *Config) ApplyDefaults() {
	if c.Mode == "" {
		c.Mode = "PAPER"
	}
	if c.BarsLookback == 0 {
		c.BarsLookback = 25
	}
	if c.MacroTag == "" {
		c.MacroTag = "MACRO"
	}
	if c.Regime.HighPanic == 0 {
		c.Regime.HighPanic = 25
	}
	if c.Regime.LowFear == 0 {
		c.Regime.LowFear = 15
	}
	if c.Technical.RSIPeriod == 0 {
		c.Technical.RSIPeriod = 14
	}
	if c.Sentiment.MacroWindowHours == 0 {
		c.Sentiment.MacroWindowHours = 72
	}
	if c.Sentiment.InstrumentWindowHours == 0 {
		c.Sentiment.InstrumentWindowHours = 24
	}
	if c.Sentiment.MatchWeight == 0 {
		c.Sentiment.MatchWeight = 2.0
	}
	if c.Sentiment.BaseWeight == 0 {
		c.Sentiment.BaseWeight = 1.0
	}
	if c.Strategy.GapRatio == 0 {
		c.Strategy.GapRatio = 1.5
	}
	if c.Strategy.GapPct == 0 {
		c.Strategy.GapPct = 3
	}
	if c.Strategy.GapSentiment == 0 {
		c.Strategy.GapSentiment = 0.6
	}
	if c.Strategy.MomentumRatio == 0 {
		c.Strategy.MomentumRatio = 1.0
	}
	if c.Strategy.MomentumSentiment == 0 {
		c.Strategy.MomentumSentiment = 0.3
	}
	if c.Strategy.ReversionRatio == 0 {
		c.Strategy.ReversionRatio = 1.2
	}
	if c.Strategy.ReversionSentiment == 0 {
		c.Strategy.ReversionSentiment = 0.4
	}
	if c.Risk.InitialCash == 0 {
		c.Risk.InitialCash = 100000
	}
	if c.Risk.PerTradeFraction == 0 {
		c.Risk.PerTradeFraction = 0.1
	}
	if c.Risk.MaxPositionSize == 0 {
		c.Risk.MaxPositionSize = 20000
	}
	if c.Risk.MaxExposurePct == 0 {
		c.Risk.MaxExposurePct = 80
	}
	if c.Risk.InstrumentLimit == 0 {
		c.Risk.InstrumentLimit = 25000
	}
	if c.Risk.TradingWindow.Start == "" {
		c.Risk.TradingWindow.Start = "09:15"
	}
	if c.Risk.TradingWindow.End == "" {
		c.Risk.TradingWindow.End = "15:30"
	}
	if c.Risk.TradingWindow.TimeZone == "" {
		c.Risk.TradingWindow.TimeZone = "UTC"
	}
	if c.Lifecycle.StopLossPct == 0 {
		c.Lifecycle.StopLossPct = 5
	}
	if c.Lifecycle.TakeProfitPct == 0 {
		c.Lifecycle.TakeProfitPct = 3
	}
	if c.Lifecycle.PartialFraction == 0 {
		c.Lifecycle.PartialFraction = 0.5
	}
	if c.Lifecycle.MaxHoldingDays == 0 {
		c.Lifecycle.MaxHoldingDays = 10
	}
	if c.Lifecycle.HoldingDayMode == "" {
		c.Lifecycle.HoldingDayMode = "TRADING"
	}
	if c.Data.Source == "" {
		c.Data.Source = "SYNTHETIC"
	}
	if c.Data.Days == 0 {
		c.Data.Days = 250
	}
	if c.Data.Seed == 0 {
		c.Data.Seed = 42
	}
	if c.EOD.CloseAt == "" {
		c.EOD.CloseAt = "15:40"
	}
	if c.EOD.TimeZone == "" {
		c.EOD.TimeZone = c.Risk.TradingWindow.TimeZone
	}
	if c.DecisionCache.TTLSeconds == 0 {
		c.DecisionCache.TTLSeconds = 60
	}
	if c.DecisionCache.MaxEntries == 0 {
		c.DecisionCache.MaxEntries = 1000
	}
}

// CloseOffset is eod.close_at as an offset from local midnight.
func (c *Config) CloseOffset() time.Duration {
	t, err := time.Parse("15:04", c.EOD.CloseAt)
	if err != nil {
		return 0
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute
}

// Default returns a fully-populated configuration.
func Default() *Config {
	c := &Config{}
	c.Strategy.Enabled = true
	c.DecisionCache.Enabled = true
	c.ApplyDefaults()
	return c
}

// LoadInfra reads infrastructure settings from the environment, loading a
// .env file first when one exists.
func LoadInfra() (Infra, error) {
	_ = godotenv.Load()
	var in Infra
	if err := env.Parse(&in); err != nil {
		return Infra{}, fmt.Errorf("parse environment: %w", err)
	}
	return in, nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// ParseConfig decodes YAML on top of Default, so omitted keys keep defaults.
func ParseConfig(b []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	infra, err := LoadInfra()
	if err != nil {
		return nil, err
	}
	c.Infra = infra
	return c, nil
}
