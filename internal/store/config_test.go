package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("watchlist: [INFY, TCS]\n"))
	if err != nil {
		t.Fatalf("Expected config to parse, got %v", err)
	}

	if cfg.Mode != "PAPER" {
		t.Errorf("Expected mode PAPER, got %s", cfg.Mode)
	}
	if cfg.Regime.HighPanic != 25 || cfg.Regime.LowFear != 15 {
		t.Errorf("Expected regime thresholds 25/15, got %.0f/%.0f", cfg.Regime.HighPanic, cfg.Regime.LowFear)
	}
	if cfg.Sentiment.MacroWindowHours != 72 || cfg.Sentiment.InstrumentWindowHours != 24 {
		t.Errorf("Expected sentiment windows 72/24, got %.0f/%.0f", cfg.Sentiment.MacroWindowHours, cfg.Sentiment.InstrumentWindowHours)
	}
	if !cfg.Strategy.Enabled {
		t.Error("Expected strategy subsystem enabled by default")
	}
	if cfg.Lifecycle.PartialFraction != 0.5 {
		t.Errorf("Expected partial fraction 0.5, got %f", cfg.Lifecycle.PartialFraction)
	}
	if cfg.Lifecycle.TakeProfitPct != 3 {
		t.Errorf("Expected take profit 3, got %f", cfg.Lifecycle.TakeProfitPct)
	}
	if cfg.BarsLookback != 25 {
		t.Errorf("Expected bars lookback 25, got %d", cfg.BarsLookback)
	}
}

func TestParseConfig_Overrides(t *testing.T) {
	raw := `
mode: BACKTEST
watchlist: [INFY]
strategy:
  enabled: false
  min_confidence: 0.55
risk:
  commission_rate: 0.001
  allow_pyramiding: true
lifecycle:
  holding_day_mode: CALENDAR
  max_holding_days: 5
`
	cfg, err := ParseConfig([]byte(raw))
	if err != nil {
		t.Fatalf("Expected config to parse, got %v", err)
	}
	if cfg.Strategy.Enabled {
		t.Error("Expected strategy subsystem disabled")
	}
	if cfg.Strategy.MinConfidence != 0.55 {
		t.Errorf("Expected min confidence 0.55, got %f", cfg.Strategy.MinConfidence)
	}
	if !cfg.Risk.AllowPyramiding {
		t.Error("Expected pyramiding allowed")
	}
	if cfg.Lifecycle.HoldingDayMode != "CALENDAR" || cfg.Lifecycle.MaxHoldingDays != 5 {
		t.Errorf("Expected CALENDAR/5, got %s/%d", cfg.Lifecycle.HoldingDayMode, cfg.Lifecycle.MaxHoldingDays)
	}
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty watchlist", "mode: PAPER\n", "watchlist"},
		{"bad mode", "mode: LIVE\nwatchlist: [A]\n", "invalid mode"},
		{"bad window tz", "watchlist: [A]\nrisk:\n  trading_window:\n    enabled: true\n    time_zone: Nowhere/Land\n", "time_zone"},
		{"bad fraction", "watchlist: [A]\nlifecycle:\n  partial_fraction: 1.5\n", "partial_fraction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.raw))
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadConfig_ReadsInfraFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_ADDR", ":9999")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("watchlist: [INFY]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Expected config to load, got %v", err)
	}
	if len(cfg.Infra.KafkaBrokers) != 2 || cfg.Infra.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("Expected two kafka brokers, got %v", cfg.Infra.KafkaBrokers)
	}
	if cfg.Infra.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTP addr :9999, got %s", cfg.Infra.HTTPAddr)
	}
	if cfg.Infra.KafkaTopic != "trade-events" {
		t.Errorf("Expected default topic trade-events, got %s", cfg.Infra.KafkaTopic)
	}
}

func TestParseConfig_DataSource(t *testing.T) {
	cfg, err := ParseConfig([]byte("watchlist: [INFY]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Data.Source != "SYNTHETIC" || cfg.Data.Seed != 42 {
		t.Errorf("Expected synthetic data seeded 42, got %s/%d", cfg.Data.Source, cfg.Data.Seed)
	}
	if got := cfg.CloseOffset(); got.Hours() != 15+40.0/60 {
		t.Errorf("Expected close at 15:40, got %s", got)
	}

	if _, err := ParseConfig([]byte("watchlist: [INFY]\ndata:\n  source: CSV\n")); err == nil || !strings.Contains(err.Error(), "data.dir") {
		t.Errorf("Expected data.dir error, got %v", err)
	}
	if _, err := ParseConfig([]byte("watchlist: [INFY]\ndata:\n  source: FTP\n")); err == nil {
		t.Error("Expected unknown data source to fail")
	}
}
