package decision

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"fusion-trader/internal/regime"
	"fusion-trader/internal/sentiment"
	"fusion-trader/internal/strategy"
	"fusion-trader/internal/technical"
	"fusion-trader/internal/types"
)

var asOf = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

type spySelector struct {
	calls int
	next  strategy.Selection
}

func (s *spySelector) Select(in strategy.Input) strategy.Selection {
	s.calls++
	return s.next
}

func newComposer(cfg Config, sel Selector) *Composer {
	return NewComposer(cfg,
		regime.New(regime.DefaultConfig()),
		technical.New(technical.DefaultConfig()),
		sentiment.New(sentiment.DefaultConfig()),
		sel)
}

// uptrendBars returns n bars most recent first, closes rising, volatility calming.
func uptrendBars(n int) []types.PriceBar {
	bars := make([]types.PriceBar, n)
	for i := 0; i < n; i++ {
		age := n - 1 - i
		c := 100 + float64(age)
		bars[i] = types.PriceBar{
			Instrument:  "INFY",
			Ts:          asOf.AddDate(0, 0, -i),
			Close:       c,
			Open:        c,
			SMA5:        c - 2,
			Volatility5: float64(30 - age),
		}
	}
	return bars
}

func score(v float64) *float64 { return &v }

func TestDecide_NoDataShortCircuitsSelector(t *testing.T) {
	spy := &spySelector{}
	c := newComposer(Config{StrategiesEnabled: true}, spy)

	res := c.Decide(context.Background(), types.DecisionRequest{
		Instrument: "INFY",
		Bars:       uptrendBars(4),
		Volatility: &types.VolatilityReading{Value: 30},
		AsOf:       asOf,
	})
	if res.Decision != types.NoData {
		t.Errorf("Expected NO_DATA, got %s", res.Decision)
	}
	if res.Degradation != types.DegradationNoData {
		t.Errorf("Expected NO_DATA degradation, got %s", res.Degradation)
	}
	if spy.calls != 0 {
		t.Errorf("Expected selector not to be invoked, got %d calls", spy.calls)
	}
	if res.Regime != types.RegimeHighPanic {
		t.Errorf("Expected regime HIGH_PANIC still reported, got %s", res.Regime)
	}
}

func TestDecide_UsesSelectedStrategy(t *testing.T) {
	sl, tp := 3.0, 8.0
	spy := &spySelector{next: strategy.Selection{
		Result:     types.StrategyResult{Signal: types.StrongBuy, Confidence: 0.9, Reasoning: "r", Strategy: strategy.NameMomentum, StopLossPct: &sl, TakeProfitPct: &tp},
		SelectedBy: strategy.ByMomentumRule,
	}}
	c := newComposer(Config{StrategiesEnabled: true}, spy)

	res := c.Decide(context.Background(), types.DecisionRequest{
		Instrument: "INFY",
		Bars:       uptrendBars(20),
		Events:     []types.EventRecord{{ID: "1", Instrument: "INFY", Ts: asOf.Add(-time.Hour), Score: score(0.75), Insight: "beat"}},
		AsOf:       asOf,
	})
	if spy.calls != 1 {
		t.Fatalf("Expected one selector call, got %d", spy.calls)
	}
	if res.Decision != types.StrongBuy || res.StrategyName != strategy.NameMomentum {
		t.Errorf("Expected STRONG_BUY from momentum, got %s from %s", res.Decision, res.StrategyName)
	}
	if res.Sentiment != 0.5 {
		t.Errorf("Expected sentiment 0.5, got %f", res.Sentiment)
	}
	if res.Insight != "beat" {
		t.Errorf("Expected insight carried from events, got %q", res.Insight)
	}
	if res.Regime != types.RegimeNoData {
		t.Errorf("Expected NO_DATA regime without a reading, got %s", res.Regime)
	}
	if res.Degradation != types.DegradationNone {
		t.Errorf("Expected no degradation, got %s", res.Degradation)
	}
}

func TestDecide_RealSelectorMomentumScenario(t *testing.T) {
	c := newComposer(Config{StrategiesEnabled: true}, strategy.NewSelector(strategy.DefaultSelectorConfig()))
	res := c.Decide(context.Background(), types.DecisionRequest{
		Instrument: "INFY",
		Bars:       uptrendBars(20),
		Events:     []types.EventRecord{{ID: "1", Instrument: "INFY", Ts: asOf.Add(-time.Hour), Score: score(0.75)}},
		AsOf:       asOf,
	})
	if res.Technical != types.TechBuy {
		t.Fatalf("Expected technical BUY, got %s", res.Technical)
	}
	if !res.Decision.IsBuy() {
		t.Errorf("Expected BUY or STRONG_BUY, got %s", res.Decision)
	}
	if res.StrategyName != strategy.NameMomentum {
		t.Errorf("Expected momentum, got %s", res.StrategyName)
	}
}

func TestDecide_LegacyPath(t *testing.T) {
	tests := []struct {
		name string
		sent float64
		bars []types.PriceBar
		want types.Signal
	}{
		{"buy with positive sentiment", 1.0, uptrendBars(20), types.StrongBuy},
		{"buy with negative sentiment", 0.0, uptrendBars(20), types.Buy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newComposer(Config{StrategiesEnabled: false}, &spySelector{})
			res := c.Decide(context.Background(), types.DecisionRequest{
				Instrument: "INFY",
				Bars:       tt.bars,
				Events:     []types.EventRecord{{ID: "1", Instrument: "INFY", Ts: asOf.Add(-time.Hour), Score: score(tt.sent)}},
				AsOf:       asOf,
			})
			if res.Decision != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, res.Decision)
			}
			if res.Degradation != types.DegradationStrategyUnavailable {
				t.Errorf("Expected STRATEGY_UNAVAILABLE, got %s", res.Degradation)
			}
		})
	}
}

func TestDecide_NilSelectorAndMalformedSnapshotUseLegacy(t *testing.T) {
	c := newComposer(Config{StrategiesEnabled: true}, nil)
	res := c.Decide(context.Background(), types.DecisionRequest{Instrument: "INFY", Bars: uptrendBars(20), AsOf: asOf})
	if res.Degradation != types.DegradationStrategyUnavailable {
		t.Errorf("Expected legacy path for nil selector, got %s", res.Degradation)
	}

	bars := uptrendBars(20)
	bars[0].Close = math.NaN()
	spy := &spySelector{}
	c = newComposer(Config{StrategiesEnabled: true}, spy)
	res = c.Decide(context.Background(), types.DecisionRequest{Instrument: "INFY", Bars: bars, AsOf: asOf})
	if res.Degradation != types.DegradationStrategyUnavailable || spy.calls != 0 {
		t.Errorf("Expected legacy path for malformed snapshot, got %s with %d calls", res.Degradation, spy.calls)
	}
	if res.Decision != types.Hold {
		t.Errorf("Expected HOLD, got %s", res.Decision)
	}
}

func TestDecide_MinConfidenceDowngrades(t *testing.T) {
	spy := &spySelector{next: strategy.Selection{
		Result: types.StrategyResult{Signal: types.Buy, Confidence: 0.52, Reasoning: "weak", Strategy: strategy.NameMomentum},
	}}
	c := newComposer(Config{StrategiesEnabled: true, MinConfidence: 0.6}, spy)
	res := c.Decide(context.Background(), types.DecisionRequest{Instrument: "INFY", Bars: uptrendBars(20), AsOf: asOf})
	if res.Decision != types.Hold {
		t.Errorf("Expected HOLD after downgrade, got %s", res.Decision)
	}
	if !strings.Contains(res.Reasoning, "downgraded") {
		t.Errorf("Expected downgrade reason, got %q", res.Reasoning)
	}
}
