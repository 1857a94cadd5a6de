package strategy

import (
	"math"
	"testing"

	"fusion-trader/internal/types"
)

func rsi(v float64) *float64 { return &v }

func TestMomentum_Scenario(t *testing.T) {
	in := Input{
		Snapshot:  &types.TechnicalSnapshot{Close: 110, SMA5: 100, Volatility5: 1.0, AvgVolatility20: 2.0},
		Sentiment: 0.5,
	}
	m := Momentum{}
	if !m.IsSuitable(in) {
		t.Fatal("Expected Momentum to be suitable")
	}
	res := m.Compute(in)
	if res.Signal != types.StrongBuy && res.Signal != types.Buy {
		t.Fatalf("Expected BUY or STRONG_BUY, got %s", res.Signal)
	}
	// strength = 10 * 1.5 = 15 -> STRONG_BUY capped at 0.95
	if res.Signal != types.StrongBuy || res.Confidence != 0.95 {
		t.Errorf("Expected STRONG_BUY at 0.95, got %s at %f", res.Signal, res.Confidence)
	}
	if *res.StopLossPct != 3 || *res.TakeProfitPct != 8 {
		t.Errorf("Expected SL 3 / TP 8, got %f / %f", *res.StopLossPct, *res.TakeProfitPct)
	}
}

func TestMomentum_OverboughtDampens(t *testing.T) {
	in := Input{
		Snapshot:  &types.TechnicalSnapshot{Close: 110, SMA5: 100, Volatility5: 1.0, AvgVolatility20: 2.0, RSI: rsi(78)},
		Sentiment: 0.5,
	}
	res := Momentum{}.Compute(in)
	if res.Signal != types.Buy {
		t.Errorf("Expected STRONG_BUY downgraded to BUY, got %s", res.Signal)
	}
	if math.Abs(res.Confidence-0.855) > 1e-9 {
		t.Errorf("Expected confidence %f, got %f", 0.95*0.9, res.Confidence)
	}
}

func TestGeoBounce_Scenario(t *testing.T) {
	// previous session -3%, price now above yesterday's close
	in := Input{Snapshot: &types.TechnicalSnapshot{PrevPrevClose: 100, PrevClose: 97, Close: 98, SMA5: 99}}
	g := GeoBounce{}
	if !g.IsSuitable(in) {
		t.Fatal("Expected Geopolitical-Bounce to be suitable")
	}
	res := g.Compute(in)
	if res.Signal != types.Buy {
		t.Errorf("Expected BUY, got %s", res.Signal)
	}
	if *res.StopLossPct != 5.0 || *res.TakeProfitPct != 4.0 {
		t.Errorf("Expected SL 5.0 / TP 4.0, got %f / %f", *res.StopLossPct, *res.TakeProfitPct)
	}
	if res.Confidence < 0.6 || res.Confidence > 0.8 {
		t.Errorf("Expected recovery confidence in [0.6, 0.8], got %f", res.Confidence)
	}
}

func TestGeoBounce_NotSuitableOnSmallDrop(t *testing.T) {
	in := Input{Snapshot: &types.TechnicalSnapshot{PrevPrevClose: 100, PrevClose: 99, Close: 98}}
	if (GeoBounce{}).IsSuitable(in) {
		t.Error("Expected -1% session not to qualify")
	}
}

func TestMeanReversion(t *testing.T) {
	tests := []struct {
		name  string
		close float64
		sent  float64
		want  types.Signal
	}{
		{"stretched down", 95, 0, types.Buy},
		{"stretched up", 105, 0, types.Sell},
		{"inside band", 97.5, 0, types.Hold},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := Input{Snapshot: &types.TechnicalSnapshot{Close: tt.close, SMA5: 100, Volatility5: 3, AvgVolatility20: 2}, Sentiment: tt.sent}
			if !(MeanReversion{}).IsSuitable(in) {
				t.Fatal("Expected Mean-Reversion to be suitable")
			}
			if got := (MeanReversion{}).Compute(in).Signal; got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestVolatileGap(t *testing.T) {
	in := Input{
		Snapshot:  &types.TechnicalSnapshot{Close: 106, Open: 106, PrevClose: 100, SMA5: 101, Volatility5: 4, AvgVolatility20: 2},
		Sentiment: 0.7,
	}
	v := VolatileGap{}
	if !v.IsSuitable(in) {
		t.Fatal("Expected Volatile-Gap to be suitable")
	}
	// 0.7*0.7 + 0.3*0.6 = 0.67
	res := v.Compute(in)
	if res.Signal != types.StrongBuy {
		t.Errorf("Expected STRONG_BUY, got %s", res.Signal)
	}
	if *res.StopLossPct != 7 || *res.TakeProfitPct != 12 {
		t.Errorf("Expected SL 7 / TP 12, got %f / %f", *res.StopLossPct, *res.TakeProfitPct)
	}
}

func TestVolatileGap_MacroEventsQualify(t *testing.T) {
	in := Input{
		Snapshot: &types.TechnicalSnapshot{Close: 100, Open: 100, PrevClose: 100, SMA5: 100, Volatility5: 4, AvgVolatility20: 2},
		Events:   []types.EventRecord{{ID: "m", Tag: "MACRO"}},
	}
	if !(VolatileGap{}).IsSuitable(in) {
		t.Error("Expected macro events to make Volatile-Gap suitable")
	}
}

func TestNeutral(t *testing.T) {
	snap := &types.TechnicalSnapshot{Close: 100, SMA5: 100}
	if (Neutral{}).IsSuitable(Input{Snapshot: snap}) {
		t.Error("Expected Neutral never to self-select")
	}
	if got := (Neutral{}).Compute(Input{Snapshot: snap, Sentiment: 0.1}); got.Signal != types.Hold || got.Confidence != 0.5 {
		t.Errorf("Expected HOLD 0.5, got %s %f", got.Signal, got.Confidence)
	}
	if got := (Neutral{}).Compute(Input{Snapshot: snap, Sentiment: -0.5}); got.Confidence != 0.4 {
		t.Errorf("Expected confidence 0.4, got %f", got.Confidence)
	}
}
