package strategy

import (
	"fmt"
	"math"

	"fusion-trader/internal/types"
)

// Momentum rides an uptrend in a calm tape.
type Momentum struct{}

func (Momentum) Name() string { return NameMomentum }

func (Momentum) IsSuitable(in Input) bool {
	s := in.Snapshot
	return s.Close > s.SMA5 && s.Volatility5 < s.AvgVolatility20
}

func (m Momentum) Compute(in Input) types.StrategyResult {
	dev := in.Snapshot.DeviationPct()
	strength := dev * (1 + in.Sentiment)

	var sig types.Signal
	var conf float64
	switch {
	case strength > 3:
		sig = types.StrongBuy
		conf = math.Min(0.95, 0.6+strength/20)
	case strength > 0:
		sig = types.Buy
		conf = math.Min(0.85, 0.5+strength/10)
	default:
		sig = types.Hold
		conf = 0.4
	}

	reasoning := fmt.Sprintf("close %.2f%% above sma_5, strength %.2f with sentiment %.2f", dev, strength, in.Sentiment)

	if rsi := in.Snapshot.RSI; rsi != nil && *rsi > 70 {
		if sig == types.StrongBuy {
			sig = types.Buy
		}
		conf *= 0.9
		reasoning += fmt.Sprintf("; overbought (RSI %.1f) dampens", *rsi)
	}

	return result(m.Name(), sig, conf, reasoning, 3, 8)
}
