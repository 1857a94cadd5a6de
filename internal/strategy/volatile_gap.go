package strategy

import (
	"fmt"
	"math"

	"fusion-trader/internal/types"
)

// VolatileGap trades sharp opens in a volatile tape, leaning on sentiment.
type VolatileGap struct{}

func (VolatileGap) Name() string { return NameVolatileGap }

func (VolatileGap) IsSuitable(in Input) bool {
	s := in.Snapshot
	if s.VolatilityRatio() <= 1.5 {
		return false
	}
	return math.Abs(s.GapPct()) > 3 || in.HasMacroEvents() || math.Abs(in.Sentiment) > 0.6
}

func (v VolatileGap) Compute(in Input) types.StrategyResult {
	gap := in.Snapshot.GapPct()
	gapTerm := math.Copysign(math.Min(math.Abs(gap)/10, 1), gap)
	if gap == 0 {
		gapTerm = 0
	}
	score := 0.7*in.Sentiment + 0.3*gapTerm

	sig := types.Hold
	switch {
	case score > 0.5:
		sig = types.StrongBuy
	case score > 0.2:
		sig = types.Buy
	case score < -0.2:
		sig = types.Sell
	}
	conf := math.Min(0.9, 0.5+math.Abs(score)*0.5)

	reasoning := fmt.Sprintf("volatile tape (ratio %.2f), gap %.2f%%, sentiment %.2f, score %.2f",
		in.Snapshot.VolatilityRatio(), gap, in.Sentiment, score)
	return result(v.Name(), sig, conf, reasoning, 7, 12)
}
