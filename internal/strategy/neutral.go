package strategy

import (
	"fmt"
	"math"

	"fusion-trader/internal/types"
)

type Neutral struct{}

func (Neutral) Name() string { return NameNeutral }

// IsSuitable is always false: Neutral never selects itself.
func (Neutral) IsSuitable(Input) bool { return false }

func (n Neutral) Compute(in Input) types.StrategyResult {
	conf := 0.4
	if math.Abs(in.Sentiment) < 0.2 {
		conf = 0.5
	}
	return types.StrategyResult{
		Signal:     types.Hold,
		Confidence: conf,
		Reasoning:  fmt.Sprintf("no strategy fits (sentiment %.2f, volatility ratio %.2f)", in.Sentiment, in.Snapshot.VolatilityRatio()),
		Strategy:   n.Name(),
	}
}
