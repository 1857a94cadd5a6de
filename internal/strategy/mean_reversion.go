package strategy

import (
	"fmt"
	"math"

	"fusion-trader/internal/types"
)

// MeanReversion fades stretched moves away from sma_5.
type MeanReversion struct{}

func (MeanReversion) Name() string { return NameMeanReversion }

func (MeanReversion) IsSuitable(in Input) bool {
	s := in.Snapshot
	return math.Abs(s.DeviationPct()) > 2 && (s.VolatilityRatio() > 1.2 || math.Abs(in.Sentiment) < 0.4)
}

func (m MeanReversion) Compute(in Input) types.StrategyResult {
	dev := in.Snapshot.DeviationPct()
	base := 0.5 + math.Abs(dev)/20

	switch {
	case dev <= -3:
		conf := math.Min(0.9, base*(1+in.Sentiment))
		reasoning := fmt.Sprintf("close %.2f%% below sma_5, expecting reversion up", -dev)
		if rsi := in.Snapshot.RSI; rsi != nil && *rsi < 30 {
			conf += 0.05
			reasoning += fmt.Sprintf("; oversold (RSI %.1f)", *rsi)
		}
		return result(m.Name(), types.Buy, conf, reasoning, 5, 4)
	case dev >= 3:
		conf := math.Min(0.9, base*(1-in.Sentiment))
		return result(m.Name(), types.Sell, conf,
			fmt.Sprintf("close %.2f%% above sma_5, expecting reversion down", dev), 5, 4)
	default:
		return result(m.Name(), types.Hold, 0.45,
			fmt.Sprintf("deviation %.2f%% inside the ±3%% band", dev), 5, 4)
	}
}
