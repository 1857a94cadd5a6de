package strategy

import (
	"fmt"
	"math"

	"fusion-trader/internal/types"
)

// GeoBounce goes long after a sharp down session, typically a headline selloff.
type GeoBounce struct{}

func (GeoBounce) Name() string { return NameGeoBounce }

func (GeoBounce) IsSuitable(in Input) bool {
	return in.Snapshot.PrevPrevClose > 0 && in.Snapshot.PrevSessionReturnPct() <= -2
}

func (g GeoBounce) Compute(in Input) types.StrategyResult {
	s := in.Snapshot
	drop := s.PrevSessionReturnPct()

	if s.PrevClose > 0 && s.Close > s.PrevClose {
		recovery := (s.Close - s.PrevClose) / s.PrevClose * 100
		conf := 0.6 + math.Min(recovery/10, 0.2)
		return result(g.Name(), types.Buy, conf,
			fmt.Sprintf("prior session fell %.2f%%, recovering %.2f%% today", drop, recovery), 5, 4)
	}

	conf := 0.5 + math.Min(math.Abs(drop)/20, 0.3)
	return result(g.Name(), types.Buy, conf,
		fmt.Sprintf("prior session fell %.2f%%, positioning for a bounce", drop), 5, 4)
}
