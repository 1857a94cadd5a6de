// Package strategy holds the closed set of trading strategies and the
// regime-aware selector that picks one per decision.
package strategy

import (
	"math"

	"fusion-trader/internal/types"
)

const (
	NameVolatileGap   = "volatile_gap"
	NameMomentum      = "momentum"
	NameMeanReversion = "mean_reversion"
	NameGeoBounce     = "geopolitical_bounce"
	NameNeutral       = "neutral"
)

// Input is everything a strategy may look at. Snapshot is never nil.
type Input struct {
	Snapshot  *types.TechnicalSnapshot
	Events    []types.EventRecord
	Sentiment float64
}

// HasMacroEvents reports whether any windowed record is macro-tagged.
func (in Input) HasMacroEvents() bool {
	for _, ev := range in.Events {
		if ev.IsMacro() {
			return true
		}
	}
	return false
}

type Strategy interface {
	Name() string
	IsSuitable(in Input) bool
	Compute(in Input) types.StrategyResult
}

// Catalog returns the strategies in the order the selector scans them.
// Neutral is not part of the scan; it is only ever a fallback.
func Catalog() []Strategy {
	return []Strategy{
		VolatileGap{},
		Momentum{},
		MeanReversion{},
		GeoBounce{},
	}
}

func pct(v float64) *float64 { return &v }

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func result(name string, sig types.Signal, conf float64, reasoning string, sl, tp float64) types.StrategyResult {
	return types.StrategyResult{
		Signal:        sig,
		Confidence:    clamp01(conf),
		Reasoning:     reasoning,
		StopLossPct:   pct(sl),
		TakeProfitPct: pct(tp),
		Strategy:      name,
	}
}
