package strategy

import (
	"math"

	"fusion-trader/internal/types"
)

// SelectedBy values.
const (
	ByVolatileGapRule   = "regime:volatile_gap"
	ByMomentumRule      = "regime:momentum"
	ByMeanReversionRule = "regime:mean_reversion"
	ByCatalog           = "catalog"
	ByFallback          = "fallback"
)

// SelectorConfig holds the explicit-rule thresholds.
type SelectorConfig struct {
	GapRatio           float64
	GapPct             float64
	GapSentiment       float64
	MomentumRatio      float64
	MomentumSentiment  float64
	ReversionRatio     float64
	ReversionSentiment float64
}

func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		GapRatio:           1.5,
		GapPct:             3,
		GapSentiment:       0.6,
		MomentumRatio:      1.0,
		MomentumSentiment:  0.3,
		ReversionRatio:     1.2,
		ReversionSentiment: 0.4,
	}
}

// Selection is the chosen strategy's result plus the rule that picked it.
type Selection struct {
	Result     types.StrategyResult
	SelectedBy string
}

type Selector struct {
	cfg      SelectorConfig
	catalog  []Strategy
	fallback Strategy
}

func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{cfg: cfg, catalog: Catalog(), fallback: Neutral{}}
}

// Select runs the explicit rules in order, then the catalog scan, then Neutral.
// A rule whose strategy turns out unsuitable falls through to the next rule.
func (s *Selector) Select(in Input) Selection {
	snap := in.Snapshot
	ratio := snap.VolatilityRatio()
	sent := in.Sentiment

	if ratio > s.cfg.GapRatio && (math.Abs(snap.GapPct()) > s.cfg.GapPct || math.Abs(sent) > s.cfg.GapSentiment) {
		if sel, ok := s.try(VolatileGap{}, in, ByVolatileGapRule); ok {
			return sel
		}
	}
	if ratio < s.cfg.MomentumRatio && sent > s.cfg.MomentumSentiment {
		if sel, ok := s.try(Momentum{}, in, ByMomentumRule); ok {
			return sel
		}
	}
	if ratio > s.cfg.ReversionRatio && math.Abs(sent) < s.cfg.ReversionSentiment {
		if sel, ok := s.try(MeanReversion{}, in, ByMeanReversionRule); ok {
			return sel
		}
	}
	for _, st := range s.catalog {
		if sel, ok := s.try(st, in, ByCatalog); ok {
			return sel
		}
	}
	return Selection{Result: s.fallback.Compute(in), SelectedBy: ByFallback}
}

func (s *Selector) try(st Strategy, in Input, by string) (Selection, bool) {
	if !st.IsSuitable(in) {
		return Selection{}, false
	}
	return Selection{Result: st.Compute(in), SelectedBy: by}, true
}
