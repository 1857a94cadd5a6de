package strategy

import (
	"testing"

	"fusion-trader/internal/types"
)

func TestSelect(t *testing.T) {
	sel := NewSelector(DefaultSelectorConfig())
	tests := []struct {
		name     string
		in       Input
		strategy string
		by       string
	}{
		{
			name:     "momentum rule",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 110, SMA5: 100, Volatility5: 1, AvgVolatility20: 2}, Sentiment: 0.5},
			strategy: NameMomentum,
			by:       ByMomentumRule,
		},
		{
			name:     "volatile gap rule",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 105, Open: 105, PrevClose: 100, SMA5: 102, Volatility5: 4, AvgVolatility20: 2}, Sentiment: 0.1},
			strategy: NameVolatileGap,
			by:       ByVolatileGapRule,
		},
		{
			name:     "mean reversion rule",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 95, PrevClose: 95, PrevPrevClose: 95, SMA5: 100, Volatility5: 2.6, AvgVolatility20: 2}, Sentiment: 0.1},
			strategy: NameMeanReversion,
			by:       ByMeanReversionRule,
		},
		{
			name:     "momentum rule unsuitable falls to catalog",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 96, PrevClose: 97, PrevPrevClose: 100, SMA5: 100, Volatility5: 1, AvgVolatility20: 2}, Sentiment: 0.35},
			strategy: NameMeanReversion,
			by:       ByCatalog,
		},
		{
			name:     "catalog geo bounce",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 98, PrevClose: 97, PrevPrevClose: 100, SMA5: 99, Volatility5: 2, AvgVolatility20: 2}, Sentiment: 0.5},
			strategy: NameGeoBounce,
			by:       ByCatalog,
		},
		{
			name:     "fallback",
			in:       Input{Snapshot: &types.TechnicalSnapshot{Close: 100, PrevClose: 100, PrevPrevClose: 100, SMA5: 100, Volatility5: 2, AvgVolatility20: 2}},
			strategy: NameNeutral,
			by:       ByFallback,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sel.Select(tt.in)
			if got.Result.Strategy != tt.strategy {
				t.Errorf("Expected strategy %s, got %s", tt.strategy, got.Result.Strategy)
			}
			if got.SelectedBy != tt.by {
				t.Errorf("Expected selected by %s, got %s", tt.by, got.SelectedBy)
			}
		})
	}
}
