package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

func (e *Engine) gather(ctx context.Context, instrument string, now time.Time) (types.DecisionRequest, error) {
	bars, err := e.deps.Market.RecentBars(ctx, instrument, e.cfg.BarsLookback, now)
	if err != nil {
		return types.DecisionRequest{}, fmt.Errorf("bars: %w", err)
	}
	vol, err := e.deps.Market.VolatilityAt(ctx, now)
	if err != nil {
		return types.DecisionRequest{}, fmt.Errorf("volatility: %w", err)
	}
	var events []types.EventRecord
	if e.deps.News != nil {
		events, err = e.deps.News.Events(ctx, instrument, e.cfg.MacroTag, now.Add(-e.cfg.EventLookback), now)
		if err != nil {
			return types.DecisionRequest{}, fmt.Errorf("events: %w", err)
		}
	}
	return types.DecisionRequest{
		Instrument: instrument,
		Bars:       bars,
		Volatility: vol,
		Events:     events,
		AsOf:       now,
	}, nil
}

func feedUnavailable(instrument string, now time.Time, err error) types.DecisionResult {
	return types.DecisionResult{
		Instrument:  instrument,
		Decision:    types.Hold,
		Reasoning:   "feed unavailable: " + err.Error(),
		Technical:   types.TechNoData,
		Regime:      types.RegimeNoData,
		Degradation: types.DegradationFeedUnavailable,
		AsOf:        now,
	}
}

func latestClose(bars []types.PriceBar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[0].Close
}

func (e *Engine) setMark(instrument string, px decimal.Decimal) {
	e.mu.Lock()
	e.marks[instrument] = px
	e.mu.Unlock()
}

// snapshotMarks copies the last seen price per instrument.
func (e *Engine) snapshotMarks() map[string]decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(e.marks))
	for k, v := range e.marks {
		out[k] = v
	}
	return out
}

// Marks returns the last price seen per instrument.
func (e *Engine) Marks() map[string]decimal.Decimal { return e.snapshotMarks() }
