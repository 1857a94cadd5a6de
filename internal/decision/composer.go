// Package decision fuses regime, technical and sentiment inputs with the
// strategy selector into one DecisionResult per instrument.
package decision

import (
	"context"
	"fmt"
	"math"

	"fusion-trader/internal/logger"
	"fusion-trader/internal/regime"
	"fusion-trader/internal/sentiment"
	"fusion-trader/internal/strategy"
	"fusion-trader/internal/technical"
	"fusion-trader/internal/types"
)

// Selector picks a strategy result for a snapshot. *strategy.Selector implements it.
type Selector interface {
	Select(in strategy.Input) strategy.Selection
}

type Config struct {
	StrategiesEnabled bool
	// MinConfidence downgrades actionable signals below it to HOLD. Zero disables.
	MinConfidence float64
}

type Composer struct {
	cfg       Config
	regime    *regime.Classifier
	technical *technical.Evaluator
	sentiment *sentiment.Aggregator
	selector  Selector
}

// NewComposer wires the evaluators. A nil selector forces the legacy path.
func NewComposer(cfg Config, rc *regime.Classifier, te *technical.Evaluator, sa *sentiment.Aggregator, sel Selector) *Composer {
	return &Composer{cfg: cfg, regime: rc, technical: te, sentiment: sa, selector: sel}
}

func (c *Composer) Decide(ctx context.Context, req types.DecisionRequest) types.DecisionResult {
	res := types.DecisionResult{
		Instrument:  req.Instrument,
		Regime:      c.regime.Classify(req.Volatility),
		AsOf:        req.AsOf,
		Degradation: types.DegradationNone,
	}

	techSignal, snap := c.technical.Evaluate(req.Instrument, req.Bars)
	res.Technical = techSignal
	if techSignal == types.TechNoData {
		res.Decision = types.NoData
		res.Degradation = types.DegradationNoData
		res.Reasoning = fmt.Sprintf("insufficient price history: %d bars, need %d", len(req.Bars), technical.SnapshotBars)
		logger.Decision(ctx, req.Instrument, string(res.Decision), 0, "", res.Reasoning, "regime", res.Regime)
		return res
	}
	res.Snapshot = snap

	events := c.sentiment.Filter(req.Events, req.AsOf)
	res.Sentiment = c.sentiment.Aggregate(req.Instrument, events)

	if !c.cfg.StrategiesEnabled || c.selector == nil || !wellFormed(snap) {
		c.legacy(&res)
	} else {
		sel := c.selector.Select(strategy.Input{Snapshot: snap, Events: events, Sentiment: res.Sentiment})
		res.Decision = sel.Result.Signal
		res.Confidence = sel.Result.Confidence
		res.Reasoning = sel.Result.Reasoning
		res.Insight = sel.Result.Insight
		res.StrategyName = sel.Result.Strategy
		res.SelectedBy = sel.SelectedBy
		res.StopLossPct = sel.Result.StopLossPct
		res.TakeProfitPct = sel.Result.TakeProfitPct
	}
	if res.Insight == "" {
		res.Insight = firstInsight(events)
	}

	if c.cfg.MinConfidence > 0 && actionable(res.Decision) && res.Confidence < c.cfg.MinConfidence {
		res.Reasoning += fmt.Sprintf("; downgraded %s to HOLD (confidence %.2f < %.2f)", res.Decision, res.Confidence, c.cfg.MinConfidence)
		res.Decision = types.Hold
	}

	logger.Decision(ctx, req.Instrument, string(res.Decision), res.Confidence, res.StrategyName, res.Reasoning,
		"technical", res.Technical,
		"sentiment", res.Sentiment,
		"regime", res.Regime,
		"selected_by", res.SelectedBy,
		"degradation", res.Degradation,
	)
	return res
}

// legacy is the fixed technical+sentiment rule used when no strategy can run.
func (c *Composer) legacy(res *types.DecisionResult) {
	res.Degradation = types.DegradationStrategyUnavailable
	res.StrategyName = "legacy"
	switch {
	case res.Technical == types.TechBuy && res.Sentiment > 0:
		res.Decision = types.StrongBuy
		res.Confidence = 0.7
	case res.Technical == types.TechBuy:
		res.Decision = types.Buy
		res.Confidence = 0.6
	default:
		res.Decision = types.Hold
		res.Confidence = 0.5
	}
	res.Reasoning = fmt.Sprintf("strategy subsystem unavailable; technical %s with sentiment %.2f", res.Technical, res.Sentiment)
}

func wellFormed(s *types.TechnicalSnapshot) bool {
	for _, v := range []float64{s.Close, s.SMA5, s.Volatility5, s.AvgVolatility20, s.PrevClose} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return s.Close > 0 && s.SMA5 > 0
}

func actionable(s types.Signal) bool {
	return s == types.StrongBuy || s == types.Buy || s == types.Sell
}

func firstInsight(events []types.EventRecord) string {
	for _, ev := range events {
		if ev.Insight != "" {
			return ev.Insight
		}
	}
	return ""
}
