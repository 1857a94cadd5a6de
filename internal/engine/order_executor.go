package engine

import (
	"context"
	"time"

	"fusion-trader/internal/ledger"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/metrics"
	"fusion-trader/internal/tradelog"
	"fusion-trader/internal/types"
)

// record reports a committed fill: log, metrics, then publishers. Publisher
// failures never undo the trade.
func (e *Engine) record(ctx context.Context, fill ledger.Fill) {
	tr := fill.Trade
	logger.Trade(ctx, tr.Instrument, string(tr.Side), tr.Quantity, tr.Price.String(), tr.Tag,
		"trade_id", tr.ID,
		"commission", tr.Commission.StringFixed(2),
		"realized_pnl", tr.RealizedPnL.StringFixed(2),
		"cash", fill.Cash.StringFixed(2),
		"strategy", tr.Strategy,
	)

	metrics.TradesTotal.WithLabelValues(string(tr.Side), tr.Tag).Inc()
	cash, _ := fill.Cash.Float64()
	metrics.Cash.Set(cash)
	if positions, err := e.deps.Ledger.Store().Positions(ctx); err == nil {
		metrics.OpenPositions.Set(float64(len(positions)))
	}

	if e.deps.Publisher == nil {
		return
	}
	ev := types.TradeEvent{Type: "trade_executed", Trade: tr, Position: fill.Position, Cash: fill.Cash}
	if err := e.deps.Publisher.Publish(ctx, ev); err != nil {
		logger.Warn(ctx, "Trade published with failures", "trade_id", tr.ID, "error", err)
	}
}

func (e *Engine) observeDecision(ctx context.Context, res types.DecisionResult, price float64, now time.Time) {
	metrics.DecisionsTotal.WithLabelValues(string(res.Decision), res.StrategyName).Inc()
	if res.Degradation != "" && res.Degradation != types.DegradationNone {
		metrics.DegradedDecisions.WithLabelValues(string(res.Degradation)).Inc()
	}
	if res.Degradation == types.DegradationFeedUnavailable {
		logger.Warn(ctx, "Feed unavailable, holding", "instrument", res.Instrument, "reason", res.Reasoning)
	}
	if e.deps.Cache != nil {
		e.deps.Cache.Set(res)
	}
	if e.deps.Journal == nil {
		return
	}
	err := e.deps.Journal.AppendDecision(tradelog.DecisionEntry{
		Instrument: res.Instrument,
		Decision:   res.Decision,
		Confidence: res.Confidence,
		Strategy:   res.StrategyName,
		Reasoning:  res.Reasoning,
		Sentiment:  res.Sentiment,
		Regime:     res.Regime,
		Price:      price,
		Degraded:   res.Degradation,
		Extra:      map[string]any{"selected_by": res.SelectedBy, "technical": res.Technical},
	}, now)
	if err != nil {
		logger.Warn(ctx, "Decision journal write failed", "instrument", res.Instrument, "error", err)
	}
}
