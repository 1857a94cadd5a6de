// Package engine runs one decide-and-act cycle per instrument: gather inputs,
// compose a decision, check exits, gate and execute entries.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/decision"
	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
	"fusion-trader/internal/lifecycle"
	"fusion-trader/internal/lock"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/metrics"
	"fusion-trader/internal/risk"
	"fusion-trader/internal/tradelog"
	"fusion-trader/internal/types"
)

type Config struct {
	// BarsLookback is how many recent bars are requested per cycle.
	BarsLookback int
	MacroTag     string
	// EventLookback bounds the news query; the sentiment windows trim it further.
	EventLookback time.Duration
}

// Deps are the collaborators an Engine drives. Publisher, Journal and Cache
// are optional.
type Deps struct {
	Market    interfaces.MarketData
	News      interfaces.NewsSource
	Decider   interfaces.Decider
	Gate      *risk.Gate
	Lifecycle *lifecycle.Manager
	Ledger    *ledger.Ledger
	Locker    lock.Locker
	Publisher interfaces.Publisher
	Journal   *tradelog.Journal
	Cache     *decision.Cache
	// Clock defaults to time.Now. The simulation driver replaces it.
	Clock func() time.Time
}

type Engine struct {
	cfg  Config
	deps Deps

	mu    sync.Mutex
	marks map[string]decimal.Decimal
}

var _ interfaces.Engine = (*Engine)(nil)

func newEngine(cfg Config, d Deps) *Engine {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Locker == nil {
		d.Locker = lock.NewLocal()
	}
	if cfg.BarsLookback <= 0 {
		cfg.BarsLookback = 25
	}
	if cfg.EventLookback <= 0 {
		cfg.EventLookback = 72 * time.Hour
	}
	return &Engine{cfg: cfg, deps: d, marks: map[string]decimal.Decimal{}}
}

// Step runs one cycle for instrument at the engine clock's "now".
//
// Flow (under the instrument lock):
//   - gather bars, volatility and events; a feed failure degrades to HOLD
//   - compose the decision; NO_DATA ends the cycle with no trades
//   - check exits in fixed order; an exit ends the cycle
//   - BUY/STRONG_BUY goes through the risk gate and opens or extends,
//     unless the regime reading is missing
//   - SELL without a position and HOLD are no-ops
//
// Returns an error only when the lock or the ledger is unreachable.
func (e *Engine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	start := time.Now()
	defer func() { metrics.StepDuration.Observe(time.Since(start).Seconds()) }()

	now := e.deps.Clock()

	release, err := e.deps.Locker.Lock(ctx, instrument)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", instrument, err)
	}
	defer release()

	logger.Debug(ctx, "Starting trading step", "instrument", instrument, "as_of", now)

	req, err := e.gather(ctx, instrument, now)
	if err != nil {
		res := feedUnavailable(instrument, now, err)
		e.observeDecision(ctx, res, 0, now)
		return &types.StepResult{Instrument: instrument, Decision: res, Time: now, Reason: res.Reasoning}, nil
	}

	res := e.deps.Decider.Decide(ctx, req)
	price := latestClose(req.Bars)
	e.observeDecision(ctx, res, price, now)

	out := &types.StepResult{Instrument: instrument, Decision: res, Price: price, Time: now}
	if res.Decision == types.NoData {
		out.Reason = "no data: " + res.Reasoning
		return out, nil
	}

	px := decimal.NewFromFloat(price)
	e.setMark(instrument, px)

	exit, err := e.deps.Lifecycle.CheckExits(ctx, res, px, now)
	if err != nil {
		return nil, fmt.Errorf("exit check %s: %w", instrument, err)
	}
	if exit != nil {
		e.record(ctx, exit.Fill)
		out.Trades = append(out.Trades, exit.Fill.Trade)
		out.Reason = exit.Tag
		return out, nil
	}

	switch {
	case res.Decision.IsBuy() && res.Regime == types.RegimeNoData:
		// exits above still run; only new risk needs a regime reading
		out.Reason = "no data: regime reading missing"
	case res.Decision.IsBuy():
		fill, reason, err := e.enter(ctx, res, px, now)
		if err != nil {
			return nil, err
		}
		if fill != nil {
			out.Trades = append(out.Trades, fill.Trade)
		}
		out.Reason = reason
	case res.Decision == types.Sell:
		// an open position would have been closed by CheckExits
		out.Reason = "SELL with no open position: no-op"
	default:
		out.Reason = string(res.Decision)
	}

	logger.Debug(ctx, "Trading step completed", "instrument", instrument, "decision", res.Decision, "trades", len(out.Trades))
	return out, nil
}

// GetDecision returns the cached decision for instrument, composing a fresh
// one at the engine clock's "now" when none is cached. It never trades.
func (e *Engine) GetDecision(ctx context.Context, instrument string) (types.DecisionResult, error) {
	if e.deps.Cache != nil {
		if res, ok := e.deps.Cache.Get(instrument); ok {
			return res, nil
		}
	}
	now := e.deps.Clock()
	req, err := e.gather(ctx, instrument, now)
	if err != nil {
		return feedUnavailable(instrument, now, err), nil
	}
	res := e.deps.Decider.Decide(ctx, req)
	if e.deps.Cache != nil {
		e.deps.Cache.Set(res)
	}
	return res, nil
}

// enter sizes and executes an approved BUY. A risk rejection or a ledger cash
// shortfall is a logged no-op, not an error.
func (e *Engine) enter(ctx context.Context, res types.DecisionResult, px decimal.Decimal, now time.Time) (*ledger.Fill, string, error) {
	store := e.deps.Ledger.Store()
	pos, err := store.Position(ctx, res.Instrument)
	if err != nil {
		return nil, "", fmt.Errorf("load position %s: %w", res.Instrument, err)
	}
	cash, err := store.Cash(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("load cash: %w", err)
	}
	exposure, err := e.deps.Ledger.Exposure(ctx, e.snapshotMarks())
	if err != nil {
		return nil, "", fmt.Errorf("exposure: %w", err)
	}

	p := risk.Proposal{
		Instrument:  res.Instrument,
		Price:       px,
		Time:        now,
		Cash:        cash,
		Exposure:    exposure,
		HasPosition: pos != nil,
	}
	if pos != nil {
		p.InstrumentExposure = pos.MarketValue(px)
	}

	approval, err := e.deps.Gate.Check(ctx, p)
	var rej *risk.Rejection
	if errors.As(err, &rej) {
		metrics.RiskRejections.WithLabelValues(rej.Code()).Inc()
		return nil, "risk rejected: " + rej.Code() + ": " + rej.Detail, nil
	}
	if err != nil {
		return nil, "", err
	}

	fill, err := e.deps.Lifecycle.Open(ctx, res, approval.Quantity, px, now)
	if errors.Is(err, ledger.ErrInsufficientCash) {
		metrics.RiskRejections.WithLabelValues(risk.ErrInsufficientCash.Error()).Inc()
		logger.Risk(ctx, res.Instrument, risk.ErrInsufficientCash.Error(), "detail", err.Error())
		return nil, "ledger rejected: " + err.Error(), nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", res.Instrument, err)
	}
	e.record(ctx, fill)
	return &fill, string(res.Decision), nil
}

// RunBatch steps every instrument in order. A failing instrument is logged
// and skipped; the returned error joins every failure.
func RunBatch(ctx context.Context, eng interfaces.Engine, instruments []string) ([]*types.StepResult, error) {
	results := make([]*types.StepResult, 0, len(instruments))
	var errs []error
	for _, inst := range instruments {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := eng.Step(ctx, inst)
		if err != nil {
			logger.ErrorWithErr(ctx, "Instrument cycle failed", err, "instrument", inst)
			errs = append(errs, fmt.Errorf("%s: %w", inst, err))
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}
