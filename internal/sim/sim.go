// Package sim replays a historical or synthetic series through the engine,
// advancing the clock one bar timestamp at a time.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/engine"
	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/types"
)

// Clock is the simulated "now" shared with the engine.
type Clock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewClock(start time.Time) *Clock { return &Clock{now: start} }

func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Series is what the driver replays: the bar timeline plus price lookups.
// *marketdata.MemoryFeed implements it.
type Series interface {
	interfaces.MarketData
	Timestamps() []time.Time
}

type EquityPoint struct {
	Ts     time.Time       `json:"ts"`
	Cash   decimal.Decimal `json:"cash"`
	Equity decimal.Decimal `json:"equity"`
}

type Summary struct {
	Start          time.Time       `json:"start"`
	End            time.Time       `json:"end"`
	Steps          int             `json:"steps"`
	InitialCash    decimal.Decimal `json:"initial_cash"`
	FinalCash      decimal.Decimal `json:"final_cash"`
	FinalEquity    decimal.Decimal `json:"final_equity"`
	ReturnPct      float64         `json:"return_pct"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	Trades         int             `json:"trades"`
	Buys           int             `json:"buys"`
	Sells          int             `json:"sells"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	Commission     decimal.Decimal `json:"commission"`
	RealizedPnL    decimal.Decimal `json:"realized_pnl"`
	OpenPositions  int             `json:"open_positions"`
	StepErrors     int             `json:"step_errors"`
	Curve          []EquityPoint   `json:"-"`
}

type Driver struct {
	Engine      interfaces.Engine
	Ledger      *ledger.Ledger
	Series      Series
	Clock       *Clock
	Instruments []string
}

// Run steps, at every timestamp in order, each instrument that has a bar at
// that timestamp. Instrument failures are counted and skipped; only ledger
// read failures abort the run.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	store := d.Ledger.Store()
	initial, err := store.Cash(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("initial cash: %w", err)
	}

	timeline := d.Series.Timestamps()
	sum := Summary{InitialCash: initial, Curve: make([]EquityPoint, 0, len(timeline))}
	if len(timeline) == 0 {
		sum.FinalCash, sum.FinalEquity = initial, initial
		return sum, nil
	}
	sum.Start, sum.End = timeline[0], timeline[len(timeline)-1]

	peak := initial
	for _, ts := range timeline {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		d.Clock.Set(ts)

		if active := d.active(ctx, ts); len(active) > 0 {
			results, err := engine.RunBatch(ctx, d.Engine, active)
			if err != nil {
				sum.StepErrors += len(active) - len(results)
			}
		}
		sum.Steps++

		marks, err := d.marks(ctx, ts)
		if err != nil {
			return sum, err
		}
		cash, err := store.Cash(ctx)
		if err != nil {
			return sum, fmt.Errorf("cash at %s: %w", ts.Format(time.RFC3339), err)
		}
		equity, err := d.Ledger.Equity(ctx, marks)
		if err != nil {
			return sum, fmt.Errorf("equity at %s: %w", ts.Format(time.RFC3339), err)
		}
		sum.Curve = append(sum.Curve, EquityPoint{Ts: ts, Cash: cash, Equity: equity})

		if equity.GreaterThan(peak) {
			peak = equity
		}
		if peak.IsPositive() {
			dd, _ := peak.Sub(equity).Div(peak).Mul(decimal.NewFromInt(100)).Float64()
			if dd > sum.MaxDrawdownPct {
				sum.MaxDrawdownPct = dd
			}
		}
	}

	if err := d.summarize(ctx, &sum); err != nil {
		return sum, err
	}
	logger.Info(ctx, "Simulation finished",
		"steps", sum.Steps,
		"trades", sum.Trades,
		"final_equity", sum.FinalEquity.StringFixed(2),
		"return_pct", sum.ReturnPct,
		"max_drawdown_pct", sum.MaxDrawdownPct,
	)
	return sum, nil
}

// active lists the instruments with a bar stamped exactly ts. Instruments
// whose feed errors are kept so the engine can degrade them.
func (d *Driver) active(ctx context.Context, ts time.Time) []string {
	out := make([]string, 0, len(d.Instruments))
	for _, inst := range d.Instruments {
		bars, err := d.Series.RecentBars(ctx, inst, 1, ts)
		if err != nil || (len(bars) > 0 && bars[0].Ts.Equal(ts)) {
			out = append(out, inst)
		}
	}
	return out
}

func (d *Driver) marks(ctx context.Context, ts time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(d.Instruments))
	for _, inst := range d.Instruments {
		bars, err := d.Series.RecentBars(ctx, inst, 1, ts)
		if err != nil {
			return nil, fmt.Errorf("mark %s: %w", inst, err)
		}
		if len(bars) > 0 {
			out[inst] = decimal.NewFromFloat(bars[0].Close)
		}
	}
	return out, nil
}

func (d *Driver) summarize(ctx context.Context, sum *Summary) error {
	store := d.Ledger.Store()
	trades, err := store.Trades(ctx, ledger.TradeFilter{})
	if err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	positions, err := store.Positions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}

	sum.Trades = len(trades)
	sum.OpenPositions = len(positions)
	for _, t := range trades {
		sum.Commission = sum.Commission.Add(t.Commission)
		if t.Side == types.SideBuy {
			sum.Buys++
			continue
		}
		sum.Sells++
		sum.RealizedPnL = sum.RealizedPnL.Add(t.RealizedPnL)
		if t.RealizedPnL.IsPositive() {
			sum.Wins++
		} else {
			sum.Losses++
		}
	}

	last := sum.Curve[len(sum.Curve)-1]
	sum.FinalCash, sum.FinalEquity = last.Cash, last.Equity
	if sum.InitialCash.IsPositive() {
		sum.ReturnPct, _ = sum.FinalEquity.Sub(sum.InitialCash).Div(sum.InitialCash).Mul(decimal.NewFromInt(100)).Float64()
	}
	return nil
}
