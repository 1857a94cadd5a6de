// Package risk validates proposed BUYs before the ledger is touched.
package risk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/logger"
)

// Config bounds position sizing and exposure.
type Config struct {
	// PerTradeFraction of available cash allocated to one entry.
	PerTradeFraction decimal.Decimal
	// MaxPositionSize caps a single allocation in currency.
	MaxPositionSize decimal.Decimal
	// MaxExposurePct caps total open exposure as a percent of total capital.
	MaxExposurePct decimal.Decimal
	// InstrumentLimit caps notional per instrument; InstrumentLimits overrides per symbol.
	InstrumentLimit  decimal.Decimal
	InstrumentLimits map[string]decimal.Decimal
	CommissionRate   decimal.Decimal
	AllowPyramiding  bool
	// Window is nil when trading hours are not enforced.
	Window *TradingWindow
}

// Proposal is the state the gate needs to judge one BUY.
type Proposal struct {
	Instrument string
	Price      decimal.Decimal
	Time       time.Time
	// Cash is the ledger's available cash.
	Cash decimal.Decimal
	// Exposure is the market value of every open position.
	Exposure decimal.Decimal
	// InstrumentExposure is the market value already held in Instrument.
	InstrumentExposure decimal.Decimal
	HasPosition        bool
}

// Approval is a sized order the ledger can execute as-is.
type Approval struct {
	Quantity   int64
	Notional   decimal.Decimal
	Commission decimal.Decimal
}

type Gate struct {
	cfg Config
}

func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Check runs the entry checks in order and sizes the order.
//
// Order:
//   - existing position (skipped when pyramiding is allowed)
//   - trading window
//   - sizing: min(cash*fraction, max position size) / price, floored
//   - per-instrument limit, then portfolio exposure against cash+exposure
//   - notional plus commission against cash
//
// Returns:
//   - Approval with quantity, notional and commission when every check passes
//   - *Rejection wrapping a sentinel error otherwise
func (g *Gate) Check(ctx context.Context, p Proposal) (Approval, error) {
	rej := g.check(p)
	if rej != nil {
		logger.Risk(ctx, p.Instrument, rej.Code(),
			"detail", rej.Detail,
			"price", p.Price.String(),
			"cash", p.Cash.String(),
			"exposure", p.Exposure.String(),
		)
		return Approval{}, rej
	}

	qty := g.quantity(p)
	notional := p.Price.Mul(decimal.NewFromInt(qty))
	return Approval{
		Quantity:   qty,
		Notional:   notional,
		Commission: notional.Mul(g.cfg.CommissionRate),
	}, nil
}

func (g *Gate) check(p Proposal) *Rejection {
	if p.HasPosition && !g.cfg.AllowPyramiding {
		return reject(p.Instrument, ErrPositionExists, "position already open")
	}
	if g.cfg.Window != nil && !g.cfg.Window.Contains(p.Time) {
		return reject(p.Instrument, ErrOutsideTradingWindow, "%s is outside trading hours", p.Time.Format(time.RFC3339))
	}
	if !p.Price.IsPositive() {
		return reject(p.Instrument, ErrRiskLimitExceeded, "non-positive price %s", p.Price)
	}

	qty := g.quantity(p)
	if qty <= 0 {
		return reject(p.Instrument, ErrRiskLimitExceeded, "allocation %s buys no units at %s", g.allocation(p).StringFixed(2), p.Price)
	}
	notional := p.Price.Mul(decimal.NewFromInt(qty))

	limit := g.instrumentLimit(p.Instrument)
	if limit.IsPositive() && p.InstrumentExposure.Add(notional).GreaterThan(limit) {
		return reject(p.Instrument, ErrRiskLimitExceeded, "notional %s exceeds instrument limit %s",
			p.InstrumentExposure.Add(notional).StringFixed(2), limit.StringFixed(2))
	}

	totalCapital := p.Cash.Add(p.Exposure)
	maxExposure := totalCapital.Mul(g.cfg.MaxExposurePct).Div(decimal.NewFromInt(100))
	if p.Exposure.Add(notional).GreaterThan(maxExposure) {
		return reject(p.Instrument, ErrExposureExceeded, "exposure %s would exceed %s (%s%% of %s)",
			p.Exposure.Add(notional).StringFixed(2), maxExposure.StringFixed(2), g.cfg.MaxExposurePct, totalCapital.StringFixed(2))
	}

	commission := notional.Mul(g.cfg.CommissionRate)
	if notional.Add(commission).GreaterThan(p.Cash) {
		return reject(p.Instrument, ErrInsufficientCash, "cost %s exceeds cash %s",
			notional.Add(commission).StringFixed(2), p.Cash.StringFixed(2))
	}
	return nil
}

func (g *Gate) allocation(p Proposal) decimal.Decimal {
	alloc := p.Cash.Mul(g.cfg.PerTradeFraction)
	if g.cfg.MaxPositionSize.IsPositive() && alloc.GreaterThan(g.cfg.MaxPositionSize) {
		alloc = g.cfg.MaxPositionSize
	}
	return alloc
}

func (g *Gate) quantity(p Proposal) int64 {
	if !p.Price.IsPositive() {
		return 0
	}
	return g.allocation(p).Div(p.Price).Floor().IntPart()
}

func (g *Gate) instrumentLimit(instrument string) decimal.Decimal {
	if l, ok := g.cfg.InstrumentLimits[instrument]; ok {
		return l
	}
	return g.cfg.InstrumentLimit
}
