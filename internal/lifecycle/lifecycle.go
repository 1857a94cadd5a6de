// Package lifecycle drives a position through NONE -> OPEN -> PARTIAL -> CLOSED
// on top of the ledger.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/ledger"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/types"
)

type State string

const (
	StateNone    State = "NONE"
	StateOpen    State = "OPEN"
	StatePartial State = "PARTIAL"
)

// HoldingMode selects how holding duration is counted for TIME_EXIT.
type HoldingMode string

const (
	HoldingTrading  HoldingMode = "TRADING"
	HoldingCalendar HoldingMode = "CALENDAR"
)

type Config struct {
	// Defaults for positions whose strategy supplied no levels.
	StopLossPct   float64
	TakeProfitPct float64
	// PartialFraction of the position sold at take-profit (floored, min 1 unit).
	PartialFraction float64
	MaxHoldingDays  int
	HoldingMode     HoldingMode
}

func DefaultConfig() Config {
	return Config{
		StopLossPct:     5,
		TakeProfitPct:   3,
		PartialFraction: 0.5,
		MaxHoldingDays:  10,
		HoldingMode:     HoldingTrading,
	}
}

type Manager struct {
	cfg    Config
	ledger *ledger.Ledger
}

func New(cfg Config, l *ledger.Ledger) *Manager {
	return &Manager{cfg: cfg, ledger: l}
}

// StateOf maps a stored position (nil for none) to its lifecycle state.
func StateOf(p *types.Position) State {
	switch {
	case p == nil || p.Quantity <= 0:
		return StateNone
	case p.Partial:
		return StatePartial
	default:
		return StateOpen
	}
}

// Open buys qty at price for an approved decision. A second Open on the same
// instrument extends the position at a weighted average entry.
func (m *Manager) Open(ctx context.Context, d types.DecisionResult, qty int64, price decimal.Decimal, at time.Time) (ledger.Fill, error) {
	sl, tp := m.cfg.StopLossPct, m.cfg.TakeProfitPct
	if d.StopLossPct != nil {
		sl = *d.StopLossPct
	}
	if d.TakeProfitPct != nil {
		tp = *d.TakeProfitPct
	}
	return m.ledger.Buy(ctx, ledger.BuyOrder{
		Instrument:    d.Instrument,
		Quantity:      qty,
		Price:         price,
		Time:          at,
		Tag:           string(d.Decision),
		Sentiment:     d.Sentiment,
		Strategy:      d.StrategyName,
		StopLossPct:   sl,
		TakeProfitPct: tp,
	})
}

// Exit describes the single exit event taken by CheckExits.
type Exit struct {
	Tag  string
	Fill ledger.Fill
}

// CheckExits evaluates the exit rules for the instrument's position in fixed
// order and executes at most one:
//
//	STOP_LOSS   ln(p/entry) <= ln(1 - sl)
//	STOP        PARTIAL and p <= break-even
//	TIME_EXIT   held >= MaxHoldingDays
//	TAKE_PROFIT OPEN and (p-entry)/entry >= tp, sells PartialFraction
//	SELL        the decision itself is SELL
//
// A nil Exit with nil error means nothing fired or there is no position.
func (m *Manager) CheckExits(ctx context.Context, d types.DecisionResult, price decimal.Decimal, now time.Time) (*Exit, error) {
	pos, err := m.ledger.Store().Position(ctx, d.Instrument)
	if err != nil {
		return nil, fmt.Errorf("load position %s: %w", d.Instrument, err)
	}
	if StateOf(pos) == StateNone {
		return nil, nil
	}

	tag, qty, partial := m.evaluate(pos, d.Decision, price, now)
	if tag == "" {
		return nil, nil
	}

	fill, err := m.ledger.Sell(ctx, ledger.SellOrder{
		Instrument:  d.Instrument,
		Quantity:    qty,
		Price:       price,
		Time:        now,
		Tag:         tag,
		Sentiment:   d.Sentiment,
		MarkPartial: partial,
	})
	if errors.Is(err, ledger.ErrNoOpenPosition) {
		logger.Debug(ctx, "Exit skipped, position already closed", "instrument", d.Instrument, "tag", tag)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "Position exit",
		"instrument", d.Instrument,
		"tag", tag,
		"quantity", fill.Trade.Quantity,
		"price", price.String(),
		"entry", pos.AvgEntry.String(),
		"realized_pnl", fill.Trade.RealizedPnL.StringFixed(2),
		"state_after", StateOf(fill.Position),
	)
	return &Exit{Tag: tag, Fill: fill}, nil
}

// Close sells whatever is held. No position is a no-op returning nil, nil.
func (m *Manager) Close(ctx context.Context, instrument string, price decimal.Decimal, at time.Time, tag string, sentiment float64) (*ledger.Fill, error) {
	fill, err := m.ledger.Sell(ctx, ledger.SellOrder{Instrument: instrument, Price: price, Time: at, Tag: tag, Sentiment: sentiment})
	if errors.Is(err, ledger.ErrNoOpenPosition) {
		logger.Debug(ctx, "Close is a no-op, no open position", "instrument", instrument)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fill, nil
}

// evaluate returns the exit tag, quantity to sell (0 = all) and whether the
// remainder becomes PARTIAL.
func (m *Manager) evaluate(pos *types.Position, decision types.Signal, price decimal.Decimal, now time.Time) (string, int64, bool) {
	p, _ := price.Float64()
	entry, _ := pos.AvgEntry.Float64()

	sl := pos.StopLossPct
	if sl <= 0 {
		sl = m.cfg.StopLossPct
	}
	if sl > 0 && sl < 100 && math.Log(p/entry) <= math.Log(1-sl/100) {
		return types.TagStopLoss, 0, false
	}

	if pos.Partial && price.LessThanOrEqual(pos.BreakEven) {
		return types.TagBreakEven, 0, false
	}

	if m.cfg.MaxHoldingDays > 0 && m.heldDays(pos.EntryTime, now) >= m.cfg.MaxHoldingDays {
		return types.TagTimeExit, 0, false
	}

	tp := pos.TakeProfitPct
	if tp <= 0 {
		tp = m.cfg.TakeProfitPct
	}
	if !pos.Partial && tp > 0 {
		ret := price.Sub(pos.AvgEntry).Div(pos.AvgEntry)
		if ret.GreaterThanOrEqual(decimal.NewFromFloat(tp).Div(decimal.NewFromInt(100))) {
			qty := PartialQuantity(pos.Quantity, m.cfg.PartialFraction)
			if qty >= pos.Quantity {
				return types.TagTakeProfit, 0, false
			}
			return types.TagTakeProfit, qty, true
		}
	}

	if decision == types.Sell {
		return types.TagSell, 0, false
	}
	return "", 0, false
}

// PartialQuantity is floor(qty*fraction), at least 1 and at most qty.
func PartialQuantity(qty int64, fraction float64) int64 {
	n := int64(math.Floor(float64(qty) * fraction))
	if n < 1 {
		n = 1
	}
	if n > qty {
		n = qty
	}
	return n
}

func (m *Manager) heldDays(entry, now time.Time) int {
	if m.cfg.HoldingMode == HoldingCalendar {
		return CalendarDays(entry, now)
	}
	return TradingDays(entry, now)
}

// CalendarDays counts date boundaries crossed between entry and now.
func CalendarDays(entry, now time.Time) int {
	e := dateOf(entry)
	n := dateOf(now.In(entry.Location()))
	if !n.After(e) {
		return 0
	}
	return int(n.Sub(e).Hours()/24 + 0.5)
}

// TradingDays counts weekdays after the entry date up to and including now's date.
func TradingDays(entry, now time.Time) int {
	e := dateOf(entry)
	n := dateOf(now.In(entry.Location()))
	days := 0
	for d := e.AddDate(0, 0, 1); !d.After(n); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			days++
		}
	}
	return days
}

func dateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
