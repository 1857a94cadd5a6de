package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

type BuyOrder struct {
	Instrument    string
	Quantity      int64
	Price         decimal.Decimal
	Time          time.Time
	Tag           string
	Sentiment     float64
	Strategy      string
	StopLossPct   float64
	TakeProfitPct float64
}

// SellOrder closes Quantity units, or the whole position when Quantity is 0
// or exceeds what is held.
type SellOrder struct {
	Instrument string
	Quantity   int64
	Price      decimal.Decimal
	Time       time.Time
	Tag        string
	Sentiment  float64
	// MarkPartial flags a surviving remainder as PARTIAL with its break-even
	// level at the average entry.
	MarkPartial bool
}

// Fill is the committed result of one ledger mutation.
type Fill struct {
	Trade types.Trade
	// Position is the state after the trade; nil once closed.
	Position *types.Position
	Cash     decimal.Decimal
}

type Ledger struct {
	store          Store
	commissionRate decimal.Decimal
}

func New(store Store, commissionRate decimal.Decimal) *Ledger {
	return &Ledger{store: store, commissionRate: commissionRate}
}

func (l *Ledger) Store() Store { return l.store }

func (l *Ledger) CommissionRate() decimal.Decimal { return l.commissionRate }

// Buy debits qty*price + commission, appends a BUY trade, and creates or
// extends the position at a volume-weighted average entry. Extending clears
// the PARTIAL flag and its break-even level.
func (l *Ledger) Buy(ctx context.Context, o BuyOrder) (Fill, error) {
	if o.Quantity <= 0 || !o.Price.IsPositive() {
		return Fill{}, fmt.Errorf("%w: buy %d %s at %s", ErrInvalidOrder, o.Quantity, o.Instrument, o.Price)
	}
	qty := decimal.NewFromInt(o.Quantity)
	notional := o.Price.Mul(qty)
	commission := notional.Mul(l.commissionRate)
	cost := notional.Add(commission)

	var fill Fill
	err := l.store.WithTx(ctx, func(tx Tx) error {
		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}
		if cost.GreaterThan(cash) {
			return fmt.Errorf("%w: cost %s, cash %s", ErrInsufficientCash, cost.StringFixed(2), cash.StringFixed(2))
		}

		pos, err := tx.Position(ctx, o.Instrument)
		if err != nil {
			return err
		}
		if pos == nil {
			pos = &types.Position{
				Instrument:    o.Instrument,
				Quantity:      o.Quantity,
				AvgEntry:      o.Price,
				EntryTime:     o.Time,
				Strategy:      o.Strategy,
				StopLossPct:   o.StopLossPct,
				TakeProfitPct: o.TakeProfitPct,
			}
		} else {
			held := decimal.NewFromInt(pos.Quantity)
			total := held.Add(qty)
			pos.AvgEntry = pos.AvgEntry.Mul(held).Add(notional).Div(total)
			pos.Quantity += o.Quantity
			// an add re-opens a PARTIAL position at the new average
			pos.Partial = false
			pos.BreakEven = decimal.Zero
		}
		pos.UpdatedAt = o.Time

		trade := types.Trade{
			ID:         uuid.NewString(),
			Ts:         o.Time,
			Instrument: o.Instrument,
			Side:       types.SideBuy,
			Quantity:   o.Quantity,
			Price:      o.Price,
			Commission: commission,
			Notional:   notional,
			Tag:        o.Tag,
			Sentiment:  o.Sentiment,
			Strategy:   o.Strategy,
		}

		newCash := cash.Sub(cost)
		if err := tx.SetCash(ctx, newCash); err != nil {
			return err
		}
		if err := tx.UpsertPosition(ctx, *pos); err != nil {
			return err
		}
		if err := tx.AppendTrade(ctx, trade); err != nil {
			return err
		}
		fill = Fill{Trade: trade, Position: pos, Cash: newCash}
		return nil
	})
	if err != nil {
		return Fill{}, err
	}
	return fill, nil
}

// Sell credits qty*price - commission and records realized PnL against the
// average entry. Returns ErrNoOpenPosition when nothing is held.
func (l *Ledger) Sell(ctx context.Context, o SellOrder) (Fill, error) {
	if !o.Price.IsPositive() || o.Quantity < 0 {
		return Fill{}, fmt.Errorf("%w: sell %d %s at %s", ErrInvalidOrder, o.Quantity, o.Instrument, o.Price)
	}

	var fill Fill
	err := l.store.WithTx(ctx, func(tx Tx) error {
		pos, err := tx.Position(ctx, o.Instrument)
		if err != nil {
			return err
		}
		if pos == nil {
			return fmt.Errorf("%w: %s", ErrNoOpenPosition, o.Instrument)
		}
		cash, err := tx.Cash(ctx)
		if err != nil {
			return err
		}

		q := o.Quantity
		if q == 0 || q > pos.Quantity {
			q = pos.Quantity
		}
		qty := decimal.NewFromInt(q)
		notional := o.Price.Mul(qty)
		commission := notional.Mul(l.commissionRate)
		proceeds := notional.Sub(commission)
		realized := proceeds.Sub(pos.AvgEntry.Mul(qty))
		price, _ := o.Price.Float64()
		entry, _ := pos.AvgEntry.Float64()

		trade := types.Trade{
			ID:          uuid.NewString(),
			Ts:          o.Time,
			Instrument:  o.Instrument,
			Side:        types.SideSell,
			Quantity:    q,
			Price:       o.Price,
			Commission:  commission,
			Notional:    notional,
			Tag:         o.Tag,
			Sentiment:   o.Sentiment,
			Strategy:    pos.Strategy,
			RealizedPnL: realized,
			LogReturn:   math.Log(price / entry),
		}

		newCash := cash.Add(proceeds)
		if err := tx.SetCash(ctx, newCash); err != nil {
			return err
		}

		var remaining *types.Position
		if q == pos.Quantity {
			if err := tx.DeletePosition(ctx, o.Instrument); err != nil {
				return err
			}
		} else {
			pos.Quantity -= q
			pos.UpdatedAt = o.Time
			if o.MarkPartial {
				pos.Partial = true
				pos.BreakEven = pos.AvgEntry
			}
			if err := tx.UpsertPosition(ctx, *pos); err != nil {
				return err
			}
			remaining = pos
		}
		if err := tx.AppendTrade(ctx, trade); err != nil {
			return err
		}
		fill = Fill{Trade: trade, Position: remaining, Cash: newCash}
		return nil
	})
	if err != nil {
		return Fill{}, err
	}
	return fill, nil
}

// Exposure is the market value of all open positions, marking each at
// marks[instrument] or, when absent, at its average entry.
func (l *Ledger) Exposure(ctx context.Context, marks map[string]decimal.Decimal) (decimal.Decimal, error) {
	positions, err := l.store.Positions(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range positions {
		price, ok := marks[p.Instrument]
		if !ok {
			price = p.AvgEntry
		}
		total = total.Add(p.MarketValue(price))
	}
	return total, nil
}

// Equity is cash plus Exposure.
func (l *Ledger) Equity(ctx context.Context, marks map[string]decimal.Decimal) (decimal.Decimal, error) {
	cash, err := l.store.Cash(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	exp, err := l.Exposure(ctx, marks)
	if err != nil {
		return decimal.Zero, err
	}
	return cash.Add(exp), nil
}
