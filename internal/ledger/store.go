// Package ledger is the authoritative record of cash, open positions and the
// append-only trade history. Every mutation runs inside one store transaction.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

var (
	ErrInsufficientCash = errors.New("INSUFFICIENT_CASH")
	ErrNoOpenPosition   = errors.New("NO_OPEN_POSITION")
	ErrInvalidOrder     = errors.New("invalid order")
)

// TradeFilter narrows trade history queries. Zero values match everything;
// From is inclusive and To exclusive.
type TradeFilter struct {
	Instrument string
	From       time.Time
	To         time.Time
}

func (f TradeFilter) Match(t types.Trade) bool {
	if f.Instrument != "" && t.Instrument != f.Instrument {
		return false
	}
	if !f.From.IsZero() && t.Ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Ts.Before(f.To) {
		return false
	}
	return true
}

// Tx is the view of the store inside one transaction.
type Tx interface {
	Cash(ctx context.Context) (decimal.Decimal, error)
	SetCash(ctx context.Context, cash decimal.Decimal) error
	// Position returns nil when the instrument has no open position.
	Position(ctx context.Context, instrument string) (*types.Position, error)
	UpsertPosition(ctx context.Context, p types.Position) error
	DeletePosition(ctx context.Context, instrument string) error
	AppendTrade(ctx context.Context, t types.Trade) error
}

// Store persists the portfolio. MemoryStore and PostgresStore implement it.
type Store interface {
	// Init seeds the cash balance if the portfolio does not exist yet.
	Init(ctx context.Context, initialCash decimal.Decimal) error

	// WithTx runs fn in a transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Cash(ctx context.Context) (decimal.Decimal, error)
	Positions(ctx context.Context) ([]types.Position, error)
	Position(ctx context.Context, instrument string) (*types.Position, error)
	Trades(ctx context.Context, f TradeFilter) ([]types.Trade, error)
}
