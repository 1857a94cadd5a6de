package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

// Schema creates the ledger tables. Money columns are NUMERIC and travel as
// text so no precision is lost in either direction.
const Schema = `
CREATE TABLE IF NOT EXISTS portfolio (
	id         SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	cash       NUMERIC NOT NULL CHECK (cash >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS positions (
	instrument      TEXT PRIMARY KEY,
	quantity        BIGINT NOT NULL CHECK (quantity > 0),
	avg_entry       NUMERIC NOT NULL,
	entry_time      TIMESTAMPTZ NOT NULL,
	strategy        TEXT NOT NULL DEFAULT '',
	stop_loss_pct   DOUBLE PRECISION NOT NULL DEFAULT 0,
	take_profit_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	partial         BOOLEAN NOT NULL DEFAULT FALSE,
	break_even      NUMERIC NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id           UUID PRIMARY KEY,
	ts           TIMESTAMPTZ NOT NULL,
	instrument   TEXT NOT NULL,
	side         TEXT NOT NULL,
	quantity     BIGINT NOT NULL,
	price        NUMERIC NOT NULL,
	commission   NUMERIC NOT NULL,
	notional     NUMERIC NOT NULL,
	tag          TEXT NOT NULL,
	sentiment    DOUBLE PRECISION NOT NULL DEFAULT 0,
	strategy     TEXT NOT NULL DEFAULT '',
	realized_pnl NUMERIC NOT NULL DEFAULT 0,
	log_return   DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS trades_instrument_ts ON trades (instrument, ts);
`

// PostgresStore keeps the ledger in PostgreSQL. The portfolio row is locked
// FOR UPDATE at the start of every transaction, which serializes writers
// across processes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies Schema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Init(ctx context.Context, initialCash decimal.Decimal) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolio (id, cash) VALUES (1, $1::NUMERIC) ON CONFLICT (id) DO NOTHING`,
		initialCash.String())
	if err != nil {
		return fmt.Errorf("init portfolio: %w", err)
	}
	return nil
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var cashS string
		if err := tx.QueryRow(ctx, `SELECT cash::TEXT FROM portfolio WHERE id = 1 FOR UPDATE`).Scan(&cashS); err != nil {
			return fmt.Errorf("lock portfolio: %w", err)
		}
		cash, err := parseNumeric("cash", cashS)
		if err != nil {
			return err
		}
		return fn(&pgTx{tx: tx, cash: cash})
	})
}

func (s *PostgresStore) Cash(ctx context.Context) (decimal.Decimal, error) {
	var cashS string
	if err := s.pool.QueryRow(ctx, `SELECT cash::TEXT FROM portfolio WHERE id = 1`).Scan(&cashS); err != nil {
		return decimal.Zero, fmt.Errorf("get cash: %w", err)
	}
	return parseNumeric("cash", cashS)
}

const positionColumns = `instrument, quantity, avg_entry::TEXT, entry_time, strategy,
	stop_loss_pct, take_profit_pct, partial, break_even::TEXT, updated_at`

func (s *PostgresStore) Positions(ctx context.Context) ([]types.Position, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+positionColumns+` FROM positions ORDER BY instrument`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Position(ctx context.Context, instrument string) (*types.Position, error) {
	return queryPosition(ctx, s.pool, instrument, "")
}

func (s *PostgresStore) Trades(ctx context.Context, f TradeFilter) ([]types.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::TEXT, ts, instrument, side, quantity,
		        price::TEXT, commission::TEXT, notional::TEXT,
		        tag, sentiment, strategy, realized_pnl::TEXT, log_return
		 FROM trades
		 WHERE ($1 = '' OR instrument = $1)
		   AND ($2::TIMESTAMPTZ IS NULL OR ts >= $2)
		   AND ($3::TIMESTAMPTZ IS NULL OR ts < $3)
		 ORDER BY ts, id`,
		f.Instrument, nullTime(f.From), nullTime(f.To))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(row pgx.Row) (types.Trade, error) {
	var t types.Trade
	var side, priceS, commS, notionalS, pnlS string
	if err := row.Scan(&t.ID, &t.Ts, &t.Instrument, &side, &t.Quantity,
		&priceS, &commS, &notionalS,
		&t.Tag, &t.Sentiment, &t.Strategy, &pnlS, &t.LogReturn); err != nil {
		return types.Trade{}, err
	}
	t.Side = types.Side(side)

	var err error
	if t.Price, err = parseNumeric("price", priceS); err != nil {
		return types.Trade{}, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	if t.Commission, err = parseNumeric("commission", commS); err != nil {
		return types.Trade{}, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	if t.Notional, err = parseNumeric("notional", notionalS); err != nil {
		return types.Trade{}, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	if t.RealizedPnL, err = parseNumeric("realized_pnl", pnlS); err != nil {
		return types.Trade{}, fmt.Errorf("trade %s: %w", t.ID, err)
	}
	return t, nil
}

type pgTx struct {
	tx   pgx.Tx
	cash decimal.Decimal
}

func (t *pgTx) Cash(context.Context) (decimal.Decimal, error) { return t.cash, nil }

func (t *pgTx) SetCash(ctx context.Context, cash decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx,
		`UPDATE portfolio SET cash = $1::NUMERIC, updated_at = now() WHERE id = 1`,
		cash.String()); err != nil {
		return fmt.Errorf("set cash: %w", err)
	}
	t.cash = cash
	return nil
}

func (t *pgTx) Position(ctx context.Context, instrument string) (*types.Position, error) {
	return queryPosition(ctx, t.tx, instrument, " FOR UPDATE")
}

func (t *pgTx) UpsertPosition(ctx context.Context, p types.Position) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO positions (instrument, quantity, avg_entry, entry_time, strategy,
		                        stop_loss_pct, take_profit_pct, partial, break_even, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8, $9::NUMERIC, $10)
		 ON CONFLICT (instrument) DO UPDATE SET
		   quantity = EXCLUDED.quantity,
		   avg_entry = EXCLUDED.avg_entry,
		   entry_time = EXCLUDED.entry_time,
		   strategy = EXCLUDED.strategy,
		   stop_loss_pct = EXCLUDED.stop_loss_pct,
		   take_profit_pct = EXCLUDED.take_profit_pct,
		   partial = EXCLUDED.partial,
		   break_even = EXCLUDED.break_even,
		   updated_at = EXCLUDED.updated_at`,
		p.Instrument, p.Quantity, p.AvgEntry.String(), p.EntryTime, p.Strategy,
		p.StopLossPct, p.TakeProfitPct, p.Partial, p.BreakEven.String(), p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position %s: %w", p.Instrument, err)
	}
	return nil
}

func (t *pgTx) DeletePosition(ctx context.Context, instrument string) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM positions WHERE instrument = $1`, instrument); err != nil {
		return fmt.Errorf("delete position %s: %w", instrument, err)
	}
	return nil
}

func (t *pgTx) AppendTrade(ctx context.Context, tr types.Trade) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO trades (id, ts, instrument, side, quantity, price, commission, notional,
		                     tag, sentiment, strategy, realized_pnl, log_return)
		 VALUES ($1, $2, $3, $4, $5, $6::NUMERIC, $7::NUMERIC, $8::NUMERIC, $9, $10, $11, $12::NUMERIC, $13)`,
		tr.ID, tr.Ts, tr.Instrument, string(tr.Side), tr.Quantity,
		tr.Price.String(), tr.Commission.String(), tr.Notional.String(),
		tr.Tag, tr.Sentiment, tr.Strategy, tr.RealizedPnL.String(), tr.LogReturn)
	if err != nil {
		return fmt.Errorf("append trade %s: %w", tr.ID, err)
	}
	return nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func queryPosition(ctx context.Context, q querier, instrument, suffix string) (*types.Position, error) {
	row := q.QueryRow(ctx, `SELECT `+positionColumns+` FROM positions WHERE instrument = $1`+suffix, instrument)
	p, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get position %s: %w", instrument, err)
	}
	return &p, nil
}

func scanPosition(row pgx.Row) (types.Position, error) {
	var p types.Position
	var avgS, beS string
	if err := row.Scan(&p.Instrument, &p.Quantity, &avgS, &p.EntryTime, &p.Strategy,
		&p.StopLossPct, &p.TakeProfitPct, &p.Partial, &beS, &p.UpdatedAt); err != nil {
		return types.Position{}, err
	}
	var err error
	if p.AvgEntry, err = parseNumeric("avg_entry", avgS); err != nil {
		return types.Position{}, fmt.Errorf("position %s: %w", p.Instrument, err)
	}
	if p.BreakEven, err = parseNumeric("break_even", beS); err != nil {
		return types.Position{}, fmt.Errorf("position %s: %w", p.Instrument, err)
	}
	return p, nil
}

// parseNumeric decodes a NUMERIC column read as text.
func parseNumeric(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s %q: %w", column, s, err)
	}
	return d, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
