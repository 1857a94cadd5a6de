package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

// MemoryStore keeps the portfolio in process. Transactions stage a copy of
// the state and swap it in on success.
type MemoryStore struct {
	mu        sync.RWMutex
	init      bool
	cash      decimal.Decimal
	positions map[string]types.Position
	trades    []types.Trade
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{positions: make(map[string]types.Position)}
}

func (s *MemoryStore) Init(_ context.Context, initialCash decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.init {
		s.cash = initialCash
		s.init = true
	}
	return nil
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		cash:      s.cash,
		positions: make(map[string]types.Position, len(s.positions)),
	}
	for k, v := range s.positions {
		tx.positions[k] = v
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.cash = tx.cash
	s.positions = tx.positions
	s.trades = append(s.trades, tx.trades...)
	return nil
}

func (s *MemoryStore) Cash(_ context.Context) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash, nil
}

func (s *MemoryStore) Positions(_ context.Context) ([]types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out, nil
}

func (s *MemoryStore) Position(_ context.Context, instrument string) (*types.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[instrument]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *MemoryStore) Trades(_ context.Context, f TradeFilter) ([]types.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Trade
	for _, t := range s.trades {
		if f.Match(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

type memTx struct {
	cash      decimal.Decimal
	positions map[string]types.Position
	trades    []types.Trade
}

func (t *memTx) Cash(context.Context) (decimal.Decimal, error) { return t.cash, nil }

func (t *memTx) SetCash(_ context.Context, cash decimal.Decimal) error {
	t.cash = cash
	return nil
}

func (t *memTx) Position(_ context.Context, instrument string) (*types.Position, error) {
	p, ok := t.positions[instrument]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) UpsertPosition(_ context.Context, p types.Position) error {
	t.positions[p.Instrument] = p
	return nil
}

func (t *memTx) DeletePosition(_ context.Context, instrument string) error {
	delete(t.positions, instrument)
	return nil
}

func (t *memTx) AppendTrade(_ context.Context, tr types.Trade) error {
	t.trades = append(t.trades, tr)
	return nil
}
