package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/types"
)

var t0 = time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newLedger(t *testing.T, cash, rate string) *Ledger {
	t.Helper()
	st := NewMemoryStore()
	if err := st.Init(context.Background(), d(cash)); err != nil {
		t.Fatal(err)
	}
	return New(st, d(rate))
}

func TestBuySell_ConservationWithoutCommission(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "10000", "0")

	if _, err := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0, Tag: "BUY"}); err != nil {
		t.Fatalf("Expected buy to succeed, got %v", err)
	}
	marks := map[string]decimal.Decimal{"INFY": d("100")}
	eq, _ := l.Equity(ctx, marks)
	if !eq.Equal(d("10000")) {
		t.Errorf("Expected equity 10000 after buy, got %s", eq)
	}

	fill, err := l.Sell(ctx, SellOrder{Instrument: "INFY", Price: d("100"), Time: t0.Add(time.Hour), Tag: types.TagSell})
	if err != nil {
		t.Fatalf("Expected sell to succeed, got %v", err)
	}
	if !fill.Cash.Equal(d("10000")) {
		t.Errorf("Expected cash restored to 10000, got %s", fill.Cash)
	}
	if fill.Position != nil {
		t.Error("Expected position closed")
	}
}

func TestBuySell_ConservationWithCommission(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "10000", "0.001")

	buy, err := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0})
	if err != nil {
		t.Fatal(err)
	}
	sell, err := l.Sell(ctx, SellOrder{Instrument: "INFY", Price: d("100"), Time: t0.Add(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}

	leak := buy.Trade.Commission.Add(sell.Trade.Commission)
	if !leak.Equal(d("2")) {
		t.Errorf("Expected total commission 2, got %s", leak)
	}
	if !sell.Cash.Equal(d("10000").Sub(leak)) {
		t.Errorf("Expected cash 10000 - commission, got %s", sell.Cash)
	}
	// proceeds 999 - cost basis 1000
	if !sell.Trade.RealizedPnL.Equal(d("-1")) {
		t.Errorf("Expected realized -1, got %s", sell.Trade.RealizedPnL)
	}
}

func TestBuy_ExtendsWithWeightedAverage(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "10000", "0")

	first, _ := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0, Strategy: "momentum"})
	second, err := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("110"), Time: t0.Add(time.Hour), Strategy: "other"})
	if err != nil {
		t.Fatal(err)
	}
	p := second.Position
	if p.Quantity != 20 {
		t.Errorf("Expected quantity 20, got %d", p.Quantity)
	}
	if !p.AvgEntry.Equal(d("105")) {
		t.Errorf("Expected average entry 105, got %s", p.AvgEntry)
	}
	if !p.EntryTime.Equal(first.Position.EntryTime) {
		t.Error("Expected entry time kept from the first buy")
	}
	if p.Strategy != "momentum" {
		t.Errorf("Expected strategy momentum kept, got %s", p.Strategy)
	}

	positions, _ := l.Store().Positions(ctx)
	if len(positions) != 1 {
		t.Errorf("Expected one position per instrument, got %d", len(positions))
	}
}

func TestBuy_InsufficientCashLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "1000", "0.01")

	_, err := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0})
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("Expected ErrInsufficientCash, got %v", err)
	}
	cash, _ := l.Store().Cash(ctx)
	if !cash.Equal(d("1000")) {
		t.Errorf("Expected cash unchanged, got %s", cash)
	}
	trades, _ := l.Store().Trades(ctx, TradeFilter{})
	if len(trades) != 0 {
		t.Errorf("Expected no trades, got %d", len(trades))
	}
}

func TestSell_NoOpenPosition(t *testing.T) {
	l := newLedger(t, "1000", "0")
	_, err := l.Sell(context.Background(), SellOrder{Instrument: "INFY", Price: d("100"), Time: t0})
	if !errors.Is(err, ErrNoOpenPosition) {
		t.Errorf("Expected ErrNoOpenPosition, got %v", err)
	}
}

func TestSell_PartialMarksBreakEven(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "10000", "0")
	l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0})

	fill, err := l.Sell(ctx, SellOrder{Instrument: "INFY", Quantity: 5, Price: d("103.5"), Time: t0, Tag: types.TagTakeProfit, MarkPartial: true})
	if err != nil {
		t.Fatal(err)
	}
	if fill.Position == nil || fill.Position.Quantity != 5 {
		t.Fatalf("Expected 5 units left, got %+v", fill.Position)
	}
	if !fill.Position.Partial || !fill.Position.BreakEven.Equal(d("100")) {
		t.Errorf("Expected PARTIAL at break-even 100, got %v %s", fill.Position.Partial, fill.Position.BreakEven)
	}
	if !fill.Trade.RealizedPnL.Equal(d("17.5")) {
		t.Errorf("Expected realized 17.5, got %s", fill.Trade.RealizedPnL)
	}
}

func TestTrades_FilterByInstrumentAndRange(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "100000", "0")
	l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 1, Price: d("100"), Time: t0})
	l.Buy(ctx, BuyOrder{Instrument: "TCS", Quantity: 1, Price: d("100"), Time: t0.Add(time.Hour)})
	l.Sell(ctx, SellOrder{Instrument: "INFY", Price: d("101"), Time: t0.Add(2 * time.Hour)})

	got, _ := l.Store().Trades(ctx, TradeFilter{Instrument: "INFY"})
	if len(got) != 2 {
		t.Errorf("Expected 2 INFY trades, got %d", len(got))
	}
	got, _ = l.Store().Trades(ctx, TradeFilter{From: t0.Add(time.Hour), To: t0.Add(2 * time.Hour)})
	if len(got) != 1 || got[0].Instrument != "TCS" {
		t.Errorf("Expected only the TCS trade in range, got %+v", got)
	}
}

func TestMemoryStore_FailedTxRollsBack(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	st.Init(ctx, d("500"))

	boom := errors.New("boom")
	err := st.WithTx(ctx, func(tx Tx) error {
		tx.SetCash(ctx, d("1"))
		tx.AppendTrade(ctx, types.Trade{ID: "x"})
		tx.UpsertPosition(ctx, types.Position{Instrument: "INFY", Quantity: 1})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}
	cash, _ := st.Cash(ctx)
	pos, _ := st.Position(ctx, "INFY")
	trades, _ := st.Trades(ctx, TradeFilter{})
	if !cash.Equal(d("500")) || pos != nil || len(trades) != 0 {
		t.Errorf("Expected rollback, got cash %s position %v trades %d", cash, pos, len(trades))
	}
}

func TestBuy_AddToPartialReopens(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, "10000", "0")

	if _, err := l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: t0}); err != nil {
		t.Fatal(err)
	}
	fill, err := l.Sell(ctx, SellOrder{Instrument: "INFY", Quantity: 5, Price: d("104"), Time: t0.Add(time.Hour), Tag: types.TagTakeProfit, MarkPartial: true})
	if err != nil {
		t.Fatal(err)
	}
	if !fill.Position.Partial || !fill.Position.BreakEven.Equal(d("100")) {
		t.Fatalf("Expected PARTIAL at break-even 100, got %+v", fill.Position)
	}

	fill, err = l.Buy(ctx, BuyOrder{Instrument: "INFY", Quantity: 5, Price: d("110"), Time: t0.Add(2 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	pos := fill.Position
	if pos.Partial || !pos.BreakEven.IsZero() {
		t.Errorf("Expected add to clear PARTIAL and break-even, got partial=%v break_even=%s", pos.Partial, pos.BreakEven)
	}
	// (5*100 + 5*110) / 10
	if pos.Quantity != 10 || !pos.AvgEntry.Equal(d("105")) {
		t.Errorf("Expected 10 at 105, got %d at %s", pos.Quantity, pos.AvgEntry)
	}
}
