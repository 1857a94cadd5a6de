package eod

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fusion-trader/internal/ledger"
	"fusion-trader/internal/types"
)

var day = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seeded(t *testing.T) *ledger.Ledger {
	t.Helper()
	ctx := context.Background()
	st := ledger.NewMemoryStore()
	if err := st.Init(ctx, d("100000")); err != nil {
		t.Fatal(err)
	}
	l := ledger.New(st, d("0.001"))
	at := day.Add(10 * time.Hour)
	if _, err := l.Buy(ctx, ledger.BuyOrder{Instrument: "INFY", Quantity: 10, Price: d("100"), Time: at, Tag: "BUY"}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Sell(ctx, ledger.SellOrder{Instrument: "INFY", Quantity: 4, Price: d("110"), Time: at.Add(time.Hour), Tag: types.TagTakeProfit}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Buy(ctx, ledger.BuyOrder{Instrument: "TCS", Quantity: 2, Price: d("50"), Time: at}); err != nil {
		t.Fatal(err)
	}
	// next day, outside the summarized date
	if _, err := l.Sell(ctx, ledger.SellOrder{Instrument: "TCS", Price: d("40"), Time: at.Add(24 * time.Hour), Tag: types.TagSell}); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestAggregate(t *testing.T) {
	l := seeded(t)
	trades, _ := l.Store().Trades(context.Background(), ledger.TradeFilter{})
	rows := aggregate(trades)

	if len(rows) != 2 || rows[0].Instrument != "INFY" {
		t.Fatalf("Expected INFY then TCS, got %+v", rows)
	}
	infy := rows[0]
	if infy.BuyQty != 10 || infy.SellQty != 4 || infy.Wins != 1 {
		t.Errorf("Expected 10 bought, 4 sold, 1 win, got %+v", infy)
	}
	// 4*110 - 0.44 commission - 4*100
	if !infy.RealizedPnL.Equal(d("39.56")) {
		t.Errorf("Expected realized 39.56, got %s", infy.RealizedPnL)
	}
	if !infy.Commission.Equal(d("1.44")) {
		t.Errorf("Expected commission 1.44, got %s", infy.Commission)
	}
}

func TestSummarizeDay_WritesCSV(t *testing.T) {
	dir := t.TempDir()
	l := seeded(t)
	s := NewSummarizer(l.Store(), dir, time.UTC, 15*time.Hour+40*time.Minute)

	path, err := s.SummarizeDay(context.Background(), day.Add(12*time.Hour))
	if err != nil {
		t.Fatalf("SummarizeDay failed: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header, 2 rows and TOTAL, got %d lines:\n%s", len(lines), b)
	}
	if !strings.HasPrefix(lines[0], "instrument,buys,buy_qty") {
		t.Errorf("Expected header, got %s", lines[0])
	}
	if !strings.HasPrefix(lines[2], "TCS,1,2,50.0000,0,0,") {
		t.Errorf("Expected TCS row without the next-day sell, got %s", lines[2])
	}
	if !strings.HasPrefix(lines[3], "TOTAL,") {
		t.Errorf("Expected TOTAL row, got %s", lines[3])
	}
}

func TestSummarizeDay_NoTrades(t *testing.T) {
	st := ledger.NewMemoryStore()
	_ = st.Init(context.Background(), d("1000"))
	s := NewSummarizer(st, t.TempDir(), nil, 0)

	path, err := s.SummarizeDay(context.Background(), day)
	if err != nil || path != "" {
		t.Errorf("Expected no file and no error, got %q, %v", path, err)
	}
}

func TestShouldRunNow(t *testing.T) {
	dir := t.TempDir()
	l := seeded(t)
	s := NewSummarizer(l.Store(), dir, time.UTC, 15*time.Hour+40*time.Minute)

	if run, _ := s.ShouldRunNow(day.Add(15 * time.Hour)); run {
		t.Error("Expected no run before the close")
	}
	run, path := s.ShouldRunNow(day.Add(16 * time.Hour))
	if !run {
		t.Fatal("Expected run after the close")
	}
	if _, err := s.SummarizeDay(context.Background(), day); err != nil {
		t.Fatal(err)
	}
	if run, _ := s.ShouldRunNow(day.Add(17 * time.Hour)); run {
		t.Errorf("Expected no rerun once %s exists", path)
	}
}
