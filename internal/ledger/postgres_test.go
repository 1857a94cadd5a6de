package ledger

import (
	"reflect"
	"strings"
	"testing"
)

// fakeRow hands fixed column values to Scan in order.
type fakeRow []any

func (r fakeRow) Scan(dest ...any) error {
	for i := range dest {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(r[i]))
	}
	return nil
}

func positionRow(avg, breakEven string) fakeRow {
	return fakeRow{"INFY", int64(10), avg, t0, "momentum", 3.0, 8.0, true, breakEven, t0}
}

func tradeRow(price, pnl string) fakeRow {
	return fakeRow{"c0ffee", t0, "INFY", "SELL", int64(5),
		price, "0.5", "500", "SELL", 0.2, "momentum", pnl, 0.01}
}

func TestScanPosition(t *testing.T) {
	p, err := scanPosition(positionRow("100.25", "100.25"))
	if err != nil {
		t.Fatalf("Expected position to scan, got %v", err)
	}
	if !p.AvgEntry.Equal(d("100.25")) || !p.BreakEven.Equal(d("100.25")) {
		t.Errorf("Expected avg and break-even 100.25, got %s / %s", p.AvgEntry, p.BreakEven)
	}

	_, err = scanPosition(positionRow("100.25", "garbage"))
	if err == nil || !strings.Contains(err.Error(), "break_even") {
		t.Errorf("Expected break_even parse error, got %v", err)
	}
}

func TestScanTrade(t *testing.T) {
	tr, err := scanTrade(tradeRow("100", "-12.5"))
	if err != nil {
		t.Fatalf("Expected trade to scan, got %v", err)
	}
	if !tr.Price.Equal(d("100")) || !tr.RealizedPnL.Equal(d("-12.5")) {
		t.Errorf("Expected price 100 and pnl -12.5, got %s / %s", tr.Price, tr.RealizedPnL)
	}

	for _, row := range []fakeRow{tradeRow("", "0"), tradeRow("100", "NaN?")} {
		if _, err := scanTrade(row); err == nil {
			t.Errorf("Expected parse error for %v", row)
		}
	}
}
