// Package eod writes end-of-day (or end-of-run) trade summaries from the ledger.
package eod

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
	"fusion-trader/internal/types"
)

type eodSummarizer struct {
	store ledger.Store
	dir   string
	loc   *time.Location
	// closeAt is the offset from local midnight after which ShouldRunNow fires.
	closeAt time.Duration
}

var _ interfaces.EodSummarizer = (*eodSummarizer)(nil)

func (s *eodSummarizer) csvPath(name string) string {
	return filepath.Join(s.dir, "eod", name+".csv")
}

func (s *eodSummarizer) SummarizeDay(ctx context.Context, day time.Time) (string, error) {
	local := day.In(s.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	return s.SummarizeRange(ctx, from, from.AddDate(0, 0, 1), from.Format("2006-01-02"))
}

func (s *eodSummarizer) SummarizeRange(ctx context.Context, from, to time.Time, name string) (string, error) {
	trades, err := s.store.Trades(ctx, ledger.TradeFilter{From: from, To: to})
	if err != nil {
		return "", fmt.Errorf("load trades: %w", err)
	}
	if len(trades) == 0 {
		return "", nil
	}

	rows := aggregate(trades)
	outPath := s.csvPath(name)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := gocsv.Marshal(render(rows), out); err != nil {
		return "", fmt.Errorf("write %s: %w", outPath, err)
	}
	return outPath, nil
}

func (s *eodSummarizer) ShouldRunNow(now time.Time) (bool, string) {
	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	outPath := s.csvPath(local.Format("2006-01-02"))
	if local.Sub(midnight) >= s.closeAt {
		if _, err := os.Stat(outPath); errors.Is(err, os.ErrNotExist) {
			return true, outPath
		}
	}
	return false, outPath
}

// aggregate folds trades into per-instrument rows sorted by instrument.
func aggregate(trades []types.Trade) []*aggRow {
	aggs := map[string]*aggRow{}
	for _, t := range trades {
		row := aggs[t.Instrument]
		if row == nil {
			row = &aggRow{Instrument: t.Instrument}
			aggs[t.Instrument] = row
		}
		row.Commission = row.Commission.Add(t.Commission)
		switch t.Side {
		case types.SideBuy:
			row.Buys++
			row.BuyQty += t.Quantity
			row.BuyValue = row.BuyValue.Add(t.Notional)
		case types.SideSell:
			row.Sells++
			row.SellQty += t.Quantity
			row.SellValue = row.SellValue.Add(t.Notional)
			row.RealizedPnL = row.RealizedPnL.Add(t.RealizedPnL)
			if t.RealizedPnL.IsPositive() {
				row.Wins++
			}
		}
	}

	out := make([]*aggRow, 0, len(aggs))
	for _, r := range aggs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// render formats rows and appends a TOTAL line.
func render(rows []*aggRow) []*csvRow {
	total := &aggRow{Instrument: "TOTAL"}
	out := make([]*csvRow, 0, len(rows)+1)
	for _, r := range rows {
		out = append(out, format(r))
		total.Buys += r.Buys
		total.Sells += r.Sells
		total.Wins += r.Wins
		total.BuyQty += r.BuyQty
		total.SellQty += r.SellQty
		total.BuyValue = total.BuyValue.Add(r.BuyValue)
		total.SellValue = total.SellValue.Add(r.SellValue)
		total.RealizedPnL = total.RealizedPnL.Add(r.RealizedPnL)
		total.Commission = total.Commission.Add(r.Commission)
	}
	t := format(total)
	t.BuyAvg, t.SellAvg = "", ""
	return append(out, t)
}

func format(r *aggRow) *csvRow {
	return &csvRow{
		Instrument:     r.Instrument,
		Buys:           r.Buys,
		BuyQty:         r.BuyQty,
		BuyAvg:         avg(r.BuyValue, r.BuyQty),
		Sells:          r.Sells,
		SellQty:        r.SellQty,
		SellAvg:        avg(r.SellValue, r.SellQty),
		Wins:           r.Wins,
		RealizedPnL:    r.RealizedPnL.StringFixed(2),
		Commission:     r.Commission.StringFixed(2),
		GrossBuyValue:  r.BuyValue.StringFixed(2),
		GrossSellValue: r.SellValue.StringFixed(2),
	}
}

func avg(value decimal.Decimal, qty int64) string {
	if qty == 0 {
		return ""
	}
	return value.Div(decimal.NewFromInt(qty)).StringFixed(4)
}
