package marketdata

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"fusion-trader/internal/types"
)

// Optional columns are read as text so blanks stay distinguishable from zero.
type barRow struct {
	Instrument  string `csv:"instrument"`
	Date        string `csv:"date"`
	Open        string `csv:"open"`
	High        string `csv:"high"`
	Low         string `csv:"low"`
	Close       string `csv:"close"`
	Volume      string `csv:"volume"`
	SMA5        string `csv:"sma_5"`
	Volatility5 string `csv:"volatility_5"`
	RSI         string `csv:"rsi"`
}

type volatilityRow struct {
	Date  string `csv:"date"`
	Value string `csv:"value"`
}

type eventRow struct {
	ID         string `csv:"id"`
	Instrument string `csv:"instrument"`
	Tag        string `csv:"tag"`
	Date       string `csv:"date"`
	Content    string `csv:"content"`
	Score      string `csv:"score"`
	Insight    string `csv:"insight"`
	Kind       string `csv:"kind"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func parseOptional(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// LoadBars reads instrument,date,open,high,low,close,volume[,sma_5,volatility_5,rsi].
// When the file has no instrument column, instrument is used for every row.
func LoadBars(r io.Reader, instrument string) ([]types.PriceBar, error) {
	var rows []*barRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decode bars: %w", err)
	}
	out := make([]types.PriceBar, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("bars row %d: %w", i+1, err)
		}
		b := types.PriceBar{Instrument: row.Instrument, Ts: ts}
		if b.Instrument == "" {
			b.Instrument = instrument
		}
		closePx, ok, err := parseOptional(row.Close)
		if err != nil || !ok {
			return nil, fmt.Errorf("bars row %d: close is required", i+1)
		}
		b.Close = closePx
		for _, f := range []struct {
			raw string
			dst *float64
		}{
			{row.Open, &b.Open}, {row.High, &b.High}, {row.Low, &b.Low}, {row.Volume, &b.Volume},
			{row.SMA5, &b.SMA5}, {row.Volatility5, &b.Volatility5},
		} {
			v, _, err := parseOptional(f.raw)
			if err != nil {
				return nil, fmt.Errorf("bars row %d: %w", i+1, err)
			}
			*f.dst = v
		}
		rsi, ok, err := parseOptional(row.RSI)
		if err != nil {
			return nil, fmt.Errorf("bars row %d: rsi: %w", i+1, err)
		}
		b.RSI, b.HasRSI = rsi, ok
		out = append(out, b)
	}
	return out, nil
}

// LoadVolatility reads date,value rows of the volatility index.
func LoadVolatility(r io.Reader) ([]types.VolatilityReading, error) {
	var rows []*volatilityRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decode volatility: %w", err)
	}
	out := make([]types.VolatilityReading, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("volatility row %d: %w", i+1, err)
		}
		v, ok, err := parseOptional(row.Value)
		if err != nil {
			return nil, fmt.Errorf("volatility row %d: %w", i+1, err)
		}
		if !ok {
			continue
		}
		out = append(out, types.VolatilityReading{Ts: ts, Value: v})
	}
	return out, nil
}

// LoadEvents reads id,instrument,tag,date,content,score,insight,kind rows.
func LoadEvents(r io.Reader) ([]types.EventRecord, error) {
	var rows []*eventRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	out := make([]types.EventRecord, 0, len(rows))
	for i, row := range rows {
		ts, err := parseDate(row.Date)
		if err != nil {
			return nil, fmt.Errorf("events row %d: %w", i+1, err)
		}
		ev := types.EventRecord{
			ID:         row.ID,
			Instrument: strings.TrimSpace(row.Instrument),
			Tag:        strings.TrimSpace(row.Tag),
			Ts:         ts,
			Content:    row.Content,
			Insight:    row.Insight,
			Kind:       types.EventKind(strings.ToUpper(strings.TrimSpace(row.Kind))),
		}
		if ev.Kind == "" {
			ev.Kind = types.EventNews
		}
		score, ok, err := parseOptional(row.Score)
		if err != nil {
			return nil, fmt.Errorf("events row %d: score: %w", i+1, err)
		}
		if ok {
			ev.Score = &score
		}
		out = append(out, ev)
	}
	return out, nil
}

func LoadBarsFile(path, instrument string) ([]types.PriceBar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadBars(f, instrument)
}

func LoadVolatilityFile(path string) ([]types.VolatilityReading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadVolatility(f)
}

func LoadEventsFile(path string) ([]types.EventRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadEvents(f)
}
