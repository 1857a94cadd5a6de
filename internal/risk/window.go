package risk

import (
	"fmt"
	"time"
)

// TradingWindow is a daily [Start, End) clock range in a named location.
type TradingWindow struct {
	start        time.Duration
	end          time.Duration
	loc          *time.Location
	weekdaysOnly bool
}

// NewTradingWindow parses "15:04" clock times. tz is an IANA zone name.
func NewTradingWindow(start, end, tz string, weekdaysOnly bool) (*TradingWindow, error) {
	s, err := clock(start)
	if err != nil {
		return nil, fmt.Errorf("window start: %w", err)
	}
	e, err := clock(end)
	if err != nil {
		return nil, fmt.Errorf("window end: %w", err)
	}
	if e <= s {
		return nil, fmt.Errorf("window end %s must be after start %s", end, start)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("window time zone: %w", err)
	}
	return &TradingWindow{start: s, end: e, loc: loc, weekdaysOnly: weekdaysOnly}, nil
}

func (w *TradingWindow) Contains(t time.Time) bool {
	lt := t.In(w.loc)
	if w.weekdaysOnly && (lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday) {
		return false
	}
	midnight := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, w.loc)
	since := lt.Sub(midnight)
	return since >= w.start && since < w.end
}

func clock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
