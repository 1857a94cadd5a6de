// Package sentiment folds scored news/macro records into a single score in [-1, 1].
package sentiment

import (
	"math"
	"strings"
	"time"
	"unicode"

	"fusion-trader/internal/types"
)

// NeutralScore is imputed for records the ingestion pipeline did not score.
const NeutralScore = 0.5

type Config struct {
	MacroWindow      time.Duration
	InstrumentWindow time.Duration
	MatchWeight      float64
	BaseWeight       float64
}

func DefaultConfig() Config {
	return Config{
		MacroWindow:      72 * time.Hour,
		InstrumentWindow: 24 * time.Hour,
		MatchWeight:      2.0,
		BaseWeight:       1.0,
	}
}

type Aggregator struct {
	cfg Config
}

func New(cfg Config) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// Filter keeps records inside their window ending at asOf and drops duplicates.
// Order of first appearance is preserved.
func (a *Aggregator) Filter(events []types.EventRecord, asOf time.Time) []types.EventRecord {
	seen := make(map[string]struct{}, len(events))
	out := make([]types.EventRecord, 0, len(events))
	for _, ev := range events {
		window := a.cfg.InstrumentWindow
		if ev.IsMacro() {
			window = a.cfg.MacroWindow
		}
		if ev.Ts.After(asOf) || ev.Ts.Before(asOf.Add(-window)) {
			continue
		}
		key := identity(ev)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}

// Aggregate returns the weighted, normalized score for instrument. Records
// should already be windowed with Filter. No records yields exactly 0.
func (a *Aggregator) Aggregate(instrument string, events []types.EventRecord) float64 {
	if len(events) == 0 {
		return 0
	}
	var num, den float64
	for _, ev := range events {
		w := a.cfg.BaseWeight
		if ev.Instrument == instrument || Mentions(ev.Content, instrument) {
			w = a.cfg.MatchWeight
		}
		score := NeutralScore
		if ev.Score != nil {
			score = *ev.Score
		}
		num += w * score
		den += w
	}
	if den == 0 {
		return 0
	}
	return Normalize(num / den)
}

// Score windows and aggregates in one call.
func (a *Aggregator) Score(instrument string, events []types.EventRecord, asOf time.Time) float64 {
	return a.Aggregate(instrument, a.Filter(events, asOf))
}

// Normalize maps [0,1] onto [-1,1], clamping out-of-range input.
func Normalize(avg float64) float64 {
	s := (avg - 0.5) * 2
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// ScorePrecision is the number of decimal places a stored score carries.
const ScorePrecision = 12

var scoreScale = math.Pow10(ScorePrecision)

// Denormalize maps [-1,1] back onto [0,1], rounded to ScorePrecision places
// so that Denormalize(Normalize(x)) == x for any stored score.
func Denormalize(s float64) float64 {
	return math.Round((s/2+0.5)*scoreScale) / scoreScale
}

// Mentions reports a case-insensitive whole-word occurrence of symbol in text.
func Mentions(text, symbol string) bool {
	if symbol == "" {
		return false
	}
	t := strings.ToUpper(text)
	sym := strings.ToUpper(symbol)
	for from := 0; ; {
		i := strings.Index(t[from:], sym)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(sym)
		if boundaryBefore(t, start) && boundaryAfter(t, end) {
			return true
		}
		from = start + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	return !isWordByte(rune(s[i-1]))
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	return !isWordByte(rune(s[i]))
}

func isWordByte(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func identity(ev types.EventRecord) string {
	if ev.ID != "" {
		return "id:" + ev.ID
	}
	return ev.Tag + "|" + ev.Instrument + "|" + ev.Ts.UTC().Format(time.RFC3339Nano) + "|" + ev.Content
}
