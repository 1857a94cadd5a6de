// Package marketdata provides in-process implementations of the market-data
// and news interfaces, plus CSV and synthetic sources to fill them.
package marketdata

import (
	"context"
	"sort"
	"sync"
	"time"

	"fusion-trader/internal/types"
)

// MemoryFeed serves bars, volatility readings and events with as-of
// semantics: nothing stamped after asOf is ever returned.
type MemoryFeed struct {
	mu     sync.RWMutex
	bars   map[string][]types.PriceBar // oldest first
	vol    []types.VolatilityReading   // oldest first
	events []types.EventRecord
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{bars: make(map[string][]types.PriceBar)}
}

func (f *MemoryFeed) AddBars(bars ...types.PriceBar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	touched := map[string]bool{}
	for _, b := range bars {
		f.bars[b.Instrument] = append(f.bars[b.Instrument], b)
		touched[b.Instrument] = true
	}
	for inst := range touched {
		s := f.bars[inst]
		sort.SliceStable(s, func(i, j int) bool { return s[i].Ts.Before(s[j].Ts) })
	}
}

func (f *MemoryFeed) AddVolatility(readings ...types.VolatilityReading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vol = append(f.vol, readings...)
	sort.SliceStable(f.vol, func(i, j int) bool { return f.vol[i].Ts.Before(f.vol[j].Ts) })
}

func (f *MemoryFeed) AddEvents(events ...types.EventRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, events...)
}

// RecentBars returns up to n bars at or before asOf, most recent first.
func (f *MemoryFeed) RecentBars(_ context.Context, instrument string, n int, asOf time.Time) ([]types.PriceBar, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s := f.bars[instrument]
	end := sort.Search(len(s), func(i int) bool { return s[i].Ts.After(asOf) })
	out := make([]types.PriceBar, 0, n)
	for i := end - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s[i])
	}
	return out, nil
}

// VolatilityAt returns the latest reading at or before asOf, or nil.
func (f *MemoryFeed) VolatilityAt(_ context.Context, asOf time.Time) (*types.VolatilityReading, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i := sort.Search(len(f.vol), func(i int) bool { return f.vol[i].Ts.After(asOf) })
	if i == 0 {
		return nil, nil
	}
	r := f.vol[i-1]
	return &r, nil
}

// Events returns records for instrument or tagged macroTag within [from, to].
func (f *MemoryFeed) Events(_ context.Context, instrument, macroTag string, from, to time.Time) ([]types.EventRecord, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []types.EventRecord
	for _, ev := range f.events {
		if ev.Ts.Before(from) || ev.Ts.After(to) {
			continue
		}
		if ev.Instrument == instrument || (ev.IsMacro() && ev.Tag == macroTag) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *MemoryFeed) Instruments() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.bars))
	for k := range f.bars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Timestamps is the sorted union of bar timestamps across instruments.
func (f *MemoryFeed) Timestamps() []time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	seen := map[int64]time.Time{}
	for _, s := range f.bars {
		for _, b := range s {
			seen[b.Ts.UnixNano()] = b.Ts
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
