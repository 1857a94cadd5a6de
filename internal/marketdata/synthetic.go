package marketdata

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"fusion-trader/internal/technical"
	"fusion-trader/internal/types"
)

// Synthetic generates a reproducible daily series: a geometric random walk
// per instrument, a mean-reverting volatility index, and scored news.
type Synthetic struct {
	Seed        int64
	Start       time.Time
	Days        int
	Instruments []string
	MacroTag    string
	StartPrice  float64
	Drift       float64 // daily
	Sigma       float64 // daily
	EventRate   float64 // probability of a news item per instrument per day
}

func DefaultSynthetic(instruments []string) Synthetic {
	return Synthetic{
		Seed:        42,
		Start:       time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
		Days:        250,
		Instruments: instruments,
		MacroTag:    "MACRO",
		StartPrice:  100,
		Drift:       0.0003,
		Sigma:       0.015,
		EventRate:   0.3,
	}
}

// Feed builds a MemoryFeed holding the generated series.
func (s Synthetic) Feed() *MemoryFeed {
	rng := rand.New(rand.NewSource(s.Seed))
	feed := NewMemoryFeed()

	days := tradingDays(s.Start, s.Days)

	vix := 18.0
	for _, d := range days {
		vix += 0.15*(18-vix) + rng.NormFloat64()*1.5
		vix = math.Max(9, math.Min(45, vix))
		feed.AddVolatility(types.VolatilityReading{Ts: d, Value: math.Round(vix*100) / 100})

		if rng.Float64() < s.EventRate/2 {
			score := clamp01(0.5 + (18-vix)/40 + rng.NormFloat64()*0.1)
			feed.AddEvents(types.EventRecord{
				ID:      fmt.Sprintf("macro-%s", d.Format("20060102")),
				Tag:     s.MacroTag,
				Ts:      d.Add(-2 * time.Hour),
				Content: "Macro update",
				Score:   &score,
				Kind:    types.EventEconomicIndicator,
			})
		}
	}

	for _, inst := range s.Instruments {
		price := s.StartPrice
		bars := make([]types.PriceBar, 0, len(days))
		for i, d := range days {
			ret := s.Drift + s.Sigma*rng.NormFloat64()
			open := price * (1 + s.Sigma/3*rng.NormFloat64())
			price *= math.Exp(ret)
			hi := math.Max(open, price) * (1 + math.Abs(rng.NormFloat64())*s.Sigma/2)
			lo := math.Min(open, price) * (1 - math.Abs(rng.NormFloat64())*s.Sigma/2)
			bars = append(bars, types.PriceBar{
				Instrument: inst,
				Ts:         d,
				Open:       round2(open),
				High:       round2(hi),
				Low:        round2(lo),
				Close:      round2(price),
				Volume:     float64(100000 + rng.Intn(50000)),
			})

			if rng.Float64() < s.EventRate {
				// news leans with the day's move
				score := clamp01(0.5 + ret*10 + rng.NormFloat64()*0.15)
				feed.AddEvents(types.EventRecord{
					ID:         fmt.Sprintf("%s-%d", inst, i),
					Instrument: inst,
					Ts:         d.Add(-time.Hour),
					Content:    fmt.Sprintf("%s company update", inst),
					Score:      &score,
					Kind:       types.EventNews,
				})
			}
		}
		feed.AddBars(technical.Enrich(bars, technical.DefaultConfig().RSIPeriod)...)
	}
	return feed
}

func tradingDays(start time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for d := start; len(out) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		out = append(out, d)
	}
	return out
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
