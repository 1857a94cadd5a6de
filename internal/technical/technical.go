// Package technical turns recent price bars into a BUY/HOLD/NO_DATA signal and
// the snapshot every strategy reads.
package technical

import (
	"math"

	"fusion-trader/internal/ta"
	"fusion-trader/internal/types"
)

const (
	SnapshotBars     = 5
	VolatilityWindow = 20
)

type Config struct {
	RSIPeriod int
}

func DefaultConfig() Config {
	return Config{RSIPeriod: 14}
}

type Evaluator struct {
	cfg Config
}

func New(cfg Config) *Evaluator {
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = DefaultConfig().RSIPeriod
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate takes bars most recent first. Fewer than SnapshotBars bars is
// NO_DATA with a nil snapshot.
func (e *Evaluator) Evaluate(instrument string, bars []types.PriceBar) (types.TechnicalSignal, *types.TechnicalSnapshot) {
	if len(bars) < SnapshotBars {
		return types.TechNoData, nil
	}

	chrono := make([]types.PriceBar, len(bars))
	for i, b := range bars {
		chrono[len(bars)-1-i] = b
	}
	chrono = Enrich(chrono, e.cfg.RSIPeriod)

	last := chrono[len(chrono)-1]
	snap := &types.TechnicalSnapshot{
		Instrument:      instrument,
		Ts:              last.Ts,
		Close:           last.Close,
		Open:            last.Open,
		PrevClose:       chrono[len(chrono)-2].Close,
		PrevPrevClose:   chrono[len(chrono)-3].Close,
		SMA5:            last.SMA5,
		Volatility5:     last.Volatility5,
		AvgVolatility20: avgVolatility(chrono),
	}
	if last.HasRSI {
		rsi := last.RSI
		snap.RSI = &rsi
	}

	return Signal(snap), snap
}

// Signal applies the trend-with-calm rule to a snapshot.
func Signal(s *types.TechnicalSnapshot) types.TechnicalSignal {
	if s == nil {
		return types.TechNoData
	}
	if s.Close > s.SMA5 && s.AvgVolatility20 > 0 && s.Volatility5 < s.AvgVolatility20 {
		return types.TechBuy
	}
	return types.TechHold
}

// avgVolatility averages Volatility5 over the last VolatilityWindow bars that
// carry one.
func avgVolatility(chrono []types.PriceBar) float64 {
	start := len(chrono) - VolatilityWindow
	if start < 0 {
		start = 0
	}
	vals := make([]float64, 0, VolatilityWindow)
	for _, b := range chrono[start:] {
		if b.Volatility5 > 0 {
			vals = append(vals, b.Volatility5)
		}
	}
	if len(vals) == 0 {
		return 0
	}
	return ta.Mean(vals)
}

// Enrich fills SMA5, Volatility5 and RSI where the feed left them empty.
// bars must be oldest first; the input slice is not modified.
func Enrich(bars []types.PriceBar, rsiPeriod int) []types.PriceBar {
	out := make([]types.PriceBar, len(bars))
	copy(out, bars)

	closes := make([]float64, len(out))
	for i, b := range out {
		closes[i] = b.Close
	}

	for i := range out {
		window := closes[:i+1]
		if out[i].SMA5 == 0 && len(window) >= SnapshotBars {
			out[i].SMA5 = ta.SMA(window, SnapshotBars)
		}
		if out[i].Volatility5 == 0 && len(window) >= SnapshotBars {
			if v := ta.SampleStdDev(window, SnapshotBars); !math.IsNaN(v) {
				out[i].Volatility5 = v
			}
		}
		if !out[i].HasRSI && rsiPeriod > 0 && len(window) > rsiPeriod {
			if v := ta.RSI(window, rsiPeriod); !math.IsNaN(v) {
				out[i].RSI = v
				out[i].HasRSI = true
			}
		}
	}
	return out
}
