// Package regime classifies market-wide risk appetite from a volatility index.
package regime

import "fusion-trader/internal/types"

type Config struct {
	HighPanic float64 // value >= HighPanic is HIGH_PANIC
	LowFear   float64 // value <= LowFear is LOW_FEAR
}

func DefaultConfig() Config {
	return Config{HighPanic: 25, LowFear: 15}
}

type Classifier struct {
	cfg Config
}

func New(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify is total: a nil reading yields NO_DATA.
func (c *Classifier) Classify(r *types.VolatilityReading) types.Regime {
	if r == nil {
		return types.RegimeNoData
	}
	switch {
	case r.Value >= c.cfg.HighPanic:
		return types.RegimeHighPanic
	case r.Value <= c.cfg.LowFear:
		return types.RegimeLowFear
	default:
		return types.RegimeNeutral
	}
}
