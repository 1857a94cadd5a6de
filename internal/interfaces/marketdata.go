package interfaces

import (
	"context"
	"time"

	"fusion-trader/internal/types"
)

// MarketData is the read side of the external market-data feed.
type MarketData interface {
	// RecentBars returns up to n bars at or before asOf, most recent first.
	RecentBars(ctx context.Context, instrument string, n int, asOf time.Time) ([]types.PriceBar, error)
	// VolatilityAt returns the latest regime-index reading at or before asOf,
	// or nil when there is none.
	VolatilityAt(ctx context.Context, asOf time.Time) (*types.VolatilityReading, error)
}

// NewsSource is the read side of the news ingestion pipeline.
type NewsSource interface {
	// Events returns records for the instrument plus records carrying
	// macroTag whose timestamps fall in [from, to].
	Events(ctx context.Context, instrument, macroTag string, from, to time.Time) ([]types.EventRecord, error)
}
