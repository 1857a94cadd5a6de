package interfaces

import (
	"context"

	"fusion-trader/internal/types"
)

// Publisher fans executed trades out to notification layers. Failures are
// reported to the caller, which logs them and carries on.
type Publisher interface {
	Publish(ctx context.Context, ev types.TradeEvent) error
}
