package eod

import (
	"time"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/ledger"
)

// NewSummarizer writes under <dir>/eod. Days are cut in loc (UTC when nil);
// ShouldRunNow fires closeAt after local midnight.
func NewSummarizer(store ledger.Store, dir string, loc *time.Location, closeAt time.Duration) interfaces.EodSummarizer {
	if loc == nil {
		loc = time.UTC
	}
	if dir == "" {
		dir = "logs"
	}
	return &eodSummarizer{store: store, dir: dir, loc: loc, closeAt: closeAt}
}
