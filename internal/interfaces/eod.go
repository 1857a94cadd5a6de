package interfaces

import (
	"context"
	"time"
)

// EodSummarizer writes per-instrument trade summaries as CSV.
type EodSummarizer interface {
	// SummarizeDay covers trades stamped on day's date in the summarizer's
	// zone. Returns "" with a nil error when there were no trades.
	SummarizeDay(ctx context.Context, day time.Time) (csvPath string, err error)

	// SummarizeRange covers trades in [from, to) and writes <name>.csv.
	SummarizeRange(ctx context.Context, from, to time.Time, name string) (csvPath string, err error)

	// ShouldRunNow reports whether now is past the session close and today's
	// summary has not been written yet.
	ShouldRunNow(now time.Time) (shouldRun bool, csvPath string)
}
