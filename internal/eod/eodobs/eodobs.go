package eodobs

import (
	"context"
	"time"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/trace"
)

type observableEodSummarizer struct {
	summarizer interfaces.EodSummarizer
}

var _ interfaces.EodSummarizer = (*observableEodSummarizer)(nil)

func Wrap(summarizer interfaces.EodSummarizer) interfaces.EodSummarizer {
	return &observableEodSummarizer{
		summarizer: summarizer,
	}
}

func (oes *observableEodSummarizer) SummarizeDay(ctx context.Context, day time.Time) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeDay")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Starting EOD summary generation",
		"date", day.Format("2006-01-02"),
	)

	csvPath, err := oes.summarizer.SummarizeDay(ctx, day)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "EOD summary generation failed", err,
			"date", day.Format("2006-01-02"),
		)
		return "", err
	}

	if csvPath == "" {
		logger.InfoSkip(ctx, 1, "No trades found for EOD summary",
			"date", day.Format("2006-01-02"),
		)
		return "", nil
	}

	logger.InfoSkip(ctx, 1, "EOD summary generated successfully",
		"date", day.Format("2006-01-02"),
		"csv_path", csvPath,
	)

	return csvPath, nil
}

func (oes *observableEodSummarizer) SummarizeRange(ctx context.Context, from, to time.Time, name string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "eod.SummarizeRange")
	defer span.End()

	csvPath, err := oes.summarizer.SummarizeRange(ctx, from, to, name)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Run summary generation failed", err, "name", name)
		return "", err
	}

	logger.InfoSkip(ctx, 1, "Run summary generated",
		"from", from.Format(time.RFC3339),
		"to", to.Format(time.RFC3339),
		"csv_path", csvPath,
	)
	return csvPath, nil
}

func (oes *observableEodSummarizer) ShouldRunNow(now time.Time) (bool, string) {
	ctx, span := trace.StartSpan(context.Background(), "eod.ShouldRunNow")
	defer span.End()

	shouldRun, csvPath := oes.summarizer.ShouldRunNow(now)

	logger.DebugSkip(ctx, 1, "EOD check completed",
		"should_run", shouldRun,
		"csv_path", csvPath,
	)

	return shouldRun, csvPath
}
