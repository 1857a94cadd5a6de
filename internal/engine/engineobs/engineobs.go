package engineobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"fusion-trader/internal/interfaces"
	"fusion-trader/internal/logger"
	"fusion-trader/internal/trace"
	"fusion-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

func Wrap(eng interfaces.Engine) interfaces.Engine {
	return &observableEngine{
		engine: eng,
	}
}

func (oe *observableEngine) Step(ctx context.Context, instrument string) (*types.StepResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Step")
	defer span.End()
	span.SetAttributes(attribute.String("instrument", instrument))

	start := time.Now()

	logger.DebugSkip(ctx, 1, "Starting trading cycle",
		"instrument", instrument,
	)

	result, err := oe.engine.Step(ctx, instrument)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Trading cycle failed", err,
			"instrument", instrument,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("decision", string(result.Decision.Decision)),
		attribute.Int("trades", len(result.Trades)),
	)
	logger.InfoSkip(ctx, 1, "Trading cycle completed",
		"instrument", instrument,
		"decision", result.Decision.Decision,
		"confidence", result.Decision.Confidence,
		"strategy", result.Decision.StrategyName,
		"trades", len(result.Trades),
		"reason", result.Reason,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}

func (oe *observableEngine) GetDecision(ctx context.Context, instrument string) (types.DecisionResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.GetDecision")
	defer span.End()
	span.SetAttributes(attribute.String("instrument", instrument))

	res, err := oe.engine.GetDecision(ctx, instrument)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Decision lookup failed", err, "instrument", instrument)
		return res, err
	}
	logger.DebugSkip(ctx, 1, "Decision served", "instrument", instrument, "decision", res.Decision)
	return res, nil
}
