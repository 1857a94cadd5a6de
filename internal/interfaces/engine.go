package interfaces

import (
	"context"

	"fusion-trader/internal/types"
)

type Engine interface {
	Step(ctx context.Context, instrument string) (*types.StepResult, error)
	GetDecision(ctx context.Context, instrument string) (types.DecisionResult, error)
}
