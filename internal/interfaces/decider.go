package interfaces

import (
	"context"

	"fusion-trader/internal/types"
)

type Decider interface {
	Decide(ctx context.Context, req types.DecisionRequest) types.DecisionResult
}
