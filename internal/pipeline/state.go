// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"

	"github.com/pdiddy/article-engine/internal/agents"
	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// transitions lists the legal successors of each non-terminal state.
var transitions = map[types.State][]types.State{
	types.StatePending:     {types.StateResearching, types.StateFailed},
	types.StateResearching: {types.StateDrafting, types.StateFailed},
	types.StateDrafting:    {types.StateReviewing, types.StateFailed},
	types.StateReviewing:   {types.StateAccepted, types.StateRewriting, types.StateMaxRoundsExceeded, types.StateFailed},
	types.StateRewriting:   {types.StateReviewing, types.StateFailed},
}

// ValidTransition reports whether the state machine allows from -> to.
func ValidTransition(from, to types.State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Classify maps a stage error onto a failure reason. The run context is
// consulted first so that a request deadline or caller cancellation is
// reported as such whatever the stage made of it.
func Classify(ctx context.Context, err error) types.FailureReason {
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.Canceled), errors.Is(err, context.Canceled):
		return types.ReasonCancelled
	case errors.Is(ctxErr, context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return types.ReasonTimeout
	case errors.Is(err, generation.ErrUnavailable):
		return types.ReasonGenerationUnavailable
	case errors.Is(err, agents.ErrParse):
		return types.ReasonParseError
	}
	return types.ReasonInternal
}

// best returns the index of the highest-scoring round, the earliest on ties.
func best(rounds []types.RoundRecord) int {
	idx := 0
	for i, r := range rounds {
		if r.Feedback.Score > rounds[idx].Feedback.Score {
			idx = i
		}
	}
	return idx
}
