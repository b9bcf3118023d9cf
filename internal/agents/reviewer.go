// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/internal/quality"
	"github.com/pdiddy/article-engine/pkg/types"
)

// ReviewInput is the input to the Reviewer.
type ReviewInput struct {
	Request types.ContentRequest
	Draft   types.Draft
	Style   types.StyleConditioning
}

// Reviewer scores a draft.
type Reviewer struct {
	agent
}

// NewReviewer returns a Reviewer calling llm.
func NewReviewer(llm generation.Completer, logger *zap.Logger) *Reviewer {
	return &Reviewer{agent: newAgent(llm, logger)}
}

// Review asks for a review of in.Draft and parses it with the quality
// evaluator. A review with no recognisable score is requested again.
func (r *Reviewer) Review(ctx context.Context, in ReviewInput, cfg Config) (types.ReviewFeedback, error) {
	band := in.Request.ContentLength.Band()
	prompt, err := render(reviewPrompt, promptData{
		Request: in.Request,
		Band:    band,
		Draft:   in.Draft,
		Style:   in.Style,
	})
	if err != nil {
		return types.ReviewFeedback{}, err
	}

	spec := cfg.spec(StageReviewer, ReviewerSystem, prompt, 0)
	eval := quality.NewEvaluator(cfg.Weights)
	for attempt := 1; attempt <= cfg.attempts(); attempt++ {
		raw, err := r.llm.Complete(ctx, spec)
		if err != nil {
			return types.ReviewFeedback{}, err
		}
		fb, err := eval.Parse(raw, in.Draft, in.Request)
		if err == nil {
			return fb, nil
		}
		if !errors.Is(err, quality.ErrNoScore) {
			return types.ReviewFeedback{}, err
		}
		r.logger.Warn("review has no score",
			zap.Int("round", in.Draft.Round),
			zap.Int("attempt", attempt))
	}
	return types.ReviewFeedback{}, &ParseError{
		Stage:    StageReviewer,
		Attempts: cfg.attempts(),
		Reason:   quality.ErrNoScore.Error(),
	}
}
