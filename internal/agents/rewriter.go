// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// RewriteInput is the input to the Rewriter.
type RewriteInput struct {
	Request  types.ContentRequest
	Brief    types.ResearchBrief
	Draft    types.Draft
	Feedback types.ReviewFeedback
	Style    types.StyleConditioning
}

// Rewriter revises a draft against its review.
type Rewriter struct {
	agent
}

// NewRewriter returns a Rewriter calling llm.
func NewRewriter(llm generation.Completer, logger *zap.Logger) *Rewriter {
	return &Rewriter{agent: newAgent(llm, logger)}
}

// Rewrite returns the next draft, numbered one past in.Draft. Every blocking
// issue in the feedback is listed in the prompt as a mandatory fix.
func (r *Rewriter) Rewrite(ctx context.Context, in RewriteInput, cfg Config) (types.Draft, error) {
	band := in.Request.ContentLength.Band()
	prompt, err := render(rewritePrompt, promptData{
		Request:  in.Request,
		Band:     band,
		Brief:    in.Brief,
		Style:    in.Style,
		Draft:    in.Draft,
		Feedback: in.Feedback,
	})
	if err != nil {
		return types.Draft{}, err
	}

	text, err := r.completeArticle(ctx, cfg.spec(StageRewriter, RewriterSystem, prompt, band.Target()), band, cfg)
	if err != nil {
		return types.Draft{}, err
	}
	return types.NewDraft(text, in.Draft.Round+1), nil
}
