// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// WriteInput is the input to the Writer.
type WriteInput struct {
	Request types.ContentRequest
	Brief   types.ResearchBrief
	Style   types.StyleConditioning
}

// Writer produces the first draft.
type Writer struct {
	agent
}

// NewWriter returns a Writer calling llm.
func NewWriter(llm generation.Completer, logger *zap.Logger) *Writer {
	return &Writer{agent: newAgent(llm, logger)}
}

// Write returns draft round 0 targeting the request's length band.
func (w *Writer) Write(ctx context.Context, in WriteInput, cfg Config) (types.Draft, error) {
	band := in.Request.ContentLength.Band()
	prompt, err := render(writePrompt, promptData{
		Request: in.Request,
		Band:    band,
		Brief:   in.Brief,
		Style:   in.Style,
	})
	if err != nil {
		return types.Draft{}, err
	}

	text, err := w.completeArticle(ctx, cfg.spec(StageWriter, WriterSystem, prompt, band.Target()), band, cfg)
	if err != nil {
		return types.Draft{}, err
	}
	return types.NewDraft(text, 0), nil
}
