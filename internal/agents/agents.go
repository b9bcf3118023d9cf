// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package agents implements the four pipeline stage agents. Each agent holds
// a generation.Completer and turns a typed input into a typed output: the
// Researcher produces a ResearchBrief, the Writer and Rewriter produce
// Drafts, and the Reviewer produces ReviewFeedback.
//
// Agents keep no per-request state; every call receives its settings
// explicitly through Config.
package agents

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Stage names passed to the generation client.
const (
	StageResearcher = "researcher"
	StageWriter     = "writer"
	StageReviewer   = "reviewer"
	StageRewriter   = "rewriter"
)

// ErrParse matches every ParseError.
var ErrParse = errors.New("completion could not be parsed")

// ParseError reports that no usable output was obtained from a stage after
// all attempts.
type ParseError struct {
	Stage    string
	Attempts int
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: unusable completion after %d attempt(s): %s", e.Stage, e.Attempts, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Config carries the settings for one agent call.
type Config struct {
	// Settings holds the agent's temperature, token cap, and optional
	// system prompt override.
	Settings types.AgentSettings

	// Timeout bounds each generation call.
	Timeout time.Duration

	// ParseAttempts is how many completions are requested before giving up
	// on unusable output. Values below 1 mean one attempt.
	ParseAttempts int

	// MinLengthRatio is the fraction of the band minimum a draft must reach.
	MinLengthRatio float64

	// Weights configures the reviewer's score blending.
	Weights types.Weights
}

// ConfigFrom combines per-agent settings with run parameters.
func ConfigFrom(settings types.AgentSettings, rc types.RunConfig) Config {
	return Config{
		Settings:       settings,
		Timeout:        rc.StageTimeout,
		ParseAttempts:  rc.ParseAttempts,
		MinLengthRatio: rc.MinLengthRatio,
		Weights:        rc.Weights,
	}
}

func (c Config) attempts() int {
	if c.ParseAttempts < 1 {
		return 1
	}
	return c.ParseAttempts
}

// minWords is the smallest acceptable draft for band.
func (c Config) minWords(band types.WordBand) int {
	n := int(math.Ceil(c.MinLengthRatio * float64(band.Min)))
	if n < 1 {
		return 1
	}
	return n
}

func (c Config) spec(stage, system, prompt string, lengthHint int) generation.PromptSpec {
	if c.Settings.System != "" {
		system = c.Settings.System
	}
	return generation.PromptSpec{
		Stage:       stage,
		System:      system,
		Prompt:      prompt,
		LengthHint:  lengthHint,
		Temperature: c.Settings.Temperature,
		MaxTokens:   c.Settings.MaxTokens,
		Timeout:     c.Timeout,
	}
}

// agent is the state shared by all stage agents.
type agent struct {
	llm    generation.Completer
	logger *zap.Logger
}

func newAgent(llm generation.Completer, logger *zap.Logger) agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return agent{llm: llm, logger: logger}
}

// completeArticle requests article text until the cleaned output reaches the
// minimum length for band.
func (a agent) completeArticle(ctx context.Context, spec generation.PromptSpec, band types.WordBand, cfg Config) (string, error) {
	need := cfg.minWords(band)
	var reason string
	for attempt := 1; attempt <= cfg.attempts(); attempt++ {
		raw, err := a.llm.Complete(ctx, spec)
		if err != nil {
			return "", err
		}
		text := CleanArticle(raw)
		n := types.CountWords(text)
		if n >= need {
			return text, nil
		}
		reason = fmt.Sprintf("%d words, need at least %d", n, need)
		a.logger.Warn("discarding short completion",
			zap.String("stage", spec.Stage),
			zap.Int("attempt", attempt),
			zap.Int("words", n),
			zap.Int("min_words", need))
	}
	return "", &ParseError{Stage: spec.Stage, Attempts: cfg.attempts(), Reason: reason}
}
