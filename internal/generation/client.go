// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generation is the boundary to the external text-generation service.
// A Backend speaks one provider's protocol; the Client wraps a Backend with a
// per-call timeout and bounded exponential-backoff retries, and reports
// exhaustion as an *UnavailableError. Completion text is returned unparsed.
package generation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable matches every *UnavailableError via errors.Is.
var ErrUnavailable = errors.New("generation unavailable")

// errEmptyCompletion marks a completion that contained only whitespace.
var errEmptyCompletion = errors.New("empty completion")

// backoffBase controls the base duration for exponential backoff between
// attempts. Tests override this to avoid real sleeps.
var backoffBase = time.Second

const defaultMaxRetries = 3

// PromptSpec is one completion request.
type PromptSpec struct {
	// Stage names the calling stage for logs and errors (e.g. "writer").
	Stage string

	// System carries the role instructions.
	System string

	// Prompt carries the conditioning context and task.
	Prompt string

	// LengthHint is the target output length in words, or 0.
	LengthHint int

	Temperature float64
	MaxTokens   int

	// Timeout bounds a single attempt. Zero leaves only the caller's deadline.
	Timeout time.Duration
}

// Backend sends one prompt to a model service and returns the raw text.
type Backend interface {
	Name() string
	Generate(ctx context.Context, spec PromptSpec) (string, error)
}

// Checker is implemented by backends that can verify their endpoint and
// model before a run.
type Checker interface {
	Available(ctx context.Context) error
}

// Completer is the capability the stage agents consume.
type Completer interface {
	Complete(ctx context.Context, spec PromptSpec) (string, error)
}

// UnavailableError reports that a completion could not be obtained within
// the retry budget, or that the caller's context ended first.
type UnavailableError struct {
	Stage    string
	Backend  string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("generation unavailable: %s via %s after %d attempt(s): %v", e.Stage, e.Backend, e.Attempts, e.Err)
}

// Unwrap exposes both ErrUnavailable and the last underlying cause.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

// PermanentError marks a backend failure that retrying cannot fix, such as
// an authentication or malformed-request response.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Client retries a Backend. It is safe for concurrent use when the Backend is.
type Client struct {
	backend    Backend
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithMaxRetries sets the number of retries after the first attempt.
// Negative values are treated as zero.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = max(n, 0) }
}

// WithBackoff sets the delay before the first retry. Later retries double
// it. Zero keeps the package default.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient wraps backend with the default retry policy.
func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{backend: backend, maxRetries: defaultMaxRetries, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Backend returns the wrapped backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Complete returns the backend's completion for spec. Each attempt is bounded
// by spec.Timeout. Transport failures, per-attempt timeouts, and empty
// completions are retried up to the configured limit with exponential
// backoff. Nothing is retried once ctx is done.
func (c *Client) Complete(ctx context.Context, spec PromptSpec) (string, error) {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			base := c.backoff
			if base == 0 {
				base = backoffBase
			}
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * base
			select {
			case <-ctx.Done():
				return "", c.unavailable(spec, attempts, ctx.Err())
			case <-time.After(backoff):
			}
		}
		if err := ctx.Err(); err != nil {
			return "", c.unavailable(spec, attempts, err)
		}

		attempts++
		text, err := c.attempt(ctx, spec)
		if err == nil {
			return text, nil
		}
		lastErr = err

		c.logger.Warn("generation attempt failed",
			zap.String("stage", spec.Stage),
			zap.String("backend", c.backend.Name()),
			zap.Int("attempt", attempts),
			zap.Error(err))

		var perm *PermanentError
		if errors.As(err, &perm) || ctx.Err() != nil {
			break
		}
	}
	if ctx.Err() != nil {
		lastErr = ctx.Err()
	}
	return "", c.unavailable(spec, attempts, lastErr)
}

func (c *Client) attempt(ctx context.Context, spec PromptSpec) (string, error) {
	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}
	text, err := c.backend.Generate(ctx, spec)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyCompletion
	}
	return text, nil
}

func (c *Client) unavailable(spec PromptSpec, attempts int, err error) error {
	return &UnavailableError{Stage: spec.Stage, Backend: c.backend.Name(), Attempts: attempts, Err: err}
}
