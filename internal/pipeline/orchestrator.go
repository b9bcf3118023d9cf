// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs the article state machine: research, draft, then
// review and rewrite until a draft is accepted or the round budget runs out.
//
// Pipelines for different requests run concurrently up to a fixed capacity;
// further requests wait in FIFO order for a free slot. Every stage error ends
// the run in FAILED with a classified reason. Run returns an error only for a
// malformed request or run configuration.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/pdiddy/article-engine/internal/agents"
	"github.com/pdiddy/article-engine/internal/corpus"
	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/internal/quality"
	"github.com/pdiddy/article-engine/internal/sources"
	"github.com/pdiddy/article-engine/pkg/types"
)

// Corpus supplies style conditioning. *corpus.Manager implements it.
type Corpus interface {
	TopK(ctx context.Context, query string, k int) (types.StyleConditioning, error)
}

// Orchestrator runs pipelines. Create it with New; it is safe for
// concurrent use.
type Orchestrator struct {
	researcher *agents.Researcher
	writer     *agents.Writer
	reviewer   *agents.Reviewer
	rewriter   *agents.Rewriter

	corpus   Corpus
	fetcher  sources.Fetcher
	settings types.AgentsConfig

	capacity int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	queued   atomic.Int64

	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFetcher enables source URL fetching.
func WithFetcher(f sources.Fetcher) Option {
	return func(o *Orchestrator) { o.fetcher = f }
}

// WithAgentSettings sets per-agent temperature, token cap, and system prompt.
func WithAgentSettings(s types.AgentsConfig) Option {
	return func(o *Orchestrator) { o.settings = s }
}

// WithConcurrency sets how many pipelines may run at once. Values below 1
// mean one.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) { o.capacity = int64(max(n, 1)) }
}

// WithLogger sets the orchestrator's logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New returns an orchestrator generating through llm and conditioning on
// c. A nil corpus disables style conditioning.
func New(llm generation.Completer, c Corpus, opts ...Option) *Orchestrator {
	d := types.DefaultConfig()
	o := &Orchestrator{
		corpus:   c,
		settings: d.Agents,
		capacity: int64(d.Generation.Concurrency),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.sem = semaphore.NewWeighted(o.capacity)
	o.researcher = agents.NewResearcher(llm, o.logger)
	o.writer = agents.NewWriter(llm, o.logger)
	o.reviewer = agents.NewReviewer(llm, o.logger)
	o.rewriter = agents.NewRewriter(llm, o.logger)
	return o
}

// Capacity returns the number of pipelines that may run at once.
func (o *Orchestrator) Capacity() int { return int(o.capacity) }

// InFlight returns the number of running pipelines.
func (o *Orchestrator) InFlight() int { return int(o.inFlight.Load()) }

// Queued returns the number of requests waiting for a slot.
func (o *Orchestrator) Queued() int { return int(o.queued.Load()) }

// Run normalizes and validates req, waits for a free slot, and runs the
// pipeline under rc. Unset fields of rc take their defaults. The returned
// error is a *types.ValidationError or nil; every other outcome, including
// failure, is reported through the result's State.
func (o *Orchestrator) Run(ctx context.Context, req types.ContentRequest, rc types.RunConfig) (types.PipelineResult, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return types.PipelineResult{}, err
	}
	rc = rc.WithDefaults()
	if err := rc.Validate(); err != nil {
		return types.PipelineResult{}, err
	}

	r := &run{
		o:     o,
		cfg:   rc,
		state: types.StatePending,
		stage: types.StageAdmission,
		res: types.PipelineResult{
			ID:        uuid.NewString(),
			Request:   req,
			State:     types.StatePending,
			StartedAt: o.now(),
		},
	}
	r.logger = o.logger.With(zap.String("run_id", r.res.ID))

	o.queued.Add(1)
	err := o.sem.Acquire(ctx, 1)
	o.queued.Add(-1)
	if err != nil {
		return r.fail(ctx, err), nil
	}
	defer o.sem.Release(1)
	o.inFlight.Add(1)
	defer o.inFlight.Add(-1)

	ctx, cancel := context.WithTimeout(ctx, rc.RequestTimeout)
	defer cancel()
	return r.execute(ctx), nil
}

// run is the state of one pipeline.
type run struct {
	o      *Orchestrator
	cfg    types.RunConfig
	logger *zap.Logger

	state types.State
	stage types.Stage
	res   types.PipelineResult
}

func (r *run) execute(ctx context.Context) (res types.PipelineResult) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("pipeline panicked", zap.Any("panic", p), zap.Stack("stack"))
			res = r.fail(ctx, fmt.Errorf("panic: %v", p))
		}
	}()

	req := r.res.Request
	r.logger.Info("pipeline started",
		zap.String("topic", req.Topic),
		zap.String("length", string(req.ContentLength)),
		zap.Int("max_rounds", r.cfg.MaxRounds))

	r.stage = types.StageResearch
	r.to(types.StateResearching, 0)
	brief, style, err := r.research(ctx)
	if err != nil {
		return r.fail(ctx, err)
	}

	r.stage = types.StageDraft
	r.to(types.StateDrafting, 0)
	started := r.o.now()
	draft, err := r.o.writer.Write(ctx, agents.WriteInput{Request: req, Brief: brief, Style: style}, r.agentConfig(r.o.settings.Writer))
	if err != nil {
		return r.fail(ctx, err)
	}

	for {
		r.stage = types.StageReview
		r.to(types.StateReviewing, draft.Round)
		fb, err := r.o.reviewer.Review(ctx, agents.ReviewInput{Request: req, Draft: draft, Style: style}, r.agentConfig(r.o.settings.Reviewer))
		if err != nil {
			return r.fail(ctx, err)
		}
		r.record(draft, fb, r.o.now().Sub(started))

		if quality.Accept(fb, r.cfg.Threshold()) {
			r.to(types.StateAccepted, draft.Round)
			return r.finish(len(r.res.Rounds)-1, brief)
		}
		if draft.Round >= r.cfg.MaxRounds-1 {
			r.to(types.StateMaxRoundsExceeded, draft.Round)
			return r.finish(best(r.res.Rounds), brief)
		}

		r.stage = types.StageRewrite
		r.to(types.StateRewriting, draft.Round)
		started = r.o.now()
		next, err := r.o.rewriter.Rewrite(ctx, agents.RewriteInput{
			Request:  req,
			Brief:    brief,
			Draft:    draft,
			Feedback: fb,
			Style:    style,
		}, r.agentConfig(r.o.settings.Rewriter))
		if err != nil {
			return r.fail(ctx, err)
		}
		if next.Round != draft.Round+1 {
			return r.fail(ctx, fmt.Errorf("rewrite returned round %d after round %d", next.Round, draft.Round))
		}
		draft = next
	}
}

// research fetches source context and runs the researcher while the
// exemplar query runs alongside.
func (r *run) research(ctx context.Context) (types.ResearchBrief, types.StyleConditioning, error) {
	req := r.res.Request
	var (
		brief         types.ResearchBrief
		style         types.StyleConditioning
		styleWarning  string
		fetchWarnings []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		style, styleWarning = r.conditioning(gctx)
		return nil
	})
	g.Go(func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("researcher panicked", zap.Any("panic", p), zap.Stack("stack"))
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		var snippets []types.SourceSnippet
		if r.o.fetcher != nil && len(req.SourceURLs) > 0 {
			snippets, fetchWarnings = r.o.fetcher.Fetch(gctx, req.SourceURLs)
		}
		brief, err = r.o.researcher.Research(gctx, agents.ResearchInput{Request: req, Sources: snippets}, r.agentConfig(r.o.settings.Researcher))
		return err
	})
	if err := g.Wait(); err != nil {
		return types.ResearchBrief{}, nil, err
	}

	r.res.Warnings = append(r.res.Warnings, fetchWarnings...)
	if styleWarning != "" {
		r.res.Warnings = append(r.res.Warnings, styleWarning)
	}
	return brief, style, nil
}

// conditioning queries the corpus. Failures degrade to no conditioning.
func (r *run) conditioning(ctx context.Context) (types.StyleConditioning, string) {
	if r.o.corpus == nil || r.cfg.ExemplarCount() == 0 {
		return nil, ""
	}
	style, err := r.o.corpus.TopK(ctx, conditioningQuery(r.res.Request), r.cfg.ExemplarCount())
	switch {
	case errors.Is(err, corpus.ErrEmptyCorpus):
		r.logger.Warn("exemplar corpus is empty, proceeding without style conditioning")
		return nil, "exemplar corpus is empty; no style conditioning applied"
	case err != nil:
		r.logger.Warn("exemplar query failed, proceeding without style conditioning", zap.Error(err))
		return nil, "exemplar query failed: " + err.Error()
	}
	return style, ""
}

func conditioningQuery(req types.ContentRequest) string {
	parts := []string{req.Topic, req.Category, req.Industry}
	parts = append(parts, req.SEOKeywords...)
	return strings.Join(parts, " ")
}

func (r *run) agentConfig(s types.AgentSettings) agents.Config {
	return agents.ConfigFrom(s, r.cfg)
}

// to records a state transition. An illegal transition is a programming
// error and panics into an internal failure.
func (r *run) to(next types.State, round int) {
	if !ValidTransition(r.state, next) {
		panic(fmt.Sprintf("illegal transition %s -> %s", r.state, next))
	}
	r.res.Transitions = append(r.res.Transitions, types.Transition{
		From:  r.state,
		To:    next,
		Round: round,
		At:    r.o.now(),
	})
	r.logger.Debug("transition",
		zap.String("from", string(r.state)),
		zap.String("to", string(next)),
		zap.Int("round", round))
	r.state = next
	r.res.State = next
}

// record appends a reviewed draft to the history and compares it with the
// previous round.
func (r *run) record(d types.Draft, fb types.ReviewFeedback, elapsed time.Duration) {
	rec := types.RoundRecord{Draft: d, Feedback: fb, Improved: true, Elapsed: elapsed}
	if n := len(r.res.Rounds); n > 0 {
		prev := r.res.Rounds[n-1]
		rec.Delta = &types.Improvement{
			WordDelta:     d.WordCount - prev.Draft.WordCount,
			SentenceDelta: types.CountSentences(d.Text) - types.CountSentences(prev.Draft.Text),
			ScoreDelta:    math.Round((fb.Score-prev.Feedback.Score)*100) / 100,
		}
		rec.Improved = fb.Score > prev.Feedback.Score
		if !rec.Improved {
			r.res.Regressions++
			r.logger.Info("rewrite did not improve score",
				zap.Int("round", d.Round),
				zap.Float64("score", fb.Score),
				zap.Float64("previous", prev.Feedback.Score))
		}
	}
	r.logger.Info("draft reviewed",
		zap.Int("round", d.Round),
		zap.Int("words", d.WordCount),
		zap.Float64("score", fb.Score),
		zap.Int("issues", len(fb.Issues)))
	r.res.Rounds = append(r.res.Rounds, rec)
}

// finish completes a successful run selecting round idx as final.
func (r *run) finish(idx int, brief types.ResearchBrief) types.PipelineResult {
	sel := r.res.Rounds[idx]
	final, fb := sel.Draft, sel.Feedback
	report := quality.Validate(final.Text, r.res.Request)

	r.res.Final = &final
	r.res.FinalFeedback = &fb
	r.res.Brief = &brief
	r.res.Validation = &report
	r.res.RoundsUsed = len(r.res.Rounds)
	r.res.Elapsed = r.o.now().Sub(r.res.StartedAt)

	r.logger.Info("pipeline finished",
		zap.String("state", string(r.res.State)),
		zap.Int("final_round", final.Round),
		zap.Float64("score", fb.Score),
		zap.Int("rounds", r.res.RoundsUsed),
		zap.Duration("elapsed", r.res.Elapsed))
	return r.res
}

// fail ends the run in FAILED. No partial result is kept.
func (r *run) fail(ctx context.Context, err error) types.PipelineResult {
	reason := Classify(ctx, err)
	if !r.state.Terminal() {
		r.to(types.StateFailed, len(r.res.Rounds))
	} else {
		// A panic after a terminal success still reports FAILED.
		r.state, r.res.State = types.StateFailed, types.StateFailed
	}
	r.res.Failure = &types.Failure{Stage: r.stage, Reason: reason, Message: err.Error()}
	r.res.Final = nil
	r.res.FinalFeedback = nil
	r.res.Rounds = nil
	r.res.Brief = nil
	r.res.Validation = nil
	r.res.Elapsed = r.o.now().Sub(r.res.StartedAt)

	r.logger.Error("pipeline failed",
		zap.String("stage", string(r.stage)),
		zap.String("reason", string(reason)),
		zap.Error(err))
	return r.res
}
