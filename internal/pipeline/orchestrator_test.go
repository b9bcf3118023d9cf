// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/pdiddy/article-engine/internal/agents"
	"github.com/pdiddy/article-engine/internal/corpus"
	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubLLM answers each stage with canned text. Reviewer scores are taken
// from scores in call order; the last score repeats.
type stubLLM struct {
	mu      sync.Mutex
	scores  []float64
	issues  map[int][]string
	reviews int
	drafts  int
	prompts map[string][]string

	// fail makes the named stage return err.
	fail    string
	failErr error

	// hang makes the named stage block until its context is done.
	hang string

	// gate, when set, holds researcher calls until closed.
	gate      chan struct{}
	active    int
	maxActive int
}

func (s *stubLLM) Complete(ctx context.Context, spec generation.PromptSpec) (string, error) {
	s.mu.Lock()
	if s.prompts == nil {
		s.prompts = make(map[string][]string)
	}
	s.prompts[spec.Stage] = append(s.prompts[spec.Stage], spec.Prompt)
	s.mu.Unlock()

	if spec.Stage == s.hang {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if spec.Stage == s.fail {
		if s.failErr == nil {
			panic("stage exploded")
		}
		return "", s.failErr
	}

	switch spec.Stage {
	case agents.StageResearcher:
		if s.gate != nil {
			s.mu.Lock()
			s.active++
			s.maxActive = max(s.maxActive, s.active)
			s.mu.Unlock()
			defer func() {
				s.mu.Lock()
				s.active--
				s.mu.Unlock()
			}()
			select {
			case <-s.gate:
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		return "Diagnostics adoption is rising.\n\nKEY POINTS:\n- Faster triage\n- Regulatory caution", nil

	case agents.StageWriter, agents.StageRewriter:
		s.mu.Lock()
		n := s.drafts
		s.drafts++
		s.mu.Unlock()
		return fmt.Sprintf("# Draft %d\n\n%s", n, strings.Repeat("Hospitals adopt diagnostics tools quickly. ", 40+n)), nil

	case agents.StageReviewer:
		s.mu.Lock()
		i := s.reviews
		s.reviews++
		s.mu.Unlock()
		score := s.scores[min(i, len(s.scores)-1)]
		var b strings.Builder
		fmt.Fprintf(&b, "OVERALL SCORE: %.1f/10\n\nBLOCKING ISSUES:\n", score)
		if issues := s.issues[i]; len(issues) > 0 {
			for _, is := range issues {
				fmt.Fprintf(&b, "- %s\n", is)
			}
		} else {
			b.WriteString("None\n")
		}
		b.WriteString("\nSUGGESTIONS:\n- Add a customer example\n")
		return b.String(), nil
	}
	return "", fmt.Errorf("unexpected stage %q", spec.Stage)
}

var scenarioRequest = types.ContentRequest{
	Topic:         "AI in Healthcare Diagnostics",
	Industry:      "Healthcare",
	SEOKeywords:   []string{"diagnostics"},
	ContentLength: types.LengthMedium,
}

var scenarioConfig = types.RunConfig{AcceptanceThreshold: types.Ptr(9.0), MaxRounds: 3}

func seededCorpus(t *testing.T) *corpus.Manager {
	t.Helper()
	m := corpus.NewManager()
	docs, err := corpus.SeedDocuments()
	require.NoError(t, err)
	_, err = m.Ingest(context.Background(), docs)
	require.NoError(t, err)
	return m
}

func assertMonotonicRounds(t *testing.T, res types.PipelineResult) {
	t.Helper()
	for i, d := range res.Drafts() {
		assert.Equal(t, i, d.Round)
		assert.Equal(t, i, res.Rounds[i].Feedback.Round, "feedback references its draft")
	}
}

func assertLegalTransitions(t *testing.T, res types.PipelineResult) {
	t.Helper()
	require.NotEmpty(t, res.Transitions)
	assert.Equal(t, types.StatePending, res.Transitions[0].From)
	for i, tr := range res.Transitions {
		assert.True(t, ValidTransition(tr.From, tr.To), "%s -> %s", tr.From, tr.To)
		if i > 0 {
			assert.Equal(t, res.Transitions[i-1].To, tr.From)
		}
	}
	assert.Equal(t, res.State, res.Transitions[len(res.Transitions)-1].To)
}

func TestRun_AcceptedAtRoundTwo(t *testing.T) {
	llm := &stubLLM{scores: []float64{6.0, 7.5, 9.2}}
	o := New(llm, seededCorpus(t), WithLogger(zaptest.NewLogger(t)))

	res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
	require.NoError(t, err)

	assert.Equal(t, types.StateAccepted, res.State)
	require.Len(t, res.Rounds, 3)
	assert.Equal(t, 3, res.RoundsUsed)
	require.NotNil(t, res.Final)
	assert.Equal(t, 2, res.Final.Round)
	assert.Equal(t, res.Rounds[2].Draft, *res.Final)
	assert.Equal(t, 9.2, res.FinalFeedback.Score)
	assert.Nil(t, res.Failure)
	assert.NotEmpty(t, res.ID)
	assertMonotonicRounds(t, res)
	assertLegalTransitions(t, res)

	assert.True(t, res.Rounds[1].Improved)
	require.NotNil(t, res.Rounds[1].Delta)
	assert.Equal(t, 1.5, res.Rounds[1].Delta.ScoreDelta)
	assert.Equal(t, 5, res.Rounds[1].Delta.WordDelta)
	assert.Equal(t, 0, res.Regressions)

	require.NotNil(t, res.Brief)
	assert.True(t, res.Brief.Structured)
	require.NotNil(t, res.Validation)
	assert.Empty(t, res.Warnings)

	// The writer saw the seeded house style.
	assert.Contains(t, llm.prompts[agents.StageWriter][0], "STYLE REFERENCE EXAMPLES")
}

func TestRun_MaxRoundsReturnsBest(t *testing.T) {
	tests := []struct {
		name        string
		scores      []float64
		wantFinal   int
		regressions int
	}{
		{name: "ascending", scores: []float64{6.0, 6.5, 7.0}, wantFinal: 2},
		{name: "peak in the middle", scores: []float64{6.0, 8.0, 7.0}, wantFinal: 1, regressions: 1},
		{name: "tie keeps earliest", scores: []float64{7.0, 6.0, 7.0}, wantFinal: 0, regressions: 1},
		{name: "flat", scores: []float64{5.0, 5.0, 5.0}, wantFinal: 0, regressions: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(&stubLLM{scores: tt.scores}, seededCorpus(t), WithLogger(zaptest.NewLogger(t)))
			res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
			require.NoError(t, err)

			assert.Equal(t, types.StateMaxRoundsExceeded, res.State)
			require.Len(t, res.Rounds, 3)
			require.NotNil(t, res.Final)
			assert.Equal(t, tt.wantFinal, res.Final.Round)
			assert.Equal(t, tt.regressions, res.Regressions)
			for _, r := range res.Rounds {
				assert.GreaterOrEqual(t, res.FinalFeedback.Score, r.Feedback.Score)
			}
			assertMonotonicRounds(t, res)
			assertLegalTransitions(t, res)
		})
	}
}

func TestRun_BlockingIssueVetoesAcceptance(t *testing.T) {
	llm := &stubLLM{
		scores: []float64{9.5, 9.5},
		issues: map[int][]string{0: {"Statistic has no source"}},
	}
	o := New(llm, seededCorpus(t), WithLogger(zaptest.NewLogger(t)))

	res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
	require.NoError(t, err)
	assert.Equal(t, types.StateAccepted, res.State)
	require.Len(t, res.Rounds, 2)
	assert.Equal(t, []string{"Statistic has no source"}, res.Rounds[0].Feedback.Issues)
	assert.False(t, res.Rounds[1].Improved, "equal score is not an improvement")
	assert.Contains(t, llm.prompts[agents.StageRewriter][0], "1. Statistic has no source")
}

func TestRun_SingleRoundBudget(t *testing.T) {
	o := New(&stubLLM{scores: []float64{4}}, nil)
	res, err := o.Run(context.Background(), scenarioRequest, types.RunConfig{MaxRounds: 1})
	require.NoError(t, err)
	assert.Equal(t, types.StateMaxRoundsExceeded, res.State)
	assert.Len(t, res.Rounds, 1)
	assert.Equal(t, 0, res.Final.Round)
}

func TestRun_EmptyCorpusDegrades(t *testing.T) {
	llm := &stubLLM{scores: []float64{6.0, 9.5}}
	o := New(llm, corpus.NewManager(), WithLogger(zaptest.NewLogger(t)))

	res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
	require.NoError(t, err)
	assert.Equal(t, types.StateAccepted, res.State)
	assert.Equal(t, []string{"exemplar corpus is empty; no style conditioning applied"}, res.Warnings)
	assert.NotContains(t, llm.prompts[agents.StageWriter][0], "STYLE REFERENCE EXAMPLES")
}

func TestRun_ExplicitZeroSettings(t *testing.T) {
	llm := &stubLLM{scores: []float64{4.0}}
	o := New(llm, seededCorpus(t), WithLogger(zaptest.NewLogger(t)))

	rc := types.RunConfig{AcceptanceThreshold: types.Ptr(0.0), TopK: types.Ptr(0), MaxRounds: 3}
	res, err := o.Run(context.Background(), scenarioRequest, rc)
	require.NoError(t, err)
	assert.Equal(t, types.StateAccepted, res.State, "threshold 0 accepts any draft without blocking issues")
	assert.Len(t, res.Rounds, 1)
	assert.Empty(t, res.Warnings)
	assert.NotContains(t, llm.prompts[agents.StageWriter][0], "STYLE REFERENCE EXAMPLES", "top_k 0 disables conditioning")
}

type fakeFetcher struct {
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, urls []string) ([]types.SourceSnippet, []string) {
	f.urls = urls
	return []types.SourceSnippet{{URL: urls[0], Title: "Study", Content: "Radiology results."}},
		[]string{"source " + urls[1] + " skipped: HTTP 404"}
}

func TestRun_SourceContext(t *testing.T) {
	llm := &stubLLM{scores: []float64{9.5}}
	f := &fakeFetcher{}
	o := New(llm, nil, WithFetcher(f))

	req := scenarioRequest
	req.SourceURLs = []string{"https://example.com/study", "https://example.com/gone"}
	res, err := o.Run(context.Background(), req, scenarioConfig)
	require.NoError(t, err)

	assert.Equal(t, req.SourceURLs, f.urls)
	require.NotNil(t, res.Brief)
	assert.Len(t, res.Brief.SourceContext, 1)
	assert.Equal(t, []string{"source https://example.com/gone skipped: HTTP 404"}, res.Warnings)
	assert.Contains(t, llm.prompts[agents.StageResearcher][0], "Source 1: Study (https://example.com/study)")
}

func TestRun_Failures(t *testing.T) {
	unavailable := &generation.UnavailableError{Stage: "writer", Backend: "stub", Attempts: 3, Err: errors.New("connection refused")}
	tests := []struct {
		name      string
		llm       *stubLLM
		wantStage types.Stage
		reason    types.FailureReason
	}{
		{
			name:      "generation unavailable while drafting",
			llm:       &stubLLM{scores: []float64{9}, fail: agents.StageWriter, failErr: unavailable},
			wantStage: types.StageDraft,
			reason:    types.ReasonGenerationUnavailable,
		},
		{
			name:      "unparseable review",
			llm:       &stubLLM{scores: []float64{9}, fail: agents.StageReviewer, failErr: &agents.ParseError{Stage: "reviewer", Attempts: 2, Reason: "no score"}},
			wantStage: types.StageReview,
			reason:    types.ReasonParseError,
		},
		{
			name:      "researcher unavailable",
			llm:       &stubLLM{scores: []float64{9}, fail: agents.StageResearcher, failErr: unavailable},
			wantStage: types.StageResearch,
			reason:    types.ReasonGenerationUnavailable,
		},
		{
			name:      "rewriter panic",
			llm:       &stubLLM{scores: []float64{5}, fail: agents.StageRewriter},
			wantStage: types.StageRewrite,
			reason:    types.ReasonInternal,
		},
		{
			name:      "researcher panic",
			llm:       &stubLLM{scores: []float64{5}, fail: agents.StageResearcher},
			wantStage: types.StageResearch,
			reason:    types.ReasonInternal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(tt.llm, seededCorpus(t), WithLogger(zaptest.NewLogger(t)))
			res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
			require.NoError(t, err)

			assert.Equal(t, types.StateFailed, res.State)
			require.NotNil(t, res.Failure)
			assert.Equal(t, tt.wantStage, res.Failure.Stage)
			assert.Equal(t, tt.reason, res.Failure.Reason)
			assert.NotEmpty(t, res.Failure.Message)
			assert.Nil(t, res.Final)
			assert.Empty(t, res.Rounds)
			assertLegalTransitions(t, res)
		})
	}
}

func TestRun_TimeoutTerminates(t *testing.T) {
	o := New(&stubLLM{scores: []float64{9}, hang: agents.StageWriter}, nil, WithLogger(zaptest.NewLogger(t)))

	start := time.Now()
	res, err := o.Run(context.Background(), scenarioRequest, types.RunConfig{RequestTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, types.StateFailed, res.State)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.StageDraft, res.Failure.Stage)
	assert.Equal(t, types.ReasonTimeout, res.Failure.Reason)
}

func TestRun_CallerCancel(t *testing.T) {
	o := New(&stubLLM{scores: []float64{9}, hang: agents.StageReviewer}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	res, err := o.Run(ctx, scenarioRequest, scenarioConfig)
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, types.StageReview, res.Failure.Stage)
	assert.Equal(t, types.ReasonCancelled, res.Failure.Reason)
}

func TestRun_ValidationError(t *testing.T) {
	o := New(&stubLLM{scores: []float64{9}}, nil)

	_, err := o.Run(context.Background(), types.ContentRequest{Topic: "AI"}, scenarioConfig)
	var ve *types.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "topic", ve.Fields[0].Field)

	_, err = o.Run(context.Background(), scenarioRequest, types.RunConfig{MaxRounds: 11})
	assert.True(t, errors.As(err, &ve))
}

func TestRun_BoundedConcurrency(t *testing.T) {
	llm := &stubLLM{scores: []float64{9.5}, gate: make(chan struct{})}
	o := New(llm, nil, WithConcurrency(2), WithLogger(zaptest.NewLogger(t)))
	require.Equal(t, 2, o.Capacity())

	const requests = 5
	results := make([]types.PipelineResult, requests)
	var wg sync.WaitGroup
	for i := range requests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Run(context.Background(), scenarioRequest, scenarioConfig)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	assert.Eventually(t, func() bool {
		return o.InFlight() == 2 && o.Queued() == 3
	}, 5*time.Second, 5*time.Millisecond)

	close(llm.gate)
	wg.Wait()

	assert.Equal(t, 2, llm.maxActive)
	assert.Equal(t, 0, o.InFlight())
	assert.Equal(t, 0, o.Queued())
	ids := make(map[string]bool)
	for _, res := range results {
		assert.Equal(t, types.StateAccepted, res.State)
		ids[res.ID] = true
	}
	assert.Len(t, ids, requests)
}

func TestRun_CancelledWhileQueued(t *testing.T) {
	llm := &stubLLM{scores: []float64{9.5}, gate: make(chan struct{})}
	o := New(llm, nil, WithConcurrency(1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Run(context.Background(), scenarioRequest, scenarioConfig)
	}()
	require.Eventually(t, func() bool { return o.InFlight() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := o.Run(ctx, scenarioRequest, scenarioConfig)
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, res.State)
	assert.Equal(t, types.StageAdmission, res.Failure.Stage)
	assert.Equal(t, types.ReasonTimeout, res.Failure.Reason)

	close(llm.gate)
	<-done
}
