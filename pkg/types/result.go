// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// State is a pipeline state-machine state.
type State string

const (
	StatePending           State = "PENDING"
	StateResearching       State = "RESEARCHING"
	StateDrafting          State = "DRAFTING"
	StateReviewing         State = "REVIEWING"
	StateRewriting         State = "REWRITING"
	StateAccepted          State = "ACCEPTED"
	StateMaxRoundsExceeded State = "MAX_ROUNDS_EXCEEDED"
	StateFailed            State = "FAILED"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateMaxRoundsExceeded || s == StateFailed
}

// Succeeded reports whether s is a terminal state carrying a usable Draft.
func (s State) Succeeded() bool {
	return s == StateAccepted || s == StateMaxRoundsExceeded
}

// Stage names the pipeline stage in which a failure occurred.
type Stage string

const (
	StageAdmission Stage = "admission"
	StageResearch  Stage = "research"
	StageDraft     Stage = "draft"
	StageReview    Stage = "review"
	StageRewrite   Stage = "rewrite"
)

// FailureReason classifies why a pipeline failed.
type FailureReason string

const (
	ReasonTimeout               FailureReason = "timeout"
	ReasonGenerationUnavailable FailureReason = "generation_unavailable"
	ReasonParseError            FailureReason = "parse_error"
	ReasonCancelled             FailureReason = "cancelled"
	ReasonInternal              FailureReason = "internal"
)

// Failure describes a FAILED pipeline in terms a caller can report.
type Failure struct {
	Stage   Stage         `json:"stage" yaml:"stage"`
	Reason  FailureReason `json:"reason" yaml:"reason"`
	Message string        `json:"message" yaml:"message"`
}

func (f Failure) String() string {
	return string(f.Stage) + ": " + string(f.Reason) + ": " + f.Message
}

// Improvement compares a rewrite with the draft it replaced.
type Improvement struct {
	WordDelta     int     `json:"word_delta" yaml:"word_delta"`
	SentenceDelta int     `json:"sentence_delta" yaml:"sentence_delta"`
	ScoreDelta    float64 `json:"score_delta" yaml:"score_delta"`
}

// RoundRecord pairs a Draft with its ReviewFeedback.
type RoundRecord struct {
	Draft    Draft          `json:"draft" yaml:"draft"`
	Feedback ReviewFeedback `json:"feedback" yaml:"feedback"`

	// Improved is false when a rewrite scored no higher than its predecessor.
	// Round 0 is always marked improved.
	Improved bool `json:"improved" yaml:"improved"`

	// Delta is nil for round 0.
	Delta *Improvement `json:"delta,omitempty" yaml:"delta,omitempty"`

	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Transition is one state-machine step.
type Transition struct {
	From  State     `json:"from" yaml:"from"`
	To    State     `json:"to" yaml:"to"`
	Round int       `json:"round" yaml:"round"`
	At    time.Time `json:"at" yaml:"at"`
}

// ContentReport is the content validator's verdict on a final Draft.
type ContentReport struct {
	Valid           bool     `json:"valid" yaml:"valid"`
	WordCount       int      `json:"word_count" yaml:"word_count"`
	Errors          []string `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	MissingKeywords []string `json:"missing_keywords,omitempty" yaml:"missing_keywords,omitempty"`
}

// PipelineResult is the outcome of one pipeline run. It is owned by the
// orchestrator until returned and immutable afterwards.
type PipelineResult struct {
	// ID is a unique run identifier.
	ID string `json:"id" yaml:"id"`

	Request ContentRequest `json:"request" yaml:"request"`
	State   State          `json:"state" yaml:"state"`

	// Final is the selected draft: the accepted draft, or the best-scoring
	// draft when the round budget ran out. Nil when State is FAILED.
	Final         *Draft          `json:"final,omitempty" yaml:"final,omitempty"`
	FinalFeedback *ReviewFeedback `json:"final_feedback,omitempty" yaml:"final_feedback,omitempty"`

	// Rounds is the full history in round order. Empty when State is FAILED.
	Rounds []RoundRecord `json:"rounds,omitempty" yaml:"rounds,omitempty"`

	Brief *ResearchBrief `json:"brief,omitempty" yaml:"brief,omitempty"`

	// Regressions counts rewrites that did not improve on their predecessor.
	Regressions int `json:"regressions" yaml:"regressions"`

	Transitions []Transition   `json:"transitions" yaml:"transitions"`
	Failure     *Failure       `json:"failure,omitempty" yaml:"failure,omitempty"`
	Validation  *ContentReport `json:"validation,omitempty" yaml:"validation,omitempty"`
	Warnings    []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`

	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed    time.Duration `json:"elapsed" yaml:"elapsed"`
	RoundsUsed int           `json:"rounds_used" yaml:"rounds_used"`
}

// Drafts returns the draft sequence in round order.
func (r PipelineResult) Drafts() []Draft {
	out := make([]Draft, len(r.Rounds))
	for i, rr := range r.Rounds {
		out[i] = rr.Draft
	}
	return out
}
