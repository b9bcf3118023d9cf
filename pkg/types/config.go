// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// Weights are the relative contributions of each review dimension to the
// final score. A zero weight excludes the dimension.
type Weights struct {
	Clarity   float64 `json:"clarity" yaml:"clarity" mapstructure:"clarity"`
	Relevance float64 `json:"relevance" yaml:"relevance" mapstructure:"relevance"`
	StyleFit  float64 `json:"style_fit" yaml:"style_fit" mapstructure:"style_fit"`
	Structure float64 `json:"structure" yaml:"structure" mapstructure:"structure"`

	// Length weighs the computed length-band score (default 0: the band
	// deviation is reported but does not move the score).
	Length float64 `json:"length" yaml:"length" mapstructure:"length"`
}

// DefaultWeights weighs the four reviewer dimensions equally.
func DefaultWeights() Weights {
	return Weights{Clarity: 1, Relevance: 1, StyleFit: 1, Structure: 1}
}

// Of returns the weight for a dimension name.
func (w Weights) Of(dim string) float64 {
	switch dim {
	case DimClarity:
		return w.Clarity
	case DimRelevance:
		return w.Relevance
	case DimStyleFit:
		return w.StyleFit
	case DimStructure:
		return w.Structure
	case DimLength:
		return w.Length
	}
	return 0
}

// IsZero reports whether no dimension carries weight.
func (w Weights) IsZero() bool {
	return w == Weights{}
}

// RunConfig carries the per-run pipeline settings.
type RunConfig struct {
	// AcceptanceThreshold is the minimum score for acceptance. Nil selects
	// the default 9.0; an explicit 0 accepts any draft without blocking
	// issues.
	AcceptanceThreshold *float64 `json:"acceptance_threshold" yaml:"acceptance_threshold" mapstructure:"acceptance_threshold"`

	// MaxRounds bounds the number of drafts, including the first (1..10, default 3).
	MaxRounds int `json:"max_rounds" yaml:"max_rounds" mapstructure:"max_rounds"`

	// TopK is the number of exemplars used for style conditioning. Nil
	// selects the default 3; an explicit 0 disables style conditioning.
	TopK *int `json:"top_k" yaml:"top_k" mapstructure:"top_k"`

	// StageTimeout bounds each generation call made by a stage agent
	// (default 2m).
	StageTimeout time.Duration `json:"stage_timeout" yaml:"stage_timeout" mapstructure:"stage_timeout"`

	// RequestTimeout bounds the whole run (default 15m).
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout" mapstructure:"request_timeout"`

	Weights Weights `json:"weights" yaml:"weights" mapstructure:"weights"`

	// ParseAttempts is how many completions an agent requests before
	// reporting a parse failure (default 2).
	ParseAttempts int `json:"parse_attempts" yaml:"parse_attempts" mapstructure:"parse_attempts"`

	// MinLengthRatio is the fraction of the band minimum a draft must reach
	// to be usable (default 0.25).
	MinLengthRatio float64 `json:"min_length_ratio" yaml:"min_length_ratio" mapstructure:"min_length_ratio"`
}

// Bounds on RunConfig.MaxRounds.
const (
	MinRounds      = 1
	MaxRoundsLimit = 10
)

// DefaultRunConfig returns the default run settings.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		AcceptanceThreshold: Ptr(9.0),
		MaxRounds:           3,
		TopK:                Ptr(3),
		StageTimeout:        2 * time.Minute,
		RequestTimeout:      15 * time.Minute,
		Weights:             DefaultWeights(),
		ParseAttempts:       2,
		MinLengthRatio:      0.25,
	}
}

// WithDefaults returns a copy with unset fields replaced by defaults. Nil
// pointers and zero values count as unset.
func (c RunConfig) WithDefaults() RunConfig {
	d := DefaultRunConfig()
	if c.AcceptanceThreshold == nil {
		c.AcceptanceThreshold = d.AcceptanceThreshold
	}
	if c.MaxRounds == 0 {
		c.MaxRounds = d.MaxRounds
	}
	if c.TopK == nil {
		c.TopK = d.TopK
	}
	if c.StageTimeout == 0 {
		c.StageTimeout = d.StageTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.Weights.IsZero() {
		c.Weights = d.Weights
	}
	if c.ParseAttempts == 0 {
		c.ParseAttempts = d.ParseAttempts
	}
	if c.MinLengthRatio == 0 {
		c.MinLengthRatio = d.MinLengthRatio
	}
	return c
}

// Threshold returns the acceptance threshold, or the default when unset.
func (c RunConfig) Threshold() float64 {
	if c.AcceptanceThreshold == nil {
		return *DefaultRunConfig().AcceptanceThreshold
	}
	return *c.AcceptanceThreshold
}

// ExemplarCount returns TopK, or the default when unset.
func (c RunConfig) ExemplarCount() int {
	if c.TopK == nil {
		return *DefaultRunConfig().TopK
	}
	return *c.TopK
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Validate reports out-of-range settings as a *ValidationError.
func (c RunConfig) Validate() error {
	var problems []FieldError
	if t := c.Threshold(); t < 0 || t > 10 {
		problems = append(problems, FieldError{Field: "acceptance_threshold", Reason: "must be within [0,10]"})
	}
	if c.MaxRounds < MinRounds || c.MaxRounds > MaxRoundsLimit {
		problems = append(problems, FieldError{Field: "max_rounds", Reason: fmt.Sprintf("must be within [%d,%d]", MinRounds, MaxRoundsLimit)})
	}
	if c.ExemplarCount() < 0 {
		problems = append(problems, FieldError{Field: "top_k", Reason: "must not be negative"})
	}
	if c.StageTimeout < 0 || c.RequestTimeout < 0 {
		problems = append(problems, FieldError{Field: "timeouts", Reason: "must not be negative"})
	}
	if c.ParseAttempts < 1 {
		problems = append(problems, FieldError{Field: "parse_attempts", Reason: "must be at least 1"})
	}
	if c.MinLengthRatio < 0 || c.MinLengthRatio > 1 {
		problems = append(problems, FieldError{Field: "min_length_ratio", Reason: "must be within [0,1]"})
	}
	if c.Weights.Clarity < 0 || c.Weights.Relevance < 0 || c.Weights.StyleFit < 0 || c.Weights.Structure < 0 || c.Weights.Length < 0 {
		problems = append(problems, FieldError{Field: "weights", Reason: "must not be negative"})
	}
	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// Generation backends.
const (
	BackendOllama = "ollama"
	BackendOpenAI = "openai"
	BackendClaude = "claude"
)

// GenerationConfig selects and tunes the text-generation backend.
type GenerationConfig struct {
	// Backend is one of ollama, openai, claude.
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	// Model is the model identifier (e.g. "llama3.1:8b", "gpt-4o-mini").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// BaseURL overrides the backend endpoint. For openai it selects any
	// compatible service.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`

	// APIKey authenticates hosted backends. Usually loaded from .secrets/.
	APIKey string `json:"-" yaml:"-" mapstructure:"api_key"`

	// MaxRetries is the number of retries after a failed call (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// BackoffBase is the first retry delay, doubled per attempt (default 1s).
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base" mapstructure:"backoff_base"`

	// Concurrency is the number of pipelines admitted at once (default 2).
	Concurrency int `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
}

// AgentSettings tunes one stage agent's completions.
type AgentSettings struct {
	Temperature float64 `json:"temperature" yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`

	// System overrides the agent's default role instructions.
	System string `json:"system,omitempty" yaml:"system,omitempty" mapstructure:"system"`
}

// AgentsConfig holds settings per stage agent.
type AgentsConfig struct {
	Researcher AgentSettings `json:"researcher" yaml:"researcher" mapstructure:"researcher"`
	Writer     AgentSettings `json:"writer" yaml:"writer" mapstructure:"writer"`
	Reviewer   AgentSettings `json:"reviewer" yaml:"reviewer" mapstructure:"reviewer"`
	Rewriter   AgentSettings `json:"rewriter" yaml:"rewriter" mapstructure:"rewriter"`
}

// CorpusConfig locates the exemplar corpus.
type CorpusConfig struct {
	// DBPath is the SQLite database holding ingested exemplars.
	DBPath string `json:"db_path" yaml:"db_path" mapstructure:"db_path"`

	// ExemplarsDir is scanned by "corpus ingest" when no paths are given.
	ExemplarsDir string `json:"exemplars_dir" yaml:"exemplars_dir" mapstructure:"exemplars_dir"`

	// MaxFeatures caps the similarity vocabulary (default 1000).
	MaxFeatures int `json:"max_features" yaml:"max_features" mapstructure:"max_features"`

	// SeedWhenEmpty ingests the built-in exemplars when the store is empty.
	SeedWhenEmpty bool `json:"seed_when_empty" yaml:"seed_when_empty" mapstructure:"seed_when_empty"`
}

// SourcesConfig tunes source-URL fetching.
type SourcesConfig struct {
	Timeout   time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	UserAgent string        `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxChars caps the extracted text per URL (default 2000).
	MaxChars int `json:"max_chars" yaml:"max_chars" mapstructure:"max_chars"`
}

// Config is the complete application configuration.
type Config struct {
	Pipeline   RunConfig        `json:"pipeline" yaml:"pipeline" mapstructure:"pipeline"`
	Generation GenerationConfig `json:"generation" yaml:"generation" mapstructure:"generation"`
	Agents     AgentsConfig     `json:"agents" yaml:"agents" mapstructure:"agents"`
	Corpus     CorpusConfig     `json:"corpus" yaml:"corpus" mapstructure:"corpus"`
	Sources    SourcesConfig    `json:"sources" yaml:"sources" mapstructure:"sources"`

	// HistoryDBPath is the SQLite database of past runs.
	HistoryDBPath string `json:"history_db_path" yaml:"history_db_path" mapstructure:"history_db_path"`

	// LogLevel is a zap level name (debug, info, warn, error).
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		Pipeline: DefaultRunConfig(),
		Generation: GenerationConfig{
			Backend:     BackendOllama,
			Model:       "llama3.1:8b",
			MaxRetries:  3,
			BackoffBase: time.Second,
			Concurrency: 2,
		},
		Agents: AgentsConfig{
			Researcher: AgentSettings{Temperature: 0.3, MaxTokens: 1500},
			Writer:     AgentSettings{Temperature: 0.7, MaxTokens: 3000},
			Reviewer:   AgentSettings{Temperature: 0.2, MaxTokens: 1500},
			Rewriter:   AgentSettings{Temperature: 0.5, MaxTokens: 3000},
		},
		Corpus: CorpusConfig{
			DBPath:        "data/corpus.db",
			ExemplarsDir:  "data/exemplars",
			MaxFeatures:   1000,
			SeedWhenEmpty: true,
		},
		Sources: SourcesConfig{
			Timeout:   10 * time.Second,
			UserAgent: "article-engine/0.1",
			MaxChars:  2000,
		},
		HistoryDBPath: "data/history.db",
		LogLevel:      "info",
	}
}
