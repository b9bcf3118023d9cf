// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"regexp"
	"strings"
)

// ResearchBrief is the Researcher's output, produced once per request and
// consumed by the Writer and Rewriter.
type ResearchBrief struct {
	// Insights is the free-text research summary.
	Insights string `json:"insights" yaml:"insights"`

	// KeyPoints lists structured key points when the completion carried them.
	KeyPoints []string `json:"key_points,omitempty" yaml:"key_points,omitempty"`

	// Structured is false when the brief fell back to raw or synthesized text.
	Structured bool `json:"structured" yaml:"structured"`

	// SourceContext holds the fetched reference snippets that fed the brief.
	SourceContext []SourceSnippet `json:"source_context,omitempty" yaml:"source_context,omitempty"`
}

// SourceSnippet is reference text fetched from one caller-supplied URL.
type SourceSnippet struct {
	URL     string `json:"url" yaml:"url"`
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// Draft is one version of the article. Round 0 is the Writer's draft,
// round N the N-th rewrite.
type Draft struct {
	Text      string `json:"text" yaml:"text"`
	Title     string `json:"title,omitempty" yaml:"title,omitempty"`
	WordCount int    `json:"word_count" yaml:"word_count"`
	Round     int    `json:"round" yaml:"round"`
}

// NewDraft builds a Draft, deriving the word count and title from text.
func NewDraft(text string, round int) Draft {
	return Draft{
		Text:      text,
		Title:     TitleOf(text),
		WordCount: CountWords(text),
		Round:     round,
	}
}

// Review dimensions.
const (
	DimClarity   = "clarity"
	DimRelevance = "relevance"
	DimStyleFit  = "style_fit"
	DimStructure = "structure"
	DimLength    = "length"
)

// Dimensions lists the review dimensions in reporting order.
var Dimensions = []string{DimClarity, DimRelevance, DimStyleFit, DimStructure, DimLength}

// ReviewFeedback is the canonical evaluation of one Draft. It is never
// mutated after creation.
type ReviewFeedback struct {
	// Round is the round of the Draft this feedback references.
	Round int `json:"round" yaml:"round"`

	// Score is the weighted quality score in [0,10].
	Score float64 `json:"score" yaml:"score"`

	// Overall is the reviewer's own overall score, when it gave one.
	Overall *float64 `json:"overall,omitempty" yaml:"overall,omitempty"`

	// SubScores maps a dimension name to its score in [0,10].
	SubScores map[string]float64 `json:"sub_scores" yaml:"sub_scores"`

	// Issues are blocking problems that prevent acceptance.
	Issues []string `json:"issues" yaml:"issues"`

	// Suggestions are non-blocking improvements.
	Suggestions []string `json:"suggestions" yaml:"suggestions"`

	// Raw is the unparsed reviewer completion.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// ScoredExemplar is one exemplar selected for style conditioning.
type ScoredExemplar struct {
	Document   ExemplarDocument `json:"document" yaml:"document"`
	Similarity float64          `json:"similarity" yaml:"similarity"`
}

// StyleConditioning is the top-k exemplar set for one request or round.
// It is read-only input and never stored on a Draft.
type StyleConditioning []ScoredExemplar

var (
	headingLine  = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+(.+?)\s*#*\s*$`)
	sentenceStop = regexp.MustCompile(`[.!?]+(\s|$)`)
)

// CountWords returns the number of whitespace-separated words in text.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountSentences returns the number of sentence terminators in text,
// counting a trailing fragment without punctuation as one sentence.
func CountSentences(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	n := len(sentenceStop.FindAllStringIndex(text, -1))
	if !strings.ContainsAny(text[len(text)-1:], ".!?") {
		n++
	}
	return n
}

// TitleOf returns the first Markdown heading in text, or "".
func TitleOf(text string) string {
	m := headingLine.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
