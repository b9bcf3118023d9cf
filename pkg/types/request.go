// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the article-engine pipeline.
// Covers the content request, research brief, drafts, review feedback,
// exemplar documents, pipeline results, and configuration.
package types

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ContentLength selects the target word-count band of an article.
type ContentLength string

const (
	LengthShort  ContentLength = "short"
	LengthMedium ContentLength = "medium"
	LengthLong   ContentLength = "long"
)

// Limits applied to a ContentRequest.
const (
	DefaultTargetAudience   = "business executives"
	MinTopicLength          = 3
	MaxTopicLength          = 200
	MaxSEOKeywords          = 10
	MaxKeywordLength        = 50
	MaxSourceURLs           = 5
	MaxAdditionalContextLen = 1000
)

// WordBand is an inclusive word-count range. Max of zero means unbounded.
type WordBand struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Contains reports whether n falls within the band.
func (b WordBand) Contains(n int) bool {
	if n < b.Min {
		return false
	}
	return b.Max == 0 || n <= b.Max
}

// Target returns a single representative word count for prompts.
func (b WordBand) Target() int {
	if b.Max == 0 {
		return b.Min + b.Min/5
	}
	return (b.Min + b.Max) / 2
}

func (b WordBand) String() string {
	if b.Max == 0 {
		return fmt.Sprintf("at least %d words", b.Min)
	}
	return fmt.Sprintf("%d-%d words", b.Min, b.Max)
}

// Band returns the word-count band implied by the content length.
// Unknown values map to the medium band.
func (l ContentLength) Band() WordBand {
	switch l {
	case LengthShort:
		return WordBand{Min: 400, Max: 500}
	case LengthLong:
		return WordBand{Min: 1000}
	default:
		return WordBand{Min: 600, Max: 800}
	}
}

// Valid reports whether l is one of the known content lengths.
func (l ContentLength) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// ContentRequest is the brief a caller submits for one article.
// A request is treated as immutable once accepted by the orchestrator.
type ContentRequest struct {
	// Topic is the article subject. Required.
	Topic string `json:"topic" yaml:"topic"`

	// Category is the editorial category (e.g. "Digital Transformation").
	Category string `json:"category" yaml:"category"`

	// Industry is the target industry (e.g. "Healthcare").
	Industry string `json:"industry" yaml:"industry"`

	// TargetAudience defaults to DefaultTargetAudience.
	TargetAudience string `json:"target_audience" yaml:"target_audience"`

	// SEOKeywords are woven into the article, in priority order.
	SEOKeywords []string `json:"seo_keywords" yaml:"seo_keywords"`

	// ContentLength selects the word-count band.
	ContentLength ContentLength `json:"content_length" yaml:"content_length"`

	// SourceURLs are optional reference pages fetched for research context.
	SourceURLs []string `json:"source_urls,omitempty" yaml:"source_urls,omitempty"`

	// AdditionalContext carries free-form requirements from the caller.
	AdditionalContext string `json:"additional_context,omitempty" yaml:"additional_context,omitempty"`
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	htmlTag       = regexp.MustCompile(`<[^>]+>`)
)

// cleanText collapses whitespace and strips HTML tags.
func cleanText(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// Normalize returns a cleaned copy of the request: text fields are trimmed
// and stripped of markup, keywords are deduplicated and capped, the content
// length and audience receive their defaults. Normalize never fails; call
// Validate on the result.
func (r ContentRequest) Normalize() ContentRequest {
	out := ContentRequest{
		Topic:             cleanText(r.Topic),
		Category:          cleanText(r.Category),
		Industry:          cleanText(r.Industry),
		TargetAudience:    cleanText(r.TargetAudience),
		ContentLength:     ContentLength(strings.ToLower(strings.TrimSpace(string(r.ContentLength)))),
		AdditionalContext: strings.TrimSpace(r.AdditionalContext),
	}
	if out.TargetAudience == "" {
		out.TargetAudience = DefaultTargetAudience
	}
	if out.ContentLength == "" {
		out.ContentLength = LengthMedium
	}

	seen := make(map[string]bool)
	for _, kw := range r.SEOKeywords {
		kw = cleanText(kw)
		if kw == "" || len(kw) > MaxKeywordLength || seen[strings.ToLower(kw)] {
			continue
		}
		seen[strings.ToLower(kw)] = true
		out.SEOKeywords = append(out.SEOKeywords, kw)
		if len(out.SEOKeywords) == MaxSEOKeywords {
			break
		}
	}

	for _, u := range r.SourceURLs {
		if u = strings.TrimSpace(u); u != "" {
			out.SourceURLs = append(out.SourceURLs, u)
		}
	}
	return out
}

// Validate checks the request against the field limits and returns a
// *ValidationError naming every violated field, or nil.
func (r ContentRequest) Validate() error {
	var problems []FieldError

	topic := strings.TrimSpace(r.Topic)
	switch {
	case topic == "":
		problems = append(problems, FieldError{Field: "topic", Reason: "is required"})
	case len(topic) < MinTopicLength:
		problems = append(problems, FieldError{Field: "topic", Reason: fmt.Sprintf("must be at least %d characters", MinTopicLength)})
	case len(topic) > MaxTopicLength:
		problems = append(problems, FieldError{Field: "topic", Reason: fmt.Sprintf("must be at most %d characters", MaxTopicLength)})
	}

	if r.ContentLength != "" && !r.ContentLength.Valid() {
		problems = append(problems, FieldError{Field: "content_length", Reason: fmt.Sprintf("%q is not one of short, medium, long", r.ContentLength)})
	}

	if len(r.SEOKeywords) > MaxSEOKeywords {
		problems = append(problems, FieldError{Field: "seo_keywords", Reason: fmt.Sprintf("at most %d keywords allowed, got %d", MaxSEOKeywords, len(r.SEOKeywords))})
	}
	for i, kw := range r.SEOKeywords {
		if len(kw) > MaxKeywordLength {
			problems = append(problems, FieldError{Field: fmt.Sprintf("seo_keywords[%d]", i), Reason: fmt.Sprintf("longer than %d characters", MaxKeywordLength)})
		}
	}

	if len(r.SourceURLs) > MaxSourceURLs {
		problems = append(problems, FieldError{Field: "source_urls", Reason: fmt.Sprintf("at most %d URLs allowed, got %d", MaxSourceURLs, len(r.SourceURLs))})
	}
	for i, raw := range r.SourceURLs {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, FieldError{Field: fmt.Sprintf("source_urls[%d]", i), Reason: fmt.Sprintf("%q is not an http(s) URL", raw)})
		}
	}

	if len(r.AdditionalContext) > MaxAdditionalContextLen {
		problems = append(problems, FieldError{Field: "additional_context", Reason: fmt.Sprintf("must be at most %d characters", MaxAdditionalContextLen)})
	}

	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// FieldError names one invalid request field.
type FieldError struct {
	Field  string `json:"field" yaml:"field"`
	Reason string `json:"reason" yaml:"reason"`
}

// ValidationError reports a malformed ContentRequest. A request that fails
// validation never enters the pipeline.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Reason
	}
	return "invalid content request: " + strings.Join(parts, "; ")
}
