// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/article-engine/pkg/types"
)

// Content limits checked by Validate.
const (
	MinArticleWords      = 100
	MaxArticleWords      = 3000
	MaxAvgSentenceLength = 25.0
)

var (
	bracketed    = regexp.MustCompile(`\[[^\]\n]*\]`)
	placeholders = []*regexp.Regexp{
		regexp.MustCompile(`\bTODO\b`),
		regexp.MustCompile(`\bPLACEHOLDER\b`),
		regexp.MustCompile(`(?i)lorem ipsum`),
	}
)

// Validate checks a finished article for publishing problems: word count
// outside the hard limits and leftover placeholders are errors; missing SEO
// keywords, very long sentences, and a flat structure are warnings.
func Validate(article string, req types.ContentRequest) types.ContentReport {
	words := types.CountWords(article)
	r := types.ContentReport{WordCount: words}

	switch {
	case words < MinArticleWords:
		r.Errors = append(r.Errors, fmt.Sprintf("article too short: %d words (minimum %d)", words, MinArticleWords))
	case words > MaxArticleWords:
		r.Errors = append(r.Errors, fmt.Sprintf("article too long: %d words (maximum %d)", words, MaxArticleWords))
	}

	if p := findPlaceholder(article); p != "" {
		r.Errors = append(r.Errors, fmt.Sprintf("article contains placeholder text %q", p))
	}

	lower := strings.ToLower(article)
	for _, kw := range req.SEOKeywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			r.MissingKeywords = append(r.MissingKeywords, kw)
		}
	}
	if len(r.MissingKeywords) > 0 {
		r.Warnings = append(r.Warnings, "missing SEO keywords: "+strings.Join(r.MissingKeywords, ", "))
	}

	if sentences := types.CountSentences(article); sentences > 0 {
		if avg := float64(words) / float64(sentences); avg > MaxAvgSentenceLength {
			r.Warnings = append(r.Warnings, fmt.Sprintf("average sentence length %.1f words exceeds %.0f", avg, MaxAvgSentenceLength))
		}
	}

	if s := StructureOf(article); s.Headings < 2 && words >= MinArticleWords {
		r.Warnings = append(r.Warnings, fmt.Sprintf("article has %d heading(s); add section headings", s.Headings))
	}

	r.Valid = len(r.Errors) == 0
	return r
}

// findPlaceholder returns the first placeholder marker in text, or "".
// Bracketed text followed by "(" is a Markdown link, not a placeholder.
func findPlaceholder(text string) string {
	for _, loc := range bracketed.FindAllStringIndex(text, -1) {
		if loc[1] < len(text) && text[loc[1]] == '(' {
			continue
		}
		if loc[0] > 0 && text[loc[0]-1] == '!' {
			continue
		}
		return text[loc[0]:loc[1]]
	}
	for _, re := range placeholders {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
