// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality turns free-text reviewer output into canonical
// ReviewFeedback and decides acceptance.
//
// The reviewer is asked for an OVERALL SCORE line, per-dimension scores, a
// BLOCKING ISSUES list, and a SUGGESTIONS list. Parsing is tolerant of
// Markdown emphasis, numbered or bulleted lists, "/10" or "/100" scales, and
// the alternative headings AREAS FOR IMPROVEMENT and RECOMMENDED CHANGES.
// A bare score above 10 is read on the 100-point scale; one above 100 is
// ignored. Section headings must stand alone or end at a colon, and items
// such as "None identified" or "No major issues" are treated as empty.
package quality

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrNoScore is returned by Parse when the text carries neither an overall
// score nor any dimension score.
var ErrNoScore = errors.New("review contains no recognisable score")

// DefaultThreshold is the default acceptance threshold.
const DefaultThreshold = 9.0

// Evaluator parses reviews using fixed dimension weights.
type Evaluator struct {
	weights types.Weights
}

// NewEvaluator returns an evaluator using w. Zero weights select the defaults.
func NewEvaluator(w types.Weights) *Evaluator {
	if w.IsZero() {
		w = types.DefaultWeights()
	}
	return &Evaluator{weights: w}
}

var (
	scoreNumber = `(\d+(?:\.\d+)?)[*_]*[ \t]*(?:/[ \t]*[*_]*(\d+))?`

	overallScore = regexp.MustCompile(`(?i)overall(?:\s+quality)?\s+score[ \t*_:\-–=]*` + scoreNumber)

	dimensionAliases = []struct {
		dim     string
		pattern *regexp.Regexp
	}{
		{types.DimClarity, dimensionLine(`clarity|readability`)},
		{types.DimRelevance, dimensionLine(`relevance|topic relevance|keyword (?:usage|integration)|seo`)},
		{types.DimStyleFit, dimensionLine(`style[ _-]?fit|style adherence|style|brand voice|tone`)},
		{types.DimStructure, dimensionLine(`structure|structural completeness|organi[sz]ation`)},
	}

	listItem = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.*\S)\s*$`)

	sectionHeader = regexp.MustCompile(`(?i)^[\s#*_]*(blocking issues|critical issues|issues|suggestions|areas for improvement|recommended changes|improvements|strengths|detailed scores|scores|overall score|summary|verdict|feedback)[\s*_]*(?:\([^)]*\))?[\s*_]*(?::[\s*_]*(.*))?$`)

	noneItem = regexp.MustCompile(`^(?:none|nothing|n/?a)\b|^no\s+(?:\w+\s+){0,2}(?:issues?|problems?|concerns?|changes?|blockers?)\b`)
)

func dimensionLine(names string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[\s\-*•#\d.)]*(?:\*\*)?(?:` + names + `)(?:\s+score)?[ \t*_]*[:\-–=][ \t*_]*` + scoreNumber)
}

// section kinds
const (
	secNone = iota
	secIssues
	secSuggestions
	secOther
)

// Parse maps a reviewer completion onto ReviewFeedback for draft. Scores are
// clamped to [0,10]; issues and suggestions are deduplicated ignoring case.
// A computed length sub-score is always added, with a suggestion when the
// draft falls outside the requested band. The score is the weighted mean of
// the available sub-scores, or the overall score when no weighted dimension
// is present.
func (e *Evaluator) Parse(raw string, draft types.Draft, req types.ContentRequest) (types.ReviewFeedback, error) {
	fb := types.ReviewFeedback{
		Round:     draft.Round,
		SubScores: make(map[string]float64),
		Raw:       raw,
	}

	if m := overallScore.FindStringSubmatch(raw); m != nil {
		if v, ok := scaled(m[1], m[2]); ok {
			fb.Overall = &v
		}
	}
	for _, d := range dimensionAliases {
		if m := d.pattern.FindStringSubmatch(raw); m != nil {
			if v, ok := scaled(m[1], m[2]); ok {
				fb.SubScores[d.dim] = v
			}
		}
	}
	if fb.Overall == nil && len(fb.SubScores) == 0 {
		return types.ReviewFeedback{}, ErrNoScore
	}

	fb.Issues, fb.Suggestions = sections(raw)

	band := req.ContentLength.Band()
	words := draft.WordCount
	if words == 0 {
		words = types.CountWords(draft.Text)
	}
	fb.SubScores[types.DimLength] = LengthScore(words, band)
	if !band.Contains(words) {
		fb.Suggestions = dedupe(append(fb.Suggestions,
			fmt.Sprintf("Adjust the length to %s (currently %d words)", band, words)))
	}

	fb.Score = e.score(fb)
	return fb, nil
}

// score blends the weighted dimensions. The computed length score only
// contributes alongside at least one weighted reviewer dimension.
func (e *Evaluator) score(fb types.ReviewFeedback) float64 {
	if !hasReviewerDimension(fb, e.weights) {
		if fb.Overall != nil {
			return *fb.Overall
		}
		return 0
	}
	var sum, total float64
	for _, dim := range types.Dimensions {
		v, ok := fb.SubScores[dim]
		if w := e.weights.Of(dim); ok && w > 0 {
			sum += v * w
			total += w
		}
	}
	return round2(clamp(sum / total))
}

func hasReviewerDimension(fb types.ReviewFeedback, w types.Weights) bool {
	for _, dim := range []string{types.DimClarity, types.DimRelevance, types.DimStyleFit, types.DimStructure} {
		if _, ok := fb.SubScores[dim]; ok && w.Of(dim) > 0 {
			return true
		}
	}
	return false
}

// Accept is the acceptance predicate: the score reaches threshold and no
// blocking issue remains.
func Accept(fb types.ReviewFeedback, threshold float64) bool {
	return fb.Score >= threshold && len(fb.Issues) == 0
}

// LengthScore rates a word count against a band: 10 inside the band, falling
// proportionally with the distance outside it.
func LengthScore(words int, band types.WordBand) float64 {
	switch {
	case band.Contains(words):
		return 10
	case words < band.Min:
		return round2(10 * float64(words) / float64(band.Min))
	default:
		return round2(10 * float64(band.Max) / float64(words))
	}
}

// sections collects list items under the issue and suggestion headings.
func sections(raw string) (issues, suggestions []string) {
	current := secNone
	add := func(item string) {
		item = strings.TrimSpace(strings.Trim(strings.TrimSpace(item), "*_ "))
		if item == "" || isNone(item) {
			return
		}
		switch current {
		case secIssues:
			issues = append(issues, item)
		case secSuggestions:
			suggestions = append(suggestions, item)
		}
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := sectionHeader.FindStringSubmatch(line); m != nil && !listItem.MatchString(line) {
			current = classify(m[1])
			add(m[2])
			continue
		}
		if m := listItem.FindStringSubmatch(line); m != nil {
			add(m[1])
		}
	}
	return dedupe(issues), dedupe(suggestions)
}

func classify(header string) int {
	switch strings.ToLower(header) {
	case "blocking issues", "critical issues", "issues":
		return secIssues
	case "suggestions", "areas for improvement", "recommended changes", "improvements":
		return secSuggestions
	}
	return secOther
}

// isNone reports whether a list item says there is nothing to list.
func isNone(s string) bool {
	s = strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".!"))
	switch {
	case s == "" || s == "-":
		return true
	case strings.HasPrefix(s, "none of "):
		return false
	}
	return noneItem.MatchString(s)
}

func dedupe(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		key := strings.ToLower(strings.TrimRight(strings.TrimSpace(it), ".;"))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// scaled parses a score with an optional denominator onto the 0-10 scale.
// Without a denominator, values in (10,100] are percentages and larger
// values are rejected.
func scaled(num, den string) (float64, bool) {
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	switch {
	case den != "":
		d, err := strconv.ParseFloat(den, 64)
		if err != nil || d <= 0 {
			return 0, false
		}
		v = v * 10 / d
	case v > 100:
		return 0, false
	case v > 10:
		v /= 10
	}
	return round2(clamp(v)), true
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(10, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
