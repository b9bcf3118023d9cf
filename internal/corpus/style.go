// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"math"
	"regexp"
	"strings"

	"github.com/pdiddy/article-engine/pkg/types"
)

var (
	formalIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(furthermore|moreover|consequently|therefore|thus)\b`),
		regexp.MustCompile(`(?i)\b(organizations?|enterprises?|corporations?)\b`),
		regexp.MustCompile(`(?i)\b(implementation|optimization|transformation)\b`),
		regexp.MustCompile(`(?i)\b(strategic|comprehensive|substantial)\b`),
	}
	informalIndicators = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(gonna|wanna|gotta)\b`),
		regexp.MustCompile(`!{2,}`),
		regexp.MustCompile(`(?i)\b(awesome|cool|amazing)\b`),
	}

	bulletLine = regexp.MustCompile(`(?m)^\s*[-•*]\s+`)
	digitRun   = regexp.MustCompile(`\d+`)
)

var businessTerms = []string{
	"digital transformation", "innovation", "strategy", "technology",
	"business", "market", "customer", "solution", "opportunity",
	"growth", "efficiency", "optimization", "automation",
}

// Style computes the surface style signals of an exemplar text.
func Style(text string) types.StyleSignals {
	words := types.CountWords(text)
	sentences := types.CountSentences(text)

	lower := strings.ToLower(text)
	hits := 0
	for _, term := range businessTerms {
		if strings.Contains(lower, term) {
			hits++
		}
	}

	return types.StyleSignals{
		WordCount:           words,
		SentenceCount:       sentences,
		AvgSentenceLength:   round1(float64(words) / float64(max(sentences, 1))),
		FormalityScore:      Formality(text),
		HasBullets:          bulletLine.MatchString(text),
		HasQuestions:        strings.Contains(text, "?"),
		HasNumbers:          digitRun.MatchString(text),
		BusinessTermDensity: math.Round(float64(hits)/float64(max(words, 1))*100*100) / 100,
	}
}

// Formality scores text from 0 (casual) to 10 (formal). It starts at 5,
// adds 0.5 per formal marker and subtracts 0.8 per informal marker.
func Formality(text string) float64 {
	formal, informal := 0, 0
	for _, re := range formalIndicators {
		formal += len(re.FindAllStringIndex(text, -1))
	}
	for _, re := range informalIndicators {
		informal += len(re.FindAllStringIndex(text, -1))
	}
	score := 5.0 + float64(formal)*0.5 - float64(informal)*0.8
	return math.Max(0, math.Min(10, score))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
