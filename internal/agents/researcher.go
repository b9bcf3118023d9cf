// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/generation"
	"github.com/pdiddy/article-engine/pkg/types"
)

var (
	keyPointsHeader = regexp.MustCompile(`(?i)^[\s#*_]*key\s+points[\s*_]*:?[\s*_]*$`)
	bulletItem      = regexp.MustCompile(`^\s*(?:[-*•+]|\d+[.)])\s+(.*\S)\s*$`)
)

// ResearchInput is the input to the Researcher.
type ResearchInput struct {
	Request types.ContentRequest
	Sources []types.SourceSnippet
}

// Researcher turns a request into a research brief.
type Researcher struct {
	agent
}

// NewResearcher returns a Researcher calling llm.
func NewResearcher(llm generation.Completer, logger *zap.Logger) *Researcher {
	return &Researcher{agent: newAgent(llm, logger)}
}

// Research asks for insights on the request topic. A completion with a
// KEY POINTS list yields a structured brief; any other text is kept as an
// unstructured brief; a completion with no usable text yields a brief
// synthesized from the request.
func (r *Researcher) Research(ctx context.Context, in ResearchInput, cfg Config) (types.ResearchBrief, error) {
	prompt, err := render(researchPrompt, promptData{Request: in.Request, Sources: in.Sources})
	if err != nil {
		return types.ResearchBrief{}, err
	}

	raw, err := r.llm.Complete(ctx, cfg.spec(StageResearcher, ResearcherSystem, prompt, 0))
	if err != nil {
		return types.ResearchBrief{}, err
	}

	brief := ParseBrief(raw)
	if brief.Insights == "" {
		r.logger.Warn("research completion unusable, synthesizing brief", zap.String("topic", in.Request.Topic))
		brief = SynthesizeBrief(in.Request)
	}
	brief.SourceContext = in.Sources
	return brief, nil
}

// ParseBrief splits a research completion into insights and key points.
func ParseBrief(raw string) types.ResearchBrief {
	text := CleanArticle(raw)
	lines := strings.Split(text, "\n")

	header := -1
	for i, l := range lines {
		if keyPointsHeader.MatchString(l) {
			header = i
			break
		}
	}
	if header < 0 {
		return types.ResearchBrief{Insights: text}
	}

	var points []string
scan:
	for _, l := range lines[header+1:] {
		m := bulletItem.FindStringSubmatch(l)
		switch {
		case m != nil:
			points = append(points, strings.TrimSpace(strings.ReplaceAll(m[1], "**", "")))
		case strings.TrimSpace(l) == "" && len(points) == 0:
		default:
			break scan
		}
	}
	if len(points) == 0 {
		return types.ResearchBrief{Insights: text}
	}

	insights := strings.TrimSpace(strings.Join(lines[:header], "\n"))
	if insights == "" {
		insights = strings.Join(points, "\n")
	}
	return types.ResearchBrief{Insights: insights, KeyPoints: points, Structured: true}
}

// SynthesizeBrief builds a minimal brief from the request alone.
func SynthesizeBrief(req types.ContentRequest) types.ResearchBrief {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", req.Topic)
	if req.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", req.Industry)
	}
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	if len(req.SEOKeywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(req.SEOKeywords, ", "))
	}
	if req.AdditionalContext != "" {
		fmt.Fprintf(&b, "Context: %s\n", req.AdditionalContext)
	}
	fmt.Fprintf(&b, "Cover current trends, key challenges and opportunities, and practical implications for %s.", req.TargetAudience)
	return types.ResearchBrief{Insights: b.String()}
}
