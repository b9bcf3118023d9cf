// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agents

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/article-engine/pkg/types"
)

// styleExcerptChars caps each exemplar excerpt quoted in a prompt.
const styleExcerptChars = 400

// Default role instructions, overridable per agent through AgentSettings.System.
const (
	ResearcherSystem = "You are a business research analyst. You produce factual, data-driven insights for professional consulting content."
	WriterSystem     = "You are a senior business writer. You write clear, well-structured articles for executives in the house style shown to you."
	ReviewerSystem   = "You are a strict content editor. You score articles honestly and report problems in the exact format requested."
	RewriterSystem   = "You are an expert content rewriter. You revise articles to resolve every reported issue while keeping the house style."
)

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"inc":  func(i int) int { return i + 1 },
	"excerpt": func(s string) string {
		s = strings.TrimSpace(s)
		if r := []rune(s); len(r) > styleExcerptChars {
			return string(r[:styleExcerptChars]) + "..."
		}
		return s
	},
}

func mustPrompt(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(promptFuncs).Parse(text))
}

const requestBlock = `Topic: {{.Request.Topic}}
{{with .Request.Category}}Category: {{.}}
{{end}}{{with .Request.Industry}}Industry: {{.}}
{{end}}Target Audience: {{.Request.TargetAudience}}
{{with .Request.SEOKeywords}}SEO Keywords: {{join . ", "}}
{{end}}`

const styleBlock = `{{with .Style}}
STYLE REFERENCE EXAMPLES:
{{range $i, $ex := .}}
Example {{inc $i}} ({{$ex.Document.Title}}):
{{excerpt $ex.Document.Text}}
{{end}}{{end}}`

var researchPrompt = mustPrompt("research", `RESEARCH TASK:
`+requestBlock+`{{with .Request.AdditionalContext}}
Additional Context:
{{.}}
{{end}}{{with .Sources}}
REFERENCE MATERIAL:
{{range $i, $s := .}}
Source {{inc $i}}: {{$s.Title}} ({{$s.URL}})
{{$s.Content}}
{{end}}{{end}}
Provide research insights that cover:
1. Current market trends and developments
2. Key challenges and opportunities
3. Industry-specific considerations
4. Future outlook
5. Practical implications for businesses

Focus on factual, data-driven insights suited to professional business consulting.
End with a section headed "KEY POINTS:" containing 3 to 7 bullet points.
`)

var writePrompt = mustPrompt("write", `WRITING TASK:
`+requestBlock+`Target Length: {{.Band}}

RESEARCH INSIGHTS:
{{.Brief.Insights}}
{{with .Brief.KeyPoints}}
KEY POINTS:
{{range .}}- {{.}}
{{end}}{{end}}`+styleBlock+`
WRITING INSTRUCTIONS:
Write a complete business article that:
1. Provides actionable insights for business leaders
2. Uses clear, engaging language suited to the audience
3. Includes practical examples and applications
4. Naturally incorporates the SEO keywords
5. Follows the tone and structure of the style examples

Use Markdown: a single # title, ## section headings, and a strong conclusion.
Return only the article, with no commentary before or after it.
`)

var reviewPrompt = mustPrompt("review", `CONTENT REVIEW TASK:
`+requestBlock+`Target Length: {{.Band}}

ARTICLE TO REVIEW:
{{.Draft.Text}}
`+styleBlock+`
Score each dimension from 0 to 10:
- Clarity: readability and logical flow for the audience
- Relevance: focus on the topic and natural use of the keywords
- Style Fit: match with the tone of the style examples
- Structure: title, sections, introduction, and conclusion

Reply in exactly this format:

OVERALL SCORE: X/10

DETAILED SCORES:
- Clarity: X/10
- Relevance: X/10
- Style Fit: X/10
- Structure: X/10

BLOCKING ISSUES:
- problems that must be fixed before publication, or "None"

SUGGESTIONS:
- specific, actionable improvements
`)

var rewritePrompt = mustPrompt("rewrite", `REWRITE TASK:
`+requestBlock+`Target Length: {{.Band}}

CURRENT DRAFT (score {{printf "%.1f" .Feedback.Score}}/10):
{{.Draft.Text}}
{{with .Feedback.Issues}}
MANDATORY FIXES (every item must be resolved):
{{range $i, $issue := .}}{{inc $i}}. {{$issue}}
{{end}}{{end}}{{with .Feedback.Suggestions}}
SUGGESTIONS:
{{range .}}- {{.}}
{{end}}{{end}}{{with .Brief.KeyPoints}}
KEY POINTS TO KEEP:
{{range .}}- {{.}}
{{end}}{{end}}`+styleBlock+`
Rewrite the complete article. Keep the Markdown structure, stay within the
target length, and return only the article with no commentary.
`)

func render(t *template.Template, data any) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}

// promptData is the template input shared by all prompts.
type promptData struct {
	Request  types.ContentRequest
	Band     types.WordBand
	Sources  []types.SourceSnippet
	Brief    types.ResearchBrief
	Style    types.StyleConditioning
	Draft    types.Draft
	Feedback types.ReviewFeedback
}
