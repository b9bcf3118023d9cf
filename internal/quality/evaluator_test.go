// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/article-engine/pkg/types"
)

func draftOf(words, round int) types.Draft {
	return types.NewDraft(strings.TrimSpace(strings.Repeat("word ", words)), round)
}

var mediumRequest = types.ContentRequest{Topic: "AI in Healthcare Diagnostics", ContentLength: types.LengthMedium}

func TestParse_FullReview(t *testing.T) {
	raw := `OVERALL SCORE: 7.5/10

DETAILED SCORES:
- Clarity: 8/10
- **Relevance**: 7/10
- Style Fit: 6.5/10
- Structure: 9/10

STRENGTHS:
- Clear introduction

BLOCKING ISSUES:
- The conclusion is missing
- the conclusion is missing.

SUGGESTIONS:
1. Add a statistic to the opening
2. Use the keyword "diagnostics" earlier

AREAS FOR IMPROVEMENT:
- Add a statistic to the opening
- Tighten paragraph three
`
	fb, err := NewEvaluator(types.DefaultWeights()).Parse(raw, draftOf(700, 2), mediumRequest)
	require.NoError(t, err)

	assert.Equal(t, 2, fb.Round)
	require.NotNil(t, fb.Overall)
	assert.Equal(t, 7.5, *fb.Overall)
	want := map[string]float64{
		types.DimClarity: 8, types.DimRelevance: 7, types.DimStyleFit: 6.5, types.DimStructure: 9, types.DimLength: 10,
	}
	if diff := cmp.Diff(want, fb.SubScores); diff != "" {
		t.Errorf("sub-scores mismatch (-want +got):\n%s", diff)
	}
	// (8+7+6.5+9)/4 with length weighted zero.
	assert.Equal(t, 7.63, fb.Score)
	assert.Equal(t, []string{"The conclusion is missing"}, fb.Issues)
	assert.Equal(t, []string{
		"Add a statistic to the opening",
		`Use the keyword "diagnostics" earlier`,
		"Tighten paragraph three",
	}, fb.Suggestions)
	assert.Equal(t, raw, fb.Raw)
	assert.False(t, Accept(fb, DefaultThreshold))
}

func TestParse_OverallOnly(t *testing.T) {
	fb, err := NewEvaluator(types.Weights{}).Parse("OVERALL SCORE: 9.2/10\n\nBLOCKING ISSUES: None\n", draftOf(650, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 9.2, fb.Score)
	assert.Empty(t, fb.Issues)
	assert.True(t, Accept(fb, 9.0))
}

func TestParse_Scales(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{name: "out of 100", raw: "Overall Score: 85/100", want: 8.5},
		{name: "bold value", raw: "**Overall Score:** **8**/10", want: 8},
		{name: "bold value out of 100", raw: "**Overall Score:** **72**/100", want: 7.2},
		{name: "underscored value", raw: "Overall score: _9_ / 10", want: 9},
		{name: "clamped high", raw: "OVERALL SCORE: 14/10", want: 10},
		{name: "no denominator", raw: "overall quality score = 6", want: 6},
		{name: "bare percentage", raw: "Overall Score: 85", want: 8.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := NewEvaluator(types.DefaultWeights()).Parse(tt.raw, draftOf(700, 0), mediumRequest)
			require.NoError(t, err)
			assert.Equal(t, tt.want, fb.Score)
		})
	}
}

func TestParse_BoldScoreOutOf100IsNotAccepted(t *testing.T) {
	fb, err := NewEvaluator(types.DefaultWeights()).Parse("**Overall Score:** **72**/100\n\nBLOCKING ISSUES: None\n", draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 7.2, fb.Score)
	assert.False(t, Accept(fb, DefaultThreshold))
}

func TestParse_BoldDimensionScores(t *testing.T) {
	raw := "- **Clarity:** **8**/10\n- **Relevance:** **90**/100\n"
	fb, err := NewEvaluator(types.Weights{Clarity: 1, Relevance: 1}).Parse(raw, draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 8.0, fb.SubScores[types.DimClarity])
	assert.Equal(t, 9.0, fb.SubScores[types.DimRelevance])
	assert.Equal(t, 8.5, fb.Score)
}

func TestParse_NoScore(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "prose only", raw: "Looks great, ship it!"},
		{name: "bare value above 100", raw: "OVERALL SCORE: 250"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEvaluator(types.DefaultWeights()).Parse(tt.raw, draftOf(700, 0), mediumRequest)
			assert.ErrorIs(t, err, ErrNoScore)
		})
	}
}

func TestParse_Sections(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantIssues  []string
		wantSuggest []string
		wantAccept  bool
	}{
		{
			name:        "none identified item",
			raw:         "OVERALL SCORE: 9.5/10\n\nBLOCKING ISSUES:\n- None identified.\n\nSUGGESTIONS:\n- Add a chart\n",
			wantSuggest: []string{"Add a chart"},
			wantAccept:  true,
		},
		{
			name:       "inline none with trailing words",
			raw:        "OVERALL SCORE: 9.5/10\nBLOCKING ISSUES: None found\n",
			wantAccept: true,
		},
		{
			name:       "no major issues",
			raw:        "OVERALL SCORE: 9.5/10\n\n**Blocking Issues:**\n1. No major issues identified\n2. N/A\n",
			wantAccept: true,
		},
		{
			name:       "prose starting with a heading word",
			raw:        "OVERALL SCORE: 9.5/10\n\nIssues with pacing are minor and do not block publication.\nSuggestions are optional.\n\nBLOCKING ISSUES:\n- No blocking issues\n",
			wantAccept: true,
		},
		{
			name:       "real issues survive",
			raw:        "OVERALL SCORE: 9.5/10\n\n## Blocking Issues\n- No data supports the 40% claim\n- None of the statistics are sourced\n",
			wantIssues: []string{"No data supports the 40% claim", "None of the statistics are sourced"},
			wantAccept: false,
		},
		{
			name:        "parenthesised heading",
			raw:         "OVERALL SCORE: 9.5/10\n\nBLOCKING ISSUES (must fix):\n- Missing conclusion\n\nSUGGESTIONS (optional):\n- Shorter intro\n",
			wantIssues:  []string{"Missing conclusion"},
			wantSuggest: []string{"Shorter intro"},
			wantAccept:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb, err := NewEvaluator(types.DefaultWeights()).Parse(tt.raw, draftOf(700, 0), mediumRequest)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIssues, fb.Issues)
			assert.Equal(t, tt.wantSuggest, fb.Suggestions)
			assert.Equal(t, tt.wantAccept, Accept(fb, DefaultThreshold))
		})
	}
}

func TestParse_WeightsAreConfiguration(t *testing.T) {
	raw := "OVERALL SCORE: 5/10\nClarity: 10/10\nRelevance: 4/10\n"

	clarityOnly, err := NewEvaluator(types.Weights{Clarity: 1}).Parse(raw, draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 10.0, clarityOnly.Score)

	weighted, err := NewEvaluator(types.Weights{Clarity: 1, Relevance: 3}).Parse(raw, draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 5.5, weighted.Score)

	// Style fit is weighted but absent: falls back to the overall score.
	styleOnly, err := NewEvaluator(types.Weights{StyleFit: 1}).Parse(raw, draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 5.0, styleOnly.Score)
}

func TestParse_LengthDimension(t *testing.T) {
	raw := "Clarity: 8/10"

	short, err := NewEvaluator(types.Weights{Clarity: 1, Length: 1}).Parse(raw, draftOf(300, 0), mediumRequest)
	require.NoError(t, err)
	assert.Equal(t, 5.0, short.SubScores[types.DimLength])
	assert.Equal(t, 6.5, short.Score)
	require.Len(t, short.Suggestions, 1)
	assert.Contains(t, short.Suggestions[0], "600-800 words (currently 300 words)")

	inBand, err := NewEvaluator(types.Weights{Clarity: 1}).Parse(raw, draftOf(700, 0), mediumRequest)
	require.NoError(t, err)
	assert.Empty(t, inBand.Suggestions)
	assert.Equal(t, 8.0, inBand.Score)
}

func TestLengthScore(t *testing.T) {
	band := types.LengthShort.Band()
	assert.Equal(t, 10.0, LengthScore(450, band))
	assert.Equal(t, 10.0, LengthScore(400, band))
	assert.Equal(t, 5.0, LengthScore(200, band))
	assert.Equal(t, 5.0, LengthScore(1000, band))
	assert.Equal(t, 10.0, LengthScore(5000, types.LengthLong.Band()))
	assert.Equal(t, 0.0, LengthScore(0, band))
}

func TestAccept(t *testing.T) {
	tests := []struct {
		name      string
		score     float64
		issues    []string
		threshold float64
		want      bool
	}{
		{name: "at threshold", score: 9.0, threshold: 9.0, want: true},
		{name: "above threshold", score: 9.5, threshold: 9.0, want: true},
		{name: "below threshold", score: 8.99, threshold: 9.0, want: false},
		{name: "blocking issue vetoes", score: 10, issues: []string{"factual error"}, threshold: 9.0, want: false},
		{name: "lenient threshold", score: 6, threshold: 5, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := types.ReviewFeedback{Score: tt.score, Issues: tt.issues}
			assert.Equal(t, tt.want, Accept(fb, tt.threshold))
		})
	}
}
