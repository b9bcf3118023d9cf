// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/article-engine/pkg/types"
)

var started = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

const articleText = "# Radiology at Scale\n\nHospitals use **machine learning** to triage scans.\n\n## Outlook\n\n- Faster reads\n- Fewer misses\n"

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func accepted(id, topic, category string, score float64, at time.Time) types.PipelineResult {
	final := types.NewDraft(articleText, 1)
	return types.PipelineResult{
		ID: id,
		Request: types.ContentRequest{
			Topic:          topic,
			Category:       category,
			Industry:       "Healthcare",
			TargetAudience: types.DefaultTargetAudience,
			SEOKeywords:    []string{"radiology", "machine learning"},
			ContentLength:  types.LengthMedium,
		},
		State:         types.StateAccepted,
		Final:         &final,
		FinalFeedback: &types.ReviewFeedback{Round: 1, Score: score},
		Brief:         &types.ResearchBrief{Insights: strings.Repeat("insight ", 100)},
		StartedAt:     at,
		Elapsed:       1500*time.Millisecond + 250*time.Microsecond,
		RoundsUsed:    2,
		Regressions:   0,
	}
}

func failed(id string, at time.Time) types.PipelineResult {
	return types.PipelineResult{
		ID:        id,
		Request:   types.ContentRequest{Topic: "Edge AI", Category: "Innovation"},
		State:     types.StateFailed,
		Failure:   &types.Failure{Stage: types.StageDraft, Reason: types.ReasonGenerationUnavailable, Message: "backend down"},
		StartedAt: at,
	}
}

func TestRecordAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	written, err := s.Record(ctx, accepted("run-1", "AI in Radiology", "Technology", 9.25, started))
	require.NoError(t, err)
	assert.Equal(t, "Radiology at Scale", written.Title)
	assert.Equal(t, 1500*time.Millisecond, written.Elapsed)
	assert.Equal(t, ResearchExcerptChars+len("..."), len(written.ResearchExcerpt))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	if diff := cmp.Diff(written, got); diff != "" {
		t.Errorf("stored entry mismatch (-written +got):\n%s", diff)
	}
}

func TestRecord_Failed(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, failed("run-f", started))
	require.NoError(t, err)

	got, err := s.Get(ctx, "run-f")
	require.NoError(t, err)
	assert.Equal(t, types.StateFailed, got.State)
	assert.Equal(t, "draft: generation_unavailable: backend down", got.Failure)
	assert.Empty(t, got.Content)
	assert.Zero(t, got.Score)
	assert.Nil(t, got.Keywords)
}

func TestRecord_Errors(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	_, err := s.Record(ctx, types.PipelineResult{Request: types.ContentRequest{Topic: "x"}})
	assert.Error(t, err, "missing ID")

	_, err = s.Record(ctx, failed("dup", started))
	require.NoError(t, err)
	_, err = s.Record(ctx, failed("dup", started))
	assert.Error(t, err, "duplicate ID")
}

func TestGet_NotFound(t *testing.T) {
	s := openStore(t)
	_, err := s.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestList(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	results := []types.PipelineResult{
		accepted("r1", "Cloud Banking", "Finance", 8.0, started),
		failed("r2", started.Add(time.Minute)),
		accepted("r3", "Cloud Retail", "Retail", 9.5, started.Add(2*time.Minute)),
		accepted("r4", "AI Radiology", "Technology", 9.0, started.Add(3*time.Minute)),
	}
	for _, r := range results {
		_, err := s.Record(ctx, r)
		require.NoError(t, err)
	}

	ids := func(entries []Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.ID)
		}
		return out
	}

	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"r4", "r3", "r2", "r1"}},
		{"limit", ListOptions{Limit: 2}, []string{"r4", "r3"}},
		{"state", ListOptions{State: types.StateFailed}, []string{"r2"}},
		{"category", ListOptions{Category: "Retail"}, []string{"r3"}},
		{"topic substring ignores case", ListOptions{Topic: "cloud"}, []string{"r3", "r1"}},
		{"no match", ListOptions{Topic: "quantum"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.List(ctx, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(entries))
		})
	}
}

func TestStats(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.True(t, empty.Latest.IsZero())

	for _, r := range []types.PipelineResult{
		accepted("a", "t1", "Finance", 8.0, started),
		accepted("b", "t2", "Finance", 9.5, started.Add(time.Second)),
		accepted("c", "t3", "Retail", 9.0, started.Add(2*time.Second)),
		failed("d", started.Add(3*time.Second)),
	} {
		_, err := s.Record(ctx, r)
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 3, st.Succeeded)
	assert.Equal(t, 1, st.Failed)
	assert.InDelta(t, 8.83, st.AverageScore, 1e-9)
	assert.True(t, st.Latest.Equal(started.Add(3*time.Second)), "latest %v", st.Latest)
	assert.Equal(t, []CategoryCount{
		{Category: "Finance", Count: 2},
		{Category: "Innovation", Count: 1},
		{Category: "Retail", Count: 1},
	}, st.TopCategories)
}

func TestExport(t *testing.T) {
	entries := []Entry{
		EntryFrom(accepted("e1", "AI in Radiology", "Technology", 9.2, started)),
		EntryFrom(failed("e2", started)),
	}

	var jsonOut bytes.Buffer
	require.NoError(t, Export(&jsonOut, "json", entries))
	var decoded []Entry
	require.NoError(t, json.Unmarshal(jsonOut.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, "e1", decoded[0].ID)
	assert.Equal(t, []string{"radiology", "machine learning"}, decoded[0].Keywords)

	var yamlOut bytes.Buffer
	require.NoError(t, Export(&yamlOut, "YAML", entries))
	var raw []map[string]any
	require.NoError(t, yaml.Unmarshal(yamlOut.Bytes(), &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "FAILED", raw[1]["state"])

	var empty bytes.Buffer
	require.NoError(t, ExportJSON(&empty, nil))
	assert.Equal(t, "[]\n", empty.String())

	assert.Error(t, Export(&bytes.Buffer{}, "xml", entries))
}

func TestFormatForPath(t *testing.T) {
	tests := map[string]string{
		"out/article.html": FormatHTML,
		"article.HTM":      FormatHTML,
		"article.md":       FormatMarkdown,
		"article":          FormatMarkdown,
		"runs.json":        FormatJSON,
		"runs.yml":         FormatYAML,
	}
	for path, want := range tests {
		assert.Equal(t, want, FormatForPath(path), path)
	}
}

func TestWriteArticle(t *testing.T) {
	e := EntryFrom(accepted("w1", "AI <Radiology>", "Technology", 9.2, started))
	e.Title = ""

	var md bytes.Buffer
	require.NoError(t, WriteArticle(&md, FormatMarkdown, e))
	assert.Equal(t, articleText, md.String())

	var page bytes.Buffer
	require.NoError(t, WriteArticle(&page, FormatHTML, e))
	out := page.String()
	assert.Contains(t, out, "<title>AI &lt;Radiology&gt;</title>")
	assert.Contains(t, out, "<h1>Radiology at Scale</h1>")
	assert.Contains(t, out, "<strong>machine learning</strong>")
	assert.Contains(t, out, "<li>Faster reads</li>")

	assert.Error(t, WriteArticle(&bytes.Buffer{}, "pdf", e))
	assert.Error(t, WriteArticle(&bytes.Buffer{}, FormatMarkdown, EntryFrom(failed("f", started))))
}

func TestWriteArticleFile(t *testing.T) {
	e := EntryFrom(accepted("w2", "AI in Radiology", "Technology", 9.2, started))
	path := filepath.Join(t.TempDir(), "out", "article.html")

	require.NoError(t, WriteArticleFile(path, e))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	data := string(raw)
	assert.True(t, strings.HasPrefix(data, "<!DOCTYPE html>"))
	assert.Contains(t, data, "<title>Radiology at Scale</title>")
}
