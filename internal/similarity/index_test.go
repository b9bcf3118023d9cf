// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package similarity

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIndex(t *testing.T, docs ...Document) *Index {
	t.Helper()
	ix := New(0)
	require.NoError(t, ix.Build(context.Background(), docs))
	return ix
}

func TestTerms(t *testing.T) {
	got := Terms("The Future of AI-driven Healthcare: AI diagnostics!")
	want := []string{
		"future", "ai", "driven", "healthcare", "ai", "diagnostics",
		"future ai", "ai driven", "driven healthcare", "healthcare ai", "ai diagnostics",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Terms mismatch (-want +got):\n%s", diff)
	}
}

func TestTerms_DropsShortTokensAndStopWords(t *testing.T) {
	assert.Empty(t, Terms("a I the of and to x"))
}

func TestQuery_EmptyCorpus(t *testing.T) {
	ix := New(10)
	_, err := ix.Query("anything", 3)
	assert.ErrorIs(t, err, ErrEmptyCorpus)

	require.NoError(t, ix.Build(context.Background(), nil))
	_, err = ix.Query("anything", 3)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestQuery_RanksByCosine(t *testing.T) {
	ix := buildIndex(t,
		Document{ID: "retail", Text: "Retail stores adopt inventory analytics and customer loyalty programs."},
		Document{ID: "health", Text: "Hospitals use machine learning diagnostics to read medical imaging scans."},
		Document{ID: "mixed", Text: "Machine learning improves retail inventory forecasting."},
	)

	top, err := ix.Query("machine learning diagnostics for medical imaging", 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "health", top[0].ID)

	all, err := ix.Query("machine learning diagnostics for medical imaging", 3)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Score, all[i].Score)
	}
	assert.Equal(t, "mixed", all[1].ID)
	assert.Equal(t, "retail", all[2].ID)
}

func TestQuery_TiesKeepInsertionOrder(t *testing.T) {
	ix := buildIndex(t,
		Document{ID: "first", Text: "cloud migration strategy"},
		Document{ID: "second", Text: "cloud migration strategy"},
		Document{ID: "third", Text: "cloud migration strategy"},
	)

	got, err := ix.Query("cloud migration", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids(got))

	// No vocabulary overlap: every score is zero, order is insertion order.
	got, err = ix.Query("quantum", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids(got))
	assert.Zero(t, got[0].Score)
}

func TestQuery_FewerThanK(t *testing.T) {
	ix := buildIndex(t, Document{ID: "only", Text: "supply chain resilience"})

	got, err := ix.Query("supply chain", 5)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = ix.Query("supply chain", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBuild_WeightsAndNormalisation(t *testing.T) {
	ix := buildIndex(t,
		Document{ID: "a", Text: "alpha beta"},
		Document{ID: "b", Text: "alpha gamma"},
		Document{ID: "c", Text: "alpha delta"},
	)

	vectors := ix.Vectors()
	require.Len(t, vectors, 3)

	// alpha appears in all three documents: idf = ln(4/4)+1 = 1.
	// beta appears in one: idf = ln(4/2)+1.
	snap := ix.current.Load()
	assert.InDelta(t, 1.0, snap.idf[snap.columns["alpha"]], 1e-9)
	assert.InDelta(t, math.Log(2)+1, snap.idf[snap.columns["beta"]], 1e-9)

	for id, v := range vectors {
		var norm float64
		for _, w := range v {
			norm += w * w
		}
		assert.InDelta(t, 1.0, norm, 1e-9, "vector %s not unit length", id)
	}
	assert.Contains(t, vectors["a"], "alpha beta")
}

func TestBuild_MaxFeatures(t *testing.T) {
	ix := New(3)
	require.NoError(t, ix.Build(context.Background(), []Document{
		{ID: "a", Text: "data data data platform platform cloud edge"},
	}))
	assert.Equal(t, 3, ix.VocabularySize())
	snap := ix.current.Load()
	// "data data" and "platform" tie at two occurrences and sort lexically.
	assert.Equal(t, []string{"data", "data data", "platform"}, snap.terms)
}

func TestBuild_CancelledKeepsPreviousSnapshot(t *testing.T) {
	ix := buildIndex(t, Document{ID: "old", Text: "legacy corpus"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ix.Build(ctx, []Document{{ID: "new", Text: "replacement corpus"}})
	require.ErrorIs(t, err, context.Canceled)

	got, err := ix.Query("corpus", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, ids(got))
}

func TestQuery_SnapshotIsolation(t *testing.T) {
	corpus := func(prefix string) []Document {
		docs := make([]Document, 20)
		for i := range docs {
			docs[i] = Document{
				ID:   fmt.Sprintf("%s-%02d", prefix, i),
				Text: fmt.Sprintf("digital transformation strategy %s variant %d", prefix, i),
			}
		}
		return docs
	}
	a, b := corpus("aa"), corpus("bb")
	ix := buildIndex(t, a...)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			next := a
			if i%2 == 0 {
				next = b
			}
			assert.NoError(t, ix.Build(context.Background(), next))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				got, err := ix.Query("digital transformation strategy", 20)
				if !assert.NoError(t, err) {
					return
				}
				prefix := got[0].ID[:2]
				for _, res := range got {
					if !strings.HasPrefix(res.ID, prefix) {
						t.Errorf("query mixed snapshots: %v", ids(got))
						return
					}
				}
			}
		}()
	}
	wg.Wait()
}

func ids(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
