// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity ranks exemplar documents against a query by TF-IDF
// cosine similarity.
//
// The index is built over a vocabulary derived from the corpus: lowercase
// unigrams and bigrams with English stop words removed, capped at the most
// frequent MaxFeatures terms. Term weights use raw counts with smoothed
// inverse document frequency, ln((1+n)/(1+df))+1, and every vector is
// L2-normalised so cosine similarity is a dot product.
//
// Build publishes a fresh immutable snapshot with an atomic pointer swap.
// Queries load one snapshot and use it throughout, so a query that overlaps
// a rebuild sees the corpus entirely before or entirely after it.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
)

// ErrEmptyCorpus is returned by Query when no documents are indexed.
var ErrEmptyCorpus = errors.New("similarity: corpus is empty")

// DefaultMaxFeatures is the vocabulary cap used when none is given.
const DefaultMaxFeatures = 1000

// Document is one corpus entry to index.
type Document struct {
	ID   string
	Text string
}

// Result is one ranked match. Position is the document's insertion index.
type Result struct {
	ID       string
	Position int
	Score    float64
}

// vector is a sparse L2-normalised term-weight vector. cols is ascending so
// that equal documents produce bit-identical scores.
type vector struct {
	cols    []int
	weights []float64
}

type snapshot struct {
	terms   []string
	columns map[string]int
	idf     []float64
	ids     []string
	vectors []vector
}

// Index is a rebuildable TF-IDF index. The zero value is not usable; call New.
type Index struct {
	maxFeatures int
	current     atomic.Pointer[snapshot]
}

// New returns an empty index capped at maxFeatures vocabulary terms.
// A non-positive cap selects DefaultMaxFeatures.
func New(maxFeatures int) *Index {
	if maxFeatures <= 0 {
		maxFeatures = DefaultMaxFeatures
	}
	ix := &Index{maxFeatures: maxFeatures}
	ix.current.Store(&snapshot{})
	return ix
}

// Len returns the number of documents in the current snapshot.
func (ix *Index) Len() int {
	return len(ix.current.Load().ids)
}

// VocabularySize returns the number of terms in the current snapshot.
func (ix *Index) VocabularySize() int {
	return len(ix.current.Load().terms)
}

// Build indexes docs in order and atomically replaces the current snapshot.
// On error, including context cancellation, the previous snapshot stays live.
func (ix *Index) Build(ctx context.Context, docs []Document) error {
	counts := make([]map[string]int, len(docs))
	totals := make(map[string]int)
	df := make(map[string]int)

	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		tf := make(map[string]int)
		for _, term := range Terms(d.Text) {
			tf[term]++
		}
		for term, c := range tf {
			totals[term] += c
			df[term]++
		}
		counts[i] = tf
	}

	terms := topTerms(totals, ix.maxFeatures)
	snap := &snapshot{
		terms:   terms,
		columns: make(map[string]int, len(terms)),
		idf:     make([]float64, len(terms)),
		ids:     make([]string, len(docs)),
		vectors: make([]vector, len(docs)),
	}
	n := float64(len(docs))
	for col, term := range terms {
		snap.columns[term] = col
		snap.idf[col] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}

	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("building index: %w", err)
		}
		snap.ids[i] = d.ID
		snap.vectors[i] = snap.weigh(counts[i])
	}

	ix.current.Store(snap)
	return nil
}

// Query returns up to k documents ranked by descending cosine similarity to
// q, ties broken by insertion order. It returns ErrEmptyCorpus when the
// index holds no documents and fewer than k results when the corpus is
// smaller than k.
func (ix *Index) Query(q string, k int) ([]Result, error) {
	snap := ix.current.Load()
	if len(snap.ids) == 0 {
		return nil, ErrEmptyCorpus
	}
	if k <= 0 {
		return nil, nil
	}

	tf := make(map[string]int)
	for _, term := range Terms(q) {
		tf[term]++
	}
	qv := snap.weigh(tf)

	results := make([]Result, len(snap.ids))
	for i, dv := range snap.vectors {
		results[i] = Result{ID: snap.ids[i], Position: i, Score: dot(qv, dv)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Vectors returns the term-weight map of every indexed document, keyed by
// document ID.
func (ix *Index) Vectors() map[string]map[string]float64 {
	snap := ix.current.Load()
	out := make(map[string]map[string]float64, len(snap.ids))
	for i, id := range snap.ids {
		v := snap.vectors[i]
		m := make(map[string]float64, len(v.cols))
		for j, col := range v.cols {
			m[snap.terms[col]] = v.weights[j]
		}
		out[id] = m
	}
	return out
}

// weigh converts raw term counts into an L2-normalised TF-IDF vector over
// the snapshot vocabulary. Out-of-vocabulary terms are ignored.
func (s *snapshot) weigh(tf map[string]int) vector {
	var v vector
	for term := range tf {
		if col, ok := s.columns[term]; ok {
			v.cols = append(v.cols, col)
		}
	}
	sort.Ints(v.cols)

	v.weights = make([]float64, len(v.cols))
	var norm float64
	for j, col := range v.cols {
		w := float64(tf[s.terms[col]]) * s.idf[col]
		v.weights[j] = w
		norm += w * w
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for j := range v.weights {
		v.weights[j] /= norm
	}
	return v
}

// topTerms returns the max most frequent terms, ordered by descending
// corpus frequency then lexically.
func topTerms(totals map[string]int, max int) []string {
	terms := make([]string, 0, len(totals))
	for t := range totals {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if totals[terms[i]] != totals[terms[j]] {
			return totals[terms[i]] > totals[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > max {
		terms = terms[:max]
	}
	return terms
}

func dot(a, b vector) float64 {
	var sum float64
	for i, j := 0, 0; i < len(a.cols) && j < len(b.cols); {
		switch {
		case a.cols[i] < b.cols[j]:
			i++
		case a.cols[i] > b.cols[j]:
			j++
		default:
			sum += a.weights[i] * b.weights[j]
			i++
			j++
		}
	}
	return sum
}
