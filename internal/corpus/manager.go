// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package corpus owns the exemplar documents used for style conditioning.
// The Manager is the corpus's only writer: ingestion validates documents,
// computes style signals, upserts by ID, and rebuilds the similarity index.
// Readers query a published snapshot and never take the writer lock.
package corpus

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/article-engine/internal/similarity"
	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrEmptyCorpus is returned by TopK when the corpus holds no documents.
var ErrEmptyCorpus = similarity.ErrEmptyCorpus

// state is one immutable corpus version: documents in insertion order and
// the index built over exactly those documents.
type state struct {
	docs  []types.ExemplarDocument
	index *similarity.Index
}

// Manager is the exemplar corpus. Create it with NewManager.
type Manager struct {
	mu          sync.Mutex
	current     atomic.Pointer[state]
	store       *Store
	maxFeatures int
	logger      *zap.Logger
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithStore persists ingested documents to s.
func WithStore(s *Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithLogger sets the manager's logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithMaxFeatures caps the similarity vocabulary.
func WithMaxFeatures(n int) Option {
	return func(m *Manager) { m.maxFeatures = n }
}

// NewManager returns an empty corpus.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		maxFeatures: similarity.DefaultMaxFeatures,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.current.Store(&state{index: similarity.New(m.maxFeatures)})
	return m
}

// Rejection names a document that failed validation.
type Rejection struct {
	ID     string
	Reason string
}

// IngestSummary holds counts from one Ingest call.
type IngestSummary struct {
	Added    int
	Replaced int
	Rejected []Rejection
}

// Total returns the number of documents processed.
func (s IngestSummary) Total() int {
	return s.Added + s.Replaced + len(s.Rejected)
}

// Load replaces the in-memory corpus with the store's contents. It is a
// no-op without a store.
func (m *Manager) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, err := m.store.All(ctx)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	next, err := m.build(ctx, docs)
	if err != nil {
		return err
	}
	m.current.Store(next)
	return nil
}

// Ingest validates docs and upserts the valid ones by ID, then rebuilds the
// index. The store is written only after the index builds, so a failed
// rebuild leaves both unchanged. Invalid documents are reported in the
// summary and skipped. A
// document with an empty ID receives an ID derived from its text.
// Re-ingesting an ID replaces the document in place.
func (m *Manager) Ingest(ctx context.Context, docs []types.ExemplarDocument) (IngestSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var summary IngestSummary
	cur := m.current.Load()
	next := make([]types.ExemplarDocument, len(cur.docs))
	copy(next, cur.docs)
	pos := make(map[string]int, len(next))
	for i, d := range next {
		pos[d.ID] = i
	}

	var changed []types.ExemplarDocument
	now := m.now()
	for _, d := range docs {
		d.Text = strings.TrimSpace(d.Text)
		if d.Text == "" {
			summary.Rejected = append(summary.Rejected, Rejection{ID: d.ID, Reason: "empty text"})
			m.logger.Warn("rejected exemplar", zap.String("id", d.ID), zap.String("reason", "empty text"))
			continue
		}
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			d.ID = ContentID(d.Text)
		}
		if d.Title == "" {
			d.Title = types.TitleOf(d.Text)
		}
		d.Style = Style(d.Text)
		d.IngestedAt = now
		d.Vector = nil

		if i, ok := pos[d.ID]; ok {
			next[i] = d
			summary.Replaced++
		} else {
			pos[d.ID] = len(next)
			next = append(next, d)
			summary.Added++
		}
		changed = append(changed, d)
	}

	if len(changed) == 0 {
		return summary, nil
	}

	built, err := m.build(ctx, next)
	if err != nil {
		return summary, err
	}
	if m.store != nil {
		if err := m.store.Save(ctx, changed); err != nil {
			return summary, fmt.Errorf("persisting exemplars: %w", err)
		}
	}
	m.current.Store(built)

	m.logger.Info("corpus ingested",
		zap.Int("added", summary.Added),
		zap.Int("replaced", summary.Replaced),
		zap.Int("rejected", len(summary.Rejected)),
		zap.Int("size", len(next)))
	return summary, nil
}

// Remove deletes the given IDs and rebuilds the index. It returns the number
// of documents removed.
func (m *Manager) Remove(ctx context.Context, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	cur := m.current.Load()
	next := make([]types.ExemplarDocument, 0, len(cur.docs))
	for _, d := range cur.docs {
		if !drop[d.ID] {
			next = append(next, d)
		}
	}
	removed := len(cur.docs) - len(next)
	if removed == 0 {
		return 0, nil
	}

	built, err := m.build(ctx, next)
	if err != nil {
		return 0, err
	}
	if m.store != nil {
		if _, err := m.store.Delete(ctx, ids); err != nil {
			return 0, fmt.Errorf("removing exemplars: %w", err)
		}
	}
	m.current.Store(built)
	return removed, nil
}

// build indexes docs into a state ready to be swapped in.
func (m *Manager) build(ctx context.Context, docs []types.ExemplarDocument) (*state, error) {
	index := similarity.New(m.maxFeatures)
	input := make([]similarity.Document, len(docs))
	for i, d := range docs {
		input[i] = similarity.Document{ID: d.ID, Text: d.Text}
	}
	if err := index.Build(ctx, input); err != nil {
		return nil, fmt.Errorf("rebuilding index: %w", err)
	}

	vectors := index.Vectors()
	out := make([]types.ExemplarDocument, len(docs))
	for i, d := range docs {
		d.Vector = vectors[d.ID]
		out[i] = d
	}
	return &state{docs: out, index: index}, nil
}

// Size returns the number of documents in the corpus.
func (m *Manager) Size() int {
	return len(m.current.Load().docs)
}

// Documents returns the corpus in insertion order. The slice is a copy; the
// documents' Vector maps are shared and must not be modified.
func (m *Manager) Documents() []types.ExemplarDocument {
	cur := m.current.Load()
	out := make([]types.ExemplarDocument, len(cur.docs))
	copy(out, cur.docs)
	return out
}

// TopK returns the k exemplars most similar to query. It returns
// ErrEmptyCorpus when the corpus is empty.
func (m *Manager) TopK(ctx context.Context, query string, k int) (types.StyleConditioning, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cur := m.current.Load()
	results, err := cur.index.Query(query, k)
	if err != nil {
		if errors.Is(err, similarity.ErrEmptyCorpus) {
			return nil, err
		}
		return nil, fmt.Errorf("querying corpus: %w", err)
	}

	out := make(types.StyleConditioning, len(results))
	for i, r := range results {
		out[i] = types.ScoredExemplar{Document: cur.docs[r.Position], Similarity: r.Score}
	}
	return out, nil
}

// ContentID derives a stable exemplar ID from text.
func ContentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "ex-" + hex.EncodeToString(sum[:6])
}
