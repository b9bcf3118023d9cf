// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// StyleSignals are surface features extracted from an exemplar at ingestion.
type StyleSignals struct {
	WordCount         int     `json:"word_count" yaml:"word_count"`
	SentenceCount     int     `json:"sentence_count" yaml:"sentence_count"`
	AvgSentenceLength float64 `json:"avg_sentence_length" yaml:"avg_sentence_length"`

	// FormalityScore ranges from 0 (casual) to 10 (formal).
	FormalityScore float64 `json:"formality_score" yaml:"formality_score"`

	HasBullets   bool `json:"has_bullets" yaml:"has_bullets"`
	HasQuestions bool `json:"has_questions" yaml:"has_questions"`
	HasNumbers   bool `json:"has_numbers" yaml:"has_numbers"`

	// BusinessTermDensity is business vocabulary hits per hundred words.
	BusinessTermDensity float64 `json:"business_term_density" yaml:"business_term_density"`
}

// ExemplarDocument is a house-style reference article. It is immutable
// after ingestion; re-ingesting the same ID replaces it.
type ExemplarDocument struct {
	// ID uniquely identifies the exemplar within the corpus.
	ID string `json:"id" yaml:"id"`

	// Title is the exemplar headline.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Text is the raw article body.
	Text string `json:"text" yaml:"text"`

	// Source records provenance (a URL, file path, or "seed").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Industry string `json:"industry,omitempty" yaml:"industry,omitempty"`

	// Vector is the sparse TF-IDF weight map, derived by the similarity
	// index at the most recent rebuild.
	Vector map[string]float64 `json:"-" yaml:"-"`

	// Style holds signals computed at ingestion.
	Style StyleSignals `json:"style" yaml:"style"`

	// IngestedAt is set by the corpus manager.
	IngestedAt time.Time `json:"ingested_at" yaml:"ingested_at"`
}
