// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package history records pipeline runs in SQLite and exports them.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-engine/pkg/types"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("history entry not found")

// ResearchExcerptChars caps the research text stored with each run.
const ResearchExcerptChars = 500

// timeLayout is fixed-width so that stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Entry is one recorded pipeline run.
type Entry struct {
	ID              string              `json:"id" yaml:"id"`
	CreatedAt       time.Time           `json:"created_at" yaml:"created_at"`
	Topic           string              `json:"topic" yaml:"topic"`
	Category        string              `json:"category" yaml:"category"`
	Industry        string              `json:"industry" yaml:"industry"`
	Audience        string              `json:"audience" yaml:"audience"`
	Keywords        []string            `json:"keywords" yaml:"keywords"`
	Length          types.ContentLength `json:"content_length" yaml:"content_length"`
	State           types.State         `json:"state" yaml:"state"`
	Title           string              `json:"title,omitempty" yaml:"title,omitempty"`
	WordCount       int                 `json:"word_count" yaml:"word_count"`
	Score           float64             `json:"score" yaml:"score"`
	Rounds          int                 `json:"rounds" yaml:"rounds"`
	Regressions     int                 `json:"regressions" yaml:"regressions"`
	Failure         string              `json:"failure,omitempty" yaml:"failure,omitempty"`
	ResearchExcerpt string              `json:"research_excerpt,omitempty" yaml:"research_excerpt,omitempty"`
	Content         string              `json:"content,omitempty" yaml:"content,omitempty"`
	Elapsed         time.Duration       `json:"elapsed" yaml:"elapsed"`
}

// EntryFrom flattens a pipeline result into a history row.
func EntryFrom(res types.PipelineResult) Entry {
	e := Entry{
		ID:          res.ID,
		CreatedAt:   res.StartedAt.UTC(),
		Topic:       res.Request.Topic,
		Category:    res.Request.Category,
		Industry:    res.Request.Industry,
		Audience:    res.Request.TargetAudience,
		Keywords:    res.Request.SEOKeywords,
		Length:      res.Request.ContentLength,
		State:       res.State,
		Rounds:      res.RoundsUsed,
		Regressions: res.Regressions,
		Elapsed:     res.Elapsed,
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if res.Final != nil {
		e.Title = res.Final.Title
		e.WordCount = res.Final.WordCount
		e.Content = res.Final.Text
	}
	if res.FinalFeedback != nil {
		e.Score = res.FinalFeedback.Score
	}
	if res.Brief != nil {
		e.ResearchExcerpt = excerpt(res.Brief.Insights, ResearchExcerptChars)
	}
	if res.Failure != nil {
		e.Failure = res.Failure.String()
	}
	return e
}

func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > n {
		return strings.TrimSpace(string(r[:n])) + "..."
	}
	return s
}

// Store is the run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL,
			topic TEXT NOT NULL,
			category TEXT,
			industry TEXT,
			audience TEXT,
			keywords TEXT,
			content_length TEXT,
			state TEXT NOT NULL,
			title TEXT,
			word_count INTEGER,
			score REAL,
			rounds INTEGER,
			regressions INTEGER,
			failure TEXT,
			research_excerpt TEXT,
			content TEXT,
			elapsed_ms INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_category ON runs(category)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores a finished run and returns the row written.
func (s *Store) Record(ctx context.Context, res types.PipelineResult) (Entry, error) {
	e := EntryFrom(res)
	if e.ID == "" {
		return Entry{}, fmt.Errorf("recording run: missing ID")
	}
	kw, err := json.Marshal(e.Keywords)
	if err != nil {
		return Entry{}, fmt.Errorf("marshaling keywords: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, topic, category, industry, audience, keywords,
			content_length, state, title, word_count, score, rounds, regressions, failure,
			research_excerpt, content, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UTC().Format(timeLayout), e.Topic, e.Category, e.Industry, e.Audience,
		string(kw), string(e.Length), string(e.State), e.Title, e.WordCount, e.Score,
		e.Rounds, e.Regressions, e.Failure, e.ResearchExcerpt, e.Content, e.Elapsed.Milliseconds(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("inserting run %s: %w", e.ID, err)
	}
	e.Elapsed = e.Elapsed.Truncate(time.Millisecond)
	return e, nil
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of entries (0 means all).
	Limit int

	State    types.State
	Category string

	// Topic matches entries whose topic contains it, ignoring case.
	Topic string
}

const selectColumns = `id, created_at, topic, category, industry, audience, keywords,
	content_length, state, title, word_count, score, rounds, regressions, failure,
	research_excerpt, content, elapsed_ms`

// List returns recorded runs, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	var where []string
	var args []any
	if opts.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(opts.State))
	}
	if opts.Category != "" {
		where = append(where, "category = ?")
		args = append(args, opts.Category)
	}
	if opts.Topic != "" {
		where = append(where, "LOWER(topic) LIKE ?")
		args = append(args, "%"+strings.ToLower(opts.Topic)+"%")
	}

	query := "SELECT " + selectColumns + " FROM runs"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns one run by ID.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM runs WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e                                         Entry
		created, keywords, length, state          string
		category, industry, audience, title       sql.NullString
		failure, research, content                sql.NullString
		words, rounds, regressions, elapsedMillis sql.NullInt64
		score                                     sql.NullFloat64
	)
	err := sc.Scan(&e.ID, &created, &e.Topic, &category, &industry, &audience, &keywords,
		&length, &state, &title, &words, &score, &rounds, &regressions, &failure,
		&research, &content, &elapsedMillis)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning run: %w", err)
	}

	if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return Entry{}, fmt.Errorf("parsing created_at of %s: %w", e.ID, err)
	}
	if keywords != "" {
		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			return Entry{}, fmt.Errorf("parsing keywords of %s: %w", e.ID, err)
		}
	}
	e.Category = category.String
	e.Industry = industry.String
	e.Audience = audience.String
	e.Length = types.ContentLength(length)
	e.State = types.State(state)
	e.Title = title.String
	e.WordCount = int(words.Int64)
	e.Score = score.Float64
	e.Rounds = int(rounds.Int64)
	e.Regressions = int(regressions.Int64)
	e.Failure = failure.String
	e.ResearchExcerpt = research.String
	e.Content = content.String
	e.Elapsed = time.Duration(elapsedMillis.Int64) * time.Millisecond
	return e, nil
}

// CategoryCount is one row of Stats.TopCategories.
type CategoryCount struct {
	Category string `json:"category" yaml:"category"`
	Count    int    `json:"count" yaml:"count"`
}

// Stats summarises the history.
type Stats struct {
	Total     int `json:"total" yaml:"total"`
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Failed    int `json:"failed" yaml:"failed"`

	// AverageScore is taken over runs that produced an article.
	AverageScore  float64         `json:"average_score" yaml:"average_score"`
	Latest        time.Time       `json:"latest,omitempty" yaml:"latest,omitempty"`
	TopCategories []CategoryCount `json:"top_categories" yaml:"top_categories"`
}

const topCategories = 3

// Stats computes summary counts over all runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st     Stats
		avg    sql.NullFloat64
		latest sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN state IN (?, ?) THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0),
			AVG(CASE WHEN state IN (?, ?) THEN score END),
			MAX(created_at)
		FROM runs`,
		string(types.StateAccepted), string(types.StateMaxRoundsExceeded),
		string(types.StateFailed),
		string(types.StateAccepted), string(types.StateMaxRoundsExceeded),
	).Scan(&st.Total, &st.Succeeded, &st.Failed, &avg, &latest)
	if err != nil {
		return Stats{}, fmt.Errorf("computing stats: %w", err)
	}
	st.AverageScore = float64(int(avg.Float64*100+0.5)) / 100
	if latest.Valid {
		if st.Latest, err = time.Parse(timeLayout, latest.String); err != nil {
			return Stats{}, fmt.Errorf("parsing latest timestamp: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT category, COUNT(*) AS n FROM runs
		WHERE category IS NOT NULL AND category != ''
		GROUP BY category ORDER BY n DESC, category ASC LIMIT ?`, topCategories)
	if err != nil {
		return Stats{}, fmt.Errorf("counting categories: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return Stats{}, fmt.Errorf("scanning category count: %w", err)
		}
		st.TopCategories = append(st.TopCategories, c)
	}
	return st, rows.Err()
}
