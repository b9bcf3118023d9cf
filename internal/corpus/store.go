// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/article-engine/pkg/types"
)

// Store persists exemplar documents in SQLite. Rows keep their first
// insertion position when replaced, matching the manager's ordering.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the exemplar database at path and creates the
// schema if it does not exist.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating corpus directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
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
		`CREATE TABLE IF NOT EXISTS exemplars (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			title TEXT,
			text TEXT NOT NULL,
			source TEXT,
			category TEXT,
			industry TEXT,
			style TEXT,
			ingested_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exemplars_category ON exemplars(category)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save upserts docs in one transaction.
func (s *Store) Save(ctx context.Context, docs []types.ExemplarDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO exemplars (id, title, text, source, category, industry, style, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, text=excluded.text, source=excluded.source,
			category=excluded.category, industry=excluded.industry,
			style=excluded.style, ingested_at=excluded.ingested_at`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range docs {
		styleJSON, _ := json.Marshal(d.Style)
		_, err := stmt.ExecContext(ctx,
			d.ID, d.Title, d.Text, d.Source, d.Category, d.Industry,
			string(styleJSON), d.IngestedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("upserting exemplar %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// Delete removes the given ids and returns how many rows were removed.
func (s *Store) Delete(ctx context.Context, ids []string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, id := range ids {
		res, err := tx.ExecContext(ctx, `DELETE FROM exemplars WHERE id = ?`, id)
		if err != nil {
			return 0, fmt.Errorf("deleting exemplar %s: %w", id, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing delete: %w", err)
	}
	return removed, nil
}

// All returns every stored exemplar in insertion order.
func (s *Store) All(ctx context.Context) ([]types.ExemplarDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, text, source, category, industry, style, ingested_at
		 FROM exemplars ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying exemplars: %w", err)
	}
	defer rows.Close()

	var docs []types.ExemplarDocument
	for rows.Next() {
		var d types.ExemplarDocument
		var title, source, category, industry, styleJSON, ingestedAt sql.NullString
		if err := rows.Scan(&d.ID, &title, &d.Text, &source, &category, &industry, &styleJSON, &ingestedAt); err != nil {
			return nil, fmt.Errorf("scanning exemplar: %w", err)
		}
		d.Title = title.String
		d.Source = source.String
		d.Category = category.String
		d.Industry = industry.String
		if styleJSON.Valid && styleJSON.String != "" {
			json.Unmarshal([]byte(styleJSON.String), &d.Style)
		}
		if t, err := time.Parse(time.RFC3339Nano, ingestedAt.String); err == nil {
			d.IngestedAt = t
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
