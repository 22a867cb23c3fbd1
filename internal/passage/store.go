// Package passage persists normalized passages and per-document content
// hashes in SQLite. It backs two things: the idempotent re-ingest
// short-circuit and the keyword fallback when a question cannot be resolved
// against the graph.
package passage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skyserve/drishti/internal/normalize"
)

type Store struct {
	conn *sql.DB
	Path string
}

type Record struct {
	ID        string
	URL       string
	Section   string
	Content   string
	FetchedAt time.Time
}

// Open opens the SQLite database with WAL mode for concurrent reads and
// creates the schema if missing. Use ":memory:" for tests.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening passage db: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &Store{conn: conn, Path: path}, nil
}

func migrate(conn *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			url TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS passages (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL REFERENCES documents(url) ON DELETE CASCADE,
			idx INTEGER NOT NULL,
			section TEXT,
			content TEXT NOT NULL,
			fetched_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_passages_url ON passages(url)`,
	}
	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			return fmt.Errorf("migrating passage db: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// DocumentHash returns the content hash stored at the last ingestion of the
// given URL, or "" if the document has never been seen.
func (s *Store) DocumentHash(ctx context.Context, url string) (string, error) {
	var hash string
	err := s.conn.QueryRowContext(ctx, `SELECT content_hash FROM documents WHERE url = ?`, url).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading document hash: %w", err)
	}
	return hash, nil
}

// ReplaceDocument swaps out all stored passages for a document and records
// its new content hash, in one transaction.
func (s *Store) ReplaceDocument(ctx context.Context, doc *normalize.Document) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting passage tx: %w", err)
	}
	defer tx.Rollback()

	fetched := doc.FetchedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (url, content_hash, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET content_hash = excluded.content_hash, fetched_at = excluded.fetched_at`,
		doc.URL, doc.ContentHash, fetched); err != nil {
		return fmt.Errorf("upserting document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM passages WHERE url = ?`, doc.URL); err != nil {
		return fmt.Errorf("clearing passages: %w", err)
	}

	for _, p := range doc.Passages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO passages (id, url, idx, section, content, fetched_at) VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), doc.URL, p.Index, p.Section, p.Text, fetched); err != nil {
			return fmt.Errorf("inserting passage: %w", err)
		}
	}
	return tx.Commit()
}

// Search is the fallback retrieval path: passages matching any of the terms,
// ranked by how many distinct terms they contain.
func (s *Store) Search(ctx context.Context, terms []string, limit int) ([]Record, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(strings.ToLower(t))
		if len(t) >= 3 {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	conds := make([]string, len(cleaned))
	args := make([]interface{}, len(cleaned))
	for i, t := range cleaned {
		conds[i] = "LOWER(content) LIKE ?"
		args[i] = "%" + t + "%"
	}

	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, url, section, content, fetched_at FROM passages WHERE `+strings.Join(conds, " OR "),
		args...)
	if err != nil {
		return nil, fmt.Errorf("searching passages: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rec  Record
		hits int
	}
	var results []scored
	for rows.Next() {
		var rec Record
		var fetched string
		if err := rows.Scan(&rec.ID, &rec.URL, &rec.Section, &rec.Content, &fetched); err != nil {
			return nil, fmt.Errorf("scanning passage: %w", err)
		}
		rec.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetched)
		lower := strings.ToLower(rec.Content)
		hits := 0
		for _, t := range cleaned {
			if strings.Contains(lower, t) {
				hits++
			}
		}
		results = append(results, scored{rec: rec, hits: hits})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating passages: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].hits > results[j].hits })
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]Record, len(results))
	for i, r := range results {
		out[i] = r.rec
	}
	return out, nil
}
