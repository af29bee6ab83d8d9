// Package store provides a SQLite-backed show catalog. It is the local
// alternative to the Postgres netflix_titles table: `showfinder import` fills
// it from a CSV export and the batch embedding job reads pages from it.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/showfinder-go/internal/rag"
)

// SQLiteStore is a show catalog backed by a local SQLite database.
// It implements rag.ShowSource and rag.ShowWriter.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the catalog database.
// It resolves to ~/.showfinder/catalog.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".showfinder")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "catalog.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Single connection: avoids SQLITE_BUSY and keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS shows (
    show_id      TEXT    PRIMARY KEY,
    title        TEXT    NOT NULL,
    description  TEXT    NOT NULL DEFAULT '',
    imported_at  INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// UpsertShows inserts the given shows in one transaction, replacing the
// title and description of show_ids that already exist.
func (s *SQLiteStore) UpsertShows(ctx context.Context, shows []rag.ShowRecord) error {
	if len(shows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: upsert begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
INSERT INTO shows (show_id, title, description, imported_at) VALUES (?, ?, ?, ?)
ON CONFLICT(show_id) DO UPDATE SET
    title       = excluded.title,
    description = excluded.description,
    imported_at = excluded.imported_at`

	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		return fmt.Errorf("store: upsert prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, sh := range shows {
		if _, err := stmt.ExecContext(ctx, sh.ID, sh.Title, sh.Description, now); err != nil {
			return fmt.Errorf("store: upsert %s: %w", sh.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: upsert commit: %w", err)
	}
	return nil
}

// LoadShows returns up to limit shows ordered by show_id.
func (s *SQLiteStore) LoadShows(ctx context.Context, limit int) ([]rag.ShowRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("store: limit must be positive, got %d", limit)
	}

	const q = `SELECT show_id, title, description FROM shows ORDER BY show_id LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: load shows: %w", err)
	}
	defer rows.Close()

	var shows []rag.ShowRecord
	for rows.Next() {
		var r rag.ShowRecord
		if err := rows.Scan(&r.ID, &r.Title, &r.Description); err != nil {
			return nil, fmt.Errorf("store: load shows scan: %w", err)
		}
		shows = append(shows, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: load shows rows: %w", err)
	}
	return shows, nil
}

// Count returns the number of shows in the catalog.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM shows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
