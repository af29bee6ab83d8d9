// Package pgstore is the Postgres/pgvector backend for showfinder. It reads
// the show catalog (netflix_titles), appends description embeddings
// (netflix_titles_descr_embeddings) and answers similarity queries through
// the match_netflix_titles_descr SQL function. The layout is compatible with
// a Supabase project created for the same data.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// service labels upstream errors raised by this package.
const service = "postgres"

// Option configures the connection pool.
type Option func(*pgxpool.Config)

// WithMaxConns caps the number of pooled connections.
func WithMaxConns(n int32) Option {
	return func(c *pgxpool.Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

// Store implements rag.Searcher, rag.RecordWriter, rag.ShowSource and
// rag.ShowWriter on a pgx connection pool. It is safe for concurrent use.
type Store struct {
	// pool is the pgx connection pool; pgvector types are registered on
	// every new connection.
	pool *pgxpool.Pool
}

// Open connects to databaseURL, registers the pgvector types on each
// connection and pings the server. Run Migrate first on a fresh database.
func Open(ctx context.Context, databaseURL string, opts ...Option) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("pgstore: %w", apperr.Missing("DATABASE_URL"))
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: failed to parse database URL: %w", err)
	}
	cfg.AfterConnect = pgxvec.RegisterTypes
	for _, opt := range opts {
		opt(cfg)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: failed to ping database: %w", upstream(err))
	}

	slog.Debug("pgstore: connected", slog.String("host", cfg.ConnConfig.Host))
	return &Store{pool: pool}, nil
}

// Search calls match_netflix_titles_descr and returns at most limit matches
// with similarity >= threshold, nearest first.
func (s *Store) Search(ctx context.Context, queryEmbedding []float32, threshold float32, limit int) ([]rag.Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("pgstore: limit must be positive, got %d", limit)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT show_id, show_title, show_description, similarity
		FROM   match_netflix_titles_descr($1, $2, $3)`,
		pgvector.NewVector(queryEmbedding), float64(threshold), limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: search: %w", upstream(err))
	}
	defer rows.Close()

	matches := make([]rag.Match, 0, limit)
	for rows.Next() {
		var (
			m          rag.Match
			similarity float64
		)
		if err := rows.Scan(&m.ShowID, &m.Title, &m.Description, &similarity); err != nil {
			return nil, fmt.Errorf("pgstore: search scan: %w", upstream(err))
		}
		m.Similarity = float32(similarity)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgstore: search rows: %w", upstream(err))
	}

	return matches, nil
}

// WriteEmbeddings appends one row per record in a single round trip.
// Rows are never updated; re-running the batch job inserts duplicates.
func (s *Store) WriteEmbeddings(ctx context.Context, records []rag.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(`
			INSERT INTO netflix_titles_descr_embeddings (show_id, description, embeddings)
			VALUES ($1, $2, $3)`,
			rec.ShowID, rec.Description, pgvector.NewVector(rec.Embedding))
	}

	br := s.pool.SendBatch(ctx, batch)
	for i := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("pgstore: insert embedding for show %s: %w", records[i].ShowID, upstream(err))
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("pgstore: insert embeddings: %w", upstream(err))
	}
	return nil
}

// LoadShows returns up to limit catalog rows ordered by show_id.
func (s *Store) LoadShows(ctx context.Context, limit int) ([]rag.ShowRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("pgstore: limit must be positive, got %d", limit)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT show_id, title, description
		FROM   netflix_titles
		ORDER  BY show_id
		LIMIT  $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("pgstore: load shows: %w", upstream(err))
	}

	shows, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (rag.ShowRecord, error) {
		var r rag.ShowRecord
		err := row.Scan(&r.ID, &r.Title, &r.Description)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgstore: load shows scan: %w", upstream(err))
	}
	return shows, nil
}

// UpsertShows inserts catalog rows, replacing title and description of
// existing show_ids.
func (s *Store) UpsertShows(ctx context.Context, shows []rag.ShowRecord) error {
	if len(shows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sh := range shows {
		batch.Queue(`
			INSERT INTO netflix_titles (show_id, title, description)
			VALUES ($1, $2, $3)
			ON CONFLICT (show_id) DO UPDATE
			SET title = EXCLUDED.title, description = EXCLUDED.description`,
			sh.ID, sh.Title, sh.Description)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgstore: upsert shows: %w", upstream(err))
	}
	return nil
}

// CountEmbeddings returns the number of stored embedding rows.
func (s *Store) CountEmbeddings(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM netflix_titles_descr_embeddings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgstore: count embeddings: %w", upstream(err))
	}
	return n, nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pgstore: ping: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// upstream wraps a database failure as an UpstreamError. Context errors are
// passed through so callers can tell cancellation from an outage.
func upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	ue := &apperr.UpstreamError{Service: service, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		ue.Message = fmt.Sprintf("%s (SQLSTATE %s)", pgErr.Message, pgErr.Code)
	}
	return ue
}
