package pgstore

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var schemaSQL string

// dimensionsPlaceholder is replaced with the vector size when rendering schemaSQL.
const dimensionsPlaceholder = "__DIMENSIONS__"

// RenderSchema returns the DDL for a store whose vectors have dims dimensions.
func RenderSchema(dims int) (string, error) {
	if dims <= 0 {
		return "", fmt.Errorf("pgstore: dimensions must be positive, got %d", dims)
	}
	return strings.ReplaceAll(schemaSQL, dimensionsPlaceholder, strconv.Itoa(dims)), nil
}

// Migrate creates the pgvector extension, the catalog and embedding tables,
// and the match_netflix_titles_descr search function. It is idempotent.
//
// Migrate uses a dedicated connection rather than a Store because Store
// registers the pgvector types on connect, which fails until the extension
// exists.
func Migrate(ctx context.Context, databaseURL string, dims int) error {
	ddl, err := RenderSchema(dims)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("pgstore: migrate connect: %w", err)
	}
	defer conn.Close(ctx)

	// No arguments: pgx uses the simple protocol, which accepts multiple statements.
	if _, err := conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgstore: migrate: %w", err)
	}
	return nil
}
