package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/embedder"
	"github.com/54b3r/showfinder-go/internal/pgstore"
)

// NewMigrateCmd constructs the `showfinder migrate` command, which prepares
// the storage backends for a given embedding size.
func NewMigrateCmd() *cobra.Command {
	var dims int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog, embedding tables and search function",
		Long: `Create the pgvector extension, the netflix_titles and
netflix_titles_descr_embeddings tables and the match_netflix_titles_descr
search function in DATABASE_URL. When SEARCH_BACKEND=qdrant the Qdrant
collection is created as well. Safe to run more than once.

--dimensions must match the embedding model's output size; it defaults to
EMBEDDING_DIMENSIONS or the embedding backend's default.

Examples:
  showfinder migrate
  showfinder migrate --dimensions 768`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if dims == 0 {
				dims = embedder.DefaultDimensions(embedder.Backend())
			}
			out := cmd.OutOrStdout()

			if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
				if err := pgstore.Migrate(ctx, dbURL, dims); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintf(out, "postgres schema ready (vector(%d))\n", dims)
			} else if getEnvOrDefault("SEARCH_BACKEND", backendPostgres) == backendPostgres {
				return fmt.Errorf("migrate: %w", apperr.Missing("DATABASE_URL"))
			}

			if getEnvOrDefault("SEARCH_BACKEND", backendPostgres) == backendQdrant {
				// Opening the store creates the collection when it is missing.
				_, _, closeStore, err := openVectorStore(ctx, log, dims)
				if err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				closeStore()
				fmt.Fprintf(out, "qdrant collection ready (size %d)\n", dims)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&dims, "dimensions", 0, "Embedding vector size (default: EMBEDDING_DIMENSIONS or the backend default)")

	return cmd
}
