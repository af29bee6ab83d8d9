package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/embedder"
	"github.com/54b3r/showfinder-go/internal/ingestion"
	"github.com/54b3r/showfinder-go/internal/pgstore"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// NewEmbedCmd constructs the `showfinder embed` command, which runs one pass
// of the batch embedding job over the show catalog.
func NewEmbedCmd() *cobra.Command {
	var limit int
	var batchSize int
	var continueOnError bool
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Embed catalog descriptions into the vector store",
		Long: `Load a page of shows from the catalog, embed their descriptions in
batches and append the vectors to the search backend.

Required environment variables:
  CATALOG_BACKEND      postgres (default) or sqlite
  SEARCH_BACKEND       postgres (default) or qdrant
  DATABASE_URL         Postgres connection string (postgres backends)
  EMBEDDING_*          Embedding provider settings (EMBEDDING_PROVIDER, EMBEDDING_MODEL, ...)

Embedding rows reference the Postgres netflix_titles table, so
SEARCH_BACKEND=postgres needs CATALOG_BACKEND=postgres as well: import the
CSV into Postgres, not SQLite.

Records are appended, not upserted: running the job twice over the same
page stores each show twice. By default the first failed batch stops the
run; --continue-on-error embeds every batch and reports the failures at
the end.

Examples:
  showfinder embed
  showfinder embed --limit 500 --batch-size 50
  showfinder embed --dry-run`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if !cmd.Flags().Changed("limit") {
				limit = getEnvInt("EMBED_LIMIT", limit)
			}
			if !cmd.Flags().Changed("batch-size") {
				batchSize = getEnvInt("EMBED_BATCH_SIZE", batchSize)
			}
			policy, err := ingestion.ParseErrorPolicy(os.Getenv("EMBED_ERROR_POLICY"))
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if continueOnError {
				policy = ingestion.Continue
			}

			if err := checkEmbedBackends(dryRun); err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			if err := embedder.Validate(log, embedder.DefaultDimensions(embedder.Backend())); err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("embed: failed to initialise embedder: %w", err)
			}

			source, catalogName, closeCatalog, err := openCatalog(ctx, log)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			defer closeCatalog()

			var writer rag.RecordWriter
			if !dryRun {
				vs, _, closeStore, err := openVectorStore(ctx, log, 0)
				if err != nil {
					return fmt.Errorf("embed: %w", err)
				}
				defer closeStore()
				writer = vs
			}

			job, err := ingestion.NewJob(source, emb, writer, ingestion.Config{
				BatchSize: batchSize,
				Limit:     limit,
				Policy:    policy,
				DryRun:    dryRun,
			})
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			log.Info("embed starting",
				slog.String("catalog", catalogName),
				slog.Int("limit", job.Config().Limit),
				slog.Int("batch_size", job.Config().BatchSize),
				slog.String("policy", policy.String()),
				slog.Bool("dry_run", dryRun),
			)

			out := cmd.OutOrStdout()
			res, err := job.Run(ctx, func(msg string) {
				fmt.Fprintf(out, "  %s\n", msg)
			})
			if res != nil {
				fmt.Fprintf(out, "loaded %d, embedded %d, persisted %d in %d batches\n",
					res.Loaded, res.Embedded, res.Persisted, res.Batches)
			}
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			if err := res.Err(); err != nil {
				return fmt.Errorf("embed: %d of %d batches failed: %w", len(res.Failures), res.Batches, err)
			}

			reportEmbeddingCount(ctx, log, writer)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", ingestion.DefaultLimit, "Number of catalog records to load (env: EMBED_LIMIT)")
	cmd.Flags().IntVar(&batchSize, "batch-size", ingestion.DefaultBatchSize, "Records per embedding call (env: EMBED_BATCH_SIZE)")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", false, "Keep going after a failed batch (env: EMBED_ERROR_POLICY=continue)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Embed every batch but do not write anything")

	return cmd
}

// checkEmbedBackends rejects a SQLite catalog feeding the Postgres vector
// store: every embedding row has a foreign key to netflix_titles, which a
// SQLite catalog never populates. Dry runs write nothing and are allowed.
func checkEmbedBackends(dryRun bool) error {
	if dryRun {
		return nil
	}
	catalogBackend := getEnvOrDefault("CATALOG_BACKEND", backendPostgres)
	searchBackend := getEnvOrDefault("SEARCH_BACKEND", backendPostgres)
	if catalogBackend == backendSQLite && searchBackend == backendPostgres {
		return &apperr.ConfigError{
			Key:    "CATALOG_BACKEND",
			Reason: "sqlite catalog cannot feed SEARCH_BACKEND=postgres (embeddings reference netflix_titles); import into postgres or use SEARCH_BACKEND=qdrant",
		}
	}
	return nil
}

// reportEmbeddingCount logs the stored row count when the writer can report it.
func reportEmbeddingCount(ctx context.Context, log *slog.Logger, writer rag.RecordWriter) {
	pg, ok := writer.(*pgstore.Store)
	if !ok {
		return
	}
	n, err := pg.CountEmbeddings(ctx)
	if err != nil {
		log.Warn("embed: could not count stored embeddings", slog.Any("error", err))
		return
	}
	log.Info("embed finished", slog.Int64("stored_embeddings", n))
}
