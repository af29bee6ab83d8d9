package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/completion"
	"github.com/54b3r/showfinder-go/internal/embedder"
	"github.com/54b3r/showfinder-go/internal/finder"
	"github.com/54b3r/showfinder-go/internal/pgstore"
	"github.com/54b3r/showfinder-go/internal/rag"
	"github.com/54b3r/showfinder-go/internal/store"
)

// Backend names accepted by SEARCH_BACKEND and CATALOG_BACKEND.
const (
	backendPostgres = "postgres"
	backendQdrant   = "qdrant"
	backendSQLite   = "sqlite"
)

// vectorStore is what every SEARCH_BACKEND provides.
type vectorStore interface {
	rag.Searcher
	rag.RecordWriter
	Ping(ctx context.Context) error
}

// catalogStore is what every CATALOG_BACKEND provides.
type catalogStore interface {
	rag.ShowSource
	rag.ShowWriter
}

// openVectorStore connects to the backend named by SEARCH_BACKEND
// (default: postgres). dims sizes a Qdrant collection created on first use;
// zero selects the embedding backend's default. The returned close func is
// always safe to call.
func openVectorStore(ctx context.Context, log *slog.Logger, dims int) (vectorStore, string, func(), error) {
	backend := getEnvOrDefault("SEARCH_BACKEND", backendPostgres)

	switch backend {
	case backendPostgres:
		s, err := pgstore.Open(ctx, os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, "", func() {}, err
		}
		log.Info("vector store: postgres connected")
		return s, backendPostgres, s.Close, nil

	case backendQdrant:
		if dims <= 0 {
			dims = embedder.DefaultDimensions(embedder.Backend())
		}
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		s, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
			Host:       host,
			Port:       port,
			Collection: os.Getenv("QDRANT_COLLECTION"),
			VectorSize: uint64(dims), //nolint:gosec // dimensions are positive
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			return nil, "", func() {}, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
		}
		log.Info("vector store: qdrant connected", slog.String("host", host), slog.Int("port", port))
		return s, backendQdrant, func() { _ = s.Close() }, nil

	default:
		return nil, "", func() {}, &apperr.ConfigError{
			Key:    "SEARCH_BACKEND",
			Reason: fmt.Sprintf("unknown backend %q, valid values: postgres, qdrant", backend),
		}
	}
}

// openCatalog opens the show catalog named by CATALOG_BACKEND
// (default: postgres).
func openCatalog(ctx context.Context, log *slog.Logger) (catalogStore, string, func(), error) {
	backend := getEnvOrDefault("CATALOG_BACKEND", backendPostgres)

	switch backend {
	case backendPostgres:
		s, err := pgstore.Open(ctx, os.Getenv("DATABASE_URL"))
		if err != nil {
			return nil, "", func() {}, err
		}
		return s, backendPostgres, s.Close, nil

	case backendSQLite:
		path := os.Getenv("SHOWFINDER_CATALOG_DB")
		if path == "" {
			var err error
			if path, err = store.DefaultDBPath(); err != nil {
				return nil, "", func() {}, err
			}
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, "", func() {}, err
		}
		log.Info("catalog: sqlite opened", slog.String("path", path))
		return s, backendSQLite, func() { _ = s.Close() }, nil

	default:
		return nil, "", func() {}, &apperr.ConfigError{
			Key:    "CATALOG_BACKEND",
			Reason: fmt.Sprintf("unknown backend %q, valid values: postgres, sqlite", backend),
		}
	}
}

// depsOptions carries per-invocation overrides of the FINDER_* settings.
type depsOptions struct {
	// threshold overrides FINDER_THRESHOLD when non-nil. Zero is a valid cutoff.
	threshold *float32
	// limit overrides FINDER_LIMIT when positive.
	limit int
	// strict fails before any network call when the completer is not
	// configured. serve leaves it off and reports the error per request.
	strict bool
}

// deps is the wired query pipeline plus the vector store it searches.
type deps struct {
	pipeline  *finder.Pipeline
	store     vectorStore
	storeName string
	close     func()
}

// buildDeps wires completer, embedder, vector store and retriever into a
// finder.Pipeline from the environment. Everything that can fail without a
// network call is checked before the vector store is dialled.
func buildDeps(ctx context.Context, log *slog.Logger, opts depsOptions) (*deps, error) {
	comp, err := completion.NewFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	if err := comp.Validate(); err != nil {
		if opts.strict {
			return nil, err
		}
		log.Warn("completion backend not configured, queries will fail until it is",
			slog.String("completer", comp.Name()),
			slog.Any("error", err),
		)
	}

	threshold := rag.DefaultThreshold
	if opts.threshold != nil {
		threshold = *opts.threshold
	} else if v, ok := os.LookupEnv("FINDER_THRESHOLD"); ok && v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, &apperr.ConfigError{Key: "FINDER_THRESHOLD", Reason: fmt.Sprintf("not a number: %q", v)}
		}
		threshold = float32(t)
	}
	limit := opts.limit
	if limit <= 0 {
		limit = getEnvInt("FINDER_LIMIT", rag.DefaultLimit)
	}

	cfg := finder.Config{
		Completer:     comp,
		Persona:       os.Getenv("FINDER_PERSONA"),
		MaxTokens:     getEnvInt("FINDER_MAX_TOKENS", 0),
		ContextWindow: getEnvInt("FINDER_CONTEXT_WINDOW", 0),
	}
	if v := os.Getenv("FINDER_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return nil, &apperr.ConfigError{Key: "FINDER_TEMPERATURE", Reason: fmt.Sprintf("not a number: %q", v)}
		}
		temp := float32(t)
		cfg.Temperature = &temp
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, err
	}
	log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

	vs, name, closeStore, err := openVectorStore(ctx, log, 0)
	if err != nil {
		return nil, err
	}

	retriever, err := rag.NewRetriever(emb, vs, threshold, limit)
	if err != nil {
		closeStore()
		return nil, err
	}
	cfg.Retriever = retriever

	pipeline, err := finder.New(cfg)
	if err != nil {
		closeStore()
		return nil, err
	}

	log.Info("pipeline ready",
		slog.String("search_backend", name),
		slog.String("completer", comp.Name()),
		slog.Float64("threshold", float64(retriever.Threshold())),
		slog.Int("limit", retriever.Limit()),
	)
	return &deps{pipeline: pipeline, store: vs, storeName: name, close: closeStore}, nil
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// changedFloat32 returns &v when the named flag was set on the command line,
// so an explicit zero is distinguishable from "not given".
func changedFloat32(cmd *cobra.Command, name string, v float32) *float32 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &v
}
