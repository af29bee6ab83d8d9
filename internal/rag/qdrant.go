package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// Payload keys written to every Qdrant point.
const (
	payloadShowID      = "show_id"
	payloadTitle       = "title"
	payloadDescription = "description"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name (default: netflix_titles_descr_embeddings).
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements Searcher and RecordWriter backed by a Qdrant
// collection using cosine distance, so point scores are cosine similarities.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a QdrantStore, ensuring the target collection exists
// (creating it with cfg.VectorSize dimensions if necessary).
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "netflix_titles_descr_embeddings"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return upstream("qdrant: failed to check collection existence", err)
	}
	if exists {
		return nil
	}
	if s.cfg.VectorSize == 0 {
		return &apperr.ConfigError{Key: "EMBEDDING_DIMENSIONS", Reason: "vector size is required to create a collection"}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return upstream(fmt.Sprintf("qdrant: failed to create collection %q", s.cfg.Collection), err)
	}

	return nil
}

// WriteEmbeddings appends one point per record. Each point gets a fresh
// random UUID, so re-running the batch job inserts duplicates rather than
// overwriting earlier vectors.
func (s *QdrantStore) WriteEmbeddings(ctx context.Context, records []EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(records))
	for _, rec := range records {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(rec.Embedding...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadShowID:      rec.ShowID,
				payloadTitle:       rec.Title,
				payloadDescription: rec.Description,
			}),
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return upstream("qdrant: upsert failed", err)
	}

	return nil
}

// Search performs a cosine similarity search with a server-side score threshold.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, threshold float32, limit int) ([]Match, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("qdrant: limit must be positive, got %d", limit)
	}
	lim := uint64(limit) //nolint:gosec // limit is positive
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &lim,
		ScoreThreshold: &threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, upstream("qdrant: search failed", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := Match{Similarity: r.GetScore()}
		if p := r.GetPayload(); p != nil {
			m.ShowID = p[payloadShowID].GetStringValue()
			m.Title = p[payloadTitle].GetStringValue()
			m.Description = p[payloadDescription].GetStringValue()
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// Ping calls the Qdrant HealthCheck RPC.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// upstream wraps a Qdrant client failure as an UpstreamError.
func upstream(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, &apperr.UpstreamError{Service: "qdrant", Err: err})
}
