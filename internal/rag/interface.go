// Package rag defines the types and interfaces shared by the retrieval side
// of showfinder: show records, embedding records, similarity matches, and the
// Embedder / Searcher / RecordWriter / ShowSource contracts.
// Concrete backends (Postgres, Qdrant, SQLite, OpenAI, Ollama) satisfy these
// interfaces so the pipeline and batch job never depend on a specific service.
package rag

import (
	"context"
)

// ShowRecord is a single entry of the show catalog. It is read-only from the
// point of view of the pipeline.
type ShowRecord struct {
	// ID is the unique show identifier (e.g. "s42").
	ID string

	// Title is the show title.
	Title string

	// Description is the free-text synopsis that gets embedded.
	Description string
}

// EmbeddingRecord is one persisted vector for a show description.
// Records are append-only and never mutated after they are written.
type EmbeddingRecord struct {
	// ShowID references ShowRecord.ID.
	ShowID string

	// Description is a snapshot of the description at embedding time.
	Description string

	// Embedding is the dense vector for Description.
	Embedding []float32

	// Title is a snapshot of the show title. Stores that can join back to the
	// catalog (Postgres) ignore it; stores that cannot (Qdrant) persist it so
	// search results carry the title.
	Title string
}

// Match is a single similarity search hit.
type Match struct {
	// ShowID is the identifier of the matched show.
	ShowID string `json:"show_id"`

	// Title is the matched show's title.
	Title string `json:"title"`

	// Description is the matched show's description snapshot.
	Description string `json:"description"`

	// Similarity is the cosine similarity of the match (0.0–1.0).
	Similarity float32 `json:"similarity"`
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a non-empty batch of texts into embeddings.
	// The returned slice is parallel to the input: one vector per text, same order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher performs vector similarity search over stored embeddings.
// Implementations must be safe to call from multiple goroutines.
type Searcher interface {
	// Search returns at most limit matches whose similarity is >= threshold,
	// ordered by descending similarity. An empty result is not an error.
	Search(ctx context.Context, queryEmbedding []float32, threshold float32, limit int) ([]Match, error)
}

// RecordWriter persists embedding records.
type RecordWriter interface {
	// WriteEmbeddings appends one row per record. It never updates existing rows.
	WriteEmbeddings(ctx context.Context, records []EmbeddingRecord) error
}

// ShowSource loads show records from the catalog.
type ShowSource interface {
	// LoadShows returns up to limit records in a stable order.
	LoadShows(ctx context.Context, limit int) ([]ShowRecord, error)
}

// ShowWriter imports show records into the catalog.
type ShowWriter interface {
	// UpsertShows inserts or replaces records keyed by ShowRecord.ID.
	UpsertShows(ctx context.Context, shows []ShowRecord) error
}
