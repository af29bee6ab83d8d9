package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Default search parameters used when the caller passes zero values.
const (
	// DefaultThreshold is the minimum cosine similarity a match must reach.
	DefaultThreshold float32 = 0.78
	// DefaultLimit is the maximum number of matches returned per query.
	DefaultLimit = 10
)

// Retriever combines an Embedder and a Searcher: it embeds the query at
// retrieval time and delegates similarity search to the backend.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// searcher performs the vector similarity search.
	searcher Searcher

	// threshold is the default similarity cutoff.
	threshold float32

	// limit is the default result count.
	limit int
}

// NewRetriever constructs a Retriever. threshold is used as given, so 0
// keeps every match; pass DefaultThreshold for the standard cutoff. A limit
// of zero or less selects DefaultLimit.
func NewRetriever(embedder Embedder, searcher Searcher, threshold float32, limit int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if searcher == nil {
		return nil, fmt.Errorf("rag: searcher must not be nil")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("rag: threshold %v out of range [0, 1]", threshold)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Retriever{
		embedder:  embedder,
		searcher:  searcher,
		threshold: threshold,
		limit:     limit,
	}, nil
}

// Threshold returns the configured similarity cutoff.
func (r *Retriever) Threshold() float32 { return r.threshold }

// Limit returns the configured result count.
func (r *Retriever) Limit() int { return r.limit }

// Retrieve embeds query with a single-item call and returns the nearest matches.
// The result never exceeds the limit, never contains a match below the
// threshold, and is ordered by descending similarity, regardless of how well
// the backend honours those parameters.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("rag: query must not be empty")
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	matches, err := r.searcher.Search(ctx, embeddings[0], r.threshold, r.limit)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return Normalize(matches, r.threshold, r.limit), nil
}

// Normalize drops matches below threshold, sorts the rest by descending
// similarity (stable, so backend order breaks ties) and truncates to limit.
func Normalize(matches []Match, threshold float32, limit int) []Match {
	out := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity >= threshold {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
