//go:build integration

package embedder

import (
	"math"
	"os"
	"testing"
	"time"
)

// TestOllamaEmbedder_Integration embeds a query and two catalog synopses
// against a live Ollama instance and checks that the query lands closer to
// the synopsis it describes.
//
//	ollama pull nomic-embed-text
//	go test -tags=integration -run TestOllamaEmbedder_Integration ./internal/embedder/
//
// Set OLLAMA_HOST when Ollama is not on localhost:11434.
func TestOllamaEmbedder_Integration(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = defaultOllamaModel
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model, Timeout: 30 * time.Second})

	texts := []string{
		"a group of robbers taking over a mint",
		"A crew of skilled thieves plans the biggest heist in the history of Spain.",
		"As her father nears the end of his life, a filmmaker stages his death in inventive ways.",
	}
	vecs, err := emb.Embed(t.Context(), texts)
	if err != nil {
		t.Fatalf("Embed: %v (is %q pulled? ollama pull %s)", err, model, model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors for %d inputs", len(vecs), len(texts))
	}

	dims := len(vecs[0])
	for i, v := range vecs {
		if len(v) != dims {
			t.Fatalf("vector %d has %d dimensions, vector 0 has %d", i, len(v), dims)
		}
	}
	if model == defaultOllamaModel && dims != defaultOllamaDimensions {
		t.Errorf("%s returned %d dimensions, DefaultDimensions assumes %d", model, dims, defaultOllamaDimensions)
	}

	heist, other := cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2])
	t.Logf("model=%s dim=%d sim(heist)=%.3f sim(other)=%.3f", model, dims, heist, other)
	if heist <= other {
		t.Errorf("query should be closer to the heist synopsis: %.3f <= %.3f", heist, other)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
