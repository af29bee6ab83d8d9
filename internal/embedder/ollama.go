package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// serviceOllama labels upstream errors raised by this backend.
const serviceOllama = "ollama embeddings"

// maxErrorBody caps how much of an error response body is read.
const maxErrorBody = 4 << 10

// OllamaEmbedder implements rag.Embedder using the Ollama /api/embed endpoint.
// It is safe for concurrent use. No API key is required.
type OllamaEmbedder struct {
	// host is the Ollama server base URL (e.g. "http://localhost:11434").
	host string
	// model is the embedding model name (e.g. "nomic-embed-text").
	model string
	// client is the shared HTTP client.
	client *http.Client
}

// OllamaConfig holds the settings for constructing an OllamaEmbedder.
type OllamaConfig struct {
	// Host is the Ollama server base URL (e.g. "http://localhost:11434").
	Host string
	// Model is the embedding model name (e.g. "nomic-embed-text").
	Model string
	// Timeout bounds each request. Defaults to 60s.
	Timeout time.Duration
}

// NewOllamaEmbedder constructs an OllamaEmbedder from the given config.
func NewOllamaEmbedder(cfg *OllamaConfig) *OllamaEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		host:   cfg.Host,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

// ollamaEmbedRequest is the JSON body sent to the Ollama /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the JSON body returned from the Ollama /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Embed converts a batch of texts into their corresponding embeddings.
// Ollama returns embeddings positionally, in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	inputs, err := prepare(texts)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Input: inputs})
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ollama embedder: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		return nil, fmt.Errorf("ollama embedder: %w", &apperr.UpstreamError{Service: serviceOllama, Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := http.StatusText(resp.StatusCode)
		var decoded ollamaEmbedResponse
		if json.Unmarshal(body, &decoded) == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		return nil, fmt.Errorf("ollama embedder: %w", apperr.Upstream(serviceOllama, resp.StatusCode, msg))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embedder: decode response: %w",
			&apperr.UpstreamError{Service: serviceOllama, StatusCode: resp.StatusCode, Message: "malformed response body", Err: err})
	}

	if len(result.Embeddings) != len(inputs) {
		return nil, fmt.Errorf("ollama embedder: %w", apperr.Upstream(serviceOllama, 0,
			fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(result.Embeddings))))
	}

	return result.Embeddings, nil
}
