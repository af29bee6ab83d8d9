package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/oai"
)

// serviceOpenAI labels upstream errors raised by this backend.
const serviceOpenAI = "openai embeddings"

// OpenAIEmbedder implements rag.Embedder using the OpenAI (or Azure OpenAI)
// embeddings API. It is safe for concurrent use.
type OpenAIEmbedder struct {
	// client is the go-openai API client.
	client *openai.Client
	// model is the embedding model (or Azure deployment) name.
	model string
	// dimensions is the requested vector length (0 = model default).
	dimensions int
}

// OpenAIConfig holds the settings for constructing an OpenAIEmbedder.
type OpenAIConfig struct {
	// BaseURL overrides the API base. For OpenAI it defaults to
	// "https://api.openai.com/v1"; for Azure it is the resource endpoint
	// (e.g. "https://my-resource.openai.azure.com/").
	BaseURL string
	// APIKey is the authentication key.
	APIKey string
	// Model is the embedding model name (e.g. "text-embedding-ada-002").
	// For Azure this is the deployment name.
	Model string
	// Dimensions is the requested vector length. Leave zero for models that
	// do not accept the parameter (text-embedding-ada-002).
	Dimensions int
	// Azure enables Azure OpenAI mode (api-key header + api-version param).
	Azure bool
	// APIVersion is the Azure OpenAI API version. Ignored when Azure is false.
	APIVersion string
	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration
}

// NewOpenAIEmbedder constructs an OpenAIEmbedder from the given config.
func NewOpenAIEmbedder(cfg *OpenAIConfig) *OpenAIEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		client: oai.NewClient(oai.ClientConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Azure:      cfg.Azure,
			APIVersion: cfg.APIVersion,
			Timeout:    timeout,
		}),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed converts a batch of texts into their corresponding embeddings with a
// single API call. The returned slice is parallel to the input slice.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	inputs, err := prepare(texts)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedder: %w", oai.Upstream(serviceOpenAI, err))
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embedder: %w", apperr.Upstream(serviceOpenAI, 0,
			fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(resp.Data))))
	}

	// The API may return data out of order; place each vector by its index.
	embeddings := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, fmt.Errorf("openai embedder: %w", apperr.Upstream(serviceOpenAI, 0,
				fmt.Sprintf("index %d out of range [0, %d)", d.Index, len(inputs))))
		}
		if embeddings[d.Index] != nil {
			return nil, fmt.Errorf("openai embedder: %w", apperr.Upstream(serviceOpenAI, 0,
				fmt.Sprintf("duplicate index %d", d.Index)))
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}
