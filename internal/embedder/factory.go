package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-ada-002"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ; override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-ada-002
	// and text-embedding-3-small.
	defaultOpenAIDimensions = 1536
)

// Backend returns the effective embedding backend name.
//
// EMBEDDING_PROVIDER wins. Otherwise MODEL_PROVIDER is inherited when it names
// a backend this package supports, and "openai" is used as the final default.
func Backend() string {
	if v := getEnv("EMBEDDING_PROVIDER"); v != "" {
		return v
	}
	switch p := getEnv("MODEL_PROVIDER"); p {
	case "openai", "azure", "ollama":
		return p
	}
	return "openai"
}

// DefaultDimensions returns the embedding vector size for the given backend.
// Callers that pre-configure a vector index (Qdrant collection creation,
// the pgvector column type) use this rather than hardcoding a value.
// EMBEDDING_DIMENSIONS always takes precedence when set.
func DefaultDimensions(backend string) int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch backend {
	case "ollama":
		return defaultOllamaDimensions
	default:
		return defaultOpenAIDimensions
	}
}

// NewFromEnv constructs a rag.Embedder from environment variables.
//
// Resolution order:
//
//  1. Backend(): EMBEDDING_PROVIDER, then MODEL_PROVIDER, then "openai"
//  2. EMBEDDING_API_KEY, falling back to the backend's native key
//  3. EMBEDDING_ENDPOINT, falling back to the backend's native endpoint
//  4. EMBEDDING_MODEL, falling back to the backend default
//  5. EMBEDDING_DIMENSIONS, sent to the API only when explicitly set
//
// A missing credential is reported as *apperr.ConfigError.
func NewFromEnv() (rag.Embedder, error) {
	backend := Backend()

	switch backend {
	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		return NewOllamaEmbedder(&OllamaConfig{
			Host:  host,
			Model: getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel),
		}), nil

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: %w", apperr.Missing("OPENAI_API_KEY"))
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    getEnv("EMBEDDING_ENDPOINT"),
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
		}), nil

	case "azure":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("AZURE_OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: %w", apperr.Missing("AZURE_OPENAI_API_KEY"))
		}
		endpoint := getEnv("EMBEDDING_ENDPOINT")
		if endpoint == "" {
			endpoint = getEnv("AZURE_OPENAI_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("embedder: %w", apperr.Missing("AZURE_OPENAI_ENDPOINT"))
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    endpoint,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
			Azure:      true,
			APIVersion: getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01"),
		}), nil

	default:
		return nil, fmt.Errorf("embedder: %w", &apperr.ConfigError{
			Key:    "EMBEDDING_PROVIDER",
			Reason: fmt.Sprintf("unknown backend %q (valid: ollama, openai, azure)", backend),
		})
	}
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
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
