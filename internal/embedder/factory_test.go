package embedder

import (
	"testing"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// clearEmbeddingEnv blanks every variable the factory reads.
func clearEmbeddingEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"EMBEDDING_PROVIDER", "MODEL_PROVIDER", "EMBEDDING_API_KEY", "OPENAI_API_KEY",
		"EMBEDDING_ENDPOINT", "EMBEDDING_MODEL", "EMBEDDING_DIMENSIONS",
		"AZURE_OPENAI_API_KEY", "AZURE_OPENAI_ENDPOINT", "OLLAMA_HOST",
	} {
		t.Setenv(k, "")
	}
}

func TestBackend_Resolution(t *testing.T) {
	tests := []struct {
		name      string
		embedding string
		model     string
		want      string
	}{
		{"default", "", "", "openai"},
		{"explicit wins", "ollama", "openai", "ollama"},
		{"inherits supported chat provider", "", "azure", "azure"},
		{"ignores unsupported chat provider", "", "gemini", "openai"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEmbeddingEnv(t)
			t.Setenv("EMBEDDING_PROVIDER", tt.embedding)
			t.Setenv("MODEL_PROVIDER", tt.model)
			if got := Backend(); got != tt.want {
				t.Errorf("Backend() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDimensions(t *testing.T) {
	clearEmbeddingEnv(t)

	if got := DefaultDimensions("ollama"); got != 768 {
		t.Errorf("ollama: got %d, want 768", got)
	}
	if got := DefaultDimensions("openai"); got != 1536 {
		t.Errorf("openai: got %d, want 1536", got)
	}

	t.Setenv("EMBEDDING_DIMENSIONS", "384")
	if got := DefaultDimensions("openai"); got != 384 {
		t.Errorf("override: got %d, want 384", got)
	}
}

func TestNewFromEnv_MissingKeyIsConfigError(t *testing.T) {
	clearEmbeddingEnv(t)

	_, err := NewFromEnv()
	if !apperr.IsConfig(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewFromEnv_Backends(t *testing.T) {
	clearEmbeddingEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	emb, err := NewFromEnv()
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := emb.(*OpenAIEmbedder); !ok {
		t.Errorf("openai: got %T", emb)
	}

	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	emb, err = NewFromEnv()
	if err != nil {
		t.Fatalf("ollama: %v", err)
	}
	if _, ok := emb.(*OllamaEmbedder); !ok {
		t.Errorf("ollama: got %T", emb)
	}

	t.Setenv("EMBEDDING_PROVIDER", "azure")
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	if _, err := NewFromEnv(); !apperr.IsConfig(err) {
		t.Errorf("azure without endpoint: expected ConfigError, got %v", err)
	}
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	if _, err := NewFromEnv(); err != nil {
		t.Errorf("azure: %v", err)
	}

	t.Setenv("EMBEDDING_PROVIDER", "bedrock")
	if _, err := NewFromEnv(); !apperr.IsConfig(err) {
		t.Errorf("unknown backend: expected ConfigError, got %v", err)
	}
}

func TestLooksLikeChatModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		model string
		want  bool
	}{
		{"text-embedding-ada-002", false},
		{"nomic-embed-text", false},
		{"gpt-3.5-turbo-instruct", true},
		{"text-davinci-003", true},
		{"llama3", true},
	}
	for _, tt := range tests {
		if got := looksLikeChatModel(tt.model); got != tt.want {
			t.Errorf("looksLikeChatModel(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}
