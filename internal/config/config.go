// Package config provides layered configuration for showfinder.
// Precedence is defaults → YAML file → dotenv files → env vars. Environment
// variables always win; every other layer only fills keys that are unset.
//
// YAML file search order:
//  1. --config CLI flag (explicit path)
//  2. SHOWFINDER_CONFIG environment variable
//  3. ~/.showfinder/config.yaml
//  4. ./showfinder.yaml
//
// Dotenv files (.env.local, then .env) are read from the working directory.
// If neither a YAML file nor a dotenv file is found the system runs entirely
// from env vars.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DotenvFiles are the dotenv files LoadDotenv reads, in order. The first
// file to define a key wins.
var DotenvFiles = []string{".env.local", ".env"}

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Completion configures the completion endpoint that writes the answer.
	Completion CompletionConfig `yaml:"completion"`

	// Model configures the eino chat model used by the "chat" completion provider.
	Model ModelConfig `yaml:"model"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Finder tunes retrieval and generation.
	Finder FinderConfig `yaml:"finder"`

	// Search selects the vector search backend.
	Search SearchConfig `yaml:"search"`

	// Catalog selects where the show catalog is read from.
	Catalog CatalogConfig `yaml:"catalog"`

	// Database configures the Postgres/pgvector connection.
	Database DatabaseConfig `yaml:"database"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Embed tunes the batch embedding job.
	Embed EmbedJobConfig `yaml:"embed"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// CompletionConfig holds completion endpoint settings.
type CompletionConfig struct {
	// Provider selects the completion backend: openai or chat.
	Provider string `yaml:"provider"`
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the completions model name.
	Model string `yaml:"model"`
	// BaseURL overrides the API base URL.
	BaseURL string `yaml:"base_url"`
}

// ModelConfig holds eino chat model settings.
type ModelConfig struct {
	// Provider selects the backend: openai, azure, ollama, gemini, ark.
	Provider string `yaml:"provider"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	Ollama OllamaConfig `yaml:"ollama"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Azure  AzureConfig  `yaml:"azure"`
	Gemini GeminiConfig `yaml:"gemini"`
	Ark    ArkConfig    `yaml:"ark"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI chat provider settings. The API key is shared
// with the completion section.
type OpenAIConfig struct {
	// Model is the OpenAI chat model name.
	Model string `yaml:"model"`
	// BaseURL overrides the API base URL.
	BaseURL string `yaml:"base_url"`
}

// AzureConfig holds Azure OpenAI provider settings.
type AzureConfig struct {
	// APIKey is the Azure OpenAI API key. Prefer env var AZURE_OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the Azure OpenAI resource endpoint.
	Endpoint string `yaml:"endpoint"`
	// Deployment is the Azure OpenAI deployment name.
	Deployment string `yaml:"deployment"`
	// APIVersion is the Azure OpenAI API version.
	APIVersion string `yaml:"api_version"`
}

// GeminiConfig holds Google Gemini provider settings.
type GeminiConfig struct {
	// APIKey is the Google API key. Prefer env var GOOGLE_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Gemini model name.
	Model string `yaml:"model"`
}

// ArkConfig holds Volcengine Ark provider settings.
type ArkConfig struct {
	// APIKey is the Ark API key. Prefer env var ARK_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the Ark endpoint/model ID.
	Model string `yaml:"model"`
	// BaseURL overrides the Ark API base URL.
	BaseURL string `yaml:"base_url"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider selects the embedding backend (openai, azure, ollama).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
}

// FinderConfig tunes the query pipeline.
type FinderConfig struct {
	// Threshold is the minimum cosine similarity for a match.
	Threshold float32 `yaml:"threshold"`
	// Limit is the maximum number of matches placed in the prompt.
	Limit int `yaml:"limit"`
	// MaxTokens caps the answer length.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature is the completion sampling temperature.
	Temperature float32 `yaml:"temperature"`
	// Persona replaces the default instruction that opens every prompt.
	Persona string `yaml:"persona"`
	// ContextWindow is the completion model's context size in tokens.
	ContextWindow int `yaml:"context_window"`
}

// SearchConfig selects the vector search backend.
type SearchConfig struct {
	// Backend is postgres or qdrant.
	Backend string `yaml:"backend"`
}

// CatalogConfig selects the show catalog source for the embed job.
type CatalogConfig struct {
	// Backend is postgres or sqlite.
	Backend string `yaml:"backend"`
	// DBPath is the SQLite catalog path for the sqlite backend.
	DBPath string `yaml:"db_path"`
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	// URL is the Postgres connection string. Prefer env var DATABASE_URL.
	URL string `yaml:"url"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// EmbedJobConfig tunes `showfinder embed`.
type EmbedJobConfig struct {
	// BatchSize is the number of shows embedded per request.
	BatchSize int `yaml:"batch_size"`
	// Limit is the maximum number of shows loaded.
	Limit int `yaml:"limit"`
	// ErrorPolicy is fail-fast or continue.
	ErrorPolicy string `yaml:"error_policy"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var SHOWFINDER_API_KEY.
	APIKey string `yaml:"api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"COMPLETION_PROVIDER", func(c *Config) string { return c.Completion.Provider }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Completion.APIKey }},
	{"COMPLETION_MODEL", func(c *Config) string { return c.Completion.Model }},
	{"COMPLETION_BASE_URL", func(c *Config) string { return c.Completion.BaseURL }},
	{"MODEL_PROVIDER", func(c *Config) string { return c.Model.Provider }},
	{"MODEL_MAX_TOKENS", func(c *Config) string { return intStr(c.Model.MaxTokens) }},
	{"MODEL_TEMPERATURE", func(c *Config) string { return float32Str(c.Model.Temperature) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Model.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Model.Ollama.Model }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Model.OpenAI.Model }},
	{"OPENAI_BASE_URL", func(c *Config) string { return c.Model.OpenAI.BaseURL }},
	{"AZURE_OPENAI_API_KEY", func(c *Config) string { return c.Model.Azure.APIKey }},
	{"AZURE_OPENAI_ENDPOINT", func(c *Config) string { return c.Model.Azure.Endpoint }},
	{"AZURE_OPENAI_DEPLOYMENT", func(c *Config) string { return c.Model.Azure.Deployment }},
	{"AZURE_OPENAI_API_VERSION", func(c *Config) string { return c.Model.Azure.APIVersion }},
	{"GOOGLE_API_KEY", func(c *Config) string { return c.Model.Gemini.APIKey }},
	{"GEMINI_MODEL", func(c *Config) string { return c.Model.Gemini.Model }},
	{"ARK_API_KEY", func(c *Config) string { return c.Model.Ark.APIKey }},
	{"ARK_MODEL", func(c *Config) string { return c.Model.Ark.Model }},
	{"ARK_BASE_URL", func(c *Config) string { return c.Model.Ark.BaseURL }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"FINDER_THRESHOLD", func(c *Config) string { return float32Str(c.Finder.Threshold) }},
	{"FINDER_LIMIT", func(c *Config) string { return intStr(c.Finder.Limit) }},
	{"FINDER_MAX_TOKENS", func(c *Config) string { return intStr(c.Finder.MaxTokens) }},
	{"FINDER_TEMPERATURE", func(c *Config) string { return float32Str(c.Finder.Temperature) }},
	{"FINDER_PERSONA", func(c *Config) string { return c.Finder.Persona }},
	{"FINDER_CONTEXT_WINDOW", func(c *Config) string { return intStr(c.Finder.ContextWindow) }},
	{"SEARCH_BACKEND", func(c *Config) string { return c.Search.Backend }},
	{"CATALOG_BACKEND", func(c *Config) string { return c.Catalog.Backend }},
	{"SHOWFINDER_CATALOG_DB", func(c *Config) string { return c.Catalog.DBPath }},
	{"DATABASE_URL", func(c *Config) string { return c.Database.URL }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"EMBED_BATCH_SIZE", func(c *Config) string { return intStr(c.Embed.BatchSize) }},
	{"EMBED_LIMIT", func(c *Config) string { return intStr(c.Embed.Limit) }},
	{"EMBED_ERROR_POLICY", func(c *Config) string { return c.Embed.ErrorPolicy }},
	{"SHOWFINDER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SHOWFINDER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"SHOWFINDER_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
// An explicit path that does not exist is an error.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path, err := resolveConfigPath(explicitPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied, err := apply(&cfg)
	if err != nil {
		return "", err
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// apply exports every non-empty field of cfg whose env var is unset.
func apply(cfg *Config) (int, error) {
	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set, do not override
		}
		if err := os.Setenv(m.envKey, yamlVal); err != nil {
			return applied, fmt.Errorf("config: failed to set %s: %w", m.envKey, err)
		}
		applied++
	}
	return applied, nil
}

// LoadDotenv loads DotenvFiles from dir (the working directory when empty)
// without overriding variables that are already set. Missing files are
// skipped. It returns the files that were loaded.
func LoadDotenv(dir string, log *slog.Logger) ([]string, error) {
	var loaded []string
	for _, name := range DotenvFiles {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("config: failed to load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	if len(loaded) > 0 {
		log.Debug("config: loaded dotenv files", slog.Any("files", loaded))
	}
	return loaded, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config: --config %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if envPath := os.Getenv("SHOWFINDER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := filepath.Join(home, ".showfinder", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if _, err := os.Stat("showfinder.yaml"); err == nil {
		return "showfinder.yaml", nil
	}

	return "", nil
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(float64(v), 'f', 4, 32), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
