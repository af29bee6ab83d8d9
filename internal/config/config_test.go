package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoad_MissingExplicitPath(t *testing.T) {
	t.Parallel()

	path, err := Load("/nonexistent/path/config.yaml", discard())
	if err == nil {
		t.Fatal("expected an error for a missing --config file")
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_NoFileAnywhere(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SHOWFINDER_CONFIG", "")
	t.Chdir(t.TempDir())

	path, err := Load("", discard())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_ValidFile(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", `
completion:
  provider: openai
  model: gpt-3.5-turbo-instruct
finder:
  threshold: 0.8
  limit: 5
  max_tokens: 1500
  temperature: 0.3
search:
  backend: qdrant
catalog:
  backend: sqlite
  db_path: /tmp/catalog.db
database:
  url: postgres://showfinder@db/showfinder
model:
  provider: ark
  ark:
    model: ep-2026-chat
embedding:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
qdrant:
  host: qdrant.internal
  port: 6334
  tls: true
embed:
  batch_size: 50
  error_policy: continue
server:
  port: 9090
logging:
  level: debug
  format: text
`)

	want := map[string]string{
		"COMPLETION_PROVIDER":   "openai",
		"COMPLETION_MODEL":      "gpt-3.5-turbo-instruct",
		"FINDER_THRESHOLD":      "0.8",
		"FINDER_LIMIT":          "5",
		"FINDER_MAX_TOKENS":     "1500",
		"FINDER_TEMPERATURE":    "0.3",
		"SEARCH_BACKEND":        "qdrant",
		"CATALOG_BACKEND":       "sqlite",
		"SHOWFINDER_CATALOG_DB": "/tmp/catalog.db",
		"DATABASE_URL":          "postgres://showfinder@db/showfinder",
		"MODEL_PROVIDER":        "ark",
		"ARK_MODEL":             "ep-2026-chat",
		"EMBEDDING_PROVIDER":    "ollama",
		"EMBEDDING_MODEL":       "nomic-embed-text",
		"EMBEDDING_DIMENSIONS":  "768",
		"QDRANT_HOST":           "qdrant.internal",
		"QDRANT_PORT":           "6334",
		"QDRANT_TLS":            "true",
		"EMBED_BATCH_SIZE":      "50",
		"EMBED_ERROR_POLICY":    "continue",
		"SHOWFINDER_PORT":       "9090",
		"LOG_LEVEL":             "debug",
		"LOG_FORMAT":            "text",
	}
	keys := make([]string, 0, len(want)+1)
	for k := range want {
		keys = append(keys, k)
	}
	clearEnv(t, append(keys, "EMBED_LIMIT")...)

	loaded, err := Load(cfgPath, discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, v := range want {
		if got := os.Getenv(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
	if _, set := os.LookupEnv("EMBED_LIMIT"); set {
		t.Error("EMBED_LIMIT: zero YAML value must not be exported")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", `
completion:
  provider: chat
search:
  backend: qdrant
`)

	t.Setenv("COMPLETION_PROVIDER", "openai")
	clearEnv(t, "SEARCH_BACKEND")

	if _, err := Load(cfgPath, discard()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("COMPLETION_PROVIDER"); got != "openai" {
		t.Errorf("COMPLETION_PROVIDER: expected env override %q, got %q", "openai", got)
	}
	if got := os.Getenv("SEARCH_BACKEND"); got != "qdrant" {
		t.Errorf("SEARCH_BACKEND: got %q, want %q", got, "qdrant")
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "custom.yaml", "finder:\n  limit: 7\n")
	t.Setenv("SHOWFINDER_CONFIG", cfgPath)
	clearEnv(t, "FINDER_LIMIT")

	loaded, err := Load("", discard())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("FINDER_LIMIT"); got != "7" {
		t.Errorf("FINDER_LIMIT = %q, want 7", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "{{invalid yaml")

	if _, err := Load(cfgPath, discard()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env.local", "OPENAI_API_KEY=sk-local\nFINDER_LIMIT=3\n")
	writeFile(t, dir, ".env", "OPENAI_API_KEY=sk-shared\nDATABASE_URL=postgres://from-dotenv\nLOG_LEVEL=debug\n")

	clearEnv(t, "OPENAI_API_KEY", "FINDER_LIMIT", "DATABASE_URL")
	t.Setenv("LOG_LEVEL", "warn")

	loaded, err := LoadDotenv(dir, discard())
	if err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("loaded = %v, want both files", loaded)
	}

	checks := map[string]string{
		"OPENAI_API_KEY": "sk-local", // .env.local wins over .env
		"FINDER_LIMIT":   "3",
		"DATABASE_URL":   "postgres://from-dotenv",
		"LOG_LEVEL":      "warn", // the real environment wins over both
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestLoadDotenv_NoFiles(t *testing.T) {
	t.Parallel()

	loaded, err := LoadDotenv(t.TempDir(), discard())
	if err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("loaded = %v, want none", loaded)
	}
}

func TestEnvMapping_UniqueKeys(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool, len(envMapping))
	for _, m := range envMapping {
		if seen[m.envKey] {
			t.Errorf("duplicate env mapping for %s", m.envKey)
		}
		seen[m.envKey] = true
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.5, "0.5"},
		{0.78, "0.78"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
