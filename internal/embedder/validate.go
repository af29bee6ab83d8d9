package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat/completion
// models which are NOT suitable for embedding. If EMBEDDING_MODEL matches any
// of these, a warning is emitted so the operator knows the pipeline is likely
// misconfigured.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"davinci",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"gemini",
	"claude",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check for the embedding configuration. It returns
// the same *apperr.ConfigError NewFromEnv would, without constructing a
// client, and warns when EMBEDDING_MODEL looks like a chat model.
//
// dims is the vector size the index was (or will be) created with; a warning
// is logged when it disagrees with the backend's default, since a mismatch
// makes every search call fail.
func Validate(log *slog.Logger, dims int) error {
	backend := Backend()

	if getEnv("EMBEDDING_PROVIDER") == "" {
		log.Debug("embedder: EMBEDDING_PROVIDER not set, using inherited backend",
			slog.String("backend", backend),
		)
	}

	if _, err := NewFromEnv(); err != nil {
		return err
	}

	if model := getEnv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-ada-002, nomic-embed-text"),
		)
	}

	if want := DefaultDimensions(backend); dims > 0 && dims != want {
		log.Warn("embedder: index dimensions differ from the backend default",
			slog.String("backend", backend),
			slog.Int("index_dimensions", dims),
			slog.Int("backend_dimensions", want),
			slog.String("hint", "set EMBEDDING_DIMENSIONS to the model's output size"),
		)
	}

	return nil
}
