package completion

import (
	"context"
	"fmt"
	"os"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/provider"
)

// Backend names accepted by COMPLETION_PROVIDER.
const (
	BackendOpenAI = "openai"
	BackendChat   = "chat"
)

// NewFromEnv builds the Completer selected by COMPLETION_PROVIDER.
//
//	COMPLETION_PROVIDER = openai | chat (default: openai)
//
//	openai: OPENAI_API_KEY, COMPLETION_MODEL (default: gpt-3.5-turbo-instruct),
//	        COMPLETION_BASE_URL
//	chat:   MODEL_PROVIDER and its provider-specific keys (see provider.ConfigFromEnv)
//
// Missing credentials do not fail construction; the returned Completer
// reports them from Validate so each request fails with a ConfigError
// before any network call.
func NewFromEnv(ctx context.Context) (Completer, error) {
	backend := os.Getenv("COMPLETION_PROVIDER")
	if backend == "" {
		backend = BackendOpenAI
	}

	switch backend {
	case BackendOpenAI:
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("COMPLETION_BASE_URL"),
			Model:   os.Getenv("COMPLETION_MODEL"),
		}), nil

	case BackendChat:
		cfg := provider.ConfigFromEnv()
		name := fmt.Sprintf("%s/%s", cfg.Backend, cfg.ModelName())
		m, err := provider.New(ctx, cfg)
		if apperr.IsConfig(err) {
			return unconfiguredChat(name, err), nil
		}
		if err != nil {
			return nil, fmt.Errorf("completion: failed to build chat model: %w", err)
		}
		return NewChatCompleter(m, name), nil

	default:
		return nil, &apperr.ConfigError{
			Key:    "COMPLETION_PROVIDER",
			Reason: fmt.Sprintf("unknown backend %q, valid values: openai, chat", backend),
		}
	}
}
