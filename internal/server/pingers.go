package server

import (
	"context"
	"fmt"

	"github.com/54b3r/showfinder-go/internal/completion"
)

// pingFunc adapts a plain probe function to the Pinger interface.
type pingFunc struct {
	name string
	fn   func(ctx context.Context) error
}

// NewPinger wraps fn as a Pinger labelled name. Stores that already expose
// Ping(ctx) error, such as *pgstore.Store and *rag.QdrantStore, plug in as
// NewPinger("postgres", store.Ping).
func NewPinger(name string, fn func(ctx context.Context) error) Pinger {
	return &pingFunc{name: name, fn: fn}
}

// Name returns the dependency label.
func (p *pingFunc) Name() string { return p.name }

// Ping runs the wrapped probe.
func (p *pingFunc) Ping(ctx context.Context) error { return p.fn(ctx) }

// LLMPinger reports whether the completion backend is usable. It checks the
// backend's configuration only and never sends a completion request, so
// readiness probes cost no tokens.
type LLMPinger struct {
	completer completion.Completer
}

// NewLLMPinger constructs an LLMPinger for c.
func NewLLMPinger(c completion.Completer) *LLMPinger {
	return &LLMPinger{completer: c}
}

// Name returns the dependency label used in readiness responses.
func (p *LLMPinger) Name() string { return "llm" }

// Ping validates the completer's configuration.
func (p *LLMPinger) Ping(_ context.Context) error {
	if err := p.completer.Validate(); err != nil {
		return fmt.Errorf("%s: %w", p.completer.Name(), err)
	}
	return nil
}
