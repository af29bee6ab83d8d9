// Package completion invokes the text completion endpoint that turns an
// assembled prompt into a recommendation.
//
// Two backends implement [Completer]:
//
//   - [OpenAICompleter] calls the legacy /v1/completions endpoint through
//     github.com/sashabaranov/go-openai, buffered or as server-sent events.
//   - [ChatCompleter] sends the prompt as a single user message to any eino
//     chat model built by the provider package.
package completion

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Request is one completion call.
type Request struct {
	// Prompt is the full prompt text.
	Prompt string
	// MaxTokens caps the generated length.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float32
}

// Choice is one generated alternative.
type Choice struct {
	Index        int    `json:"index"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason,omitempty"`
}

// Response is a buffered completion result.
type Response struct {
	ID      string   `json:"id"`
	Choices []Choice `json:"choices"`
}

// Text returns the text of the first choice, or "" when there is none.
func (r *Response) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Text
}

// Completer is a completion endpoint client.
type Completer interface {
	// Validate reports a missing credential as *apperr.ConfigError. It never
	// makes a network call.
	Validate() error

	// Complete performs a buffered completion.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Stream performs a streaming completion, writing each text fragment to
	// w in arrival order. It returns nil once the stream has ended and
	// writes nothing after the end-of-stream marker.
	Stream(ctx context.Context, req Request, w io.Writer) error

	// Name identifies the backend and model for logs, e.g. "openai/gpt-3.5-turbo-instruct".
	Name() string
}

// validateRequest rejects requests the endpoint would refuse anyway.
func validateRequest(req Request) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return fmt.Errorf("completion: prompt must not be empty")
	}
	if req.MaxTokens < 0 {
		return fmt.Errorf("completion: max tokens must not be negative, got %d", req.MaxTokens)
	}
	return nil
}
