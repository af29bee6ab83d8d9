package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/oai"
)

// serviceOpenAI labels upstream errors raised by this backend.
const serviceOpenAI = "openai completions"

// DefaultOpenAIModel is the instruct model served by /v1/completions.
const DefaultOpenAIModel = openai.GPT3Dot5TurboInstruct

// OpenAIConfig holds the settings for constructing an OpenAICompleter.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key (OPENAI_API_KEY).
	APIKey string
	// BaseURL overrides "https://api.openai.com/v1" (COMPLETION_BASE_URL).
	BaseURL string
	// Model is the completion model (COMPLETION_MODEL). Defaults to
	// DefaultOpenAIModel.
	Model string
	// Timeout bounds each request including the full stream. Zero leaves
	// the bound to the caller's context.
	Timeout time.Duration
}

// OpenAICompleter implements Completer on the legacy completions endpoint.
// It is safe for concurrent use.
type OpenAICompleter struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAICompleter constructs an OpenAICompleter. A missing API key is not
// an error here; it is reported by Validate before the first request.
func NewOpenAICompleter(cfg OpenAIConfig) *OpenAICompleter {
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAICompleter{
		client: oai.NewClient(oai.ClientConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}),
		apiKey: cfg.APIKey,
		model:  model,
	}
}

// Validate implements Completer.
func (c *OpenAICompleter) Validate() error {
	if c.apiKey == "" {
		return apperr.Missing("OPENAI_API_KEY")
	}
	return nil
}

// Name implements Completer.
func (c *OpenAICompleter) Name() string { return "openai/" + c.model }

// request maps req onto the wire type. CompletionRequest.Temperature is
// omitempty, so an explicit 0 is sent as the smallest positive float32
// instead of being dropped in favour of the endpoint's default of 1.
func (c *OpenAICompleter) request(req Request) openai.CompletionRequest {
	temp := req.Temperature
	if temp == 0 {
		temp = math.SmallestNonzeroFloat32
	}
	return openai.CompletionRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: temp,
	}
}

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	resp, err := c.client.CreateCompletion(ctx, c.request(req))
	if err != nil {
		return nil, fmt.Errorf("openai completer: %w", oai.Upstream(serviceOpenAI, err))
	}

	out := &Response{ID: resp.ID, Choices: make([]Choice, 0, len(resp.Choices))}
	for _, ch := range resp.Choices {
		out.Choices = append(out.Choices, Choice{
			Index:        ch.Index,
			Text:         ch.Text,
			FinishReason: ch.FinishReason,
		})
	}
	return out, nil
}

// Stream implements Completer. Each "data:" frame contributes its
// choices[0].text; the "[DONE]" sentinel ends the stream. A frame that is not
// valid JSON is reported as *apperr.StreamParseError.
func (c *OpenAICompleter) Stream(ctx context.Context, req Request, w io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	stream, err := c.client.CreateCompletionStream(ctx, c.request(req))
	if err != nil {
		return fmt.Errorf("openai completer: %w", oai.Upstream(serviceOpenAI, err))
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai completer: %w", streamError(err))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if _, err := io.WriteString(w, chunk.Choices[0].Text); err != nil {
			return fmt.Errorf("openai completer: write fragment: %w", err)
		}
	}
}

// streamError classifies a mid-stream failure: JSON decode errors become
// StreamParseError, everything else is an upstream failure.
func streamError(err error) error {
	var (
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &apperr.StreamParseError{Err: err}
	}
	return oai.Upstream(serviceOpenAI, err)
}
