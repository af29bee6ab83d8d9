package completion

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/54b3r/showfinder-go/internal/apperr"
)

// ChatCompleter implements Completer on an eino chat model. The prompt is
// sent as one user message; per-request MaxTokens and Temperature are passed
// as call options.
type ChatCompleter struct {
	model model.BaseChatModel
	name  string
	// configErr is returned by Validate when no model could be built
	// because of missing configuration.
	configErr error
}

// NewChatCompleter wraps a ready chat model. name labels the backend in logs
// and errors, e.g. "azure/gpt-4o".
func NewChatCompleter(m model.BaseChatModel, name string) *ChatCompleter {
	return &ChatCompleter{model: m, name: name}
}

// unconfiguredChat returns a ChatCompleter whose Validate reports err.
func unconfiguredChat(name string, err error) *ChatCompleter {
	return &ChatCompleter{name: name, configErr: err}
}

// Validate implements Completer.
func (c *ChatCompleter) Validate() error {
	if c.configErr != nil {
		return c.configErr
	}
	if c.model == nil {
		return &apperr.ConfigError{Key: "MODEL_PROVIDER", Reason: "no chat model configured"}
	}
	return nil
}

// Name implements Completer.
func (c *ChatCompleter) Name() string { return "chat/" + c.name }

func (c *ChatCompleter) input(req Request) ([]*schema.Message, []model.Option) {
	msgs := []*schema.Message{schema.UserMessage(req.Prompt)}
	var opts []model.Option
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	opts = append(opts, model.WithTemperature(req.Temperature))
	return msgs, opts
}

// Complete implements Completer. Chat models do not return a completion ID,
// so one is generated.
func (c *ChatCompleter) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	msgs, opts := c.input(req)
	msg, err := c.model.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat completer: %w", c.upstream(err))
	}

	choice := Choice{Text: msg.Content}
	if msg.ResponseMeta != nil {
		choice.FinishReason = msg.ResponseMeta.FinishReason
	}
	return &Response{ID: "chatcmpl-" + uuid.NewString(), Choices: []Choice{choice}}, nil
}

// Stream implements Completer.
func (c *ChatCompleter) Stream(ctx context.Context, req Request, w io.Writer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := validateRequest(req); err != nil {
		return err
	}

	msgs, opts := c.input(req)
	sr, err := c.model.Stream(ctx, msgs, opts...)
	if err != nil {
		return fmt.Errorf("chat completer: %w", c.upstream(err))
	}
	defer sr.Close()

	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("chat completer: %w", c.upstream(err))
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		if _, err := io.WriteString(w, chunk.Content); err != nil {
			return fmt.Errorf("chat completer: write fragment: %w", err)
		}
	}
}

func (c *ChatCompleter) upstream(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &apperr.UpstreamError{Service: c.Name(), Err: err}
}
