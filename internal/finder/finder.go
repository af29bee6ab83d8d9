// Package finder is the query-time pipeline: it retrieves the shows closest to
// a user's description, assembles them into a prompt and asks the completion
// endpoint for a recommendation, buffered or streamed.
package finder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/showfinder-go/internal/budget"
	"github.com/54b3r/showfinder-go/internal/completion"
	"github.com/54b3r/showfinder-go/internal/logging"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// Generation defaults.
const (
	DefaultMaxTokens   = 2000
	DefaultTemperature = float32(0.5)
)

// ErrEmptyQuery is returned when the user's description is blank.
var ErrEmptyQuery = errors.New("finder: query must not be empty")

// Mode selects how the answer is delivered.
type Mode int

const (
	// ModeBuffered waits for the full completion and returns it in Answer.
	ModeBuffered Mode = iota
	// ModeStreaming writes fragments to the caller's writer as they arrive.
	ModeStreaming
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "buffered"
}

// Retriever finds the matches for a query. *rag.Retriever implements it.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]rag.Match, error)
}

// Config holds the dependencies and tuning for a Pipeline.
type Config struct {
	// Retriever embeds the query and runs the similarity search.
	Retriever Retriever

	// Completer is the completion endpoint client.
	Completer completion.Completer

	// Persona opens every prompt. Defaults to DefaultPersona.
	Persona string

	// MaxTokens caps the answer length. Defaults to DefaultMaxTokens.
	MaxTokens int

	// Temperature is the sampling temperature. Nil means DefaultTemperature.
	Temperature *float32

	// ContextWindow is the model's context size, used only to warn about
	// oversized prompts. Defaults to budget.DefaultContextWindow.
	ContextWindow int
}

// Query is one user request.
type Query struct {
	// Text is the user's free-text description.
	Text string
	// Context, when non-empty, is used verbatim as the context block and
	// retrieval is skipped.
	Context string
	// Mode selects buffered or streaming delivery.
	Mode Mode
}

// Answer is the pipeline result.
type Answer struct {
	// ID is the completion ID (buffered mode only).
	ID string
	// Context is the context block sent in the prompt.
	Context string
	// Matches are the retrieved shows; nil when Query.Context was supplied.
	Matches []rag.Match
	// Choices are the completion choices (buffered mode only).
	Choices []completion.Choice
	// Text is the answer text: the first choice in buffered mode, the
	// concatenated fragments in streaming mode.
	Text string
}

// Pipeline runs validate → retrieve → build context → build prompt →
// complete. It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	retriever     Retriever
	completer     completion.Completer
	persona       string
	maxTokens     int
	temperature   float32
	contextWindow int
}

// New constructs a Pipeline from cfg, applying defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("finder: Retriever must not be nil")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("finder: Completer must not be nil")
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("finder: max tokens must not be negative, got %d", cfg.MaxTokens)
	}

	p := &Pipeline{
		retriever:     cfg.Retriever,
		completer:     cfg.Completer,
		persona:       cfg.Persona,
		maxTokens:     cfg.MaxTokens,
		temperature:   DefaultTemperature,
		contextWindow: cfg.ContextWindow,
	}
	if strings.TrimSpace(p.persona) == "" {
		p.persona = DefaultPersona
	}
	if p.maxTokens == 0 {
		p.maxTokens = DefaultMaxTokens
	}
	if cfg.Temperature != nil {
		p.temperature = *cfg.Temperature
	}
	if p.contextWindow <= 0 {
		p.contextWindow = budget.DefaultContextWindow
	}
	return p, nil
}

// Completer returns the pipeline's completion client.
func (p *Pipeline) Completer() completion.Completer { return p.completer }

// Retrieve runs the retrieval half of the pipeline on its own and returns the
// matches together with their rendered context block.
func (p *Pipeline) Retrieve(ctx context.Context, text string) ([]rag.Match, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrEmptyQuery
	}
	matches, err := p.retriever.Retrieve(ctx, text)
	if err != nil {
		return nil, "", fmt.Errorf("finder: retrieval failed: %w", err)
	}
	return matches, BuildContext(matches), nil
}

// Ask answers q. The completer is validated before anything else, so a
// missing credential fails without any network call. A retrieval failure
// aborts before the completion endpoint is contacted.
//
// In ModeStreaming every fragment is written to w as it arrives and
// Answer.Text holds their concatenation; w must not be nil. In ModeBuffered
// w is ignored.
func (p *Pipeline) Ask(ctx context.Context, q Query, w io.Writer) (*Answer, error) {
	log := logging.FromContext(ctx)

	if err := p.completer.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if q.Mode == ModeStreaming && w == nil {
		return nil, fmt.Errorf("finder: streaming mode requires a writer")
	}

	ans := &Answer{Context: q.Context}
	if q.Context == "" {
		start := time.Now()
		matches, block, err := p.Retrieve(ctx, q.Text)
		if err != nil {
			return nil, err
		}
		ans.Matches, ans.Context = matches, block
		log.Debug("finder: retrieved context",
			slog.Int("matches", len(matches)),
			slog.Duration("duration", time.Since(start)),
		)
	}

	prompt := BuildPrompt(p.persona, ans.Context, q.Text)
	if tokens, fits := budget.Check(prompt, p.maxTokens, p.contextWindow); !fits {
		log.Warn("finder: prompt may exceed the model context window",
			slog.Int("prompt_tokens_est", tokens),
			slog.Int("max_tokens", p.maxTokens),
			slog.Int("context_window", p.contextWindow),
		)
	}

	req := completion.Request{Prompt: prompt, MaxTokens: p.maxTokens, Temperature: p.temperature}
	start := time.Now()

	switch q.Mode {
	case ModeStreaming:
		var buf strings.Builder
		if err := p.completer.Stream(ctx, req, io.MultiWriter(w, &buf)); err != nil {
			return nil, fmt.Errorf("finder: completion stream failed: %w", err)
		}
		ans.Text = buf.String()
	default:
		resp, err := p.completer.Complete(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("finder: completion failed: %w", err)
		}
		ans.ID, ans.Choices, ans.Text = resp.ID, resp.Choices, resp.Text()
	}

	log.Info("finder: answered",
		slog.String("mode", q.Mode.String()),
		slog.String("completer", p.completer.Name()),
		slog.Int("matches", len(ans.Matches)),
		slog.Int("answer_chars", len(ans.Text)),
		slog.Duration("completion_duration", time.Since(start)),
	)
	return ans, nil
}
