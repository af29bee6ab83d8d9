package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/completion"
)

// fakePinger is a test double for the Pinger interface.
type fakePinger struct {
	name string
	err  error
}

func (f *fakePinger) Name() string                 { return f.name }
func (f *fakePinger) Ping(_ context.Context) error { return f.err }

// stubCompleter satisfies completion.Completer; only Validate and Name matter
// to the readiness probe.
type stubCompleter struct {
	validateErr error
}

func (c *stubCompleter) Validate() error { return c.validateErr }
func (c *stubCompleter) Complete(context.Context, completion.Request) (*completion.Response, error) {
	return nil, errors.New("not used")
}
func (c *stubCompleter) Stream(context.Context, completion.Request, io.Writer) error {
	return errors.New("not used")
}
func (c *stubCompleter) Name() string { return "openai/gpt-3.5-turbo-instruct" }

func TestHandleHealth_OK(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t, &fakeAsker{})
	w := do(s, http.MethodGet, "/api/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status: expected %q, got %q", "ok", body["status"])
	}
}

func TestHandleReady(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingers    []Pinger
		wantStatus int
		wantReady  bool
		wantFailed []string
	}{
		{
			name:       "no pingers",
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "all healthy",
			pingers: []Pinger{
				&fakePinger{name: "postgres"},
				&fakePinger{name: "llm"},
			},
			wantStatus: http.StatusOK,
			wantReady:  true,
		},
		{
			name: "one failing",
			pingers: []Pinger{
				&fakePinger{name: "postgres"},
				&fakePinger{name: "qdrant", err: errors.New("connection refused")},
				&fakePinger{name: "llm"},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"qdrant"},
		},
		{
			name: "all failing",
			pingers: []Pinger{
				&fakePinger{name: "postgres", err: errors.New("timeout")},
				NewLLMPinger(&stubCompleter{validateErr: apperr.Missing("OPENAI_API_KEY")}),
			},
			wantStatus: http.StatusServiceUnavailable,
			wantFailed: []string{"postgres", "llm"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, _ := newTestServer(t, &fakeAsker{}, func(c *Config) { c.Pingers = tc.pingers })
			w := do(s, http.MethodGet, "/api/ready", "")

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			var resp readyResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Ready != tc.wantReady {
				t.Errorf("ready = %v, want %v", resp.Ready, tc.wantReady)
			}
			if len(resp.Checks) != len(tc.pingers) {
				t.Fatalf("checks = %d, want %d", len(resp.Checks), len(tc.pingers))
			}

			var failed []string
			for i, c := range resp.Checks {
				if c.Name != tc.pingers[i].Name() {
					t.Errorf("check %d name = %q, want %q (order must be preserved)", i, c.Name, tc.pingers[i].Name())
				}
				if !c.OK {
					if c.Error == "" {
						t.Errorf("check %q failed without an error message", c.Name)
					}
					failed = append(failed, c.Name)
				}
			}
			if len(failed) != len(tc.wantFailed) {
				t.Fatalf("failed = %v, want %v", failed, tc.wantFailed)
			}
			for i := range failed {
				if failed[i] != tc.wantFailed[i] {
					t.Errorf("failed = %v, want %v", failed, tc.wantFailed)
				}
			}
		})
	}
}

func TestNewPinger(t *testing.T) {
	t.Parallel()

	down := errors.New("dial tcp: connection refused")
	var got context.Context
	p := NewPinger("postgres", func(ctx context.Context) error {
		got = ctx
		return down
	})

	if p.Name() != "postgres" {
		t.Errorf("Name() = %q", p.Name())
	}
	if err := p.Ping(t.Context()); !errors.Is(err, down) {
		t.Errorf("Ping() = %v, want %v", err, down)
	}
	if got == nil {
		t.Error("probe was not called with a context")
	}
}

func TestLLMPinger(t *testing.T) {
	t.Parallel()

	ok := NewLLMPinger(&stubCompleter{})
	if err := ok.Ping(t.Context()); err != nil {
		t.Errorf("configured completer: Ping() = %v", err)
	}

	bad := NewLLMPinger(&stubCompleter{validateErr: apperr.Missing("OPENAI_API_KEY")})
	err := bad.Ping(t.Context())
	if !apperr.IsConfig(err) {
		t.Fatalf("Ping() = %v, want a ConfigError", err)
	}
}
