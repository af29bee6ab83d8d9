package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/showfinder-go/internal/completion"
	"github.com/54b3r/showfinder-go/internal/finder"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// AskTimeout bounds a single /api/askgpt request end to end, streaming
	// included. Defaults to 5 minutes.
	AskTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on /api/askgpt
	// and /api/search (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on the query routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// MetricsRegistry receives the server's collectors. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// asker is the query pipeline the handlers call. *finder.Pipeline satisfies
// it; tests inject a fake.
type asker interface {
	// Ask answers q, streaming fragments to w in finder.ModeStreaming.
	Ask(ctx context.Context, q finder.Query, w io.Writer) (*finder.Answer, error)
	// Retrieve returns the matches for text and their context block.
	Retrieve(ctx context.Context, text string) ([]rag.Match, string, error)
}

// Server is the HTTP server in front of the show finder pipeline.
type Server struct {
	// finder answers /api/askgpt and /api/search.
	finder asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// handler is the fully wrapped router, exposed for tests.
	handler http.Handler
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/askgpt.
type askRequest struct {
	// Query is the user's description of the show they want.
	Query string `json:"query"`
	// Context, when set, is used as the context block and retrieval is skipped.
	Context string `json:"context,omitempty"`
	// Stream selects a streamed text/plain answer. Defaults to true.
	Stream *bool `json:"stream,omitempty"`
}

// askResponse is the JSON body returned by a buffered POST /api/askgpt.
type askResponse struct {
	// ID is the completion ID assigned by the upstream endpoint.
	ID string `json:"id"`
	// Context is the context block that was sent in the prompt.
	Context string `json:"context"`
	// Choices are the completion choices, first choice first.
	Choices []completion.Choice `json:"choices"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	Query string `json:"query"`
}

// searchResponse is the JSON body returned by POST /api/search.
type searchResponse struct {
	Context string      `json:"context"`
	Matches []rag.Match `json:"matches"`
}

// errorBody is the JSON error envelope: {"error":{"message":"..."}}.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail carries the human-readable failure reason.
type errorDetail struct {
	Message string `json:"message"`
}
