// Package server implements the HTTP surface of the show finder: the
// /api/askgpt recommendation endpoint (streamed or buffered), /api/search,
// liveness, readiness and Prometheus metrics.
// The server is started by the `showfinder serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/showfinder-go/internal/apperr"
	"github.com/54b3r/showfinder-go/internal/finder"
	"github.com/54b3r/showfinder-go/internal/logging"
	"github.com/54b3r/showfinder-go/internal/rag"
)

// maxBodyBytes caps request bodies on the JSON endpoints.
const maxBodyBytes = 64 << 10

// New constructs a Server in front of the given pipeline.
func New(p *finder.Pipeline, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	return newServer(p, cfg), nil
}

// newServer applies config defaults and builds the router around a.
func newServer(a asker, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for streaming responses.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.AskTimeout == 0 {
		cfg.AskTimeout = 5 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		finder:  a,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stop

	if cfg.APIKey == "" {
		log.Warn("server: SHOWFINDER_API_KEY is not set, /api/askgpt and /api/search are unauthenticated")
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return requestLogger(log, next) })
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return authMiddleware(cfg.APIKey, next) })
		r.Use(rl.middleware)
		r.Post("/api/askgpt", s.handleAsk)
		r.Post("/api/search", s.handleSearch)
	})

	s.handler = r
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("showfinder server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("showfinder server stopped")
		return nil
	}
}

// handleAsk handles POST /api/askgpt. A streamed answer is written as raw
// text/plain and flushed per fragment; a buffered answer is a JSON body.
// Failures before the first byte are JSON errors; a failure mid-stream cuts
// the response.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query is required")
		return
	}

	q := finder.Query{Text: req.Query, Context: req.Context, Mode: finder.ModeBuffered}
	if req.Stream == nil || *req.Stream {
		q.Mode = finder.ModeStreaming
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.AskTimeout)
	defer cancel()

	start := time.Now()
	var err error
	if q.Mode == finder.ModeStreaming {
		err = s.streamAnswer(ctx, w, r, q)
	} else {
		err = s.bufferedAnswer(ctx, w, r, q)
	}

	outcome := outcomeOf(err)
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// streamAnswer runs q in streaming mode, writing fragments straight to w.
func (s *Server) streamAnswer(ctx context.Context, w http.ResponseWriter, r *http.Request, q finder.Query) error {
	s.metrics.askActiveStreams.Inc()
	defer s.metrics.askActiveStreams.Dec()

	flusher, _ := w.(http.Flusher)
	sw := &streamWriter{w: w, flusher: flusher}

	if _, err := s.finder.Ask(ctx, q, sw); err != nil {
		if !sw.started {
			writeError(w, r, statusFor(err), err.Error())
			return err
		}
		logging.FromContext(r.Context()).Error("askgpt: stream interrupted",
			slog.Int("bytes_written", sw.written),
			slog.Any("error", err),
		)
		return err
	}
	// An answer with no fragments is still a successful, empty stream.
	sw.start()
	return nil
}

// bufferedAnswer runs q in buffered mode and writes the JSON response.
func (s *Server) bufferedAnswer(ctx context.Context, w http.ResponseWriter, r *http.Request, q finder.Query) error {
	ans, err := s.finder.Ask(ctx, q, nil)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return err
	}
	writeJSON(w, r, http.StatusOK, askResponse{ID: ans.ID, Context: ans.Context, Choices: ans.Choices})
	return nil
}

// handleSearch handles POST /api/search: retrieval only, no completion.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, http.StatusBadRequest, "query is required")
		return
	}

	matches, block, err := s.finder.Retrieve(r.Context(), req.Query)
	if err != nil {
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	resp := searchResponse{Context: block, Matches: matches}
	if resp.Matches == nil {
		resp.Matches = []rag.Match{}
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// streamWriter sends the response headers lazily on the first non-empty
// fragment, so errors raised before any output can still become a JSON
// error response.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
	written int
}

// start commits a 200 text/plain response.
func (sw *streamWriter) start() {
	if sw.started {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

// Write forwards p to the client and flushes it immediately.
func (sw *streamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sw.start()
	n, err := sw.w.Write(p)
	sw.written += n
	if err != nil {
		return n, err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return n, nil
}

// statusFor maps a pipeline error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, finder.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return apperr.HTTPStatus(err)
	}
}

// outcomeOf returns the metrics outcome label for an /api/askgpt result.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

// decodeJSON decodes a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}

// writeError writes the {"error":{"message":...}} envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	logging.FromContext(r.Context()).Warn("request failed",
		slog.Int("status", status),
		slog.String("error", msg),
	)
	writeJSON(w, r, status, errorBody{Error: errorDetail{Message: msg}})
}
