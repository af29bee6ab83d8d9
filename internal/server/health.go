package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/showfinder-go/internal/logging"
)

// probeTimeout bounds each dependency probe during a readiness check.
const probeTimeout = 5 * time.Second

// Pinger is a dependency GET /api/ready can probe: the search backend, the
// catalog database or the completion endpoint. Implementations must be safe
// for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is usable.
	Ping(ctx context.Context) error

	// Name is the label reported in the readiness body ("postgres", "qdrant", "llm").
	Name() string
}

// readyCheck is one probe result.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// readyResponse is the body of GET /api/ready.
type readyResponse struct {
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// probe runs a single Pinger under probeTimeout.
func probe(ctx context.Context, p Pinger) readyCheck {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Ping(ctx)
	c := readyCheck{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// handleReady handles GET /api/ready. Pingers run one after another in
// configuration order; any failure turns the response into a 503.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := readyResponse{Ready: true, Checks: make([]readyCheck, 0, len(s.pingers))}
	for _, p := range s.pingers {
		c := probe(r.Context(), p)
		if !c.OK {
			resp.Ready = false
			log.Warn("readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
				slog.Int64("latency_ms", c.LatencyMS),
			)
		}
		resp.Checks = append(resp.Checks, c)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
