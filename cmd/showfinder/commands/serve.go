package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/logging"
	"github.com/54b3r/showfinder-go/internal/server"
	"github.com/54b3r/showfinder-go/internal/tracing"
)

// NewServeCmd constructs the `showfinder serve` command, which starts the
// HTTP query service.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the showfinder HTTP API",
		Long: `Start the showfinder HTTP server.

POST /api/askgpt answers a show description with a streamed (or buffered)
recommendation; POST /api/search returns the matching catalog entries only.
GET /api/health, /api/ready and /metrics are unauthenticated.

Set SHOWFINDER_API_KEY to require a Bearer token on the query routes.

Examples:
  showfinder serve
  showfinder serve --port 9090
  SEARCH_BACKEND=qdrant showfinder serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := slog.Default()
			ctx = logging.WithLogger(ctx, log)

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("SHOWFINDER_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("SHOWFINDER_PORT", port)
			}

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			flush, traced := tracing.Setup()
			defer flush()
			if traced {
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			d, err := buildDeps(ctx, log, depsOptions{})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer d.close()

			srv, err := server.New(d.pipeline, &server.Config{
				Host:   host,
				Port:   port,
				Logger: log,
				Pingers: []server.Pinger{
					server.NewPinger(d.storeName, d.store.Ping),
					server.NewLLMPinger(d.pipeline.Completer()),
				},
				APIKey: os.Getenv("SHOWFINDER_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env: SHOWFINDER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env: SHOWFINDER_PORT)")

	return cmd
}
