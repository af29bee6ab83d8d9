// Package commands defines all Cobra CLI commands for the showfinder binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/audit"
	"github.com/54b3r/showfinder-go/internal/config"
	"github.com/54b3r/showfinder-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "showfinder",
		Short: "Find Netflix shows from a plain-language description",
		Long: `showfinder answers "what should I watch?" questions over a catalog of
Netflix titles. It embeds the description, looks up the most similar show
synopses and asks a completion model to recommend from them.

Credentials and backends come from the environment, .env.local / .env in
the working directory, or a YAML config file (~/.showfinder/config.yaml).
See 'showfinder --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			dotenv, err := config.LoadDotenv("", log)
			if err != nil {
				return err
			}

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			// LOG_LEVEL and LOG_FORMAT may have come from a file.
			log = logging.New()
			slog.SetDefault(log)

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path, dotenv)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.showfinder/config.yaml)")

	root.AddCommand(
		NewAskCmd(),
		NewSearchCmd(),
		NewServeCmd(),
		NewEmbedCmd(),
		NewImportCmd(),
		NewMigrateCmd(),
		NewVersionCmd(),
	)

	return root
}
