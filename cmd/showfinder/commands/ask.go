package commands

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/finder"
	"github.com/54b3r/showfinder-go/internal/logging"
	"github.com/54b3r/showfinder-go/internal/tracing"
)

// NewAskCmd constructs the `showfinder ask` command, which answers a single
// show description and streams the recommendation to stdout.
func NewAskCmd() *cobra.Command {
	var noStream bool
	var threshold float32
	var limit int
	var contextText string

	cmd := &cobra.Command{
		Use:   "ask [description]",
		Short: "Ask for show recommendations matching a description",
		Long: `Describe the kind of show you want and get up to three recommendations
drawn from the catalog entries most similar to your description.

The answer is streamed as it is generated unless --no-stream is set.
--context skips the similarity search and uses the given text verbatim.

Examples:
  showfinder ask "a heist thriller set in Spain"
  showfinder ask --no-stream --limit 5 "feel-good baking competition"
  showfinder ask --threshold 0.8 "documentary about deep sea creatures"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			ctx := logging.WithLogger(cmd.Context(), log)

			flush, _ := tracing.Setup()
			defer flush()

			d, err := buildDeps(ctx, log, depsOptions{
				threshold: changedFloat32(cmd, "threshold", threshold),
				limit:     limit,
				strict:    true,
			})
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer d.close()

			mode := finder.ModeStreaming
			if noStream {
				mode = finder.ModeBuffered
			}

			out := cmd.OutOrStdout()
			ans, err := d.pipeline.Ask(ctx, finder.Query{
				Text:    strings.Join(args, " "),
				Context: contextText,
				Mode:    mode,
			}, out)
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point, error goes directly to cobra
			}

			if mode == finder.ModeBuffered {
				fmt.Fprint(out, ans.Text)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the full answer instead of streaming it")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum cosine similarity for a match (default: FINDER_THRESHOLD or 0.78)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches placed in the prompt (default: FINDER_LIMIT or 10)")
	cmd.Flags().StringVar(&contextText, "context", "", "Use this text as the prompt context instead of searching")

	return cmd
}
