package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/logging"
)

// NewSearchCmd constructs the `showfinder search` command, which runs only
// the retrieval half of the pipeline and prints the matches.
func NewSearchCmd() *cobra.Command {
	var threshold float32
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search [description]",
		Short: "List the catalog entries most similar to a description",
		Long: `Embed the description and print the catalog entries whose synopsis
similarity reaches the threshold, best match first. No completion model
is called.

Examples:
  showfinder search "space opera with political intrigue"
  showfinder search --json --limit 3 "korean romantic comedy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := slog.Default()
			ctx := logging.WithLogger(cmd.Context(), log)

			d, err := buildDeps(ctx, log, depsOptions{
				threshold: changedFloat32(cmd, "threshold", threshold),
				limit:     limit,
			})
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer d.close()

			matches, _, err := d.pipeline.Retrieve(ctx, strings.Join(args, " "))
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point, error goes directly to cobra
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(matches)
			}
			if len(matches) == 0 {
				fmt.Fprintln(out, "no matching shows")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SIMILARITY\tSHOW ID\tTITLE")
			for _, m := range matches {
				fmt.Fprintf(tw, "%.3f\t%s\t%s\n", m.Similarity, m.ShowID, m.Title)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum cosine similarity for a match (default: FINDER_THRESHOLD or 0.78)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of matches (default: FINDER_LIMIT or 10)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print matches as JSON")

	return cmd
}
