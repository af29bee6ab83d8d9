package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/showfinder-go/internal/catalog"
	"github.com/54b3r/showfinder-go/internal/store"
)

// NewImportCmd constructs the `showfinder import` command, which loads a
// Netflix titles CSV export into the configured catalog.
func NewImportCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a Netflix titles CSV into the show catalog",
		Long: `Read a netflix_titles.csv export (show_id, title and description
columns, any order, extra columns ignored) and upsert every row into the
catalog selected by CATALOG_BACKEND. Rows are keyed by show_id, so
re-importing the same file is safe. With SEARCH_BACKEND=postgres the
catalog must be postgres too, since stored embeddings reference it.

Examples:
  showfinder import --csv ./netflix_titles.csv
  CATALOG_BACKEND=sqlite showfinder import --csv ./netflix_titles.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			f, err := os.Open(csvPath)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer func() { _ = f.Close() }()

			shows, err := catalog.ReadCSV(f)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			dst, name, closeCatalog, err := openCatalog(ctx, log)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer closeCatalog()

			if err := dst.UpsertShows(ctx, shows); err != nil {
				return fmt.Errorf("import: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "imported %d shows into the %s catalog\n", len(shows), name)
			if s, ok := dst.(*store.SQLiteStore); ok {
				if n, err := s.Count(ctx); err == nil {
					fmt.Fprintf(out, "catalog now holds %d shows\n", n)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Path to the netflix_titles CSV file")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}
