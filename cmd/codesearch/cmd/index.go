package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/app"
	"github.com/Anabaai/code-search/internal/output"
)

func newIndexCmd() *cobra.Command {
	var (
		path     string
		exclude  []string
		maxLines int
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the index for a project",
		Long: `Index walks the project, chunks changed files, generates embeddings,
and upserts both the vector and keyword indices. Unchanged files are
skipped; files deleted from disk are removed from the index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, path, exclude, maxLines)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project root to index")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Glob pattern to exclude from indexing (repeatable)")
	cmd.Flags().IntVar(&maxLines, "max-lines", 0, "Maximum lines per chunk before the heuristic chunker splits it (default 60)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, path string, exclude []string, maxLines int) error {
	out := output.New(cmd.OutOrStdout())

	a, err := app.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	defer a.Close()

	out.Status("…", fmt.Sprintf("Indexing %s", path))

	stats, err := a.Reindex(ctx, exclude, resolveMaxLines(maxLines, a.Config.MaxLines))
	if err != nil {
		return fmt.Errorf("index: %w", err)
	}

	out.Successf("Indexed %d files (%d chunks), removed %d, in %s",
		stats.FilesIndexed, stats.ChunksIndexed, stats.FilesDeleted, stats.Duration.Round(time.Millisecond))

	return nil
}
