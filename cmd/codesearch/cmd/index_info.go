package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/app"
	"github.com/Anabaai/code-search/internal/output"
)

func newIndexInfoCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "index-info",
		Short: "Show index statistics for a project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndexInfo(cmd.Context(), cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project root")
	return cmd
}

func runIndexInfo(ctx context.Context, cmd *cobra.Command, path string) error {
	out := output.New(cmd.OutOrStdout())

	a, err := app.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	defer a.Close()

	stats, err := a.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	if stats == nil {
		out.Status("i", "No index found. Run 'codesearch index' first.")
		return nil
	}

	out.Statusf("•", "root:      %s", stats.RootPath)
	out.Statusf("•", "files:     %d", stats.FileCount)
	out.Statusf("•", "chunks:    %d", stats.ChunkCount)
	out.Statusf("•", "embedder:  %s", stats.EmbedderModel)
	out.Statusf("•", "indexed:   %s", stats.LastIndexedAt.Format("2006-01-02 15:04:05"))

	return nil
}
