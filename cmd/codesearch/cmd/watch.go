package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/app"
	"github.com/Anabaai/code-search/internal/output"
	"github.com/Anabaai/code-search/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a project and keep its index up to date",
		Long: `Watch runs the indexer once, then keeps watching the project root for
file changes, re-indexing each changed file as it settles. Runs in the
foreground until interrupted; it does not start the tool-protocol server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd, path)
		},
	}

	cmd.Flags().StringVar(&path, "path", ".", "Project root to watch")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	a, err := app.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	defer a.Close()

	out.Status("…", fmt.Sprintf("Indexing %s", path))
	if _, err := a.Reindex(ctx, nil, 0); err != nil {
		return fmt.Errorf("index: %w", err)
	}

	w, err := watcher.NewFSWatcher(watcher.DefaultOptions())
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()

	go func() {
		if err := w.Start(ctx, path); err != nil && ctx.Err() == nil {
			slog.Error("watcher stopped", slog.String("error", err.Error()))
		}
	}()

	out.Success("Watching for changes. Press Ctrl+C to stop.")

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-w.Events():
			if !ok {
				return nil
			}
			for _, ev := range batch {
				if err := a.IndexFile(ctx, ev.Path, 0); err != nil {
					slog.Error("reindex failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
					continue
				}
				out.Statusf("↻", "%s: %s", ev.Operation, ev.Path)
			}
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}
