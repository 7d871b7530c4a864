package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/mcp"
)

func runMCP(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	limit, err := resolveDefaultLimit(".")
	if err != nil {
		limit = defaultSearchLimit
	}

	server := mcp.NewServer(limit)
	defer server.Close()

	return server.Serve(ctx, os.Stdin, os.Stdout)
}

// resolveDefaultLimit loads dir's config to get the limit a tool-protocol
// call should use, since the search tool's schema takes no limit field.
func resolveDefaultLimit(dir string) (int, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return 0, err
	}
	return cfg.Limit, nil
}
