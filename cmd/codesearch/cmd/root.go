// Package cmd provides the CLI commands for code-search.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/logging"
	"github.com/Anabaai/code-search/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the codesearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codesearch [query]",
		Short: "Local-first hybrid code search",
		Long: `codesearch provides hybrid search (BM25 + semantic) over codebases
for AI coding assistants and everyday terminal use.

It runs entirely locally; no network calls, no API keys required.

Running 'codesearch <query>' searches the current directory directly.
Run 'codesearch --mcp' to expose the same search as a tool-protocol
server over stdio.`,
		Version:      version.Version,
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mcpMode {
				return runMCP(cmd.Context())
			}
			if len(args) == 0 {
				return cmd.Help()
			}
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), searchOptions{
				path:  ".",
				limit: 0, // resolved against config/env default
			})
		},
	}

	cmd.SetVersionTemplate("codesearch version {{.Version}}\n")

	cmd.Flags().BoolVar(&mcpMode, "mcp", false, "Run the tool-protocol server on stdio")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.codesearch/logs/")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newIndexInfoCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

var mcpMode bool

func startLogging(_ *cobra.Command, _ []string) error {
	// --mcp requires stdout (and, to be safe, stderr) reserved exclusively
	// for JSON-RPC framing, so MCP mode always uses the file-only logger
	// regardless of --debug.
	if mcpMode {
		cleanup, err := logging.SetupMCPMode()
		if err != nil {
			return err
		}
		loggingCleanup = cleanup
		return nil
	}

	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", slog.String("log_file", logging.DefaultLogPath()))
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
