package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anabaai/code-search/internal/app"
	"github.com/Anabaai/code-search/internal/output"
	"github.com/Anabaai/code-search/internal/search"
)

// defaultSearchLimit is the built-in fallback when no flag, config
// value, or CODE_SEARCH_LIMIT env var is set.
const defaultSearchLimit = 10

type searchOptions struct {
	path     string
	maxLines int
	exclude  []string
	limit    int
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search runs hybrid (BM25 + semantic) search over the project at --path,
indexing it first if it has never been indexed or has changed since.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVar(&opts.path, "path", ".", "Project root to search")
	cmd.Flags().IntVar(&opts.maxLines, "max-lines", 0, "Maximum lines per chunk before the heuristic chunker splits it (default 60)")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Glob pattern to exclude from indexing (repeatable)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Maximum number of results (default from config/CODE_SEARCH_LIMIT/10)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	out := output.New(cmd.OutOrStdout())

	a, err := app.Open(ctx, opts.path)
	if err != nil {
		return fmt.Errorf("open project: %w", err)
	}
	defer a.Close()

	if _, err := a.Reindex(ctx, opts.exclude, resolveMaxLines(opts.maxLines, a.Config.MaxLines)); err != nil {
		return fmt.Errorf("index project: %w", err)
	}

	limit := resolveLimit(opts.limit, a.Config.Limit)

	results, err := a.Ranker.Search(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}

	if len(results) == 0 {
		out.Status("i", fmt.Sprintf("No results found for %q", query))
		return nil
	}

	printResults(out, results)
	return nil
}

// resolveLimit applies the precedence flags > CODE_SEARCH_LIMIT > config
// file > built-in default. cliLimit is 0 when --limit wasn't set; cfgLimit
// already carries the env-var override applied by config.Load.
func resolveLimit(cliLimit, cfgLimit int) int {
	if cliLimit > 0 {
		return cliLimit
	}
	if cfgLimit > 0 {
		return cfgLimit
	}
	if v := os.Getenv("CODE_SEARCH_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultSearchLimit
}

// resolveMaxLines applies the precedence flag > config > chunker built-in
// default. cliMaxLines is 0 when --max-lines wasn't set; 0 is passed
// straight through to the chunker when cfgMaxLines is also unset, letting
// chunk.DefaultMaxLines apply.
func resolveMaxLines(cliMaxLines, cfgMaxLines int) int {
	if cliMaxLines > 0 {
		return cliMaxLines
	}
	return cfgMaxLines
}

func printResults(out *output.Writer, results []search.Result) {
	for _, r := range results {
		out.Statusf("›", "%s:%d:%d (score: %.2f)", r.FilePath, r.LineStart, r.LineEnd, r.Score)
		out.Code(r.Content)
		out.Newline()
	}
}
