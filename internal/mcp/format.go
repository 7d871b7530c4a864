package mcp

import (
	"fmt"
	"strings"

	"github.com/Anabaai/code-search/internal/search"
)

const resultSeparator = "────"

// formatResults renders results as the single text block the search tool
// returns: one entry per result, each a header line followed by its
// content between two separator rules.
func formatResults(results []search.Result) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	for _, r := range results {
		fmt.Fprintf(&sb, "%s:%d:%d (score: %.2f)\n", r.FilePath, r.LineStart, r.LineEnd, r.Score)
		sb.WriteString(resultSeparator)
		sb.WriteString("\n")
		sb.WriteString(r.Content)
		sb.WriteString("\n")
		sb.WriteString(resultSeparator)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
