package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Anabaai/code-search/internal/search"
)

func TestFormatResults_Empty(t *testing.T) {
	assert.Equal(t, "No results found.", formatResults(nil))
}

func TestFormatResults_SingleResultIncludesHeaderAndSeparators(t *testing.T) {
	out := formatResults([]search.Result{
		{FilePath: "auth.go", LineStart: 10, LineEnd: 14, Content: "func Validate() {}", Score: 0.8765},
	})

	assert.Equal(t, "auth.go:10:14 (score: 0.88)\n"+resultSeparator+"\nfunc Validate() {}\n"+resultSeparator+"\n\n", out)
}

func TestFormatResults_MultipleResultsConcatenate(t *testing.T) {
	out := formatResults([]search.Result{
		{FilePath: "a.go", LineStart: 1, LineEnd: 2, Content: "a", Score: 1},
		{FilePath: "b.go", LineStart: 3, LineEnd: 4, Content: "b", Score: 0.5},
	})

	assert.Contains(t, out, "a.go:1:2")
	assert.Contains(t, out, "b.go:3:4")
}
