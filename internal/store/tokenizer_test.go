package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeCode_SplitsCamelCase(t *testing.T) {
	tokens := TokenizeCode("getUserById")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
}

func TestTokenizeCode_SplitsSnakeCase(t *testing.T) {
	tokens := TokenizeCode("parse_http_request")
	assert.Contains(t, tokens, "parse")
	assert.Contains(t, tokens, "http")
	assert.Contains(t, tokens, "request")
}

func TestTokenizeCode_FiltersShortTokens(t *testing.T) {
	tokens := TokenizeCode("a b cd")
	assert.NotContains(t, tokens, "a")
	assert.NotContains(t, tokens, "b")
	assert.Contains(t, tokens, "cd")
}

func TestSplitCamelCase_HandlesAcronyms(t *testing.T) {
	assert.Equal(t, []string{"HTTP", "Handler"}, SplitCamelCase("HTTPHandler"))
	assert.Equal(t, []string{"parse", "HTTP", "Request"}, SplitCamelCase("parseHTTPRequest"))
}

func TestSplitCamelCase_Empty(t *testing.T) {
	assert.Equal(t, []string{}, SplitCamelCase(""))
}

func TestBuildStopWordMap_LowercasesEntries(t *testing.T) {
	m := BuildStopWordMap([]string{"Func", "RETURN"})
	_, ok := m["func"]
	assert.True(t, ok)
	_, ok = m["return"]
	assert.True(t, ok)
}
