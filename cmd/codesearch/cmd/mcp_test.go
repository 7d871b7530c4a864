package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultLimit_UsesBuiltInDefaultWithNoConfig(t *testing.T) {
	dir := t.TempDir()
	limit, err := resolveDefaultLimit(dir)
	require.NoError(t, err)
	assert.Equal(t, defaultSearchLimit, limit)
}

func TestResolveDefaultLimit_ReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".codesearch.yaml"), []byte("limit: 25\n"), 0o644))

	limit, err := resolveDefaultLimit(dir)
	require.NoError(t, err)
	assert.Equal(t, 25, limit)
}
