package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunIndexInfo_NoIndexYetPrintsHint(t *testing.T) {
	root := t.TempDir()

	cmd := newIndexInfoCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)

	require.NoError(t, runIndexInfo(context.Background(), cmd, root))
	assert.Contains(t, buf.String(), "No index found")
}

func TestRunIndexInfo_AfterIndexingShowsStats(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))

	indexCmd := newIndexCmd()
	indexCmd.SetOut(&bytes.Buffer{})
	require.NoError(t, runIndex(context.Background(), indexCmd, root, nil, 0))

	infoCmd := newIndexInfoCmd()
	buf := &bytes.Buffer{}
	infoCmd.SetOut(buf)
	require.NoError(t, runIndexInfo(context.Background(), infoCmd, root))

	out := buf.String()
	assert.Contains(t, out, "files:     1")
	assert.Contains(t, out, "embedder:")
}
