package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string) *FSWatcher {
	t.Helper()
	w, err := NewFSWatcher(Options{DebounceWindow: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Start(ctx, root) }()
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})

	// Let fsnotify finish the recursive Add before the test writes files.
	time.Sleep(50 * time.Millisecond)
	return w
}

func waitForBatch(t *testing.T, w *FSWatcher) []FileEvent {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file event batch")
		return nil
	}
}

func TestFSWatcher_EmitsCreateEvent(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0o644))

	batch := waitForBatch(t, w)
	require.NotEmpty(t, batch)
	assert.Equal(t, "a.go", batch[0].Path)
}

func TestFSWatcher_IgnoresBlacklistedDir(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "tracked.go"), []byte("package a"), 0o644))

	batch := waitForBatch(t, w)
	for _, e := range batch {
		assert.NotContains(t, e.Path, "node_modules")
	}
}

func TestFSWatcher_StopClosesChannels(t *testing.T) {
	root := t.TempDir()
	w, err := NewFSWatcher(DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx, root) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}
