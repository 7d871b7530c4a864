package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Anabaai/code-search/internal/chunk"
	"github.com/Anabaai/code-search/internal/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, store.Dimensions)
		v[i%store.Dimensions] = 1.0
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return store.Dimensions }

// fakeChunker stands in for CodeChunker's universal Tier A/Tier B
// contract: it chunks any non-empty content regardless of extension,
// since the real chunker always has a heuristic fallback for languages
// it doesn't recognize.
type fakeChunker struct{}

func (fakeChunker) SupportedExtensions() []string { return []string{".txt"} }

func (fakeChunker) LanguageForExtension(ext string) string {
	if ext == ".txt" {
		return "text"
	}
	return ""
}

func (fakeChunker) Chunk(ctx context.Context, file *chunk.FileInput, maxLines int) ([]*chunk.Chunk, error) {
	if len(file.Content) == 0 {
		return nil, nil
	}
	return []*chunk.Chunk{{
		FilePath:  file.Path,
		Content:   string(file.Content),
		StartLine: 1,
		EndLine:   1,
	}}, nil
}

func newTestIndexer(t *testing.T) (*Indexer, *store.VectorStore, *store.TextIndex) {
	t.Helper()
	vectors := store.NewVectorStore()
	text, err := store.NewTextIndex("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = vectors.Close()
		_ = text.Close()
	})
	idx := NewIndexer(vectors, text, fakeEmbedder{}, fakeChunker{})
	return idx, vectors, text
}

func TestIndexer_ReindexIndexesNewFiles(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	stats, err := idx.Reindex(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 1, stats.ChunksIndexed)
	assert.Equal(t, 1, vectors.Count())
}

func TestIndexer_ReindexSkipsUnchangedFiles(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello world"), 0o644))

	_, err := idx.Reindex(context.Background(), root, nil, 0)
	require.NoError(t, err)

	stats, err := idx.Reindex(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FilesIndexed)
	assert.Equal(t, 1, vectors.Count())
}

func TestIndexer_ReindexDeletesRemovedFiles(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	filePath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello world"), 0o644))

	_, err := idx.Reindex(context.Background(), root, nil, 0)
	require.NoError(t, err)
	require.Equal(t, 1, vectors.Count())

	require.NoError(t, os.Remove(filePath))

	stats, err := idx.Reindex(context.Background(), root, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FilesDeleted)
	assert.Equal(t, 0, vectors.Count())
}

func TestIndexer_IndexFileUpsertsSingleFile(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("new content"), 0o644))

	require.NoError(t, idx.IndexFile(context.Background(), root, "a.txt", 0))
	assert.Equal(t, 1, vectors.Count())
}

func TestIndexer_IndexFileDeletesWhenMissing(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	filePath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("content"), 0o644))
	require.NoError(t, idx.IndexFile(context.Background(), root, "a.txt", 0))
	require.Equal(t, 1, vectors.Count())

	require.NoError(t, os.Remove(filePath))
	require.NoError(t, idx.IndexFile(context.Background(), root, "a.txt", 0))
	assert.Equal(t, 0, vectors.Count())
}

// Every extension the walker allows through reaches the chunker: there
// is no per-extension gate, since the chunker contract guarantees a
// Tier B fallback for any language it doesn't recognize.
func TestIndexer_IndexFileChunksRegardlessOfExtension(t *testing.T) {
	idx, vectors, _ := newTestIndexer(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.bin"), []byte("binary"), 0o644))

	require.NoError(t, idx.IndexFile(context.Background(), root, "a.bin", 0))
	assert.Equal(t, 1, vectors.Count())
}
