// Package index drives the reindex and incremental-update pipeline:
// walking a project root, diffing against what the vector store already
// holds, chunking changed files, embedding in batches, and upserting the
// result into the vector and text stores.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Anabaai/code-search/internal/chunk"
	"github.com/Anabaai/code-search/internal/store"
	"github.com/Anabaai/code-search/internal/walker"
)

// embeddingBatchSize is how many chunks are embedded per EmbedBatch call.
const embeddingBatchSize = 32

// progressLogInterval logs a progress line every N processed chunks.
const progressLogInterval = 320

// Embedder is the subset of internal/embed.Embedder the indexer needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Chunker splits one file's content into retrievable chunks. maxLines
// bounds a single chunk's line extent; <= 0 uses the chunker's default.
// A Chunker is expected to have a universal fallback tier for any
// extension its SupportedExtensions advertises, so every file the
// walker allows through ends up chunked, never silently skipped.
type Chunker interface {
	Chunk(ctx context.Context, file *chunk.FileInput, maxLines int) ([]*chunk.Chunk, error)
	SupportedExtensions() []string
	LanguageForExtension(ext string) string
}

// Stats summarizes one Reindex run.
type Stats struct {
	FilesIndexed  int
	FilesDeleted  int
	ChunksIndexed int
	Duration      time.Duration
}

// Indexer owns the vector store, text index, and chunker used to keep
// both in sync with a project root's file contents. A single Chunker
// handles every extension the walker allows through: its Tier A/Tier B
// contract (see internal/chunk.CodeChunker) already falls through to a
// universal heuristic for any language it doesn't have a grammar for.
type Indexer struct {
	vectors  *store.VectorStore
	text     *store.TextIndex
	embedder Embedder
	chunker  Chunker
}

// NewIndexer constructs an Indexer over the given stores, embedder, and
// chunker.
func NewIndexer(vectors *store.VectorStore, text *store.TextIndex, embedder Embedder, chunker Chunker) *Indexer {
	return &Indexer{vectors: vectors, text: text, embedder: embedder, chunker: chunker}
}

// Reindex walks root, diffs the result against what the vector store has
// already indexed, and brings the store up to date: new and modified
// files are chunked and embedded, files no longer present are deleted.
// maxLines bounds the line extent of a single chunk (<= 0 uses the
// chunker's default).
func (idx *Indexer) Reindex(ctx context.Context, root string, excludes []string, maxLines int) (*Stats, error) {
	start := time.Now()

	entries, err := walker.Walk(root, excludes)
	if err != nil {
		return nil, fmt.Errorf("walk project root: %w", err)
	}

	current := make(map[string]uint64, len(entries))
	for _, e := range entries {
		current[e.Path] = e.MTime
	}

	indexed := idx.vectors.GetIndexedMetadata()

	var changed []string
	for path, mtime := range current {
		if prevMTime, ok := indexed[path]; !ok || prevMTime != mtime {
			changed = append(changed, path)
		}
	}

	var removed []string
	for path := range indexed {
		if _, ok := current[path]; !ok {
			removed = append(removed, path)
		}
	}

	if len(removed) > 0 {
		if err := idx.vectors.DeleteFiles(removed); err != nil {
			return nil, fmt.Errorf("delete removed files: %w", err)
		}
		for _, path := range removed {
			_ = idx.text.Delete(path)
		}
	}

	chunks, err := idx.chunkChangedFiles(ctx, root, changed, current, maxLines)
	if err != nil {
		return nil, err
	}

	if err := idx.embedAndUpsert(ctx, chunks); err != nil {
		return nil, err
	}

	if err := idx.text.Save(); err != nil {
		slog.Warn("text index save failed", slog.String("error", err.Error()))
	}

	if err := idx.vectors.Cleanup(); err != nil {
		slog.Warn("vector store cleanup failed", slog.String("error", err.Error()))
	}

	return &Stats{
		FilesIndexed:  len(changed),
		FilesDeleted:  len(removed),
		ChunksIndexed: len(chunks),
		Duration:      time.Since(start),
	}, nil
}

// IndexFile brings a single path up to date: deleted if it no longer
// exists, otherwise re-chunked, re-embedded, and upserted. This is the
// path the file watcher drives on every fs event.
func (idx *Indexer) IndexFile(ctx context.Context, root, relPath string, maxLines int) error {
	absPath := filepath.Join(root, relPath)

	info, err := os.Stat(absPath)
	if os.IsNotExist(err) {
		_ = idx.vectors.DeleteFiles([]string{relPath})
		_ = idx.text.Delete(relPath)
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", relPath, err)
	}

	ext := filepath.Ext(relPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", relPath, err)
	}

	chunks, err := idx.chunker.Chunk(ctx, &chunk.FileInput{Path: relPath, Content: content, Language: idx.chunker.LanguageForExtension(ext)}, maxLines)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", relPath, err)
	}
	if len(chunks) == 0 {
		_ = idx.vectors.DeleteFiles([]string{relPath})
		_ = idx.text.Delete(relPath)
		return nil
	}

	mtime := uint64(info.ModTime().Unix())
	storeChunks := convertChunks(relPath, chunks, mtime)

	if err := idx.embedAndUpsert(ctx, storeChunks); err != nil {
		return err
	}
	if err := idx.text.IndexText(relPath, string(content)); err != nil {
		return fmt.Errorf("text index %s: %w", relPath, err)
	}
	return idx.text.Save()
}

// chunkChangedFiles reads and chunks every changed path in parallel,
// bounded to one goroutine per CPU.
func (idx *Indexer) chunkChangedFiles(ctx context.Context, root string, paths []string, mtimes map[string]uint64, maxLines int) ([]store.Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	results := make([][]store.Chunk, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			ext := filepath.Ext(path)

			content, err := os.ReadFile(filepath.Join(root, path))
			if err != nil {
				slog.Warn("read failed, skipping", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}

			chunks, err := idx.chunker.Chunk(gctx, &chunk.FileInput{Path: path, Content: content, Language: idx.chunker.LanguageForExtension(ext)}, maxLines)
			if err != nil {
				slog.Warn("chunk failed, skipping", slog.String("path", path), slog.String("error", err.Error()))
				return nil
			}

			results[i] = convertChunks(path, chunks, mtimes[path])

			if err := idx.text.IndexText(path, string(content)); err != nil {
				slog.Warn("text index failed", slog.String("path", path), slog.String("error", err.Error()))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []store.Chunk
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// embedAndUpsert embeds chunks in fixed-size batches and upserts each
// batch into the vector store, logging progress periodically.
func (idx *Indexer) embedAndUpsert(ctx context.Context, chunks []store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	processed := 0
	for start := 0; start < len(chunks); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		contents := make([]string, len(batch))
		for i, c := range batch {
			contents[i] = c.Content
		}

		embeddings, err := idx.embedder.EmbedBatch(ctx, contents)
		if err != nil {
			return fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}

		if err := idx.vectors.Upsert(batch, embeddings); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}

		processed += len(batch)
		if processed%progressLogInterval == 0 || processed == len(chunks) {
			slog.Info("indexing progress", slog.Int("processed", processed), slog.Int("total", len(chunks)))
		}
	}
	return nil
}

func convertChunks(path string, chunks []*chunk.Chunk, mtime uint64) []store.Chunk {
	out := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		out[i] = store.Chunk{
			FilePath:   path,
			ChunkIndex: i,
			Content:    c.Content,
			LineStart:  c.StartLine,
			LineEnd:    c.EndLine,
			MTime:      mtime,
		}
	}
	return out
}
