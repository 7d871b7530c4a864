// Package app wires the stores, chunkers, embedder, indexer, and ranker
// into the single runtime the CLI and tool-protocol server both drive.
// It is the one place that owns the on-disk layout under
// <repo>/.code-search/.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Anabaai/code-search/internal/chunk"
	"github.com/Anabaai/code-search/internal/config"
	"github.com/Anabaai/code-search/internal/embed"
	"github.com/Anabaai/code-search/internal/index"
	"github.com/Anabaai/code-search/internal/search"
	"github.com/Anabaai/code-search/internal/store"
)

const dataDirName = ".code-search"

// vectorFileName and textDirName are the on-disk names of the two
// indices, relative to the project's data directory.
const (
	vectorFileName = "code_chunks"
	textDirName    = "text_index"
	metadataDBName = "metadata.db"
)

// App bundles one project's open stores and ranking/indexing pipeline.
// Callers must call Close when done.
type App struct {
	Root     string
	Config   *config.Config
	Vectors  *store.VectorStore
	Text     *store.TextIndex
	Metadata *store.MetadataStore
	Embedder *embed.StaticEmbedder
	Indexer  *index.Indexer
	Ranker   *search.HybridRanker

	codeChunker *chunk.CodeChunker
}

func dataDir(root string) string {
	return filepath.Join(root, dataDirName)
}

// Open loads (or initializes) the on-disk index for root and returns a
// ready-to-use App. The returned App must be closed by the caller.
func Open(ctx context.Context, root string) (*App, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	dir := dataDir(root)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	vectors := store.NewVectorStore()
	vectorPath := filepath.Join(dir, vectorFileName)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vectors.Load(vectorPath); err != nil {
			return nil, fmt.Errorf("load vector store: %w", err)
		}
	}

	text, err := store.NewTextIndex(filepath.Join(dir, textDirName))
	if err != nil {
		return nil, fmt.Errorf("open text index: %w", err)
	}

	metadata, err := store.NewMetadataStore(ctx, filepath.Join(dir, metadataDBName))
	if err != nil {
		_ = text.Close()
		return nil, fmt.Errorf("open metadata store: %w", err)
	}

	embedder := embed.NewStaticEmbedder()
	codeChunker := chunk.NewCodeChunker()

	indexer := index.NewIndexer(vectors, text, embedder, codeChunker)
	ranker := search.NewHybridRanker(vectors, text, embedder, search.DefaultWeights)

	return &App{
		Root:        root,
		Config:      cfg,
		Vectors:     vectors,
		Text:        text,
		Metadata:    metadata,
		Embedder:    embedder,
		Indexer:     indexer,
		Ranker:      ranker,
		codeChunker: codeChunker,
	}, nil
}

// Reindex walks Root, updates the vector and text indices for any
// changed or deleted files, persists both to disk, and records the
// resulting counts in the metadata store. maxLines bounds the line
// extent of a single chunk (<= 0 uses the chunker's default).
func (a *App) Reindex(ctx context.Context, excludes []string, maxLines int) (*index.Stats, error) {
	stats, err := a.Indexer.Reindex(ctx, a.Root, excludes, maxLines)
	if err != nil {
		return nil, err
	}

	if err := a.Vectors.Save(filepath.Join(dataDir(a.Root), vectorFileName)); err != nil {
		return stats, fmt.Errorf("save vector store: %w", err)
	}

	if err := a.Metadata.RecordReindex(ctx, a.Root, len(a.Vectors.GetIndexedMetadata()), a.Vectors.Count(), a.Embedder.ModelName()); err != nil {
		return stats, fmt.Errorf("record reindex stats: %w", err)
	}

	return stats, nil
}

// IndexFile re-chunks and re-embeds a single changed file, then persists
// the vector store. Used by the watcher's per-event handler. maxLines
// bounds the line extent of a single chunk (<= 0 uses the chunker's
// default).
func (a *App) IndexFile(ctx context.Context, relPath string, maxLines int) error {
	if err := a.Indexer.IndexFile(ctx, a.Root, relPath, maxLines); err != nil {
		return err
	}
	return a.Vectors.Save(filepath.Join(dataDir(a.Root), vectorFileName))
}

// Stats returns the ambient index summary recorded by the last Reindex,
// or nil if the project has never been indexed.
func (a *App) Stats(ctx context.Context) (*store.ProjectStats, error) {
	return a.Metadata.GetStats(ctx, a.Root)
}

// Close releases every store the App opened.
func (a *App) Close() error {
	a.codeChunker.Close()
	var firstErr error
	if err := a.Text.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Metadata.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := a.Vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
