// Package store provides the on-disk persistence layer: an HNSW-backed
// vector table, a Bleve-backed BM25 text index, and a SQLite metadata
// store used only for ambient CLI statistics.
package store

import "fmt"

// Chunk is a retrievable unit of source content: one AST node or sliding
// window, with its line span and its file's modification time.
type Chunk struct {
	FilePath   string
	ChunkIndex int
	Content    string
	LineStart  int
	LineEnd    int
	MTime      uint64
}

// SearchResult is a ranked hit returned from a vector or fused search.
type SearchResult struct {
	FilePath   string
	ChunkIndex int
	Content    string
	LineStart  int
	LineEnd    int
	Score      float32
}

// TextDoc is a single path's full text, as indexed into the BM25 index.
type TextDoc struct {
	Path    string
	Content string
}

// TextResult is a single BM25 hit: a path and its relevance score.
type TextResult struct {
	Path  string
	Score float64
}

// Dimensions is the embedding width every vector this module stores must
// match; fixed so the HNSW graph never has to branch on model identity.
const Dimensions = 384

// ErrDimensionMismatch indicates a vector arrived with the wrong width.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (delete .code-search and run 'codesearch index')", e.Expected, e.Got)
}
