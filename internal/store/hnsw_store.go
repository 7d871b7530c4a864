package store

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
)

// storedRow is one indexed chunk together with the unit-normalized vector
// it was embedded to, kept alongside the HNSW graph so orphaned nodes can
// be dropped on Cleanup without re-reading the graph itself.
type storedRow struct {
	Chunk  Chunk
	Vector []float32
}

// VectorStore is the ANN-backed table over indexed chunks. One row is
// stored per chunk, keyed by an internal uint64 so coder/hnsw's graph
// keys never need to encode path/index pairs.
type VectorStore struct {
	mu    sync.RWMutex
	graph *hnsw.Graph[uint64]

	rows    map[uint64]storedRow
	byPath  map[string][]uint64 // file path -> graph keys, for delete-by-path
	nextKey uint64

	closed bool
}

// vectorMetadata is the persisted side-table (everything the HNSW graph
// export doesn't carry: row content and the vectors themselves).
type vectorMetadata struct {
	Rows    map[uint64]storedRow
	NextKey uint64
}

// NewVectorStore creates an empty, in-memory vector store. Use Load to
// restore one previously persisted with Save.
func NewVectorStore() *VectorStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.EuclideanDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &VectorStore{
		graph:  graph,
		rows:   make(map[uint64]storedRow),
		byPath: make(map[string][]uint64),
	}
}

// GetIndexedMetadata returns the mtime currently stored for every indexed
// file path. The Indexer diffs this against a fresh walk to decide which
// files need re-chunking and re-embedding.
func (s *VectorStore) GetIndexedMetadata() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]uint64, len(s.byPath))
	for path, keys := range s.byPath {
		if len(keys) == 0 {
			continue
		}
		out[path] = s.rows[keys[0]].Chunk.MTime
	}
	return out
}

// Upsert replaces every chunk previously stored for each distinct file
// path touched by chunks, then appends the new chunks. Delete-then-append,
// not a merge, so a file that shrank loses its trailing stale chunks.
func (s *VectorStore) Upsert(chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	for _, v := range embeddings {
		if len(v) != Dimensions {
			return ErrDimensionMismatch{Expected: Dimensions, Got: len(v)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	touched := make(map[string]bool)
	for _, c := range chunks {
		touched[c.FilePath] = true
	}
	for path := range touched {
		s.deletePathLocked(path)
	}

	for i, c := range chunks {
		vec := make([]float32, len(embeddings[i]))
		copy(vec, embeddings[i])
		normalizeVectorInPlace(vec)

		key := s.nextKey
		s.nextKey++

		s.graph.Add(hnsw.MakeNode(key, vec))
		s.rows[key] = storedRow{Chunk: c, Vector: vec}
		s.byPath[c.FilePath] = append(s.byPath[c.FilePath], key)
	}

	return nil
}

// DeleteFiles removes every chunk stored for the given file paths.
func (s *VectorStore) DeleteFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	for _, path := range paths {
		s.deletePathLocked(path)
	}
	return nil
}

// deletePathLocked orphans a path's graph nodes without calling
// graph.Delete, which mishandles removal of the last remaining node.
// Orphaned nodes stay in the graph but are filtered out of results
// because they no longer have a row entry.
func (s *VectorStore) deletePathLocked(path string) {
	for _, key := range s.byPath[path] {
		delete(s.rows, key)
	}
	delete(s.byPath, path)
}

// Search returns up to k nearest chunks to the query vector, scored by
// max(0, 1 - distance/2) against the Euclidean distance coder/hnsw
// reports for unit-normalized vectors (equivalent to cosine distance).
func (s *VectorStore) Search(query []float32, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("vector store is closed")
	}
	if len(query) != Dimensions {
		return nil, ErrDimensionMismatch{Expected: Dimensions, Got: len(query)}
	}
	if s.graph.Len() == 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	normalizeVectorInPlace(normalized)

	// Over-fetch by the current orphan count so lazily-deleted nodes
	// don't starve the result set below k.
	orphans := s.graph.Len() - len(s.rows)
	if orphans < 0 {
		orphans = 0
	}
	nodes := s.graph.Search(normalized, k+orphans)

	results := make([]SearchResult, 0, k)
	for _, node := range nodes {
		row, ok := s.rows[node.Key]
		if !ok {
			continue
		}
		d := s.graph.Distance(normalized, node.Value)
		score := float32(math.Max(0, 1-float64(d)/2))

		results = append(results, SearchResult{
			FilePath:   row.Chunk.FilePath,
			ChunkIndex: row.Chunk.ChunkIndex,
			Content:    row.Chunk.Content,
			LineStart:  row.Chunk.LineStart,
			LineEnd:    row.Chunk.LineEnd,
			Score:      score,
		})
		if len(results) >= k {
			break
		}
	}

	return results, nil
}

// Cleanup rebuilds the HNSW graph from the live rows, discarding
// lazily-orphaned nodes accumulated by repeated Upsert/DeleteFiles calls.
// Best-effort: a failure here never blocks indexing or search.
func (s *VectorStore) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.graph.Len() == len(s.rows) {
		return nil
	}

	fresh := hnsw.NewGraph[uint64]()
	fresh.Distance = s.graph.Distance
	fresh.M = s.graph.M
	fresh.EfSearch = s.graph.EfSearch
	fresh.Ml = s.graph.Ml

	newRows := make(map[uint64]storedRow, len(s.rows))
	newByPath := make(map[string][]uint64, len(s.byPath))
	var nextKey uint64

	for path, keys := range s.byPath {
		for _, oldKey := range keys {
			row, ok := s.rows[oldKey]
			if !ok {
				continue
			}
			newKey := nextKey
			nextKey++
			fresh.Add(hnsw.MakeNode(newKey, row.Vector))
			newRows[newKey] = row
			newByPath[path] = append(newByPath[path], newKey)
		}
	}

	s.graph = fresh
	s.rows = newRows
	s.byPath = newByPath
	s.nextKey = nextKey
	return nil
}

// Count returns the number of live (non-orphaned) rows.
func (s *VectorStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// Save persists the graph and its row metadata to <path> and <path>.meta,
// each written atomically via a temp file and rename.
func (s *VectorStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename index file: %w", err)
	}

	return s.saveMetadata(path + ".meta")
}

func (s *VectorStore) saveMetadata(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create metadata file: %w", err)
	}

	meta := vectorMetadata{Rows: s.rows, NextKey: s.nextKey}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close metadata file: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores a vector store previously written by Save.
func (s *VectorStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("vector store is closed")
	}

	if err := s.loadMetadata(path + ".meta"); err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()

	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("import graph: %w", err)
	}
	return nil
}

func (s *VectorStore) loadMetadata(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open metadata file: %w", err)
	}
	defer f.Close()

	var meta vectorMetadata
	if err := gob.NewDecoder(f).Decode(&meta); err != nil {
		return fmt.Errorf("decode metadata: %w", err)
	}

	s.rows = meta.Rows
	s.nextKey = meta.NextKey
	s.byPath = make(map[string][]uint64, len(s.rows))
	for key, row := range s.rows {
		s.byPath[row.Chunk.FilePath] = append(s.byPath[row.Chunk.FilePath], key)
	}
	return nil
}

// Close releases resources. The store cannot be reused afterward.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.graph = nil
	return nil
}

// normalizeVectorInPlace scales a vector to unit length.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
