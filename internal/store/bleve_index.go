package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	codeTokenizerName = "code_tokenizer"
	codeStopFilterName = "code_stop"
	codeAnalyzerName   = "code_analyzer"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
	_ = registry.RegisterTokenFilter(codeStopFilterName, codeStopFilterConstructor)
}

// TextIndex is the path-keyed BM25 inverted index over file content.
type TextIndex struct {
	mu    sync.RWMutex
	index bleve.Index
	path  string
	closed bool
}

// bleveDoc is the document shape Bleve indexes: content only. The path is
// the document ID, not a field, so it's never tokenized.
type bleveDoc struct {
	Content string `json:"content"`
}

// NewTextIndex opens the index at path, creating it if absent. An empty
// path creates an in-memory index, used by tests.
func NewTextIndex(path string) (*TextIndex, error) {
	indexMapping, err := newCodeIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("create index mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open/create text index: %w", err)
	}

	return &TextIndex{index: idx, path: path}, nil
}

func newCodeIndexMapping() (*mapping.IndexMappingImpl, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": codeTokenizerName,
		"token_filters": []string{
			lowercase.Name,
			codeStopFilterName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	m.DefaultAnalyzer = codeAnalyzerName
	return m, nil
}

// IndexText replaces path's document with content. A file that is
// reindexed multiple times (e.g. once per chunk during a migration from
// the old multi-chunk API) simply overwrites its single document.
func (t *TextIndex) IndexText(path, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("text index is closed")
	}
	return t.index.Index(path, bleveDoc{Content: content})
}

// Delete removes path's document, if present.
func (t *TextIndex) Delete(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("text index is closed")
	}
	return t.index.Delete(path)
}

// Search returns the top 50 paths matching query, scored by BM25.
// A malformed or empty query returns an empty slice, never an error.
func (t *TextIndex) Search(query string) []TextResult {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed || strings.TrimSpace(query) == "" {
		return nil
	}

	q := bleve.NewMatchQuery(query)
	q.SetField("content")

	req := bleve.NewSearchRequest(q)
	req.Size = 50

	result, err := t.index.Search(req)
	if err != nil {
		return nil
	}

	out := make([]TextResult, 0, len(result.Hits))
	for _, hit := range result.Hits {
		out = append(out, TextResult{Path: hit.ID, Score: hit.Score})
	}
	return out
}

// Save is a no-op: Bleve's disk-backed index persists as it is written.
func (t *TextIndex) Save() error {
	return nil
}

// Close closes the underlying Bleve index.
func (t *TextIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.index.Close()
}

func codeTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

type codeTokenizer struct{}

func (codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	tokens := TokenizeCode(text)

	stream := make(analysis.TokenStream, 0, len(tokens))
	pos := 1
	offset := 0
	for _, tok := range tokens {
		start := strings.Index(strings.ToLower(text[offset:]), strings.ToLower(tok))
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(tok)

		stream = append(stream, &analysis.Token{
			Term:     []byte(tok),
			Start:    start,
			End:      end,
			Position: pos,
			Type:     analysis.AlphaNumeric,
		})
		pos++
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}

func codeStopFilterConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.TokenFilter, error) {
	return codeStopFilter{stopWords: BuildStopWordMap(DefaultCodeStopWords)}, nil
}

type codeStopFilter struct {
	stopWords map[string]struct{}
}

func (f codeStopFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if _, stop := f.stopWords[strings.ToLower(string(tok.Term))]; !stop {
			out = append(out, tok)
		}
	}
	return out
}

// DefaultCodeStopWords are common programming keywords filtered out of
// the BM25 index so they don't dominate term-frequency scoring.
var DefaultCodeStopWords = []string{
	"var", "let", "const", "func", "function", "def", "class",
	"return", "if", "else", "for", "while",
	"data", "result", "value", "item", "key", "err", "ctx", "tmp",
}

// BuildStopWordMap converts a slice of stop words to a set for lookup.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
