// Package search implements hybrid ranking over the vector and text
// stores: vector search supplies the candidate set and content, BM25
// results contribute a rank-based boost, and a literal substring match
// contributes a further boost.
package search

import (
	"context"
	"sort"
	"strings"

	"github.com/Anabaai/code-search/internal/store"
)

// rrfConstant is the RRF smoothing constant applied to the BM25 rank
// boost. k=60 is the same constant used by Azure AI Search, OpenSearch,
// and other hybrid-search implementations.
const rrfConstant = 60

// textRankBoost scales the 1/(k+rank) contribution of a BM25 match.
const textRankBoost = 10.0

// substringBoost is added when the query appears verbatim in a
// candidate's content, case-insensitively.
const substringBoost = 0.1

// scoreThreshold discards candidates whose fused score falls at or
// below it.
const scoreThreshold = 0.01

// maxChunksPerFile caps how many chunks from a single file may appear
// in the final result set, so one large file cannot crowd out others.
const maxChunksPerFile = 3

// minVectorFetch is the floor on how many vector candidates are
// fetched before fusion and diversity filtering, so that a small
// --limit still has enough raw candidates for a meaningful cap.
const minVectorFetch = 50

// Weights controls the relative contribution of the two retrieval
// signals. The zero value is invalid; use DefaultWeights.
type Weights struct {
	Vector float64
	Text   float64
}

// DefaultWeights weighs both signals equally.
var DefaultWeights = Weights{Vector: 1, Text: 1}

// Result is a single ranked search hit.
type Result struct {
	FilePath   string
	ChunkIndex int
	Content    string
	LineStart  int
	LineEnd    int
	Score      float64
}

// VectorSearcher is satisfied by store.VectorStore.
type VectorSearcher interface {
	Search(query []float32, k int) ([]store.SearchResult, error)
}

// TextSearcher is satisfied by store.TextIndex.
type TextSearcher interface {
	Search(query string) []store.TextResult
}

// Embedder produces the query vector handed to VectorSearcher.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HybridRanker fuses vector and BM25 search into a single ranked list.
type HybridRanker struct {
	vectors VectorSearcher
	text    TextSearcher
	embed   Embedder
	weights Weights
}

// NewHybridRanker constructs a ranker over the given stores and
// embedder, using the supplied weights (DefaultWeights if the zero
// value is passed).
func NewHybridRanker(vectors VectorSearcher, text TextSearcher, embed Embedder, weights Weights) *HybridRanker {
	if weights == (Weights{}) {
		weights = DefaultWeights
	}
	return &HybridRanker{vectors: vectors, text: text, embed: embed, weights: weights}
}

// Search embeds query, fetches vector candidates and BM25 matches, and
// returns up to limit fused, diversity-capped results sorted by score.
func (h *HybridRanker) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 1
	}

	vec, err := h.embed.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	fetchLimit := limit * 3
	if fetchLimit < minVectorFetch {
		fetchLimit = minVectorFetch
	}

	vecResults, err := h.vectors.Search(vec, fetchLimit)
	if err != nil {
		return nil, err
	}
	if len(vecResults) == 0 {
		return []Result{}, nil
	}

	// TODO: a BM25 hit whose file never surfaced in vecResults is dropped
	// here rather than recovered with a targeted VectorStore fetch-by-path.
	// Accepted for now: it only costs recall on text-only matches outside
	// the vector candidate set, and the fetch-by-path VectorStore doesn't
	// exist yet.
	textRank := make(map[string]int, 64)
	for rank, r := range h.text.Search(query) {
		if _, exists := textRank[r.Path]; !exists {
			textRank[r.Path] = rank
		}
	}

	queryLower := strings.ToLower(query)

	candidates := make([]Result, 0, len(vecResults))
	for _, v := range vecResults {
		score := float64(v.Score) * h.weights.Vector

		if rank, ok := textRank[v.FilePath]; ok {
			score += h.weights.Text * textRankBoost / float64(rrfConstant+rank)
		}

		if strings.Contains(strings.ToLower(v.Content), queryLower) {
			score += substringBoost
		}

		if score <= scoreThreshold {
			continue
		}

		candidates = append(candidates, Result{
			FilePath:   v.FilePath,
			ChunkIndex: v.ChunkIndex,
			Content:    v.Content,
			LineStart:  v.LineStart,
			LineEnd:    v.LineEnd,
			Score:      score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	perFile := make(map[string]int, len(candidates))
	diversified := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		if perFile[c.FilePath] >= maxChunksPerFile {
			continue
		}
		perFile[c.FilePath]++
		diversified = append(diversified, c)
		if len(diversified) == limit {
			break
		}
	}

	return diversified, nil
}
