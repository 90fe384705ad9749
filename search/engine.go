// Package search implements the Search Engine (spec §4.7): embed the
// query, run an ANN search through the Index Manager, join results
// back to their Store rows, convert cosine distance to a similarity
// score, and optionally rerank.
//
// Grounded on pkg/core/store_search.go/advanced_search.go's result
// shaping (ScoredEmbedding, cosine-distance-to-score conversion) and
// reranker.go's SearchWithReranker candidate-multiplier pattern (an
// oversampled candidate set is fetched before reranking trims back to
// k) in the teacher repo.
package search

import (
	"context"

	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/reranker"
	"github.com/ragstore/engine/store"
)

// rerankCandidateMultiplier oversamples the ANN search so a reranker
// has more than k candidates to reorder, the same tradeoff the
// teacher's SearchWithReranker makes.
const rerankCandidateMultiplier = 3

// Options controls the optional parts of a search, matching spec
// §4.7's {top_k, rerank?, contentType?} option set. The zero value
// (Rerank false, ContentType "") means "raw ANN order, any content
// type" even when the Engine was constructed with a reranker.
type Options struct {
	// Rerank requests reranking with the Engine's configured
	// Reranker, if any. Defaults to false per spec §4.7.
	Rerank bool
	// ContentType, if non-empty, restricts results to that content
	// type (spec §4.3's text-only/image-only query support).
	ContentType store.ContentType
}

// Result is a single search hit joined back to its owning document.
type Result struct {
	EmbeddingID    string
	DocumentSource string
	DocumentTitle  string
	Content        string
	ContentType    store.ContentType
	Similarity     float32
}

// Engine runs queries against one Index Manager + Store pair.
type Engine struct {
	idx *indexmgr.Manager
	st  *store.Store
	emb embedder.Embedder
	rr  reranker.Reranker
	log logging.Logger
}

// New constructs an Engine. rr may be nil, in which case results are
// returned in raw ANN order.
func New(idx *indexmgr.Manager, st *store.Store, emb embedder.Embedder, rr reranker.Reranker, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{idx: idx, st: st, emb: emb, rr: rr, log: log}
}

// Search embeds query with the configured embedder and returns the
// top k results.
func (e *Engine) Search(ctx context.Context, query string, k int, opts Options) ([]Result, error) {
	vec, err := e.emb.Embed(ctx, query, store.ContentText)
	if err != nil {
		return nil, ragerr.Wrap("search", ragerr.KindModel, err)
	}
	return e.searchWithVector(ctx, query, vec, k, opts)
}

// SearchWithVector skips embedding and searches directly with a
// caller-supplied vector, used by multimodal callers that already
// have an image embedding in hand.
func (e *Engine) SearchWithVector(ctx context.Context, vector []float32, k int, opts Options) ([]Result, error) {
	return e.searchWithVector(ctx, "", vector, k, opts)
}

func (e *Engine) searchWithVector(ctx context.Context, queryText string, vector []float32, k int, opts Options) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	rerankRequested := opts.Rerank && e.rr != nil && e.rr.Strategy() != store.RerankDisabled
	fetchK := k
	if rerankRequested {
		fetchK = k * rerankCandidateMultiplier
	}

	candidates, err := e.idx.Search(ctx, vector, fetchK, opts.ContentType)
	if err != nil {
		return nil, ragerr.Wrap("search", ragerr.KindIndex, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, len(candidates))
	distanceByID := make(map[string]float32, len(candidates))
	for i, c := range candidates {
		ids[i] = c.EmbeddingID
		distanceByID[c.EmbeddingID] = c.Distance
	}

	rows, err := e.st.GetChunksByEmbeddingIDs(ctx, ids)
	if err != nil {
		return nil, ragerr.Wrap("search", ragerr.KindStore, err)
	}

	rowByID := make(map[string]store.ChunkWithDocument, len(rows))
	for _, row := range rows {
		rowByID[row.EmbeddingID] = row
	}

	results := make([]Result, 0, len(candidates))
	for _, id := range ids {
		row, ok := rowByID[id]
		if !ok {
			// The vector index has a label for this id but the store no
			// longer does (spec §5: tolerate brief desync, never crash).
			e.log.Warn("dropping desynchronized search hit", "embedding_id", id, "error", ragerr.ErrDesynchronized)
			continue
		}
		dist := distanceByID[id]
		similarity := 1 - dist
		if similarity < 0 {
			similarity = 0
		}
		results = append(results, Result{
			EmbeddingID:    row.EmbeddingID,
			DocumentSource: row.DocumentSource,
			DocumentTitle:  row.DocumentTitle,
			Content:        row.Content,
			ContentType:    row.ContentType,
			Similarity:     similarity,
		})
	}

	if rerankRequested && queryText != "" {
		reranked, err := e.rerank(ctx, queryText, results)
		if err != nil {
			e.log.Warn("rerank failed, returning unranked results", "error", err)
		} else {
			results = reranked
		}
	}

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (e *Engine) rerank(ctx context.Context, query string, results []Result) ([]Result, error) {
	candidates := make([]reranker.Candidate, len(results))
	for i, r := range results {
		candidates[i] = reranker.Candidate{
			EmbeddingID: r.EmbeddingID,
			Content:     r.Content,
			Title:       r.DocumentTitle,
			Similarity:  r.Similarity,
		}
	}
	reranked, err := e.rr.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Result, len(results))
	for _, r := range results {
		byID[r.EmbeddingID] = r
	}
	out := make([]Result, 0, len(reranked))
	for _, c := range reranked {
		r := byID[c.EmbeddingID]
		r.Similarity = c.Similarity
		out = append(out, r)
	}
	return out, nil
}
