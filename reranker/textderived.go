package reranker

import (
	"context"
	"sort"

	"github.com/ragstore/engine/store"
	"github.com/ragstore/engine/vectorindex"
)

// textDerivedReranker is the multimodal strategy: it re-embeds the
// query's text form with the same embedder used for indexing and
// reorders by 0.7 × cosine similarity against each candidate's
// re-embedded content plus 0.3 × the lexical bonus, avoiding a second
// model entirely (spec
// §4.5: "reranking model" is optional for this strategy).
type textDerivedReranker struct {
	embed func(ctx context.Context, text string) ([]float32, error)
}

func (textDerivedReranker) Strategy() store.RerankingStrategy { return store.RerankTextDerived }

func (r *textDerivedReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 || r.embed == nil {
		return candidates, nil
	}

	queryVec, err := r.embed(ctx, query)
	if err != nil {
		return candidates, nil // degrade to unranked order rather than fail the search
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i, c := range out {
		contentVec, err := r.embed(ctx, c.Content)
		if err != nil {
			continue
		}
		sim := 1 - vectorindex.CosineDistance(queryVec, contentVec)
		out[i].Similarity = clamp01(sim*0.7 + lexicalBonus(query, c)*0.3)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}
