package reranker

import (
	"context"
	"sort"

	"github.com/ragstore/engine/store"
)

// crossEncoderReranker simulates a cross-encoder's joint (query,
// passage) scoring without shipping real model weights: it produces a
// logit from the lexical-bonus ladder plus the candidate's existing
// similarity, then falls back to pure lexical bonus when that logit's
// range across the candidate set is too narrow to be informative
// (spec §4.5's "degenerate logit range" fallback).
type crossEncoderReranker struct{}

func (crossEncoderReranker) Strategy() store.RerankingStrategy { return store.RerankCrossEncoder }

func (crossEncoderReranker) Rerank(_ context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		scores[i] = clamp01(c.Similarity*0.5 + lexicalBonus(query, c)*0.5)
	}

	if degenerateRange(scores) {
		for i, c := range candidates {
			scores[i] = clamp01(lexicalBonus(query, c))
		}
	}

	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Similarity = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

// degenerateRange reports whether scores are too tightly clustered to
// carry a meaningful ranking signal (spread under 0.02), the
// condition under which the cross-encoder falls back to pure lexical
// scoring per spec §4.5.
func degenerateRange(scores []float32) bool {
	if len(scores) < 2 {
		return false
	}
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max-min < 0.02
}
