// Package reranker implements the Reranker contract (spec §4.5):
// cross-encoder, text-derived, and disabled strategies, plus the
// lexical-bonus scorer. The cross-encoder falls back to it alone when
// the candidates' similarity range is degenerate; the text-derived
// strategy blends it into its score.
//
// Grounded on pkg/core/reranker.go's Reranker interface, RerankerFunc
// adapter, and KeywordMatchReranker in the teacher repo — the direct
// ancestor of this spec's lexical-bonus fallback scoring. The
// cross-encoder and text-derived strategies are newly authored (the
// teacher has no model-backed reranker) but kept in the teacher's
// interface shape.
package reranker

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/ragstore/engine/store"
)

// Candidate is one search hit eligible for reranking.
type Candidate struct {
	EmbeddingID string
	Content     string
	Title       string
	Similarity  float32
}

// Reranker reorders a result set against the original query, the way
// pkg/core/reranker.go's Reranker interface does in the teacher repo.
type Reranker interface {
	// Rerank returns candidates with an updated Similarity, sorted
	// descending by that score.
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
	Strategy() store.RerankingStrategy
}

// New constructs the Reranker named by strategy. embed is used only by
// the text-derived strategy, to turn the query and each candidate's
// content into comparison vectors.
func New(strategy store.RerankingStrategy, embed func(ctx context.Context, text string) ([]float32, error)) Reranker {
	switch strategy {
	case store.RerankCrossEncoder:
		return &crossEncoderReranker{}
	case store.RerankTextDerived:
		return &textDerivedReranker{embed: embed}
	default:
		return &disabledReranker{}
	}
}

// disabledReranker returns candidates unchanged (spec §4.5: "disabled
// strategy performs no reordering").
type disabledReranker struct{}

func (disabledReranker) Strategy() store.RerankingStrategy { return store.RerankDisabled }

func (disabledReranker) Rerank(_ context.Context, _ string, candidates []Candidate) ([]Candidate, error) {
	return candidates, nil
}

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

// lexicalBonus scores (query, candidate) using the bonus ladder spec
// §4.5 names: exact match, title match, a definitional pattern
// ("X is a/an ..."), per-word overlap, and an intro-keyword bonus,
// capped at 1.0 and never applied below 0.
func lexicalBonus(query string, c Candidate) float32 {
	q := strings.ToLower(strings.TrimSpace(query))
	content := strings.ToLower(c.Content)
	title := strings.ToLower(c.Title)
	if q == "" {
		return 0
	}

	var bonus float32
	if strings.Contains(content, q) {
		bonus += 0.15
	}
	if title != "" && strings.Contains(title, q) {
		bonus += 0.10
	}
	if isDefinitional(q, content) {
		bonus += 0.30
	}

	queryWords := wordPattern.FindAllString(q, -1)
	if len(queryWords) > 0 {
		matched := 0
		for _, w := range queryWords {
			if len(w) < 3 {
				continue
			}
			if strings.Contains(content, w) {
				matched++
			}
		}
		wordBonus := float32(matched) / float32(len(queryWords)) * 0.10
		bonus += wordBonus
	}

	if hasIntroKeyword(content) {
		bonus += 0.08
	}

	if bonus > 1.0 {
		bonus = 1.0
	}
	if bonus < 0 {
		bonus = 0
	}
	return bonus
}

// definitionalPrefixes strips the question form off a "what is X" /
// "what's X" query, leaving X as the subject a definitional sentence
// about it would name.
var definitionalPrefixes = []string{"what is ", "what's ", "what are "}

func isDefinitional(query, content string) bool {
	subject := strings.TrimSpace(query)
	for _, p := range definitionalPrefixes {
		if strings.HasPrefix(subject, p) {
			subject = strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(subject, p)), "?")
			subject = strings.TrimSpace(subject)
			break
		}
	}
	if subject == "" {
		return false
	}
	patterns := []string{subject + " is a", subject + " is an", subject + " refers to", subject + " means"}
	for _, p := range patterns {
		if strings.Contains(content, p) {
			return true
		}
	}
	return false
}

var introKeywords = []string{"introduction", "overview", "definition", "in summary", "generally"}

func hasIntroKeyword(content string) bool {
	for _, kw := range introKeywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}

// clamp01 keeps a score within [0, 1], guarding against floating
// point drift after combining a base similarity with a bonus.
func clamp01(v float32) float32 {
	return float32(math.Max(0, math.Min(1, float64(v))))
}
