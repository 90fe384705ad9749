package reranker

import (
	"context"
	"testing"

	"github.com/ragstore/engine/store"
	"github.com/stretchr/testify/require"
)

func TestDisabledRerankerPassesThrough(t *testing.T) {
	r := New(store.RerankDisabled, nil)
	candidates := []Candidate{{EmbeddingID: "a", Similarity: 0.5}, {EmbeddingID: "b", Similarity: 0.9}}
	out, err := r.Rerank(context.Background(), "query", candidates)
	require.NoError(t, err)
	require.Equal(t, candidates, out)
}

func TestLexicalBonusExactMatch(t *testing.T) {
	b := lexicalBonus("machine learning", Candidate{Content: "an intro to machine learning basics"})
	require.Greater(t, b, float32(0))
}

func TestLexicalBonusCappedAtOne(t *testing.T) {
	c := Candidate{
		Content: "definition is a machine learning is a overview introduction",
		Title:   "definition",
	}
	b := lexicalBonus("definition", c)
	require.LessOrEqual(t, b, float32(1.0))
}

func TestLexicalBonusEmptyQueryIsZero(t *testing.T) {
	b := lexicalBonus("", Candidate{Content: "anything"})
	require.Equal(t, float32(0), b)
}

func TestIsDefinitionalStripsWhatIsPrefix(t *testing.T) {
	require.True(t, isDefinitional("what is machine learning", "machine learning is a field of AI"))
	require.True(t, isDefinitional("what's photosynthesis?", "photosynthesis refers to the process plants use"))
	require.False(t, isDefinitional("what is machine learning", "no relevant sentence here"))
}

func TestLexicalBonusAppliesDefinitionalBonusForWhatIsQuery(t *testing.T) {
	b := lexicalBonus("what is machine learning", Candidate{Content: "machine learning is a field of AI"})
	require.GreaterOrEqual(t, b, float32(0.30))
}

func TestCrossEncoderRerankSortsDescending(t *testing.T) {
	r := New(store.RerankCrossEncoder, nil)
	candidates := []Candidate{
		{EmbeddingID: "low", Content: "unrelated filler text", Similarity: 0.2},
		{EmbeddingID: "high", Content: "machine learning is a field of AI", Similarity: 0.9},
	}
	out, err := r.Rerank(context.Background(), "machine learning", candidates)
	require.NoError(t, err)
	require.Equal(t, "high", out[0].EmbeddingID)
	require.GreaterOrEqual(t, out[0].Similarity, out[1].Similarity)
}

func TestCrossEncoderFallsBackOnDegenerateRange(t *testing.T) {
	r := New(store.RerankCrossEncoder, nil)
	candidates := []Candidate{
		{EmbeddingID: "a", Content: "x is a thing", Similarity: 0.500},
		{EmbeddingID: "b", Content: "y is a thing", Similarity: 0.501},
	}
	out, err := r.Rerank(context.Background(), "x", candidates)
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestTextDerivedRerankerUsesEmbedFunc(t *testing.T) {
	embed := func(_ context.Context, text string) ([]float32, error) {
		if text == "cat" || text == "a cat sleeping" {
			return []float32{1, 0}, nil
		}
		return []float32{0, 1}, nil
	}
	r := New(store.RerankTextDerived, embed)
	candidates := []Candidate{
		{EmbeddingID: "dog", Content: "a dog barking", Similarity: 0.5},
		{EmbeddingID: "cat", Content: "a cat sleeping", Similarity: 0.5},
	}
	out, err := r.Rerank(context.Background(), "cat", candidates)
	require.NoError(t, err)
	require.Equal(t, "cat", out[0].EmbeddingID)
}

func TestTextDerivedRerankerDegradesGracefullyWithoutEmbedFunc(t *testing.T) {
	r := New(store.RerankTextDerived, nil)
	candidates := []Candidate{{EmbeddingID: "a", Similarity: 0.3}}
	out, err := r.Rerank(context.Background(), "q", candidates)
	require.NoError(t, err)
	require.Equal(t, candidates, out)
}
