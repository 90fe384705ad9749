package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/reranker"
	"github.com/ragstore/engine/store"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, rr reranker.Reranker) (*Engine, *store.Store, *indexmgr.Manager) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := indexmgr.New(s, t.TempDir(), 3, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	emb := embedder.NewTextEmbedder("test-model", 3)

	docID, err := s.UpsertDocument(ctx, "docs/a.md", "Doc A")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, store.Chunk{EmbeddingID: "e1", DocumentID: docID, Content: "machine learning basics", ChunkIndex: 0}))
	require.NoError(t, s.InsertChunk(ctx, store.Chunk{EmbeddingID: "e2", DocumentID: docID, Content: "unrelated cooking recipe", ChunkIndex: 1}))

	require.NoError(t, mgr.AddVectors(ctx, []indexmgr.Embedding{
		{EmbeddingID: "e1", Vector: []float32{1, 0, 0}},
		{EmbeddingID: "e2", Vector: []float32{0, 1, 0}},
	}))

	return New(mgr, s, emb, rr, nil), s, mgr
}

func TestSearchWithVectorReturnsJoinedResults(t *testing.T) {
	engine, _, _ := setupEngine(t, nil)
	results, err := engine.SearchWithVector(context.Background(), []float32{1, 0, 0}, 5, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "e1", results[0].EmbeddingID)
	require.Equal(t, "Doc A", results[0].DocumentTitle)
}

func TestSearchDropsDesynchronizedHitsGracefully(t *testing.T) {
	ctx := context.Background()
	engine, st, _ := setupEngine(t, nil)

	docID, err := st.UpsertDocument(ctx, "docs/a.md", "Doc A")
	require.NoError(t, err)
	require.NoError(t, st.DeleteChunkByEmbeddingID(ctx, "e1"))
	_ = docID

	results, err := engine.SearchWithVector(ctx, []float32{1, 0, 0}, 5, Options{})
	require.NoError(t, err)
	for _, r := range results {
		require.NotEqual(t, "e1", r.EmbeddingID)
	}
}

func TestSearchAppliesReranker(t *testing.T) {
	rr := reranker.New(store.RerankCrossEncoder, nil)
	engine, _, _ := setupEngine(t, rr)

	results, err := engine.Search(context.Background(), "machine learning", 5, Options{Rerank: true})
	require.NoError(t, err)
	require.NotEmpty(t, results)
}

func TestSearchDefaultDoesNotRerank(t *testing.T) {
	rr := reranker.New(store.RerankCrossEncoder, nil)
	engine, _, _ := setupEngine(t, rr)

	results, err := engine.Search(context.Background(), "machine learning", 5, Options{})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, "e1", results[0].EmbeddingID)
}

func TestSearchRespectsLimitK(t *testing.T) {
	engine, _, _ := setupEngine(t, nil)
	results, err := engine.SearchWithVector(context.Background(), []float32{1, 0, 0}, 1, Options{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchFiltersByContentType(t *testing.T) {
	ctx := context.Background()
	engine, st, mgr := setupEngine(t, nil)

	docID, err := st.UpsertDocument(ctx, "docs/a.md", "Doc A")
	require.NoError(t, err)
	require.NoError(t, st.InsertChunk(ctx, store.Chunk{EmbeddingID: "e3", DocumentID: docID, Content: "a photo", ChunkIndex: 2, ContentType: store.ContentImage}))
	require.NoError(t, mgr.AddVectors(ctx, []indexmgr.Embedding{
		{EmbeddingID: "e3", Vector: []float32{1, 0, 0}, ContentType: store.ContentImage},
	}))

	results, err := engine.SearchWithVector(ctx, []float32{1, 0, 0}, 5, Options{ContentType: store.ContentImage})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.Equal(t, store.ContentImage, r.ContentType)
	}
}
