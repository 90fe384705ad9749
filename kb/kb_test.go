package kb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/store"
	"github.com/stretchr/testify/require"
)

func TestResetClearsStoreAndIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.Open(ctx, filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := indexmgr.New(s, dir, 3, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	docID, err := s.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, store.Chunk{EmbeddingID: "e1", DocumentID: docID, Content: "x", ChunkIndex: 0}))
	require.NoError(t, mgr.AddVectors(ctx, []indexmgr.Embedding{{EmbeddingID: "e1", Vector: []float32{1, 0, 0}}}))

	manager := New(s, mgr, filepath.Join(dir, "meta.db.lock"), nil)
	result, err := manager.Reset(ctx, store.ResetOptions{}, 3)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, int64(1), result.Database.ChunksDeleted)
	require.False(t, mgr.HasVectors())

	count, err := s.CountChunks(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestResetPreservesSystemInfoWhenRequested(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.Open(ctx, filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mode := store.ModeText
	mt := store.ModelTypeSentenceTransformer
	dims := 384
	strat := store.RerankCrossEncoder
	require.NoError(t, s.SetSystemInfo(ctx, store.SystemInfoPatch{
		Mode: &mode, ModelType: &mt, ModelDimensions: &dims,
		SupportedContentTypes: []store.ContentType{store.ContentText},
		RerankingStrategy:      &strat,
	}))

	mgr := indexmgr.New(s, dir, 384, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	manager := New(s, mgr, filepath.Join(dir, "meta.db.lock"), nil)
	_, err = manager.Reset(ctx, store.ResetOptions{PreserveSystemInfo: true}, 384)
	require.NoError(t, err)

	info, err := s.GetSystemInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, store.ModeText, info.Mode)
}

func TestResetRecreatesIndexOnDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := store.Open(ctx, filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := indexmgr.New(s, dir, 3, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	require.NoError(t, mgr.AddVectors(ctx, []indexmgr.Embedding{{EmbeddingID: "e1", Vector: []float32{1, 0, 0}}}))

	manager := New(s, mgr, filepath.Join(dir, "meta.db.lock"), nil)
	result, err := manager.Reset(ctx, store.ResetOptions{}, 5)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 5, result.Index.Dimensions)
	require.NotEmpty(t, result.Warnings)

	require.NoError(t, mgr.AddVectors(ctx, []indexmgr.Embedding{{EmbeddingID: "e2", Vector: []float32{1, 0, 0, 0, 0}}}))
}
