package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenIdempotentSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idempotent.db")

	s1, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s2.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)
}

func TestUpsertDocumentPreservesID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.UpsertDocument(ctx, "docs/a.md", "First title")
	require.NoError(t, err)

	id2, err := s.UpsertDocument(ctx, "docs/a.md", "Updated title")
	require.NoError(t, err)

	require.Equal(t, id1, id2)

	doc, err := s.GetDocument(ctx, id1)
	require.NoError(t, err)
	require.Equal(t, "Updated title", doc.Title)
}

func TestInsertChunkAndJoin(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)

	require.NoError(t, s.InsertChunk(ctx, Chunk{
		EmbeddingID: "emb-1",
		DocumentID:  docID,
		Content:     "machine learning is powerful",
		ChunkIndex:  0,
	}))

	rows, err := s.GetChunksByEmbeddingIDs(ctx, []string{"emb-1", "missing"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "docs/a.md", rows[0].DocumentSource)
	require.Equal(t, ContentText, rows[0].ContentType)
}

func TestInsertChunkDuplicateIndexRejected(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	docID, err := s.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)

	require.NoError(t, s.InsertChunk(ctx, Chunk{EmbeddingID: "emb-1", DocumentID: docID, Content: "x", ChunkIndex: 0}))
	err = s.InsertChunk(ctx, Chunk{EmbeddingID: "emb-2", DocumentID: docID, Content: "y", ChunkIndex: 0})
	require.Error(t, err)
}

func TestSystemInfoDefaultsAndValidation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetSystemInfo(ctx)
	require.Error(t, err)

	mode := ModeText
	mt := ModelTypeSentenceTransformer
	dims := 384
	strat := RerankCrossEncoder
	require.NoError(t, s.SetSystemInfo(ctx, SystemInfoPatch{
		Mode: &mode, ModelType: &mt, ModelDimensions: &dims,
		SupportedContentTypes: []ContentType{ContentText},
		RerankingStrategy:      &strat,
	}))

	info, err := s.GetSystemInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, ModeText, info.Mode)
	require.Equal(t, 384, info.ModelDimensions)

	badDims := 999
	clip := ModelTypeCLIP
	err = s.SetSystemInfo(ctx, SystemInfoPatch{ModelType: &clip, ModelDimensions: &badDims})
	require.Error(t, err)
}

func TestResetStorePreservesSystemInfoWhenAsked(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mode := ModeText
	mt := ModelTypeSentenceTransformer
	dims := 384
	strat := RerankCrossEncoder
	require.NoError(t, s.SetSystemInfo(ctx, SystemInfoPatch{Mode: &mode, ModelType: &mt, ModelDimensions: &dims, SupportedContentTypes: []ContentType{ContentText}, RerankingStrategy: &strat}))

	docID, err := s.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)
	require.NoError(t, s.InsertChunk(ctx, Chunk{EmbeddingID: "emb-1", DocumentID: docID, Content: "x", ChunkIndex: 0}))

	result, err := s.ResetStore(ctx, ResetOptions{PreserveSystemInfo: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), result.DocumentsDeleted)
	require.Equal(t, int64(1), result.ChunksDeleted)

	count, err := s.CountChunks(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	info, err := s.GetSystemInfo(ctx)
	require.NoError(t, err)
	require.Equal(t, ModeText, info.Mode)
}

func TestResetStoreDropsSystemInfoByDefault(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	mode := ModeText
	mt := ModelTypeSentenceTransformer
	dims := 384
	strat := RerankCrossEncoder
	require.NoError(t, s.SetSystemInfo(ctx, SystemInfoPatch{Mode: &mode, ModelType: &mt, ModelDimensions: &dims, SupportedContentTypes: []ContentType{ContentText}, RerankingStrategy: &strat}))

	_, err := s.ResetStore(ctx, ResetOptions{})
	require.NoError(t, err)

	_, err = s.GetSystemInfo(ctx)
	require.Error(t, err)
}

func TestPendingEmbeddingJournal(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docID, err := s.UpsertDocument(ctx, "docs/a.md", "A")
	require.NoError(t, err)
	require.NoError(t, s.MarkPending(ctx, "emb-1", docID))

	pending, err := s.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.ClearPending(ctx, []string{"emb-1"}))
	pending, err = s.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}
