package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/store"
	"github.com/stretchr/testify/require"
)

func setupPipeline(t *testing.T) (*Pipeline, *store.Store, *indexmgr.Manager) {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := indexmgr.New(s, t.TempDir(), 32, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	emb := embedder.NewTextEmbedder("test-model", 32)

	cfg := Config{ChunkSize: 20, ChunkOverlap: 5, EmbeddingBatchSize: 4}
	p := New(s, mgr, emb, cfg, nil, nil)
	return p, s, mgr
}

func TestIngestFromMemoryCreatesDocumentAndChunks(t *testing.T) {
	ctx := context.Background()
	p, s, mgr := setupPipeline(t)

	content := "the quick brown fox jumps over the lazy dog and keeps running"
	result, err := p.IngestFromMemory(ctx, "mem://doc1", "Doc 1", content)
	require.NoError(t, err)
	require.Equal(t, 1, result.DocumentsProcessed)
	require.Greater(t, result.ChunksCreated, 0)
	require.Equal(t, result.ChunksCreated, result.EmbeddingsGenerated)

	count, err := s.CountChunks(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(result.ChunksCreated), count)

	require.True(t, mgr.HasVectors())
}

func TestIngestSkipsDuplicateContent(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setupPipeline(t)

	content := "duplicate detection content block"
	_, err := p.IngestFromMemory(ctx, "mem://a", "A", content)
	require.NoError(t, err)

	result, err := p.IngestFromMemory(ctx, "mem://b", "B", content)
	require.NoError(t, err)
	require.Equal(t, 0, result.DocumentsProcessed)
}

func TestIngestFileReadsFromDisk(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setupPipeline(t)

	path := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(path, []byte("some file content to be chunked and embedded"), 0o644))

	result, err := p.IngestFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, result.DocumentsProcessed)
}

func TestIngestDirectoryDiscoversFiles(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setupPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha content block one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta content block two"), 0o644))

	result, err := p.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 2, result.DocumentsProcessed)
}

func TestIngestDirectorySkipsUnsupportedExtensionsAsDocumentErrors(t *testing.T) {
	ctx := context.Background()
	p, _, _ := setupPipeline(t)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha content block one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "photo.png"), []byte("not text"), 0o644))

	result, err := p.IngestDirectory(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 1, result.DocumentsProcessed)
	require.Len(t, result.DocumentErrors, 1)
}

// flakyEmbedder wraps a real embedder but fails EmbedInput for any
// content containing failToken, used to exercise the sparse-batch
// behavior: one bad item in a batch must not discard the others.
type flakyEmbedder struct {
	*embedder.TextEmbedder
	failToken string
}

func (f flakyEmbedder) EmbedInput(ctx context.Context, in embedder.Input) ([]float32, error) {
	if strings.Contains(in.Content, f.failToken) {
		return nil, errors.New("simulated embed failure")
	}
	return f.TextEmbedder.EmbedInput(ctx, in)
}

func (f flakyEmbedder) EmbedBatch(ctx context.Context, ins []embedder.Input) ([][]float32, []error) {
	out := make([][]float32, len(ins))
	errs := make([]error, len(ins))
	for i, in := range ins {
		out[i], errs[i] = f.EmbedInput(ctx, in)
	}
	return out, errs
}

func TestIngestKeepsSuccessfulChunksWhenOneEmbedFails(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := indexmgr.New(s, t.TempDir(), 32, nil)
	require.NoError(t, mgr.Initialize(ctx, indexmgr.InitOptions{SkipModelCheck: true}))
	t.Cleanup(func() { _ = mgr.Close(ctx) })

	emb := flakyEmbedder{TextEmbedder: embedder.NewTextEmbedder("test-model", 32), failToken: "BADCHUNK"}
	cfg := Config{ChunkSize: 20, ChunkOverlap: 5, EmbeddingBatchSize: 4}
	p := New(s, mgr, emb, cfg, nil, nil)

	content := "good one two three four five BADCHUNK six seven eight nine ten eleven twelve"
	rawChunks, err := Chunk(content, ChunkConfig{ChunkSize: cfg.ChunkSize, ChunkOverlap: cfg.ChunkOverlap})
	require.NoError(t, err)
	wantFail, wantOK := 0, 0
	for _, c := range rawChunks {
		if strings.Contains(c, "BADCHUNK") {
			wantFail++
		} else {
			wantOK++
		}
	}
	require.Greater(t, wantFail, 0)
	require.Greater(t, wantOK, 0)

	result, err := p.IngestFromMemory(ctx, "mem://mixed", "Mixed", content)
	require.NoError(t, err)
	require.Equal(t, wantOK, result.ChunksCreated)
	require.Equal(t, wantOK, result.EmbeddingsGenerated)
	require.Len(t, result.EmbeddingErrors, wantFail)
}

func TestRebuildIndexReembedsExistingChunks(t *testing.T) {
	ctx := context.Background()
	p, _, mgr := setupPipeline(t)

	_, err := p.IngestFromMemory(ctx, "mem://a", "A", "some content that will be chunked for rebuild testing")
	require.NoError(t, err)

	require.NoError(t, p.RebuildIndex(ctx))
	require.True(t, mgr.HasVectors())
}
