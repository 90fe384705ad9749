package embedder

import (
	"context"
	"testing"

	"github.com/ragstore/engine/store"
	"github.com/stretchr/testify/require"
)

func TestTextEmbedderDimensionsAndContentTypes(t *testing.T) {
	e := NewTextEmbedder("sentence-transformers/all-MiniLM-L6-v2", 384)
	require.Equal(t, 384, e.Dimensions())
	require.Equal(t, store.ModelTypeSentenceTransformer, e.ModelType())
	require.Equal(t, []store.ContentType{store.ContentText}, e.SupportedContentTypes())
}

func TestTextEmbedderEmbedIsDeterministic(t *testing.T) {
	e := NewTextEmbedder("m", 64)
	ctx := context.Background()
	v1, err := e.Embed(ctx, "the quick brown fox", store.ContentText)
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "the quick brown fox", store.ContentText)
	require.NoError(t, err)
	require.Equal(t, v1, v2)
	require.Len(t, v1, 64)
}

func TestTextEmbedderRejectsImageContent(t *testing.T) {
	e := NewTextEmbedder("m", 32)
	_, err := e.Embed(context.Background(), "x", store.ContentImage)
	require.Error(t, err)
}

func TestTextEmbedderEmbedBatchPreservesOrder(t *testing.T) {
	e := NewTextEmbedder("m", 32)
	ins := []Input{
		{Content: "alpha", ContentType: store.ContentText},
		{Content: "beta", ContentType: store.ContentText},
		{Content: "gamma", ContentType: store.ContentText},
	}
	out, errs := e.EmbedBatch(context.Background(), ins)
	require.Len(t, out, 3)
	for _, err := range errs {
		require.NoError(t, err)
	}
	single, err := e.Embed(context.Background(), "beta", store.ContentText)
	require.NoError(t, err)
	require.Equal(t, single, out[1])
}

func TestTextEmbedderEmbedBatchIsSparseOnPerItemFailure(t *testing.T) {
	e := NewTextEmbedder("m", 32)
	ins := []Input{
		{Content: "alpha", ContentType: store.ContentText},
		{Content: "bad", ContentType: store.ContentImage},
		{Content: "gamma", ContentType: store.ContentText},
	}
	out, errs := e.EmbedBatch(context.Background(), ins)
	require.Len(t, out, 3)
	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	require.NoError(t, errs[2])
	require.NotNil(t, out[0])
	require.Nil(t, out[1])
	require.NotNil(t, out[2])
}

func TestCLIPEmbedderSharesSpaceAcrossModalities(t *testing.T) {
	e := NewCLIPEmbedder("clip-vit")
	require.Equal(t, 512, e.Dimensions())

	textVec, err := e.EmbedInput(context.Background(), Input{Content: "a red car", ContentType: store.ContentText})
	require.NoError(t, err)
	require.Len(t, textVec, 512)

	imgVec, err := e.EmbedInput(context.Background(), Input{ContentType: store.ContentImage, ImageBytes: []byte{1, 2, 3, 4, 5, 6, 7, 8}})
	require.NoError(t, err)
	require.Len(t, imgVec, 512)
}

func TestCLIPEmbedderRequiresImageBytes(t *testing.T) {
	e := NewCLIPEmbedder("clip-vit")
	_, err := e.EmbedInput(context.Background(), Input{ContentType: store.ContentImage})
	require.Error(t, err)
}

func TestRegistryCachesByKey(t *testing.T) {
	r := NewRegistry(2, nil)
	defer r.Close()
	ctx := context.Background()

	e1, err := r.Get(ctx, store.ModelTypeSentenceTransformer, "m1", 384)
	require.NoError(t, err)
	e2, err := r.Get(ctx, store.ModelTypeSentenceTransformer, "m1", 384)
	require.NoError(t, err)
	require.Same(t, e1, e2)
}

func TestRegistryConstructsDistinctEmbeddersPerVariant(t *testing.T) {
	r := NewRegistry(2, nil)
	defer r.Close()
	ctx := context.Background()

	text, err := r.Get(ctx, store.ModelTypeSentenceTransformer, "m1", 384)
	require.NoError(t, err)
	clip, err := r.Get(ctx, store.ModelTypeCLIP, "clip-vit", 512)
	require.NoError(t, err)
	require.NotEqual(t, text.ModelType(), clip.ModelType())
}
