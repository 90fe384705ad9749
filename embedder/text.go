package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/store"
)

// TextEmbedder is the sentence-transformer variant: text-only
// embeddings of a configurable dimension, 384 by default (the
// canonical default of spec §4.8).
type TextEmbedder struct {
	modelName string
	dims      int

	mu     sync.Mutex
	loaded bool
}

// NewTextEmbedder constructs an unloaded text embedder for modelName.
func NewTextEmbedder(modelName string, dims int) *TextEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &TextEmbedder{modelName: modelName, dims: dims}
}

func (e *TextEmbedder) ModelName() string               { return e.modelName }
func (e *TextEmbedder) ModelType() store.ModelType       { return store.ModelTypeSentenceTransformer }
func (e *TextEmbedder) Dimensions() int                  { return e.dims }
func (e *TextEmbedder) SupportedContentTypes() []store.ContentType {
	return []store.ContentType{store.ContentText}
}

// LoadModel marks the embedder ready. No model weights are loaded;
// vectors come from hashEmbed, so this only flips the loaded flag that
// IsLoaded reports and Cleanup resets.
func (e *TextEmbedder) LoadModel(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

func (e *TextEmbedder) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *TextEmbedder) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

// Embed satisfies indexmgr.Reembedder.
func (e *TextEmbedder) Embed(ctx context.Context, content string, contentType store.ContentType) ([]float32, error) {
	return e.EmbedInput(ctx, Input{Content: content, ContentType: contentType})
}

func (e *TextEmbedder) EmbedInput(_ context.Context, in Input) ([]float32, error) {
	if in.ContentType != store.ContentText && in.ContentType != "" {
		return nil, ragerr.Wrap("text_embed", ragerr.KindModel, fmt.Errorf("text embedder does not support content type %q", in.ContentType))
	}
	if !e.IsLoaded() {
		if err := e.LoadModel(context.Background()); err != nil {
			return nil, err
		}
	}
	return hashEmbed([]byte(in.Content), e.dims), nil
}

func (e *TextEmbedder) EmbedBatch(ctx context.Context, ins []Input) ([][]float32, []error) {
	return embedBatchConcurrent(ctx, ins, e.EmbedInput)
}
