package embedder

import (
	"context"
	"fmt"
	"sync"

	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/store"
)

// clipDimensions is the fixed width spec §3/§4.4 mandates for the
// multimodal model family.
const clipDimensions = 512

// CLIPEmbedder is the multimodal variant: shared 512-dimension space
// for both text and image content, letting a text query retrieve
// image chunks and vice versa.
type CLIPEmbedder struct {
	modelName string

	mu     sync.Mutex
	loaded bool
}

// NewCLIPEmbedder constructs an unloaded CLIP embedder for modelName.
func NewCLIPEmbedder(modelName string) *CLIPEmbedder {
	return &CLIPEmbedder{modelName: modelName}
}

func (e *CLIPEmbedder) ModelName() string         { return e.modelName }
func (e *CLIPEmbedder) ModelType() store.ModelType { return store.ModelTypeCLIP }
func (e *CLIPEmbedder) Dimensions() int            { return clipDimensions }
func (e *CLIPEmbedder) SupportedContentTypes() []store.ContentType {
	return []store.ContentType{store.ContentText, store.ContentImage, store.ContentCombined}
}

func (e *CLIPEmbedder) LoadModel(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = true
	return nil
}

func (e *CLIPEmbedder) IsLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

func (e *CLIPEmbedder) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.loaded = false
	return nil
}

func (e *CLIPEmbedder) Embed(ctx context.Context, content string, contentType store.ContentType) ([]float32, error) {
	return e.EmbedInput(ctx, Input{Content: content, ContentType: contentType})
}

func (e *CLIPEmbedder) EmbedInput(_ context.Context, in Input) ([]float32, error) {
	if !e.IsLoaded() {
		if err := e.LoadModel(context.Background()); err != nil {
			return nil, err
		}
	}
	switch in.ContentType {
	case store.ContentText, "":
		return hashEmbed([]byte(in.Content), clipDimensions), nil
	case store.ContentImage:
		if len(in.ImageBytes) == 0 {
			return nil, ragerr.Wrap("clip_embed", ragerr.KindContent, fmt.Errorf("image content requires ImageBytes"))
		}
		return hashEmbed(in.ImageBytes, clipDimensions), nil
	case store.ContentCombined:
		if len(in.ImageBytes) == 0 {
			return nil, ragerr.Wrap("clip_embed", ragerr.KindContent, fmt.Errorf("combined content requires ImageBytes"))
		}
		textVec := hashEmbed([]byte(in.Content), clipDimensions)
		imgVec := hashEmbed(in.ImageBytes, clipDimensions)
		combined := make([]float32, clipDimensions)
		for i := range combined {
			combined[i] = (textVec[i] + imgVec[i]) / 2
		}
		normalize(combined)
		return combined, nil
	default:
		return nil, ragerr.Wrap("clip_embed", ragerr.KindContent, fmt.Errorf("unsupported content type %q", in.ContentType))
	}
}

func (e *CLIPEmbedder) EmbedBatch(ctx context.Context, ins []Input) ([][]float32, []error) {
	return embedBatchConcurrent(ctx, ins, e.EmbedInput)
}
