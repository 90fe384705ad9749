// Package embedder implements the Embedder contract (spec §4.4): a
// text-only sentence-transformer variant and a multimodal CLIP
// variant, both lazily loaded and batch-embeddable.
//
// Grounded on pkg/sqvect/embedder.go's Embedder interface and
// BaseEmbedder batch-via-goroutines helper in the teacher repo,
// generalized to text+image variants. The teacher's unbounded `go
// func`+channel fan-out is replaced with golang.org/x/sync/errgroup
// for a concurrency-capped batch. The group has no derived context, so
// one item's failure does not cancel the others.
package embedder

import (
	"context"

	"github.com/ragstore/engine/store"
	"golang.org/x/sync/errgroup"
)

// Input is one unit of content to embed.
type Input struct {
	Content     string
	ContentType store.ContentType
	// ImageBytes holds the raw image payload for ContentImage/
	// ContentCombined inputs; Content may still carry a caption or
	// alt-text companion for combined content.
	ImageBytes []byte
}

// Embedder is the contract every embedding backend satisfies,
// mirroring the teacher's Embedder interface plus the model-identity
// accessors spec §4.4/§4.8 needs for mode detection and persistence.
type Embedder interface {
	ModelName() string
	ModelType() store.ModelType
	Dimensions() int
	SupportedContentTypes() []store.ContentType

	// Embed satisfies indexmgr.Reembedder's narrower signature too.
	Embed(ctx context.Context, content string, contentType store.ContentType) ([]float32, error)
	EmbedInput(ctx context.Context, in Input) ([]float32, error)
	// EmbedBatch embeds every input and returns a sparse result: for
	// index i, either vectors[i] is set and errs[i] is nil, or
	// vectors[i] is nil and errs[i] names why that one item failed. A
	// single bad item never discards the rest of the batch, per spec
	// §4.4/§4.6's "failed items are skipped and counted as embedding
	// errors; ingestion does not abort".
	EmbedBatch(ctx context.Context, ins []Input) (vectors [][]float32, errs []error)

	IsLoaded() bool
	LoadModel(ctx context.Context) error
	Cleanup() error
}

// maxBatchConcurrency caps how many embed calls run at once within a
// single EmbedBatch, the stand-in for the teacher's unbounded
// goroutine fan-out.
const maxBatchConcurrency = 8

// embedBatchConcurrent runs embedOne over every input with a bounded
// concurrency errgroup, preserving input order in the result slice.
// A per-item error is recorded at that item's index rather than
// aborting the group, so the caller gets every successful vector
// alongside a sparse-failure report (spec §4.4/§4.6).
func embedBatchConcurrent(ctx context.Context, ins []Input, embedOne func(context.Context, Input) ([]float32, error)) ([][]float32, []error) {
	out := make([][]float32, len(ins))
	errs := make([]error, len(ins))
	var g errgroup.Group
	g.SetLimit(maxBatchConcurrency)
	for i, in := range ins {
		i, in := i, in
		g.Go(func() error {
			vec, err := embedOne(ctx, in)
			if err != nil {
				errs[i] = err
				return nil
			}
			out[i] = vec
			return nil
		})
	}
	_ = g.Wait()
	return out, errs
}
