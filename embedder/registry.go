package embedder

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/store"
)

// Registry lazily constructs and caches Embedders keyed by (variant,
// modelName, dims), so repeated calls for the same model reuse the
// already-loaded instance instead of paying load cost again. Grounded
// on Aman-CERP-amanmcp/Dirstral-dir2mcp's use of
// hashicorp/golang-lru/v2 for exactly this kind of lazy-singleton
// cache.
type Registry struct {
	cache *lru.Cache[string, Embedder]
	log   logging.Logger

	mu        sync.Mutex
	inflight  map[string]chan struct{}
}

// NewRegistry builds a Registry holding up to size loaded embedders.
// Evicted entries are Cleanup'd before being dropped.
func NewRegistry(size int, log logging.Logger) *Registry {
	if size <= 0 {
		size = 4
	}
	if log == nil {
		log = logging.Nop()
	}
	r := &Registry{log: log, inflight: make(map[string]chan struct{})}
	cache, _ := lru.NewWithEvict[string, Embedder](size, func(key string, value Embedder) {
		_ = value.Cleanup()
		log.Debug("evicted embedder", "key", key)
	})
	r.cache = cache
	return r
}

func registryKey(modelType store.ModelType, modelName string, dims int) string {
	return fmt.Sprintf("%s:%s:%d", modelType, modelName, dims)
}

// Get returns the cached embedder for (modelType, modelName, dims),
// constructing and loading it on first use. Concurrent callers asking
// for the same key coalesce onto a single load.
func (r *Registry) Get(ctx context.Context, modelType store.ModelType, modelName string, dims int) (Embedder, error) {
	key := registryKey(modelType, modelName, dims)

	if e, ok := r.cache.Get(key); ok {
		return e, nil
	}

	r.mu.Lock()
	if ch, loading := r.inflight[key]; loading {
		r.mu.Unlock()
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if e, ok := r.cache.Get(key); ok {
			return e, nil
		}
		return nil, fmt.Errorf("embedder: load for %s did not complete", key)
	}
	ch := make(chan struct{})
	r.inflight[key] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.inflight, key)
		r.mu.Unlock()
		close(ch)
	}()

	e, err := r.construct(modelType, modelName, dims)
	if err != nil {
		return nil, err
	}
	if err := e.LoadModel(ctx); err != nil {
		return nil, err
	}
	r.cache.Add(key, e)
	r.log.Info("loaded embedder", "key", key)
	return e, nil
}

func (r *Registry) construct(modelType store.ModelType, modelName string, dims int) (Embedder, error) {
	switch modelType {
	case store.ModelTypeSentenceTransformer:
		return NewTextEmbedder(modelName, dims), nil
	case store.ModelTypeCLIP:
		return NewCLIPEmbedder(modelName), nil
	default:
		return nil, fmt.Errorf("embedder: unknown model type %q", modelType)
	}
}

// Close cleans up every cached embedder.
func (r *Registry) Close() {
	for _, key := range r.cache.Keys() {
		if e, ok := r.cache.Peek(key); ok {
			_ = e.Cleanup()
		}
	}
	r.cache.Purge()
}
