// Package mode implements mode detection and the embedder/reranker
// factory layer (spec §4.8): reading persisted SystemInfo, never
// throwing, and falling back to the canonical defaults (text mode,
// sentence-transformer, 384 dimensions, cross-encoder reranking) on
// any corruption or absence.
//
// Newly authored — the teacher has a single fixed mode — but the
// "read config, pick a variant, lazily construct" shape is grounded
// on pkg/sqvect/sqvect.go's Open(config, opts...) functional-options
// factory.
package mode

import (
	"context"
	"errors"

	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/reranker"
	"github.com/ragstore/engine/store"
)

// Resolved bundles the mode-derived components a caller needs: the
// SystemInfo actually in effect, a ready embedder, and a ready
// reranker.
type Resolved struct {
	Info     store.SystemInfo
	Embedder embedder.Embedder
	Reranker reranker.Reranker
}

// Detect reads SystemInfo from st. It never returns an error: absence
// (first run) or any corruption in the persisted row falls back to
// store.DefaultSystemInfo(), per spec §4.8.
func Detect(ctx context.Context, st *store.Store, log logging.Logger) store.SystemInfo {
	if log == nil {
		log = logging.Nop()
	}
	info, err := st.GetSystemInfo(ctx)
	if err != nil {
		if !errors.Is(err, ragerr.ErrNotFound) {
			log.Warn("system_info unreadable, falling back to defaults", "error", err)
		}
		return store.DefaultSystemInfo()
	}
	switch {
	case info.Mode != store.ModeText && info.Mode != store.ModeMultimodal,
		info.ModelType != store.ModelTypeSentenceTransformer && info.ModelType != store.ModelTypeCLIP,
		info.RerankingStrategy != store.RerankCrossEncoder && info.RerankingStrategy != store.RerankTextDerived &&
			info.RerankingStrategy != store.RerankDisabled,
		info.ModelDimensions <= 0:
		log.Warn("system_info corrupt, falling back to defaults", "mode", info.Mode, "model_type", info.ModelType)
		return store.DefaultSystemInfo()
	}
	return *info
}

// permittedStrategies names which reranking strategies make sense for
// a mode, per spec §4.8's table: text mode permits {cross-encoder,
// disabled}; multimodal mode permits {text-derived, disabled}.
// Cross-encoder is text-mode-only — it scores on the text embedding
// space directly, which multimodal candidates don't uniformly have.
func permittedStrategies(m store.Mode) map[store.RerankingStrategy]bool {
	switch m {
	case store.ModeMultimodal:
		return map[store.RerankingStrategy]bool{
			store.RerankTextDerived: true,
			store.RerankDisabled:    true,
		}
	default:
		return map[store.RerankingStrategy]bool{
			store.RerankCrossEncoder: true,
			store.RerankDisabled:     true,
		}
	}
}

// defaultStrategy names the strategy a mode downgrades to when its
// persisted RerankingStrategy isn't in permittedStrategies(mode).
func defaultStrategy(m store.Mode) store.RerankingStrategy {
	if m == store.ModeMultimodal {
		return store.RerankTextDerived
	}
	return store.RerankCrossEncoder
}

// Build constructs the embedder and reranker named by info, lazily
// loading only the selected mode's dependencies through registry. If
// info.RerankingStrategy is not permitted for info.Mode, it is
// downgraded to the mode's default rather than erroring, keeping
// Build as fallback-safe as Detect.
func Build(ctx context.Context, info store.SystemInfo, registry *embedder.Registry) (Resolved, error) {
	emb, err := registry.Get(ctx, info.ModelType, info.ModelName, info.ModelDimensions)
	if err != nil {
		return Resolved{}, ragerr.Wrap("mode_build", ragerr.KindModel, err)
	}

	strategy := info.RerankingStrategy
	if !permittedStrategies(info.Mode)[strategy] {
		strategy = defaultStrategy(info.Mode)
	}

	var embedFn func(context.Context, string) ([]float32, error)
	if strategy == store.RerankTextDerived {
		embedFn = func(ctx context.Context, text string) ([]float32, error) {
			return emb.Embed(ctx, text, store.ContentText)
		}
	}
	rr := reranker.New(strategy, embedFn)

	return Resolved{Info: info, Embedder: emb, Reranker: rr}, nil
}
