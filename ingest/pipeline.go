// Package ingest implements the Ingestion Pipeline (spec §4.6):
// discovery, chunking, batch embedding, single-writer storage, and
// index update, in that order, with a pending_embeddings journal
// entry bracketing the store-write/index-update handoff so an
// interrupted run can be detected and repaired on next open (spec
// §9).
//
// The discovery->chunk->embed->store control flow is grounded on the
// other_examples reference manager
// (7f3a7dbd_haasonsaas-nexus__internal-rag-index-manager.go.go)'s
// Manager.Index method and its Config{ChunkSize, ChunkOverlap,
// EmbeddingBatchSize}; the storage-write ordering (document before
// chunks, chunks in index order) is grounded on the teacher's
// store_crud.go single-writer upsert pattern.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/ragstore/engine/embedder"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/store"
)

// Config controls chunking and batching for a Pipeline.
type Config struct {
	ChunkSize          int
	ChunkOverlap       int
	EmbeddingBatchSize int
}

// DefaultConfig mirrors DefaultChunkConfig plus a 32-chunk embedding
// batch size.
func DefaultConfig() Config {
	dc := DefaultChunkConfig()
	return Config{ChunkSize: dc.ChunkSize, ChunkOverlap: dc.ChunkOverlap, EmbeddingBatchSize: 32}
}

// Result reports what a single ingestion call accomplished.
type Result struct {
	DocumentsProcessed  int
	ChunksCreated       int
	EmbeddingsGenerated int
	DocumentErrors      []error
	EmbeddingErrors     []error
	ProcessingTimeMs    int64
}

func (r *Result) merge(other Result) {
	r.DocumentsProcessed += other.DocumentsProcessed
	r.ChunksCreated += other.ChunksCreated
	r.EmbeddingsGenerated += other.EmbeddingsGenerated
	r.DocumentErrors = append(r.DocumentErrors, other.DocumentErrors...)
	r.EmbeddingErrors = append(r.EmbeddingErrors, other.EmbeddingErrors...)
}

// Pipeline coordinates one Store, one Index Manager, and one Embedder
// through the ingest flow.
type Pipeline struct {
	st         *store.Store
	idx        *indexmgr.Manager
	emb        embedder.Embedder
	cfg        Config
	discoverer Discoverer
	log        logging.Logger
}

// New constructs a Pipeline. discoverer may be nil, in which case
// IngestDirectory uses a FileSystemDiscoverer restricted to
// DefaultSupportedExtensions.
func New(st *store.Store, idx *indexmgr.Manager, emb embedder.Embedder, cfg Config, discoverer Discoverer, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop()
	}
	if discoverer == nil {
		discoverer = NewFileSystemDiscoverer()
	}
	return &Pipeline{st: st, idx: idx, emb: emb, cfg: cfg, discoverer: discoverer, log: log}
}

// IngestPath ingests a single file or, if path is a directory, every
// discovered file beneath it.
func (p *Pipeline) IngestPath(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, ragerr.WrapItem("ingest_path", path, ragerr.KindContent, err)
	}
	if info.IsDir() {
		return p.IngestDirectory(ctx, path)
	}
	return p.IngestFile(ctx, path)
}

// IngestDirectory discovers files under root and ingests each in
// turn, continuing past per-file errors and reporting them in the
// aggregated Result rather than aborting the whole run.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string) (Result, error) {
	start := time.Now()
	files, unsupported, err := p.discoverer.Discover(root)
	if err != nil {
		return Result{}, ragerr.WrapItem("ingest_directory", root, ragerr.KindContent, err)
	}

	var total Result
	for _, f := range unsupported {
		total.DocumentErrors = append(total.DocumentErrors, ragerr.WrapItem("ingest_directory", f, ragerr.KindContent, ragerr.ErrInvalidContent))
	}
	for _, f := range files {
		r, err := p.IngestFile(ctx, f)
		total.merge(r)
		if err != nil {
			total.DocumentErrors = append(total.DocumentErrors, fmt.Errorf("%s: %w", f, err))
		}
	}
	total.ProcessingTimeMs = time.Since(start).Milliseconds()
	return total, nil
}

// IngestFile reads path, chunks and embeds its content, and commits
// it through the document -> chunks -> index sequence.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, ragerr.WrapItem("ingest_file", path, ragerr.KindContent, err)
	}

	title := filepath.Base(path)
	result, err := p.ingest(ctx, path, title, string(data))
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, err
}

// IngestFromMemory ingests content that did not come from a file,
// keyed by the caller-supplied source identifier.
func (p *Pipeline) IngestFromMemory(ctx context.Context, source, title, content string) (Result, error) {
	start := time.Now()
	result, err := p.ingest(ctx, source, title, content)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, err
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) ingest(ctx context.Context, source, title, content string) (Result, error) {
	hash := contentHash(content)
	if _, err := p.st.GetContentByHash(ctx, hash); err == nil {
		p.log.Info("skipping duplicate content", "source", source, "hash", hash)
		return Result{}, nil
	}

	chunkTexts, err := Chunk(content, ChunkConfig{ChunkSize: p.cfg.ChunkSize, ChunkOverlap: p.cfg.ChunkOverlap})
	if err != nil {
		return Result{}, err
	}
	if len(chunkTexts) == 0 {
		return Result{}, nil
	}

	docID, err := p.st.UpsertDocument(ctx, source, title)
	if err != nil {
		return Result{DocumentErrors: []error{err}}, err
	}

	if err := p.st.InsertContentMetadata(ctx, store.ContentMetadata{
		ID:           uuid.NewString(),
		StorageType:  store.StorageInline,
		OriginalPath: source,
		ContentType:  string(store.ContentText),
		FileSize:     int64(len(content)),
		ContentHash:  hash,
	}); err != nil {
		// A metadata insert failure does not block chunk ingestion;
		// only log it for visibility.
		p.log.Debug("content metadata not recorded", "source", source, "error", err)
	}

	var result Result
	result.DocumentsProcessed = 1

	batchSize := p.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	for start := 0; start < len(chunkTexts); start += batchSize {
		end := start + batchSize
		if end > len(chunkTexts) {
			end = len(chunkTexts)
		}
		batch := chunkTexts[start:end]

		inputs := make([]embedder.Input, len(batch))
		for i, text := range batch {
			inputs[i] = embedder.Input{Content: text, ContentType: store.ContentText}
		}
		vectors, embedErrs := p.emb.EmbedBatch(ctx, inputs)

		embeddings := make([]indexmgr.Embedding, 0, len(batch))
		for i, text := range batch {
			chunkIndex := start + i
			embeddingID := fmt.Sprintf("%s:%d", source, chunkIndex)

			if embedErrs[i] != nil {
				result.EmbeddingErrors = append(result.EmbeddingErrors, fmt.Errorf("%s: %w", embeddingID, embedErrs[i]))
				continue
			}

			if err := p.st.MarkPending(ctx, embeddingID, docID); err != nil {
				result.EmbeddingErrors = append(result.EmbeddingErrors, err)
				continue
			}
			if err := p.st.InsertChunk(ctx, store.Chunk{
				EmbeddingID: embeddingID,
				DocumentID:  docID,
				Content:     text,
				ChunkIndex:  chunkIndex,
				ContentType: store.ContentText,
			}); err != nil {
				result.DocumentErrors = append(result.DocumentErrors, err)
				continue
			}
			embeddings = append(embeddings, indexmgr.Embedding{
				EmbeddingID: embeddingID,
				Vector:      vectors[i],
				ContentType: store.ContentText,
			})
			result.ChunksCreated++
		}

		if len(embeddings) == 0 {
			continue
		}
		if err := p.idx.AddVectors(ctx, embeddings); err != nil {
			result.EmbeddingErrors = append(result.EmbeddingErrors, err)
			continue
		}
		if err := p.idx.SaveIndex(ctx); err != nil {
			result.EmbeddingErrors = append(result.EmbeddingErrors, err)
			continue
		}

		ids := make([]string, len(embeddings))
		for i, e := range embeddings {
			ids[i] = e.EmbeddingID
		}
		if err := p.st.ClearPending(ctx, ids); err != nil {
			result.EmbeddingErrors = append(result.EmbeddingErrors, err)
			continue
		}
		result.EmbeddingsGenerated += len(embeddings)
	}

	return result, nil
}

// RebuildIndex discards and recomputes every vector in the index from
// the store's chunk content, used after a model switch. On success the
// stored model name and dimensions are updated to the pipeline's
// embedder.
func (p *Pipeline) RebuildIndex(ctx context.Context) error {
	if err := p.idx.RebuildWithEmbeddings(ctx, p.emb); err != nil {
		return err
	}
	return p.st.SetStoredModelInfo(ctx, p.emb.ModelName(), p.emb.Dimensions())
}

// SaveIndex flushes the current index state to disk.
func (p *Pipeline) SaveIndex(ctx context.Context) error {
	return p.idx.SaveIndex(ctx)
}

// Cleanup releases the index worker's resources.
func (p *Pipeline) Cleanup(ctx context.Context) error {
	return p.idx.Close(ctx)
}
