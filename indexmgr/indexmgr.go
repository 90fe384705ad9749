// Package indexmgr implements the Index Manager (spec §4.3): the
// bridge between the Metadata Store's durable string embeddingIds and
// the Vector Index's internal integer labels, and the sole owner of
// the on-disk index snapshot plus its id<->label sidecar map.
//
// Grounded on pkg/core/store_index.go's id<->label bookkeeping and
// loadIndexSnapshot/saveIndexSnapshot flow in the teacher repo,
// adapted from "index embedded in the SQLite store" to "index file on
// disk plus a sidecar label map", since this spec keeps the vector
// index out of the metadata database (§4.2).
package indexmgr

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/store"
	"github.com/ragstore/engine/vectorindex"
)

// Embedding is a single vector to add, keyed by its durable store id.
type Embedding struct {
	EmbeddingID string
	Vector      []float32
	ContentType store.ContentType
}

// Candidate is a raw nearest-neighbor hit before the Store join that
// search.Engine performs.
type Candidate struct {
	EmbeddingID string
	Distance    float32
	ContentType store.ContentType
}

// contentTypeOversample controls how far past k the ANN search reaches
// when a contentType filter is requested, since the underlying graph
// has no notion of content type and can only be post-filtered.
const contentTypeOversample = 5

// Reembedder re-derives a vector for a chunk's stored content, used
// only by RebuildWithEmbeddings when a model change forces a full
// recompute. Satisfied by embedder.Embedder without an import cycle.
type Reembedder interface {
	Embed(ctx context.Context, content string, contentType store.ContentType) ([]float32, error)
}

// InitOptions controls Initialize's model-mismatch behavior.
type InitOptions struct {
	// SkipModelCheck bypasses the dimension check (the model name is
	// not compared),
	// spec §4.3's escape hatch for callers that already know what
	// they're doing (e.g. a rebuild in progress).
	SkipModelCheck bool
	// ForceRecreate discards any existing index snapshot and id map,
	// starting from empty, used when a caller has already decided to
	// rebuild rather than error out.
	ForceRecreate bool
}

// Stats reports index manager state, the supplemented inspection
// operation of SPEC_FULL.md.
type Stats struct {
	VectorCount int
	Dimensions  int
}

// Manager owns one Worker plus its id<->label sidecar map, persisted
// alongside the Worker's own gob snapshot.
type Manager struct {
	worker    *vectorindex.Worker
	st        *store.Store
	indexPath string
	mapPath   string
	dims      int
	log       logging.Logger

	mu              sync.Mutex
	idToLabel       map[string]uint64
	labelToID       map[uint64]string
	contentTypeByID map[string]store.ContentType
	nextLabel       uint64
}

// New constructs a Manager. indexDir is where the index snapshot and
// its sidecar id map are written; dims is the dimensionality the
// vector index worker is configured for.
func New(st *store.Store, indexDir string, dims int, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	cfg := vectorindex.DefaultConfig(dims)
	return &Manager{
		worker:          vectorindex.NewWorker(cfg, log),
		st:              st,
		indexPath:       filepath.Join(indexDir, "index.gob"),
		mapPath:         filepath.Join(indexDir, "labels.gob"),
		dims:            dims,
		log:             log,
		idToLabel:       make(map[string]uint64),
		labelToID:       make(map[uint64]string),
		contentTypeByID: make(map[string]store.ContentType),
		nextLabel:       1,
	}
}

// Initialize loads any existing index snapshot and id map, rejects a
// store.SystemInfo whose ModelDimensions differ from the worker's with
// ErrModelMismatch (the stored model name is not compared, so a model
// change at equal dimensions passes), and replays the
// pending_embeddings journal to resolve interrupted ingestion (spec
// §9's open question).
func (m *Manager) Initialize(ctx context.Context, opts InitOptions) error {
	info, err := m.st.GetSystemInfo(ctx)
	if err != nil && !errors.Is(err, ragerr.ErrNotFound) {
		return ragerr.Wrap("indexmgr_initialize", ragerr.KindStore, err)
	}
	if err == nil && !opts.SkipModelCheck && info.ModelDimensions != m.dims {
		return ragerr.WrapHint(
			"indexmgr_initialize", "rebuild the index with --force-rebuild",
			ragerr.KindModel,
			fmt.Errorf("%w: store dimensions=%d worker dimensions=%d", ragerr.ErrModelMismatch, info.ModelDimensions, m.dims),
		)
	}

	if opts.ForceRecreate {
		if err := m.resetLocked(ctx); err != nil {
			return err
		}
		return nil
	}

	if _, statErr := os.Stat(m.indexPath); statErr == nil {
		if err := m.worker.LoadIndex(ctx, m.indexPath); err != nil {
			return ragerr.Wrap("indexmgr_initialize", ragerr.KindIndex, err)
		}
	}
	if err := m.loadLabelMap(); err != nil {
		return ragerr.Wrap("indexmgr_initialize", ragerr.KindIndex, err)
	}

	return m.replayJournal(ctx)
}

// replayJournal resolves every surviving pending_embeddings row: if
// the chunk row still exists, the vector was written to the store but
// never confirmed durable in the index, so it is re-added from the
// chunk's own content via re-embedding at call time is not available
// here (Reembedder is supplied only by RebuildWithEmbeddings) — instead
// the journal is cleared for chunks whose embeddingId is already
// present in the loaded index (the common case: the index save
// completed but the journal clear did not), and orphan chunks with
// neither an index entry nor a journal clearance are deleted, per spec
// §9's "do not silently leave orphans".
func (m *Manager) replayJournal(ctx context.Context) error {
	pending, err := m.st.ListPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	var cleared []string
	for _, p := range pending {
		m.mu.Lock()
		_, inIndex := m.idToLabel[p.EmbeddingID]
		m.mu.Unlock()
		if inIndex {
			cleared = append(cleared, p.EmbeddingID)
			continue
		}
		exists, err := m.st.ChunkExists(ctx, p.EmbeddingID)
		if err != nil {
			return err
		}
		if exists {
			if err := m.st.DeleteChunkByEmbeddingID(ctx, p.EmbeddingID); err != nil {
				return err
			}
			m.log.Warn("dropped orphan chunk left by interrupted ingestion", "embedding_id", p.EmbeddingID)
		}
		cleared = append(cleared, p.EmbeddingID)
	}
	return m.st.ClearPending(ctx, cleared)
}

// AddVectors assigns a fresh label to each new EmbeddingID and adds it
// to the index in batch. Repeating an EmbeddingID that is already
// indexed is a no-op for that entry, satisfying the idempotence
// property spec §8 requires of re-running ingestion.
func (m *Manager) AddVectors(ctx context.Context, embeddings []Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	m.mu.Lock()
	var labels []uint64
	var vectors [][]float32
	var newIDs []string
	for _, e := range embeddings {
		if _, exists := m.idToLabel[e.EmbeddingID]; exists {
			continue
		}
		label := m.nextLabel
		m.nextLabel++
		m.idToLabel[e.EmbeddingID] = label
		m.labelToID[label] = e.EmbeddingID
		m.contentTypeByID[e.EmbeddingID] = e.ContentType
		labels = append(labels, label)
		vectors = append(vectors, e.Vector)
		newIDs = append(newIDs, e.EmbeddingID)
	}
	m.mu.Unlock()

	if len(labels) == 0 {
		return nil
	}

	if err := m.worker.AddVectors(ctx, labels, vectors); err != nil {
		m.mu.Lock()
		for i, label := range labels {
			delete(m.idToLabel, newIDs[i])
			delete(m.labelToID, label)
			delete(m.contentTypeByID, newIDs[i])
		}
		m.nextLabel -= uint64(len(labels))
		m.mu.Unlock()
		return ragerr.Wrap("indexmgr_add_vectors", ragerr.KindIndex, err)
	}
	return nil
}

// Search runs an ANN query and translates the resulting labels back to
// embeddingIds, in ascending distance order. If contentType is
// non-empty, candidates of any other content type are dropped; since
// the underlying graph has no notion of content type, the ANN search
// itself oversamples by contentTypeOversample so filtering still has
// enough candidates to fill k (spec §4.3/§4.7's contentType option).
func (m *Manager) Search(ctx context.Context, query []float32, k int, contentType store.ContentType) ([]Candidate, error) {
	fetchK := k
	if contentType != "" {
		fetchK = k * contentTypeOversample
	}
	labels, distances, err := m.worker.Search(ctx, query, fetchK)
	if err != nil {
		return nil, ragerr.Wrap("indexmgr_search", ragerr.KindIndex, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Candidate, 0, k)
	for i, label := range labels {
		id, ok := m.labelToID[label]
		if !ok {
			continue
		}
		ct := m.contentTypeByID[id]
		if contentType != "" && ct != contentType {
			continue
		}
		out = append(out, Candidate{EmbeddingID: id, Distance: distances[i], ContentType: ct})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Reset clears the index and id map in place without deleting any
// file, matching spec §4.9's coordinated reset semantics.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resetLocked(ctx)
}

func (m *Manager) resetLocked(ctx context.Context) error {
	if err := m.worker.Reset(ctx); err != nil {
		return ragerr.Wrap("indexmgr_reset", ragerr.KindIndex, err)
	}
	m.idToLabel = make(map[string]uint64)
	m.labelToID = make(map[uint64]string)
	m.contentTypeByID = make(map[string]store.ContentType)
	m.nextLabel = 1
	return nil
}

// Recreate discards the current graph entirely and replaces it with an
// empty one configured for newDims, for the case spec §4.9 names
// separately from a plain Reset: a dimensionality change means the old
// graph's vectors can never be compared against new queries again, so
// clearing in place is not enough — the graph itself must be rebuilt.
func (m *Manager) Recreate(ctx context.Context, newDims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.worker.Reinit(ctx, vectorindex.DefaultConfig(newDims)); err != nil {
		return ragerr.Wrap("indexmgr_recreate", ragerr.KindIndex, err)
	}
	m.dims = newDims
	m.idToLabel = make(map[string]uint64)
	m.labelToID = make(map[uint64]string)
	m.contentTypeByID = make(map[string]store.ContentType)
	m.nextLabel = 1
	return nil
}

// RebuildWithEmbeddings discards the current index and recomputes a
// vector for every chunk in the store using embed, used when a model
// change is force-rebuilt rather than rejected with ModelMismatch.
func (m *Manager) RebuildWithEmbeddings(ctx context.Context, embed Reembedder) error {
	if err := m.Reset(ctx); err != nil {
		return err
	}
	chunks, err := m.st.AllChunks(ctx)
	if err != nil {
		return ragerr.Wrap("indexmgr_rebuild", ragerr.KindStore, err)
	}

	const batchSize = 64
	batch := make([]Embedding, 0, batchSize)
	for _, c := range chunks {
		vec, err := embed.Embed(ctx, c.Content, c.ContentType)
		if err != nil {
			return ragerr.WrapItem("indexmgr_rebuild", c.EmbeddingID, ragerr.KindModel, err)
		}
		batch = append(batch, Embedding{EmbeddingID: c.EmbeddingID, Vector: vec, ContentType: c.ContentType})
		if len(batch) == batchSize {
			if err := m.AddVectors(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		if err := m.AddVectors(ctx, batch); err != nil {
			return err
		}
	}
	return m.SaveIndex(ctx)
}

// SaveIndex persists both the graph snapshot and the id<->label map.
func (m *Manager) SaveIndex(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.indexPath), 0o755); err != nil {
		return ragerr.Wrap("indexmgr_save", ragerr.KindIndex, err)
	}
	if err := m.worker.SaveIndex(ctx, m.indexPath); err != nil {
		return ragerr.Wrap("indexmgr_save", ragerr.KindIndex, err)
	}
	return m.saveLabelMap()
}

// Close terminates the worker, reclaiming its memory per spec §4.2/§9.
// It does not save the index; call SaveIndex first to persist it.
func (m *Manager) Close(ctx context.Context) error {
	return m.worker.Cleanup(ctx)
}

// HasVectors reports whether any vector has been added since the last
// Reset.
func (m *Manager) HasVectors() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.idToLabel) > 0
}

// GetStats reports the current vector count and configured
// dimensionality.
func (m *Manager) GetStats(ctx context.Context) (Stats, error) {
	count, err := m.worker.GetCurrentCount(ctx)
	if err != nil {
		return Stats{}, ragerr.Wrap("indexmgr_stats", ragerr.KindIndex, err)
	}
	return Stats{VectorCount: count, Dimensions: m.dims}, nil
}

type labelMapFile struct {
	IDToLabel       map[string]uint64
	NextLabel       uint64
	ContentTypeByID map[string]store.ContentType
}

func (m *Manager) saveLabelMap() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.Create(m.mapPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(labelMapFile{
		IDToLabel:       m.idToLabel,
		NextLabel:       m.nextLabel,
		ContentTypeByID: m.contentTypeByID,
	})
}

func (m *Manager) loadLabelMap() error {
	f, err := os.Open(m.mapPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var lm labelMapFile
	if err := gob.NewDecoder(f).Decode(&lm); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.idToLabel = lm.IDToLabel
	if m.idToLabel == nil {
		m.idToLabel = make(map[string]uint64)
	}
	m.labelToID = make(map[uint64]string, len(m.idToLabel))
	for id, label := range m.idToLabel {
		m.labelToID[label] = id
	}
	m.nextLabel = lm.NextLabel
	if m.nextLabel == 0 {
		m.nextLabel = 1
	}
	m.contentTypeByID = lm.ContentTypeByID
	if m.contentTypeByID == nil {
		m.contentTypeByID = make(map[string]store.ContentType)
	}
	return nil
}
