// Package store implements the Metadata Store (spec §4.1): durable,
// transactional storage of documents, chunks, content metadata, and
// the singleton system_info row, backed by SQLite via
// modernc.org/sqlite exactly as pkg/core/store.go in the teacher
// repo. This package owns the authoritative mapping from embeddingId
// to Chunk -> Document; it never touches the vector index.
package store

import "time"

// Mode is the corpus-wide embedder family persisted in SystemInfo.
type Mode string

const (
	ModeText       Mode = "text"
	ModeMultimodal Mode = "multimodal"
)

// ModelType names the embedding model family.
type ModelType string

const (
	ModelTypeSentenceTransformer ModelType = "sentence-transformer"
	ModelTypeCLIP                ModelType = "clip"
)

// RerankingStrategy is the persisted reranking choice.
type RerankingStrategy string

const (
	RerankCrossEncoder RerankingStrategy = "cross-encoder"
	RerankTextDerived  RerankingStrategy = "text-derived"
	RerankDisabled     RerankingStrategy = "disabled"
)

// ContentType classifies a chunk or a search result's content.
type ContentType string

const (
	ContentText     ContentType = "text"
	ContentImage    ContentType = "image"
	ContentCombined ContentType = "combined"
)

// StorageType classifies how ContentMetadata bytes are held.
type StorageType string

const (
	StorageFilesystem StorageType = "filesystem"
	StorageContentDir StorageType = "content_dir"
	StorageInline     StorageType = "inline"
)

// SystemInfo is the corpus-wide singleton row recording which mode
// and model the persisted store and vector index were built with.
// Invariant: mode/modelType/modelDimensions/supportedContentTypes must
// be mutually consistent (e.g. clip implies 512 dims and an "image"
// entry in supportedContentTypes) — enforced in systeminfo.go.
type SystemInfo struct {
	Mode                  Mode
	ModelName             string
	ModelType             ModelType
	ModelDimensions        int
	ModelVersion          string
	SupportedContentTypes []ContentType
	RerankingStrategy     RerankingStrategy
	RerankingModel        string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// DefaultSystemInfo is the canonical default configuration spec §4.8
// requires mode detection to fall back to: text mode, a 384-dimension
// sentence-transformer model, cross-encoder reranking.
func DefaultSystemInfo() SystemInfo {
	return SystemInfo{
		Mode:                  ModeText,
		ModelName:             "sentence-transformers/all-MiniLM-L6-v2",
		ModelType:             ModelTypeSentenceTransformer,
		ModelDimensions:       384,
		SupportedContentTypes: []ContentType{ContentText},
		RerankingStrategy:     RerankCrossEncoder,
	}
}

// Document is a single ingested source: a file, a URL, an in-memory
// buffer. Source must be unique.
type Document struct {
	ID     int64
	Source string
	Title  string
}

// Chunk is a contiguous slice of a Document's content, carrying
// exactly one vector once committed. (DocumentID, ChunkIndex) is
// unique; EmbeddingID is unique and is the join key into the vector
// index.
type Chunk struct {
	EmbeddingID string
	DocumentID  int64
	Content     string
	ChunkIndex  int
	ContentType ContentType
}

// ChunkWithDocument is the result of joining a Chunk to its owning
// Document, as returned by GetChunksByEmbeddingIDs.
type ChunkWithDocument struct {
	Chunk
	DocumentSource string
	DocumentTitle  string
}

// ContentMetadata describes a deduplicated content blob referenced by
// a Chunk (the unified content system, §3). ContentHash uniquely
// identifies the bytes.
type ContentMetadata struct {
	ID           string
	StorageType  StorageType
	OriginalPath string
	ContentPath  string
	DisplayName  string
	ContentType  string
	FileSize     int64
	ContentHash  string
	CreatedAt    time.Time
}

// ResetOptions controls ResetStore's behavior.
type ResetOptions struct {
	PreserveSystemInfo bool
	RunVacuum          bool
}

// ResetResult reports what ResetStore deleted.
type ResetResult struct {
	DocumentsDeleted int64
	ChunksDeleted    int64
	ContentDeleted   int64
}
