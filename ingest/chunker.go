package ingest

import (
	"fmt"

	"github.com/ragstore/engine/internal/ragerr"
)

// ChunkConfig controls chunking. ChunkOverlap must be strictly less
// than ChunkSize (spec §4.6 invariant) or Chunk returns an error.
type ChunkConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// DefaultChunkConfig mirrors the size spec §4.6 names as typical: 512
// characters per chunk, 64 characters of overlap.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 512, ChunkOverlap: 64}
}

func (c ChunkConfig) validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunkSize must be positive", ragerr.ErrInvalidConfig)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunkOverlap must not be negative", ragerr.ErrInvalidConfig)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunkOverlap must be less than chunkSize", ragerr.ErrInvalidConfig)
	}
	return nil
}

// Chunk splits content into overlapping windows of runes, in order.
// A content shorter than ChunkSize produces exactly one chunk. Empty
// content produces zero chunks.
func Chunk(content string, cfg ChunkConfig) ([]string, error) {
	if err := cfg.validate(); err != nil {
		return nil, ragerr.Wrap("chunk", ragerr.KindContent, err)
	}
	runes := []rune(content)
	if len(runes) == 0 {
		return nil, nil
	}

	stride := cfg.ChunkSize - cfg.ChunkOverlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + cfg.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
