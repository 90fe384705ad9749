package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ragstore/engine/internal/ragerr"
)

// InsertChunk inserts a single chunk row. ContentType defaults to
// ContentText when empty. Fails with a constraint error if
// EmbeddingID or (DocumentID, ChunkIndex) is already in use.
func (s *Store) InsertChunk(ctx context.Context, c Chunk) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if c.ContentType == "" {
		c.ContentType = ContentText
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chunks (embedding_id, document_id, content, chunk_index, content_type)
		VALUES (?, ?, ?, ?, ?)
	`, c.EmbeddingID, c.DocumentID, c.Content, c.ChunkIndex, string(c.ContentType))
	if err != nil {
		return ragerr.WrapItem("insert_chunk", c.EmbeddingID, ragerr.KindStore, fmt.Errorf("%w: %v", ragerr.ErrConstraint, err))
	}
	return nil
}

// GetChunksByEmbeddingIDs returns the Chunk+Document join for every
// id found in the store. Per spec §4.1, input order is NOT preserved
// — callers that need a specific order must reorder using the
// returned EmbeddingID.
func (s *Store) GetChunksByEmbeddingIDs(ctx context.Context, ids []string) ([]ChunkWithDocument, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT c.embedding_id, c.document_id, c.content, c.chunk_index, c.content_type,
		       d.source, d.title
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ragerr.Wrap("get_chunks_by_embedding_ids", ragerr.KindStore, err)
	}
	defer rows.Close()

	var out []ChunkWithDocument
	for rows.Next() {
		var cwd ChunkWithDocument
		var contentType string
		if err := rows.Scan(&cwd.EmbeddingID, &cwd.DocumentID, &cwd.Content, &cwd.ChunkIndex, &contentType, &cwd.DocumentSource, &cwd.DocumentTitle); err != nil {
			return nil, ragerr.Wrap("get_chunks_by_embedding_ids", ragerr.KindStore, err)
		}
		cwd.ContentType = ContentType(contentType)
		out = append(out, cwd)
	}
	if err := rows.Err(); err != nil {
		return nil, ragerr.Wrap("get_chunks_by_embedding_ids", ragerr.KindStore, err)
	}
	return out, nil
}

// CountChunks returns the total number of chunks, reported by the
// ragctl stats command. Reset reports its own deletion counts through
// ResetStore.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, ragerr.Wrap("count_chunks", ragerr.KindStore, err)
	}
	return n, nil
}

// chunkExists reports whether a chunk row exists for embeddingID,
// used by journal replay to decide whether an orphaned pending
// embedding has a chunk row to drop.
func (s *Store) chunkExists(ctx context.Context, embeddingID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE embedding_id = ?`, embeddingID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
