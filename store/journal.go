package store

import (
	"context"

	"github.com/ragstore/engine/internal/ragerr"
)

// PendingEmbedding is a journal row recorded before the index add for
// a chunk, and cleared once the index has durably saved that vector.
// A row surviving into the next Open call means ingestion was
// interrupted between the store write and the index save (spec §9
// open question); IndexManager.Initialize resolves each survivor by
// clearing the entry when its vector is already in the loaded index,
// or else deleting the orphan chunk row if one exists and clearing the
// entry — see indexmgr. No add is replayed.
type PendingEmbedding struct {
	EmbeddingID string
	DocumentID  int64
}

// MarkPending records that embeddingID's vector has been written to
// the store but not yet confirmed durable in the vector index.
func (s *Store) MarkPending(ctx context.Context, embeddingID string, documentID int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_embeddings (embedding_id, document_id) VALUES (?, ?)
		ON CONFLICT(embedding_id) DO NOTHING
	`, embeddingID, documentID)
	if err != nil {
		return ragerr.WrapItem("mark_pending", embeddingID, ragerr.KindStore, err)
	}
	return nil
}

// ClearPending removes the journal entries for the given embedding
// ids, called once the index has saved them durably.
func (s *Store) ClearPending(ctx context.Context, embeddingIDs []string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if len(embeddingIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ragerr.Wrap("clear_pending", ragerr.KindStore, err)
	}
	defer tx.Rollback() //nolint:errcheck
	stmt, err := tx.PrepareContext(ctx, `DELETE FROM pending_embeddings WHERE embedding_id = ?`)
	if err != nil {
		return ragerr.Wrap("clear_pending", ragerr.KindStore, err)
	}
	defer stmt.Close()
	for _, id := range embeddingIDs {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return ragerr.WrapItem("clear_pending", id, ragerr.KindStore, err)
		}
	}
	return ragerr.Wrap("clear_pending", ragerr.KindStore, tx.Commit())
}

// ListPending returns every surviving journal entry, consulted once
// at IndexManager.Initialize time.
func (s *Store) ListPending(ctx context.Context) ([]PendingEmbedding, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT embedding_id, document_id FROM pending_embeddings`)
	if err != nil {
		return nil, ragerr.Wrap("list_pending", ragerr.KindStore, err)
	}
	defer rows.Close()

	var out []PendingEmbedding
	for rows.Next() {
		var p PendingEmbedding
		if err := rows.Scan(&p.EmbeddingID, &p.DocumentID); err != nil {
			return nil, ragerr.Wrap("list_pending", ragerr.KindStore, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ChunkExists reports whether a chunk row exists for embeddingID,
// exported for journal replay in indexmgr.
func (s *Store) ChunkExists(ctx context.Context, embeddingID string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	return s.chunkExists(ctx, embeddingID)
}

// DeleteChunkByEmbeddingID removes a single orphaned chunk, used when
// journal replay finds a pending embedding whose index add never
// completed and whose chunk should not be resurrected.
func (s *Store) DeleteChunkByEmbeddingID(ctx context.Context, embeddingID string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE embedding_id = ?`, embeddingID)
	if err != nil {
		return ragerr.WrapItem("delete_orphan_chunk", embeddingID, ragerr.KindStore, err)
	}
	return nil
}

// GetChunkVectorSource returns the content + content type for a
// single embeddingId's chunk without pulling in the full join. Journal
// replay in indexmgr does not call it; orphans are deleted, not
// re-embedded.
func (s *Store) GetChunkVectorSource(ctx context.Context, embeddingID string) (content string, contentType ContentType, err error) {
	if err := s.checkOpen(); err != nil {
		return "", "", err
	}
	var ct string
	dbErr := s.db.QueryRowContext(ctx, `SELECT content, content_type FROM chunks WHERE embedding_id = ?`, embeddingID).Scan(&content, &ct)
	if dbErr != nil {
		return "", "", ragerr.WrapItem("get_chunk_vector_source", embeddingID, ragerr.KindStore, dbErr)
	}
	return content, ContentType(ct), nil
}

// AllChunks streams every chunk in the store, used by
// rebuildWithEmbeddings to re-embed the whole corpus.
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT embedding_id, document_id, content, chunk_index, content_type FROM chunks ORDER BY document_id, chunk_index`)
	if err != nil {
		return nil, ragerr.Wrap("all_chunks", ragerr.KindStore, err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		var ct string
		if err := rows.Scan(&c.EmbeddingID, &c.DocumentID, &c.Content, &c.ChunkIndex, &ct); err != nil {
			return nil, ragerr.Wrap("all_chunks", ragerr.KindStore, err)
		}
		c.ContentType = ContentType(ct)
		out = append(out, c)
	}
	return out, rows.Err()
}
