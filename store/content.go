package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ragstore/engine/internal/ragerr"
)

// GetContentByHash looks up existing ContentMetadata by its content
// hash, the dedup check ingestFromMemory runs before storing new
// binary content (spec §3: "contentHash uniquely identifies content
// bytes for deduplication").
func (s *Store) GetContentByHash(ctx context.Context, hash string) (*ContentMetadata, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var cm ContentMetadata
	err := s.db.QueryRowContext(ctx, `
		SELECT id, storage_type, original_path, content_path, display_name, content_type, file_size, content_hash, created_at
		FROM content_metadata WHERE content_hash = ?
	`, hash).Scan(&cm.ID, &cm.StorageType, &cm.OriginalPath, &cm.ContentPath, &cm.DisplayName, &cm.ContentType, &cm.FileSize, &cm.ContentHash, &cm.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragerr.Wrap("get_content_by_hash", ragerr.KindContent, ragerr.ErrContentNotFound)
	}
	if err != nil {
		return nil, ragerr.Wrap("get_content_by_hash", ragerr.KindStore, err)
	}
	return &cm, nil
}

// InsertContentMetadata records a new content blob. Callers must
// dedup via GetContentByHash first; if ContentHash already exists this
// returns the driver's unique-constraint error wrapped as a Content
// error (it is not mapped to ErrConstraint).
func (s *Store) InsertContentMetadata(ctx context.Context, cm ContentMetadata) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO content_metadata (id, storage_type, original_path, content_path, display_name, content_type, file_size, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, cm.ID, string(cm.StorageType), cm.OriginalPath, cm.ContentPath, cm.DisplayName, cm.ContentType, cm.FileSize, cm.ContentHash)
	if err != nil {
		return ragerr.WrapItem("insert_content_metadata", cm.ID, ragerr.KindContent, err)
	}
	return nil
}
