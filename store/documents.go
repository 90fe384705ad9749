package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ragstore/engine/internal/ragerr"
)

// InsertDocument creates a new document row, failing if Source
// already exists. Most callers want UpsertDocument instead.
func (s *Store) InsertDocument(ctx context.Context, source, title string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO documents (source, title) VALUES (?, ?)`, source, title)
	if err != nil {
		return 0, ragerr.WrapItem("insert_document", source, ragerr.KindStore, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, ragerr.Wrap("insert_document", ragerr.KindStore, err)
	}
	return id, nil
}

// UpsertDocument creates the document if Source is new, otherwise
// updates its title in place and preserves the existing id —
// satisfying the idempotence property of spec §8
// ("upsertDocument(source, t) twice yields one row with id
// preserved").
func (s *Store) UpsertDocument(ctx context.Context, source, title string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM documents WHERE source = ?`, source).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return s.InsertDocument(ctx, source, title)
	case err != nil:
		return 0, ragerr.WrapItem("upsert_document", source, ragerr.KindStore, err)
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE documents SET title = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, title, id); err != nil {
		return 0, ragerr.WrapItem("upsert_document", source, ragerr.KindStore, err)
	}
	return id, nil
}

// GetDocument retrieves a document by id.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	var d Document
	err := s.db.QueryRowContext(ctx, `SELECT id, source, title FROM documents WHERE id = ?`, id).Scan(&d.ID, &d.Source, &d.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ragerr.Wrap("get_document", ragerr.KindStore, ragerr.ErrNotFound)
	}
	if err != nil {
		return nil, ragerr.Wrap("get_document", ragerr.KindStore, err)
	}
	return &d, nil
}

// DeleteDocument removes a document and cascades to its chunks.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return ragerr.Wrap("delete_document", ragerr.KindStore, err)
	}
	return nil
}
