package store

import (
	"context"

	"github.com/ragstore/engine/internal/ragerr"
)

// ResetStore deletes all Documents, Chunks and ContentMetadata rows
// in one transaction, grounded on the teacher's single-transaction
// resetStore shape in store.go. SystemInfo is preserved when
// opts.PreserveSystemInfo is set; otherwise it is cleared so the next
// ingestion can adopt a different model without a ModelMismatch.
func (s *Store) ResetStore(ctx context.Context, opts ResetOptions) (*ResetResult, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
	}
	defer tx.Rollback() //nolint:errcheck

	result := &ResetResult{}

	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&result.ChunksDeleted); err != nil {
		return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&result.DocumentsDeleted); err != nil {
		return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
	}
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_metadata`).Scan(&result.ContentDeleted); err != nil {
		return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
	}

	for _, stmt := range []string{
		`DELETE FROM chunks`,
		`DELETE FROM documents`,
		`DELETE FROM content_metadata`,
		`DELETE FROM pending_embeddings`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
		}
	}

	if !opts.PreserveSystemInfo {
		if _, err := tx.ExecContext(ctx, `DELETE FROM system_info`); err != nil {
			return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, ragerr.Wrap("reset_store", ragerr.KindStore, err)
	}

	if opts.RunVacuum {
		if _, err := s.db.ExecContext(ctx, `VACUUM`); err != nil {
			s.log.Warn("vacuum failed after reset", "error", err)
		}
	}

	return result, nil
}
