// Package kb implements the Knowledge-Base Manager (spec §4.9): a
// coordinated reset of the Store and the Index Manager without
// deleting any file, holding a cross-process advisory lock for the
// duration so two resets cannot run at once. Ingest and search do not
// take this lock.
//
// Grounded on the teacher's resetStore-shaped transaction in
// store.go plus DeleteCollection's close/reopen sequencing. The
// cross-process file lock during reset uses gofrs/flock, grounded on
// Aman-CERP-amanmcp, which flocks its own sqlite file during writes.
package kb

import (
	"context"
	"time"

	"github.com/gofrs/flock"
	"github.com/ragstore/engine/indexmgr"
	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"
	"github.com/ragstore/engine/store"
)

// Result reports what a reset accomplished.
type Result struct {
	Success     bool
	Database    store.ResetResult
	Index       indexmgr.Stats
	TotalTimeMs int64
	Warnings    []string
}

// Manager coordinates a reset across one Store and one Index Manager.
type Manager struct {
	st       *store.Store
	idx      *indexmgr.Manager
	lockPath string
	log      logging.Logger
}

// New constructs a Manager. lockPath names the advisory lock file
// (conventionally the store's path plus ".lock").
func New(st *store.Store, idx *indexmgr.Manager, lockPath string, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Nop()
	}
	return &Manager{st: st, idx: idx, lockPath: lockPath, log: log}
}

// Reset clears all documents, chunks, and content metadata from the
// store and clears the vector index in place, without deleting either
// backing file. If newDimensions differs from the index's current
// dimensionality, the index is force-recreated instead of cleared, per
// spec §4.9's "force-recreate on dimension mismatch, else clear in
// place" rule.
func (m *Manager) Reset(ctx context.Context, opts store.ResetOptions, newDimensions int) (Result, error) {
	start := time.Now()

	fl := flock.New(m.lockPath)
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return Result{}, ragerr.Wrap("kb_reset", ragerr.KindStore, ragerr.ErrStoreUnavailable)
	}
	defer fl.Unlock() //nolint:errcheck

	dbResult, err := m.st.ResetStore(ctx, opts)
	if err != nil {
		return Result{}, ragerr.Wrap("kb_reset", ragerr.KindStore, err)
	}

	var warnings []string
	stats, statErr := m.idx.GetStats(ctx)
	dimensionsChanged := statErr == nil && newDimensions > 0 && stats.Dimensions != newDimensions
	if dimensionsChanged {
		warnings = append(warnings, "index dimensions changed, forcing recreation instead of in-place clear")
		if err := m.idx.Recreate(ctx, newDimensions); err != nil {
			return Result{}, ragerr.Wrap("kb_reset", ragerr.KindIndex, err)
		}
	} else if err := m.idx.Reset(ctx); err != nil {
		return Result{}, ragerr.Wrap("kb_reset", ragerr.KindIndex, err)
	}
	if err := m.idx.SaveIndex(ctx); err != nil {
		warnings = append(warnings, "index reset but save failed: "+err.Error())
	}

	idxStats, err := m.idx.GetStats(ctx)
	if err != nil {
		idxStats = indexmgr.Stats{}
		warnings = append(warnings, "could not read post-reset index stats: "+err.Error())
	}

	return Result{
		Success:     true,
		Database:    *dbResult,
		Index:       idxStats,
		TotalTimeMs: time.Since(start).Milliseconds(),
		Warnings:    warnings,
	}, nil
}
