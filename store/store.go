package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/ragstore/engine/internal/logging"
	"github.com/ragstore/engine/internal/ragerr"

	_ "modernc.org/sqlite" // pure-Go SQLite driver, no CGO
)

// Store is a single open connection to the metadata database. It is
// safe for concurrent reads; writes are serialized by the caller
// (spec §5 — the host is the single writer, not this type), though
// Store additionally takes its own mutex around schema/close
// operations to protect its own bookkeeping.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	closed bool
	log    logging.Logger
}

// Option configures Open.
type Option func(*Store)

// WithLogger overrides the default stdout logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens (creating if absent) the SQLite file at path and applies
// the schema idempotently, mirroring the DSN tuning in
// pkg/core/store_init.go: WAL journaling, NORMAL synchronous mode, a
// 5s busy timeout, and a small page cache.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{path: path, log: logging.NewStd()}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ragerr.WrapItem("store_open", path, ragerr.KindStore, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ragerr.WrapItem("store_open", path, ragerr.KindStore, fmt.Errorf("%w: %v", ragerr.ErrStoreUnavailable, err))
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, ragerr.Wrap("store_open", ragerr.KindStore, err)
	}

	s.db = db
	if err := s.initializeSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the underlying database connection. Close is
// idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return ragerr.Wrap("store_close", ragerr.KindStore, err)
	}
	return nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ragerr.Wrap("store", ragerr.KindStore, ragerr.ErrStoreClosed)
	}
	return nil
}

// Path returns the filesystem path this store was opened from.
func (s *Store) Path() string { return s.path }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS system_info (
	id                      INTEGER PRIMARY KEY CHECK (id = 1),
	mode                    TEXT NOT NULL,
	model_name              TEXT NOT NULL,
	model_type              TEXT NOT NULL,
	model_dimensions        INTEGER NOT NULL,
	model_version           TEXT,
	supported_content_types TEXT NOT NULL,
	reranking_strategy      TEXT NOT NULL,
	reranking_model         TEXT,
	created_at              DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at              DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source     TEXT NOT NULL UNIQUE,
	title      TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	embedding_id TEXT PRIMARY KEY,
	document_id  INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	content      TEXT NOT NULL,
	chunk_index  INTEGER NOT NULL,
	content_type TEXT NOT NULL DEFAULT 'text',
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (document_id, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);

CREATE TABLE IF NOT EXISTS content_metadata (
	id            TEXT PRIMARY KEY,
	storage_type  TEXT NOT NULL,
	original_path TEXT,
	content_path  TEXT,
	display_name  TEXT,
	content_type  TEXT,
	file_size     INTEGER,
	content_hash  TEXT NOT NULL UNIQUE,
	created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS pending_embeddings (
	embedding_id TEXT PRIMARY KEY,
	document_id  INTEGER NOT NULL,
	created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// initializeSchema applies the schema idempotently; CREATE TABLE IF
// NOT EXISTS makes repeated calls a no-op, satisfying the idempotence
// property of spec §8.
func (s *Store) initializeSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return ragerr.Wrap("initialize_schema", ragerr.KindStore, err)
	}
	return nil
}
