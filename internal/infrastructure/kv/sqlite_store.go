package kv

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/pkg/filesystem"
	"github.com/doeshing/mindtrail/internal/ports"
)

// SQLiteStore persists blobs in a single-table SQLite database. When the
// database cannot be opened it degrades to a FileStore next to the db path.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fallback *FileStore
	mu       sync.Mutex
}

// NewSQLiteStore creates (or opens) the database at path, defaulting to
// ~/.mindtrail/data/store.db.
func NewSQLiteStore(path string) *SQLiteStore {
	if path == "" {
		path = filepath.Join(filesystem.UserHomeDir(), ".mindtrail", "data", "store.db")
	}
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path, fallback: NewFileStore(filepath.Dir(path))}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return &SQLiteStore{path: path, fallback: NewFileStore(filepath.Dir(path))}
	}
	return store
}

func newSQLiteStoreWithDB(db *sql.DB, path string) *SQLiteStore {
	return &SQLiteStore{db: db, path: path}
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// Get implements ports.KVStore.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.fallback != nil {
		return s.fallback.Get(ctx, key)
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "select key %s", key)
	}
	return value, true, nil
}

// Set implements ports.KVStore.
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fallback != nil {
		return s.fallback.Set(ctx, key, value)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano))
	return errors.Wrapf(err, "upsert key %s", key)
}

// Delete implements ports.KVStore.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if s.fallback != nil {
		return s.fallback.Delete(ctx, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM kv WHERE key = ?", key)
	return errors.Wrapf(err, "delete key %s", key)
}

// Path returns the sqlite database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Degraded reports whether the store fell back to plain files.
func (s *SQLiteStore) Degraded() bool {
	return s.fallback != nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ ports.KVStore = (*SQLiteStore)(nil)
