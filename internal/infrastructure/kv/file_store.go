package kv

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/doeshing/mindtrail/internal/domain"
	"github.com/doeshing/mindtrail/internal/pkg/filesystem"
	"github.com/doeshing/mindtrail/internal/ports"
)

// FileStore keeps one JSON blob per key under a directory. It is the default
// durable backend.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a store rooted at dir, or ~/.mindtrail/data when dir is empty.
func NewFileStore(dir string) *FileStore {
	if dir == "" {
		dir = filepath.Join(filesystem.UserHomeDir(), ".mindtrail", "data")
	}
	return &FileStore{dir: dir}
}

// Get implements ports.KVStore.
func (f *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrapf(err, "read key %s", key)
	}
	return data, true, nil
}

// Set implements ports.KVStore. The blob is written to a temp file and
// renamed so a crash never leaves a half-written value behind.
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(f.dir, domain.DirectoryPermissions); err != nil {
		return errors.Wrap(err, "create store dir")
	}
	tmp, err := os.CreateTemp(f.dir, ".kv-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write key %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close temp for key %s", key)
	}
	if err := os.Chmod(tmp.Name(), domain.FilePermissions); err != nil {
		return errors.Wrapf(err, "chmod key %s", key)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), f.pathFor(key)), "commit key %s", key)
}

// Delete implements ports.KVStore. Deleting a missing key is not an error.
func (f *FileStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "delete key %s", key)
	}
	return nil
}

// Dir returns the backing directory.
func (f *FileStore) Dir() string {
	return f.dir
}

func (f *FileStore) pathFor(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

var _ ports.KVStore = (*FileStore)(nil)
