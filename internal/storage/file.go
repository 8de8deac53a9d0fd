package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileBlobStore keeps the synced blob in a single file, written atomically
// with a temp file + rename.
type FileBlobStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileBlobStore creates a FileBlobStore writing to path.
func NewFileBlobStore(path string) *FileBlobStore {
	return &FileBlobStore{path: path}
}

// Path returns the file backing the store.
func (s *FileBlobStore) Path() string { return s.path }

// LoadSyncedData reads the blob. A missing file is reported as found=false.
func (s *FileBlobStore) LoadSyncedData(_ context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read synced data: %w", err)
	}
	return string(data), true, nil
}

// PersistDataSynced atomically replaces the blob.
func (s *FileBlobStore) PersistDataSynced(_ context.Context, data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create synced data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(data), 0o644); err != nil {
		return fmt.Errorf("write synced data tmp: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename synced data: %w", err)
	}
	return nil
}

// Close is a no-op for file stores.
func (s *FileBlobStore) Close() error { return nil }
