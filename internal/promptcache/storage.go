package promptcache

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// BlobStorage persists the whole cache table as one opaque blob under a
// fixed location. Implementations are best-effort: the store treats every
// failure as recoverable.
type BlobStorage interface {
	Load() ([]byte, error)
	Save(data []byte) error
	Delete() error
}

// FileStorage keeps the blob in a single file on disk.
type FileStorage struct {
	path string
}

// NewFileStorage creates storage backed by the given file path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load reads the blob. A missing file is reported as an empty blob, not
// an error.
func (s *FileStorage) Load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return data, nil
}

// Save writes the blob, creating parent directories as needed.
func (s *FileStorage) Save(data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	return os.WriteFile(s.path, data, 0o644)
}

// Delete removes the blob. A missing file is not an error.
func (s *FileStorage) Delete() error {
	err := os.Remove(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}
