package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// FileStorage saves each namespace as <dir>/<namespace>.json.
// Writes go through a temp file and rename, so a crash never leaves a torn snapshot.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a FileStorage rooted at dir. The directory is created on first save.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Path returns the file a namespace is stored in.
func (f *FileStorage) Path(namespace string) string {
	return filepath.Join(f.dir, namespace+".json")
}

// Load reads the snapshot file for namespace.
func (f *FileStorage) Load(_ context.Context, namespace string) ([]byte, bool, error) {
	data, err := os.ReadFile(f.Path(namespace))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read snapshot: %w", err)
	}
	return data, true, nil
}

// Save atomically replaces the snapshot file for namespace.
func (f *FileStorage) Save(_ context.Context, namespace string, data []byte) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	if err := atomic.WriteFile(f.Path(namespace), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
