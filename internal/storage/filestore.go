package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// FileStore keeps one JSON file per namespace under a data directory.
// It is the fallback backend when no database DSN is configured.
type FileStore struct {
	dir string
}

// NewFileStore creates the data directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, ErrNotConfigured
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Load reads <dir>/<namespace>.json.
func (s *FileStore) Load(ctx context.Context, namespace string) (json.RawMessage, error) {
	data, err := os.ReadFile(s.path(namespace))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", namespace, err)
	}
	return json.RawMessage(data), nil
}

// Save writes the document atomically via a temp file rename.
func (s *FileStore) Save(ctx context.Context, namespace string, doc json.RawMessage) error {
	target := s.path(namespace)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write document %q: %w", namespace, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename document %q: %w", namespace, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() {}

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+".json")
}

var _ DocumentStore = (*FileStore)(nil)
