// Package subscribers owns the subscriber list: a flat-file store, an
// in-memory service guarding it, and a watcher that picks up edits made
// outside the process.
package subscribers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the email to preferences mapping.
type Store interface {
	Load(ctx context.Context) (map[string][]string, error)
	Save(ctx context.Context, subscribers map[string][]string) error
}

// FileStore keeps subscribers in one indented JSON document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path reports the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty list.
func (s *FileStore) Load(ctx context.Context) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subscribers: %w", err)
	}
	subscribers := map[string][]string{}
	if len(data) == 0 {
		return subscribers, nil
	}
	if err := json.Unmarshal(data, &subscribers); err != nil {
		return nil, fmt.Errorf("decode subscribers %s: %w", s.path, err)
	}
	return subscribers, nil
}

// Save replaces the file atomically through a temp file and rename.
func (s *FileStore) Save(ctx context.Context, subscribers map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if subscribers == nil {
		subscribers = map[string][]string{}
	}
	data, err := json.MarshalIndent(subscribers, "", "    ")
	if err != nil {
		return fmt.Errorf("encode subscribers: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subscribers dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subscribers file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write subscribers: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync subscribers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close subscribers: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace subscribers: %w", err)
	}
	return nil
}
