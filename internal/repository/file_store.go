package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"storyhub/pkg/models"
)

// FileStore keeps each document as <dir>/<name>.json.
// Each write goes to a temp file that is renamed over the target, so readers never see a
// partial document. Read-modify-write sequences by callers are not serialised.
type FileStore struct {
	dir string

	locksMu sync.Mutex
	locks   map[models.DocumentName]*sync.Mutex
}

// NewFileStore creates dir if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileStore{dir: dir, locks: make(map[models.DocumentName]*sync.Mutex)}, nil
}

func (s *FileStore) path(name models.DocumentName) string {
	return filepath.Join(s.dir, name.FileName())
}

func (s *FileStore) lock(name models.DocumentName) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	mu, ok := s.locks[name]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[name] = mu
	}
	return mu
}

func (s *FileStore) Get(ctx context.Context, name models.DocumentName) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, err := s.read(name)
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, fmt.Errorf("%s: %w", name, models.ErrDocumentNotFound)
	}
	return &Document{Name: name, Content: content, Revision: Revision(content)}, nil
}

func (s *FileStore) Put(ctx context.Context, name models.DocumentName, content []byte, expectedRevision string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	if expectedRevision != "" {
		current, err := s.read(name)
		if err != nil {
			return "", err
		}
		if current == nil || Revision(current) != expectedRevision {
			return "", fmt.Errorf("%s: %w", name, models.ErrRevisionConflict)
		}
	}

	if err := s.write(name, content); err != nil {
		return "", err
	}
	return Revision(content), nil
}

func (s *FileStore) Update(ctx context.Context, name models.DocumentName, fn UpdateFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mu := s.lock(name)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.read(name)
	if err != nil {
		return "", err
	}
	next, err := fn(current, current != nil)
	if err != nil {
		return "", err
	}
	if err := s.write(name, next); err != nil {
		return "", err
	}
	return Revision(next), nil
}

// read returns nil content when the file does not exist
func (s *FileStore) read(name models.DocumentName) ([]byte, error) {
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}

func (s *FileStore) write(name models.DocumentName, content []byte) error {
	tmp, err := os.CreateTemp(s.dir, string(name)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
