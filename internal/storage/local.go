package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store persists uploaded files and reopens them later by opaque key. The
// pipeline only requires that a saved file is re-openable by its key; the
// background worker relies on this to read the same bytes the request saw.
type Store interface {
	Save(ctx context.Context, originalName string, r io.Reader) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LocalStore keeps uploads on the local filesystem under a root directory.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Save writes the stream to disk and returns the opaque key. The key embeds
// the original extension so the format can be re-derived when reopening is
// not enough.
func (s *LocalStore) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	key := uuid.NewString() + ext

	f, err := os.Create(filepath.Join(s.dir, key))
	if err != nil {
		return "", fmt.Errorf("failed to create stored file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write stored file: %w", err)
	}

	return key, nil
}

// Open returns a reader over a previously saved file.
func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	// Keys are generated UUIDs; reject anything path-like.
	if strings.ContainsAny(key, `/\`) || key != filepath.Base(key) {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		return nil, fmt.Errorf("failed to open stored file: %w", err)
	}
	return f, nil
}
