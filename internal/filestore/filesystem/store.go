// Package filesystem stores file bytes as flat files under a base directory.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/msomdec/snapgram/internal/domain"
	"github.com/msomdec/snapgram/internal/filestore"
)

// Store implements domain.FileStore on the local filesystem.
type Store struct {
	basePath string
	logger   *slog.Logger
}

var _ domain.FileStore = (*Store)(nil)

// New creates the base directory when missing and returns a Store rooted there.
func New(basePath string, logger *slog.Logger) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("%w: empty storage path", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{basePath: basePath, logger: logger.With("system", "filestore")}, nil
}

// Save writes data to a temporary file and renames it into place, so readers
// never observe a partial file.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	if err := filestore.ValidateKey(key); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.basePath, key)); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}

	s.logger.Debug("file stored", "key", key, "size", len(data))
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := filestore.ValidateKey(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.basePath, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Delete removes the file. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := filestore.ValidateKey(key); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.basePath, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}
