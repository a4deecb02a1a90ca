package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"modq/internal/modq"
)

// FileSystemStore keeps one file per table in a directory:
//
//	<root>/
//	  users.snapshot
//	  pending.snapshot
//	  ...
//
// Writes are atomic (temp file + rename) so a crash mid-flush leaves the
// previous snapshot intact.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a store rooted at the given directory.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

func (s *FileSystemStore) path(table string) string {
	return filepath.Join(s.root, table+".snapshot")
}

// Load reads a table file. A missing file yields nil.
func (s *FileSystemStore) Load(_ context.Context, table string) ([]byte, error) {
	data, err := os.ReadFile(s.path(table))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading table %s: %w", table, err)
	}
	return data, nil
}

// Save atomically replaces a table file.
func (s *FileSystemStore) Save(_ context.Context, table string, data []byte) error {
	return writeFileAtomic(s.path(table), data)
}

// ValidateSetup verifies that the store directory is accessible.
func (s *FileSystemStore) ValidateSetup() error {
	info, err := os.Stat(s.root)
	if err != nil {
		return fmt.Errorf("store root not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store root is not a directory: %s", s.root)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (s *FileSystemStore) Close() error { return nil }

// writeFileAtomic writes data to destPath using a temp file in the same directory and a rename.
func writeFileAtomic(destPath string, data []byte) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// Compile-time check that FileSystemStore implements modq.Store interface
var _ modq.Store = (*FileSystemStore)(nil)
