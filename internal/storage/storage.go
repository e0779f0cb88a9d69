// Package storage is the byte-level store for file content. Chunks are
// written at computed offsets into preallocated files; durability is the
// caller's call via Flush. The store holds an exclusive lock on its root so
// two server processes cannot share one.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// StorageError wraps an underlying I/O failure with the operation and path
// that produced it.
type StorageError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *StorageError) Unwrap() error { return e.Err }

func wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}

// Store performs file I/O below a single root directory. Every path given
// to its methods is a locator relative to that root.
type Store struct {
	root   string
	lock   *flock.Flock
	logger *zap.Logger
}

// New creates the root directory if needed and takes the exclusive lock.
func New(root string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, wrap("create root", root, err)
	}
	lock := flock.New(filepath.Join(root, ".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, wrap("lock root", root, err)
	}
	if !locked {
		return nil, wrap("lock root", root, fmt.Errorf("already locked by another process"))
	}
	return &Store{root: root, lock: lock, logger: logger.Named("storage")}, nil
}

// Close releases the root lock.
func (s *Store) Close() error {
	return s.lock.Unlock()
}

// resolve joins a locator with the root, rejecting anything that escapes it.
func (s *Store) resolve(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", wrap("resolve", path, fmt.Errorf("locator escapes storage root"))
	}
	return full, nil
}

// CreateEmpty creates a zero-length file at path, along with any missing
// parent directories. Fails if the file already exists.
func (s *Store) CreateEmpty(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return wrap("create parent", path, err)
	}
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return wrap("create", path, err)
	}
	return wrap("create", path, f.Close())
}

// WriteChunk writes data at offset. A successful return means the bytes are
// in the page cache; durability comes from Flush.
func (s *Store) WriteChunk(path string, data []byte, offset int64) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_WRONLY, 0o644)
	if err != nil {
		return wrap("open for write", path, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, offset); err != nil {
		return wrap("write chunk", path, err)
	}
	return nil
}

// ReadChunk reads exactly length bytes starting at offset.
func (s *Store) ReadChunk(path string, offset int64, length int) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, wrap("open for read", path, err)
	}
	defer f.Close()
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && !(err == io.EOF && n == length) {
		return nil, wrap("read chunk", path, err)
	}
	return buf, nil
}

// Flush forces the file's content to durable storage.
func (s *Store) Flush(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(full, os.O_RDWR, 0o644)
	if err != nil {
		return wrap("open for flush", path, err)
	}
	defer f.Close()
	return wrap("flush", path, f.Sync())
}

// Size returns the file's current on-disk size in bytes.
func (s *Store) Size(path string) (int64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return 0, wrap("stat", path, err)
	}
	return info.Size(), nil
}

// Exists reports whether a file is present at path.
func (s *Store) Exists(path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, statErr := os.Stat(full)
	return statErr == nil
}

// Delete removes the file at path. Deleting a missing file is not an error.
func (s *Store) Delete(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return wrap("delete", path, err)
	}
	return nil
}

// Move renames a file, creating the destination's parents as needed.
func (s *Store) Move(oldPath, newPath string) error {
	oldFull, err := s.resolve(oldPath)
	if err != nil {
		return err
	}
	newFull, err := s.resolve(newPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(newFull), 0o755); err != nil {
		return wrap("create parent", newPath, err)
	}
	return wrap("move", oldPath, os.Rename(oldFull, newFull))
}

// CreateDirectory creates a directory (and parents) below the root.
func (s *Store) CreateDirectory(path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	return wrap("create directory", path, os.MkdirAll(full, 0o755))
}
