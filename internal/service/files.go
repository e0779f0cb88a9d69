// Package service orchestrates uploads, downloads and file management over
// the metadata repositories and the physical store.
package service

import (
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"lukechampine.com/blake3"

	"github.com/sxlmons/filelink/internal/storage"
	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/dirmeta"
	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/pkg/constants"
)

// ErrOutOfOrderChunk reports an upload chunk whose index does not match the
// count of chunks already received. Out-of-order chunks abort the transfer.
var ErrOutOfOrderChunk = errors.New("chunk out of order")

// ErrIncomplete reports a download of a file whose upload never finished.
var ErrIncomplete = errors.New("file is not complete")

// Files is the file service. Active uploads carry a running BLAKE3 hash so
// a completed file's content hash is available without a second read pass.
type Files struct {
	files   *filemeta.Store
	dirs    *dirmeta.Store
	storage *storage.Store
	logger  *zap.Logger

	mu     sync.Mutex
	hashes map[string]*blake3.Hasher // active upload hash state, by file id
}

// NewFiles creates the file service.
func NewFiles(files *filemeta.Store, dirs *dirmeta.Store, st *storage.Store, logger *zap.Logger) *Files {
	return &Files{
		files:   files,
		dirs:    dirs,
		storage: st,
		logger:  logger.Named("files"),
		hashes:  make(map[string]*blake3.Hasher),
	}
}

// totalChunks is the chunk count for a file of size bytes.
func totalChunks(size int64) int {
	return int((size + constants.ChunkSize - 1) / constants.ChunkSize)
}

// locator builds the storage path for a file: under the owning user's
// directory tree, named <fileId>_<sanitizedName>.
func locator(userID, dirPath, fileID, name string) string {
	return path.Join(userID, dirPath, fileID+"_"+name)
}

// resolveDirectory validates that directoryID belongs to userID and returns
// its storage-relative path. An empty directoryID is the user root.
func (f *Files) resolveDirectory(userID, directoryID string) (string, error) {
	if directoryID == "" {
		return "", nil
	}
	dir, err := f.dirs.GetByID(userID, directoryID)
	if err != nil {
		return "", err
	}
	return dir.DirectoryPath, nil
}

// InitializeUpload registers a new upload and creates its empty backing
// file. Any file created is removed again if the metadata cannot be
// persisted.
func (f *Files) InitializeUpload(userID, fileName string, fileSize int64, contentType, directoryID string) (*filemeta.FileMetadata, error) {
	if fileSize < 1 {
		return nil, fmt.Errorf("file size must be at least 1 byte")
	}

	dirPath, err := f.resolveDirectory(userID, directoryID)
	if err != nil {
		return nil, err
	}

	sanitized := SanitizeFileName(fileName)
	id := uuid.NewString()
	filePath := locator(userID, dirPath, id, sanitized)

	if err := f.storage.CreateEmpty(filePath); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := &filemeta.FileMetadata{
		ID:             id,
		UserID:         userID,
		FileName:       sanitized,
		FileSize:       fileSize,
		ContentType:    contentType,
		FilePath:       filePath,
		DirectoryID:    directoryID,
		TotalChunks:    totalChunks(fileSize),
		ChunksReceived: 0,
		IsComplete:     false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := f.files.Add(meta); err != nil {
		if delErr := f.storage.Delete(filePath); delErr != nil {
			f.logger.Error("failed to remove file after metadata failure",
				zap.String("path", filePath), zap.Error(delErr))
		}
		return nil, err
	}

	f.mu.Lock()
	f.hashes[id] = blake3.New(32, nil)
	f.mu.Unlock()

	f.logger.Info("upload initialized",
		zap.String("fileId", id),
		zap.String("fileName", sanitized),
		zap.Int64("fileSize", fileSize),
		zap.Int("totalChunks", meta.TotalChunks))
	return meta, nil
}

// ProcessChunk writes one upload chunk. Chunks must arrive in strictly
// increasing index order starting at zero; anything else is rejected and
// the metadata is left untouched.
func (f *Files) ProcessChunk(fileID string, chunkIndex int, isLastChunk bool, data []byte) error {
	meta, err := f.files.GetByID(fileID)
	if err != nil {
		return err
	}
	if meta.IsComplete {
		return fmt.Errorf("file %s: upload already complete: %w", fileID, store.ErrConflict)
	}
	if chunkIndex != meta.ChunksReceived {
		return fmt.Errorf("expected chunk %d, got %d: %w",
			meta.ChunksReceived, chunkIndex, ErrOutOfOrderChunk)
	}
	if len(data) > constants.ChunkSize {
		return fmt.Errorf("chunk %d is %d bytes, larger than the chunk size", chunkIndex, len(data))
	}

	offset := int64(chunkIndex) * constants.ChunkSize
	if err := f.storage.WriteChunk(meta.FilePath, data, offset); err != nil {
		return err
	}

	f.mu.Lock()
	if h, ok := f.hashes[fileID]; ok {
		h.Write(data)
	}
	f.mu.Unlock()

	meta.ChunksReceived++
	if isLastChunk {
		// The last-chunk flag is authoritative; a short transfer shrinks
		// the chunk count so the completion invariant holds.
		if meta.ChunksReceived < meta.TotalChunks {
			f.logger.Warn("last chunk arrived early",
				zap.String("fileId", fileID),
				zap.Int("received", meta.ChunksReceived),
				zap.Int("expected", meta.TotalChunks))
			meta.TotalChunks = meta.ChunksReceived
		}
		meta.IsComplete = true
		meta.ContentHash = f.takeHash(fileID)
	}
	return f.files.Update(meta)
}

// takeHash finishes and removes the running hash for fileID.
func (f *Files) takeHash(fileID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[fileID]
	if !ok {
		return ""
	}
	delete(f.hashes, fileID)
	return hex.EncodeToString(h.Sum(nil))
}

// AbortUpload discards the in-flight transfer state for fileID. The partial
// file and its metadata stay behind, marked incomplete.
func (f *Files) AbortUpload(fileID string) {
	f.mu.Lock()
	delete(f.hashes, fileID)
	f.mu.Unlock()
}

// FinalizeUpload flushes the finished file to durable storage. Finalizing a
// complete file again changes nothing and succeeds.
func (f *Files) FinalizeUpload(fileID string) error {
	meta, err := f.files.GetByID(fileID)
	if err != nil {
		return err
	}

	if err := f.storage.Flush(meta.FilePath); err != nil {
		return err
	}

	changed := false
	if !meta.IsComplete {
		if meta.ChunksReceived < meta.TotalChunks {
			f.logger.Warn("finalizing with missing chunks",
				zap.String("fileId", fileID),
				zap.Int("received", meta.ChunksReceived),
				zap.Int("expected", meta.TotalChunks))
			meta.TotalChunks = meta.ChunksReceived
		}
		meta.IsComplete = true
		meta.ContentHash = f.takeHash(fileID)
		changed = true
	}

	if size, err := f.storage.Size(meta.FilePath); err == nil && size != meta.FileSize {
		f.logger.Warn("on-disk size does not match announced size",
			zap.String("fileId", fileID),
			zap.Int64("onDisk", size),
			zap.Int64("announced", meta.FileSize))
	}

	if changed {
		return f.files.Update(meta)
	}
	return nil
}

// InitializeDownload validates a download request: the caller must own the
// file, the upload must be complete, and the bytes must exist on disk.
func (f *Files) InitializeDownload(fileID, userID string) (*filemeta.FileMetadata, error) {
	meta, err := f.files.GetByID(fileID)
	if err != nil {
		return nil, err
	}
	if meta.UserID != userID {
		return nil, fmt.Errorf("file %s: %w", fileID, store.ErrForbidden)
	}
	if !meta.IsComplete {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrIncomplete)
	}
	if !f.storage.Exists(meta.FilePath) {
		return nil, fmt.Errorf("file %s has no content on disk: %w", fileID, store.ErrNotFound)
	}
	return meta, nil
}

// GetChunk reads one download chunk and reports whether it is the last.
func (f *Files) GetChunk(fileID string, chunkIndex int) ([]byte, bool, error) {
	meta, err := f.files.GetByID(fileID)
	if err != nil {
		return nil, false, err
	}
	offset := int64(chunkIndex) * constants.ChunkSize
	if chunkIndex < 0 || offset >= meta.FileSize {
		return nil, false, fmt.Errorf("chunk %d is beyond the end of file %s", chunkIndex, fileID)
	}
	length := int64(constants.ChunkSize)
	if remaining := meta.FileSize - offset; remaining < length {
		length = remaining
	}
	data, err := f.storage.ReadChunk(meta.FilePath, offset, int(length))
	if err != nil {
		return nil, false, err
	}
	return data, chunkIndex == meta.TotalChunks-1, nil
}

// DeleteFile removes a file's bytes and then its metadata. When byte
// removal fails the metadata stays so the file is not orphaned invisibly.
func (f *Files) DeleteFile(fileID, userID string) error {
	meta, err := f.files.GetByID(fileID)
	if err != nil {
		return err
	}
	if meta.UserID != userID {
		return fmt.Errorf("file %s: %w", fileID, store.ErrForbidden)
	}
	if err := f.storage.Delete(meta.FilePath); err != nil {
		f.logger.Error("failed to delete file content",
			zap.String("fileId", fileID),
			zap.String("path", meta.FilePath),
			zap.Error(err))
		return err
	}
	f.AbortUpload(fileID)
	return f.files.Delete(fileID)
}

// MoveFiles points each listed file the user owns at the target directory.
// Per-file best effort; returns true only when every file moved. The
// storage locator is opaque and stays put, so there is no physical move to
// undo on a metadata failure.
func (f *Files) MoveFiles(fileIDs []string, targetDirectoryID, userID string) (bool, error) {
	if _, err := f.resolveDirectory(userID, targetDirectoryID); err != nil {
		return false, err
	}
	return f.files.MoveMany(fileIDs, targetDirectoryID, userID)
}

// ListFiles returns the user's files as of now.
func (f *Files) ListFiles(userID string) ([]*filemeta.FileMetadata, error) {
	return f.files.ListByUser(userID)
}

// ListDirectory returns the files and subdirectories in one directory; an
// empty directoryID lists the user root.
func (f *Files) ListDirectory(userID, directoryID string) ([]*filemeta.FileMetadata, []*dirmeta.DirectoryMetadata, error) {
	if directoryID != "" {
		if _, err := f.dirs.GetByID(userID, directoryID); err != nil {
			return nil, nil, err
		}
	}
	files, err := f.files.ListByDirectory(userID, directoryID)
	if err != nil {
		return nil, nil, err
	}
	dirs, err := f.dirs.ListByParent(userID, directoryID)
	if err != nil {
		return nil, nil, err
	}
	return files, dirs, nil
}

// CreateDirectory adds a directory under parentID (empty for the root) and
// creates its storage path.
func (f *Files) CreateDirectory(userID, name, parentID string) (*dirmeta.DirectoryMetadata, error) {
	parentPath, err := f.resolveDirectory(userID, parentID)
	if err != nil {
		return nil, err
	}

	sanitized := SanitizeFileName(name)
	now := time.Now().UTC()
	dir := &dirmeta.DirectoryMetadata{
		ID:                uuid.NewString(),
		UserID:            userID,
		Name:              name,
		ParentDirectoryID: parentID,
		DirectoryPath:     path.Join(parentPath, sanitized),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := f.dirs.Add(dir); err != nil {
		return nil, err
	}
	if err := f.storage.CreateDirectory(path.Join(userID, dir.DirectoryPath)); err != nil {
		f.logger.Error("failed to create storage directory",
			zap.String("directoryId", dir.ID), zap.Error(err))
	}
	return dir, nil
}

// DeleteDirectory removes a directory that has no subdirectories.
// Subdirectories block the delete; contained files are moved to the user
// root first so no metadata is orphaned.
func (f *Files) DeleteDirectory(userID, directoryID string) error {
	if _, err := f.dirs.GetByID(userID, directoryID); err != nil {
		return err
	}
	files, err := f.files.ListByDirectory(userID, directoryID)
	if err != nil {
		return err
	}
	if len(files) > 0 {
		ids := make([]string, len(files))
		for i, m := range files {
			ids[i] = m.ID
		}
		if _, err := f.files.MoveMany(ids, "", userID); err != nil {
			return err
		}
	}
	return f.dirs.Delete(userID, directoryID)
}
