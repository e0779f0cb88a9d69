// Package filemeta is the per-user file metadata repository. Each user's
// records live in a single files.json document, loaded lazily on first
// access and rewritten atomically on every mutation.
package filemeta

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/jsondoc"
)

// FileMetadata is one file record. The JSON field names are the on-disk
// contract.
type FileMetadata struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	FileName       string    `json:"fileName"`
	FileSize       int64     `json:"fileSize"`
	ContentType    string    `json:"contentType"`
	FilePath       string    `json:"filePath"`
	DirectoryID    string    `json:"directoryId,omitempty"`
	TotalChunks    int       `json:"totalChunks"`
	ChunksReceived int       `json:"chunksReceived"`
	IsComplete     bool      `json:"isComplete"`
	ContentHash    string    `json:"contentHash,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// document is the on-disk shape of files.json.
type document struct {
	Files []*FileMetadata `json:"files"`
}

// userFiles holds one user's loaded records behind the user-scoped mutex
// that serializes every mutation, including the persist.
type userFiles struct {
	mu    sync.Mutex
	files map[string]*FileMetadata
}

// Store is the repository over all users' file metadata.
type Store struct {
	mu     sync.Mutex // guards users and owner
	root   string
	users  map[string]*userFiles
	owner  map[string]string // file id -> user id, for cross-user lookups
	logger *zap.Logger
}

// New creates a store rooted at dir. Nothing is read until a user's records
// are first touched.
func New(dir string, logger *zap.Logger) *Store {
	return &Store{
		root:   dir,
		users:  make(map[string]*userFiles),
		owner:  make(map[string]string),
		logger: logger.Named("filemeta"),
	}
}

func (s *Store) docPath(userID string) string {
	return filepath.Join(s.root, userID, "files.json")
}

// forUser returns the loaded record set for userID, reading files.json on
// first access.
func (s *Store) forUser(userID string) (*userFiles, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forUserLocked(userID)
}

func (s *Store) forUserLocked(userID string) (*userFiles, error) {
	if uf, ok := s.users[userID]; ok {
		return uf, nil
	}
	var doc document
	if _, err := jsondoc.Load(s.docPath(userID), &doc, s.logger); err != nil {
		return nil, err
	}
	uf := &userFiles{files: make(map[string]*FileMetadata, len(doc.Files))}
	for _, f := range doc.Files {
		uf.files[f.ID] = f
		s.owner[f.ID] = f.UserID
	}
	s.users[userID] = uf
	return uf, nil
}

// persistLocked rewrites the user's document. The caller holds uf.mu.
func (s *Store) persistLocked(userID string, uf *userFiles) error {
	doc := document{Files: make([]*FileMetadata, 0, len(uf.files))}
	for _, f := range uf.files {
		doc.Files = append(doc.Files, f)
	}
	return jsondoc.Save(s.docPath(userID), &doc)
}

// ownerOf resolves the user owning fileID, loading user documents from disk
// until the id is found.
func (s *Store) ownerOf(fileID string) (string, bool) {
	s.mu.Lock()
	if userID, ok := s.owner[fileID]; ok {
		s.mu.Unlock()
		return userID, true
	}
	s.mu.Unlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s.mu.Lock()
		if _, loaded := s.users[e.Name()]; loaded {
			s.mu.Unlock()
			continue
		}
		_, err := s.forUserLocked(e.Name())
		userID, ok := s.owner[fileID]
		s.mu.Unlock()
		if err != nil {
			continue
		}
		if ok {
			return userID, true
		}
	}
	return "", false
}

// GetByID returns the record with the given file id, whichever user owns
// it. Callers enforce ownership.
func (s *Store) GetByID(fileID string) (*FileMetadata, error) {
	userID, ok := s.ownerOf(fileID)
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	uf, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	f, ok := uf.files[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	return f, nil
}

// ListByUser returns every record owned by userID.
func (s *Store) ListByUser(userID string) ([]*FileMetadata, error) {
	uf, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	out := make([]*FileMetadata, 0, len(uf.files))
	for _, f := range uf.files {
		out = append(out, f)
	}
	return out, nil
}

// ListByDirectory returns userID's records in the given directory; an empty
// directoryID means the user root.
func (s *Store) ListByDirectory(userID, directoryID string) ([]*FileMetadata, error) {
	uf, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	var out []*FileMetadata
	for _, f := range uf.files {
		if f.DirectoryID == directoryID {
			out = append(out, f)
		}
	}
	return out, nil
}

// validate enforces the record invariants shared by Add and Update.
func validate(f *FileMetadata) error {
	if f.ID == "" || f.UserID == "" {
		return fmt.Errorf("file metadata missing id or owner: %w", store.ErrConflict)
	}
	if f.FileSize < 1 {
		return fmt.Errorf("file size %d below minimum: %w", f.FileSize, store.ErrConflict)
	}
	if f.ChunksReceived < 0 || f.ChunksReceived > f.TotalChunks {
		return fmt.Errorf("chunks received %d outside 0..%d: %w",
			f.ChunksReceived, f.TotalChunks, store.ErrConflict)
	}
	if f.IsComplete && f.ChunksReceived != f.TotalChunks {
		return fmt.Errorf("complete file with %d/%d chunks: %w",
			f.ChunksReceived, f.TotalChunks, store.ErrConflict)
	}
	return nil
}

// Add inserts a new record. A duplicate id is a conflict.
func (s *Store) Add(f *FileMetadata) error {
	if err := validate(f); err != nil {
		return err
	}
	uf, err := s.forUser(f.UserID)
	if err != nil {
		return err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	if _, ok := uf.files[f.ID]; ok {
		return fmt.Errorf("file %s already exists: %w", f.ID, store.ErrConflict)
	}
	uf.files[f.ID] = f
	if err := s.persistLocked(f.UserID, uf); err != nil {
		delete(uf.files, f.ID)
		return err
	}
	s.mu.Lock()
	s.owner[f.ID] = f.UserID
	s.mu.Unlock()
	return nil
}

// Update replaces an existing record. The owner is fixed at creation.
func (s *Store) Update(f *FileMetadata) error {
	if err := validate(f); err != nil {
		return err
	}
	uf, err := s.forUser(f.UserID)
	if err != nil {
		return err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	existing, ok := uf.files[f.ID]
	if !ok {
		return fmt.Errorf("file %s: %w", f.ID, store.ErrNotFound)
	}
	if existing.UserID != f.UserID {
		return fmt.Errorf("file %s owner is immutable: %w", f.ID, store.ErrConflict)
	}
	f.UpdatedAt = time.Now().UTC()
	uf.files[f.ID] = f
	if err := s.persistLocked(f.UserID, uf); err != nil {
		uf.files[f.ID] = existing
		return err
	}
	return nil
}

// Delete removes a record.
func (s *Store) Delete(fileID string) error {
	userID, ok := s.ownerOf(fileID)
	if !ok {
		return fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	uf, err := s.forUser(userID)
	if err != nil {
		return err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()
	existing, ok := uf.files[fileID]
	if !ok {
		return fmt.Errorf("file %s: %w", fileID, store.ErrNotFound)
	}
	delete(uf.files, fileID)
	if err := s.persistLocked(userID, uf); err != nil {
		uf.files[fileID] = existing
		return err
	}
	s.mu.Lock()
	delete(s.owner, fileID)
	s.mu.Unlock()
	return nil
}

// MoveMany points each of userID's listed files at targetDirectoryID
// (empty for the root). Per-file best effort: files the user does not own
// or that do not exist are skipped. Returns true only when every file
// moved.
func (s *Store) MoveMany(fileIDs []string, targetDirectoryID, userID string) (bool, error) {
	uf, err := s.forUser(userID)
	if err != nil {
		return false, err
	}
	uf.mu.Lock()
	defer uf.mu.Unlock()

	all := true
	moved := 0
	for _, id := range fileIDs {
		f, ok := uf.files[id]
		if !ok || f.UserID != userID {
			all = false
			continue
		}
		f.DirectoryID = targetDirectoryID
		f.UpdatedAt = time.Now().UTC()
		moved++
	}
	if moved > 0 {
		if err := s.persistLocked(userID, uf); err != nil {
			return false, err
		}
	}
	return all, nil
}
