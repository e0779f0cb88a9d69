// Package dirmeta is the per-user directory metadata repository. Storage
// follows the file repository: one directories.json per user, lazily
// loaded, atomically rewritten, all mutations behind a user-scoped mutex.
package dirmeta

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/jsondoc"
)

// DirectoryMetadata is one directory record. An empty ParentDirectoryID
// marks a child of the user root.
type DirectoryMetadata struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId"`
	Name              string    `json:"name"`
	ParentDirectoryID string    `json:"parentDirectoryId,omitempty"`
	DirectoryPath     string    `json:"directoryPath"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type document struct {
	Directories []*DirectoryMetadata `json:"directories"`
}

type userDirs struct {
	mu   sync.Mutex
	dirs map[string]*DirectoryMetadata
}

// Store is the repository over all users' directory trees.
type Store struct {
	mu     sync.Mutex
	root   string
	users  map[string]*userDirs
	owner  map[string]string // directory id -> user id
	logger *zap.Logger
}

// New creates a store rooted at dir.
func New(dir string, logger *zap.Logger) *Store {
	return &Store{
		root:   dir,
		users:  make(map[string]*userDirs),
		owner:  make(map[string]string),
		logger: logger.Named("dirmeta"),
	}
}

// foldName normalizes a directory name for case-insensitive uniqueness.
func foldName(name string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
}

func (s *Store) docPath(userID string) string {
	return filepath.Join(s.root, userID, "directories.json")
}

func (s *Store) forUser(userID string) (*userDirs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ud, ok := s.users[userID]; ok {
		return ud, nil
	}
	var doc document
	if _, err := jsondoc.Load(s.docPath(userID), &doc, s.logger); err != nil {
		return nil, err
	}
	ud := &userDirs{dirs: make(map[string]*DirectoryMetadata, len(doc.Directories))}
	for _, d := range doc.Directories {
		ud.dirs[d.ID] = d
		s.owner[d.ID] = d.UserID
	}
	s.users[userID] = ud
	return ud, nil
}

func (s *Store) persistLocked(userID string, ud *userDirs) error {
	doc := document{Directories: make([]*DirectoryMetadata, 0, len(ud.dirs))}
	for _, d := range ud.dirs {
		doc.Directories = append(doc.Directories, d)
	}
	return jsondoc.Save(s.docPath(userID), &doc)
}

// GetByID returns the directory record for id owned by userID.
func (s *Store) GetByID(userID, id string) (*DirectoryMetadata, error) {
	ud, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	d, ok := ud.dirs[id]
	if !ok {
		return nil, fmt.Errorf("directory %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

// ListByParent returns userID's directories under parentID; an empty
// parentID lists the children of the user root.
func (s *Store) ListByParent(userID, parentID string) ([]*DirectoryMetadata, error) {
	ud, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	var out []*DirectoryMetadata
	for _, d := range ud.dirs {
		if d.ParentDirectoryID == parentID {
			out = append(out, d)
		}
	}
	return out, nil
}

// ExistsWithName reports whether userID already has a directory called name
// under parentID, case-insensitive.
func (s *Store) ExistsWithName(userID, parentID, name string) (bool, error) {
	ud, err := s.forUser(userID)
	if err != nil {
		return false, err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	return existsWithNameLocked(ud, parentID, name, ""), nil
}

// existsWithNameLocked skips the record with id == exclude so Update can
// rename a directory onto its own current name.
func existsWithNameLocked(ud *userDirs, parentID, name, exclude string) bool {
	folded := foldName(name)
	for _, d := range ud.dirs {
		if d.ID != exclude && d.ParentDirectoryID == parentID && foldName(d.Name) == folded {
			return true
		}
	}
	return false
}

// ListDescendants returns every directory below dirID, breadth-first.
func (s *Store) ListDescendants(dirID string) ([]*DirectoryMetadata, error) {
	s.mu.Lock()
	userID, ok := s.owner[dirID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("directory %s: %w", dirID, store.ErrNotFound)
	}
	ud, err := s.forUser(userID)
	if err != nil {
		return nil, err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()

	children := make(map[string][]*DirectoryMetadata)
	for _, d := range ud.dirs {
		children[d.ParentDirectoryID] = append(children[d.ParentDirectoryID], d)
	}

	var out []*DirectoryMetadata
	queue := []string{dirID}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range children[next] {
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}

// validateLocked enforces the tree invariants for d against the loaded set.
func validateLocked(ud *userDirs, d *DirectoryMetadata, exclude string) error {
	if d.ID == "" || d.UserID == "" || strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("directory metadata missing id, owner or name: %w", store.ErrConflict)
	}
	if d.ParentDirectoryID != "" {
		parent, ok := ud.dirs[d.ParentDirectoryID]
		if !ok {
			return fmt.Errorf("parent directory %s: %w", d.ParentDirectoryID, store.ErrNotFound)
		}
		if parent.UserID != d.UserID {
			return fmt.Errorf("parent directory %s has a different owner: %w",
				d.ParentDirectoryID, store.ErrConflict)
		}
	}
	if existsWithNameLocked(ud, d.ParentDirectoryID, d.Name, exclude) {
		return fmt.Errorf("directory %q already exists here: %w", d.Name, store.ErrConflict)
	}
	return nil
}

// Add inserts a new directory record.
func (s *Store) Add(d *DirectoryMetadata) error {
	ud, err := s.forUser(d.UserID)
	if err != nil {
		return err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	if _, ok := ud.dirs[d.ID]; ok {
		return fmt.Errorf("directory %s already exists: %w", d.ID, store.ErrConflict)
	}
	if err := validateLocked(ud, d, ""); err != nil {
		return err
	}
	ud.dirs[d.ID] = d
	if err := s.persistLocked(d.UserID, ud); err != nil {
		delete(ud.dirs, d.ID)
		return err
	}
	s.mu.Lock()
	s.owner[d.ID] = d.UserID
	s.mu.Unlock()
	return nil
}

// Update replaces an existing record. Moving a directory under one of its
// own descendants would detach a cycle from the root, so that is rejected.
func (s *Store) Update(d *DirectoryMetadata) error {
	ud, err := s.forUser(d.UserID)
	if err != nil {
		return err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	existing, ok := ud.dirs[d.ID]
	if !ok {
		return fmt.Errorf("directory %s: %w", d.ID, store.ErrNotFound)
	}
	if existing.UserID != d.UserID {
		return fmt.Errorf("directory %s owner is immutable: %w", d.ID, store.ErrConflict)
	}
	if err := validateLocked(ud, d, d.ID); err != nil {
		return err
	}
	// Walk from the proposed parent to the root; meeting d.ID on the way
	// means the move would create a cycle.
	for cursor := d.ParentDirectoryID; cursor != ""; {
		if cursor == d.ID {
			return fmt.Errorf("directory %s cannot be moved under its own subtree: %w",
				d.ID, store.ErrConflict)
		}
		parent, ok := ud.dirs[cursor]
		if !ok {
			break
		}
		cursor = parent.ParentDirectoryID
	}
	d.UpdatedAt = time.Now().UTC()
	ud.dirs[d.ID] = d
	if err := s.persistLocked(d.UserID, ud); err != nil {
		ud.dirs[d.ID] = existing
		return err
	}
	return nil
}

// Delete removes a directory record. Rejected while child directories
// exist; relocating contained files is the service's responsibility.
func (s *Store) Delete(userID, dirID string) error {
	ud, err := s.forUser(userID)
	if err != nil {
		return err
	}
	ud.mu.Lock()
	defer ud.mu.Unlock()
	existing, ok := ud.dirs[dirID]
	if !ok {
		return fmt.Errorf("directory %s: %w", dirID, store.ErrNotFound)
	}
	for _, d := range ud.dirs {
		if d.ParentDirectoryID == dirID {
			return fmt.Errorf("directory %s still has subdirectories: %w", dirID, store.ErrConflict)
		}
	}
	delete(ud.dirs, dirID)
	if err := s.persistLocked(userID, ud); err != nil {
		ud.dirs[dirID] = existing
		return err
	}
	s.mu.Lock()
	delete(s.owner, dirID)
	s.mu.Unlock()
	return nil
}
