package filemeta

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, zap.NewNop()), dir
}

func meta(id, userID string) *FileMetadata {
	now := time.Now().UTC()
	return &FileMetadata{
		ID:          id,
		UserID:      userID,
		FileName:    "file.bin",
		FileSize:    100,
		ContentType: "application/octet-stream",
		FilePath:    userID + "/" + id + "_file.bin",
		TotalChunks: 1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestAddGetDelete(t *testing.T) {
	s, _ := newTestStore(t)

	m := meta("f1", "u1")
	if err := s.Add(m); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got, err := s.GetByID("f1")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.FileName != "file.bin" {
		t.Errorf("FileName = %q", got.FileName)
	}

	if err := s.Add(meta("f1", "u1")); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate id: expected ErrConflict, got %v", err)
	}

	if err := s.Delete("f1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.GetByID("f1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestInvariants(t *testing.T) {
	s, _ := newTestStore(t)

	tests := []struct {
		name   string
		mutate func(*FileMetadata)
	}{
		{"zero_size", func(m *FileMetadata) { m.FileSize = 0 }},
		{"chunks_over_total", func(m *FileMetadata) { m.ChunksReceived = 2 }},
		{"complete_with_missing_chunks", func(m *FileMetadata) { m.IsComplete = true }},
		{"no_owner", func(m *FileMetadata) { m.UserID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := meta("bad-"+tt.name, "u1")
			tt.mutate(m)
			if err := s.Add(m); !errors.Is(err, store.ErrConflict) {
				t.Errorf("expected ErrConflict, got %v", err)
			}
		})
	}
}

func TestUpdate_OwnerImmutable(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(meta("f1", "u1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	stolen := meta("f1", "u2")
	// Update resolves the document by the record's owner, so a changed
	// owner looks like a missing record in u2's document.
	if err := s.Update(stolen); err == nil {
		t.Error("expected update with changed owner to fail")
	}
}

func TestListByDirectory(t *testing.T) {
	s, _ := newTestStore(t)

	root := meta("f-root", "u1")
	if err := s.Add(root); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	inDir := meta("f-docs", "u1")
	inDir.DirectoryID = "d1"
	if err := s.Add(inDir); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	rootFiles, err := s.ListByDirectory("u1", "")
	if err != nil {
		t.Fatalf("ListByDirectory failed: %v", err)
	}
	if len(rootFiles) != 1 || rootFiles[0].ID != "f-root" {
		t.Errorf("root listing = %v", rootFiles)
	}

	dirFiles, _ := s.ListByDirectory("u1", "d1")
	if len(dirFiles) != 1 || dirFiles[0].ID != "f-docs" {
		t.Errorf("directory listing = %v", dirFiles)
	}

	all, _ := s.ListByUser("u1")
	if len(all) != 2 {
		t.Errorf("ListByUser returned %d files, want 2", len(all))
	}
}

func TestMoveMany_BestEffort(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Add(meta("f1", "u1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := s.Add(meta("f2", "u1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	all, err := s.MoveMany([]string{"f1", "f2"}, "d1", "u1")
	if err != nil {
		t.Fatalf("MoveMany failed: %v", err)
	}
	if !all {
		t.Error("expected full success")
	}
	got, _ := s.GetByID("f1")
	if got.DirectoryID != "d1" {
		t.Errorf("f1 directory = %q", got.DirectoryID)
	}

	// One missing file: the rest still move, the batch reports failure.
	all, err = s.MoveMany([]string{"f1", "missing"}, "", "u1")
	if err != nil {
		t.Fatalf("MoveMany failed: %v", err)
	}
	if all {
		t.Error("expected partial failure")
	}
	got, _ = s.GetByID("f1")
	if got.DirectoryID != "" {
		t.Errorf("f1 directory = %q, want root", got.DirectoryID)
	}
}

func TestLazyReload_FromDisk(t *testing.T) {
	s, dir := newTestStore(t)
	if err := s.Add(meta("f1", "u1")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// A fresh store over the same directory finds the record, including
	// through the cross-user id lookup.
	fresh := New(dir, zap.NewNop())
	got, err := fresh.GetByID("f1")
	if err != nil {
		t.Fatalf("GetByID on fresh store failed: %v", err)
	}
	if got.UserID != "u1" {
		t.Errorf("owner = %q", got.UserID)
	}
}
