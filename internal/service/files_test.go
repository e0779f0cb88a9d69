package service

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/storage"
	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/dirmeta"
	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/pkg/constants"
)

func newTestService(t *testing.T) (*Files, string) {
	t.Helper()
	storageRoot := t.TempDir()
	metaRoot := t.TempDir()
	logger := zap.NewNop()

	st, err := storage.New(storageRoot, logger)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	svc := NewFiles(filemeta.New(metaRoot, logger), dirmeta.New(metaRoot, logger), st, logger)
	return svc, storageRoot
}

// upload pushes data through the full chunked path and finalizes.
func upload(t *testing.T, svc *Files, userID string, data []byte) *filemeta.FileMetadata {
	t.Helper()
	meta, err := svc.InitializeUpload(userID, "data.bin", int64(len(data)), "application/octet-stream", "")
	if err != nil {
		t.Fatalf("InitializeUpload failed: %v", err)
	}
	for i := 0; i < meta.TotalChunks; i++ {
		start := i * constants.ChunkSize
		end := start + constants.ChunkSize
		if end > len(data) {
			end = len(data)
		}
		isLast := i == meta.TotalChunks-1
		if err := svc.ProcessChunk(meta.ID, i, isLast, data[start:end]); err != nil {
			t.Fatalf("ProcessChunk %d failed: %v", i, err)
		}
	}
	if err := svc.FinalizeUpload(meta.ID); err != nil {
		t.Fatalf("FinalizeUpload failed: %v", err)
	}
	return meta
}

func TestUpload_ThreeChunks(t *testing.T) {
	svc, storageRoot := newTestService(t)

	data := bytes.Repeat([]byte{0x42}, 2_500_000)
	meta := upload(t, svc, "u1", data)

	if meta.TotalChunks != 3 {
		t.Errorf("TotalChunks = %d, want 3", meta.TotalChunks)
	}

	got, err := svc.files.GetByID(meta.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !got.IsComplete || got.ChunksReceived != 3 {
		t.Errorf("metadata = complete:%v received:%d", got.IsComplete, got.ChunksReceived)
	}
	if got.ContentHash == "" {
		t.Error("content hash not recorded")
	}

	onDisk, err := os.ReadFile(filepath.Join(storageRoot, filepath.FromSlash(got.FilePath)))
	if err != nil {
		t.Fatalf("reading stored file failed: %v", err)
	}
	if len(onDisk) != 2_500_000 {
		t.Errorf("on-disk size = %d, want 2500000", len(onDisk))
	}
	if !bytes.Equal(onDisk, data) {
		t.Error("stored bytes differ from uploaded bytes")
	}
}

func TestProcessChunk_OrderingStrict(t *testing.T) {
	svc, _ := newTestService(t)

	meta, err := svc.InitializeUpload("u1", "x.bin", 3*constants.ChunkSize, "", "")
	if err != nil {
		t.Fatalf("InitializeUpload failed: %v", err)
	}

	chunk := bytes.Repeat([]byte{1}, constants.ChunkSize)

	// Starting anywhere but zero is rejected.
	if err := svc.ProcessChunk(meta.ID, 1, false, chunk); !errors.Is(err, ErrOutOfOrderChunk) {
		t.Errorf("expected ErrOutOfOrderChunk, got %v", err)
	}

	if err := svc.ProcessChunk(meta.ID, 0, false, chunk); err != nil {
		t.Fatalf("chunk 0 failed: %v", err)
	}
	// A duplicate is also out of order.
	if err := svc.ProcessChunk(meta.ID, 0, false, chunk); !errors.Is(err, ErrOutOfOrderChunk) {
		t.Errorf("expected ErrOutOfOrderChunk for duplicate, got %v", err)
	}
	// Skipping ahead is rejected.
	if err := svc.ProcessChunk(meta.ID, 2, true, chunk); !errors.Is(err, ErrOutOfOrderChunk) {
		t.Errorf("expected ErrOutOfOrderChunk for gap, got %v", err)
	}

	got, _ := svc.files.GetByID(meta.ID)
	if got.IsComplete {
		t.Error("file must not be complete after rejected chunks")
	}
	if got.ChunksReceived != 1 {
		t.Errorf("ChunksReceived = %d, want 1", got.ChunksReceived)
	}
}

func TestFinalizeUpload_Idempotent(t *testing.T) {
	svc, _ := newTestService(t)
	meta := upload(t, svc, "u1", []byte("hello world"))

	before, _ := svc.files.GetByID(meta.ID)
	hash := before.ContentHash
	updated := before.UpdatedAt

	for i := 0; i < 3; i++ {
		if err := svc.FinalizeUpload(meta.ID); err != nil {
			t.Fatalf("finalize %d failed: %v", i, err)
		}
	}

	after, _ := svc.files.GetByID(meta.ID)
	if after.ContentHash != hash || !after.UpdatedAt.Equal(updated) {
		t.Error("repeated finalize changed metadata")
	}
}

func TestDownload_ChunkMath(t *testing.T) {
	svc, _ := newTestService(t)
	data := bytes.Repeat([]byte{7}, constants.ChunkSize+100)
	meta := upload(t, svc, "u1", data)

	got, err := svc.InitializeDownload(meta.ID, "u1")
	if err != nil {
		t.Fatalf("InitializeDownload failed: %v", err)
	}
	if got.TotalChunks != 2 {
		t.Fatalf("TotalChunks = %d, want 2", got.TotalChunks)
	}

	first, isLast, err := svc.GetChunk(meta.ID, 0)
	if err != nil {
		t.Fatalf("GetChunk 0 failed: %v", err)
	}
	if isLast || len(first) != constants.ChunkSize {
		t.Errorf("chunk 0: last=%v len=%d", isLast, len(first))
	}

	second, isLast, err := svc.GetChunk(meta.ID, 1)
	if err != nil {
		t.Fatalf("GetChunk 1 failed: %v", err)
	}
	if !isLast || len(second) != 100 {
		t.Errorf("chunk 1: last=%v len=%d, want last=true len=100", isLast, len(second))
	}

	// Reads past the end are rejected.
	if _, _, err := svc.GetChunk(meta.ID, 2); err == nil {
		t.Error("expected error for chunk beyond end of file")
	}
}

func TestDownload_RequiresOwnershipAndCompletion(t *testing.T) {
	svc, _ := newTestService(t)
	meta := upload(t, svc, "alice", []byte("private"))

	if _, err := svc.InitializeDownload(meta.ID, "bob"); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("expected ErrForbidden for foreign user, got %v", err)
	}

	partial, err := svc.InitializeUpload("alice", "part.bin", constants.ChunkSize, "", "")
	if err != nil {
		t.Fatalf("InitializeUpload failed: %v", err)
	}
	if _, err := svc.InitializeDownload(partial.ID, "alice"); !errors.Is(err, ErrIncomplete) {
		t.Errorf("expected ErrIncomplete, got %v", err)
	}
}

func TestDeleteFile_OwnershipAndSideEffects(t *testing.T) {
	svc, storageRoot := newTestService(t)
	meta := upload(t, svc, "alice", []byte("to be deleted"))
	fullPath := filepath.Join(storageRoot, filepath.FromSlash(meta.FilePath))

	// A foreign delete fails and leaves the file behind.
	if err := svc.DeleteFile(meta.ID, "bob"); !errors.Is(err, store.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := os.Stat(fullPath); err != nil {
		t.Fatalf("file removed by forbidden delete: %v", err)
	}

	if err := svc.DeleteFile(meta.ID, "alice"); err != nil {
		t.Fatalf("DeleteFile failed: %v", err)
	}
	if _, err := os.Stat(fullPath); !os.IsNotExist(err) {
		t.Error("bytes still on disk after delete")
	}
	if _, err := svc.files.GetByID(meta.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("metadata still present after delete: %v", err)
	}
}

func TestDirectories_CreateListDelete(t *testing.T) {
	svc, _ := newTestService(t)

	docs, err := svc.CreateDirectory("u1", "docs", "")
	if err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}

	// A duplicate name under the same parent conflicts.
	if _, err := svc.CreateDirectory("u1", "docs", ""); !errors.Is(err, store.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	meta := upload(t, svc, "u1", []byte("inside docs"))
	if ok, err := svc.MoveFiles([]string{meta.ID}, docs.ID, "u1"); err != nil || !ok {
		t.Fatalf("MoveFiles failed: ok=%v err=%v", ok, err)
	}

	files, dirs, err := svc.ListDirectory("u1", docs.ID)
	if err != nil {
		t.Fatalf("ListDirectory failed: %v", err)
	}
	if len(files) != 1 || len(dirs) != 0 {
		t.Errorf("listing = %d files, %d dirs", len(files), len(dirs))
	}

	// Deleting the directory relocates its files to the root.
	if err := svc.DeleteDirectory("u1", docs.ID); err != nil {
		t.Fatalf("DeleteDirectory failed: %v", err)
	}
	rootFiles, _, err := svc.ListDirectory("u1", "")
	if err != nil {
		t.Fatalf("ListDirectory root failed: %v", err)
	}
	if len(rootFiles) != 1 || rootFiles[0].ID != meta.ID {
		t.Errorf("file not relocated to root: %v", rootFiles)
	}
}

func TestMoveFiles_TargetMustBeOwned(t *testing.T) {
	svc, _ := newTestService(t)
	docs, err := svc.CreateDirectory("alice", "docs", "")
	if err != nil {
		t.Fatalf("CreateDirectory failed: %v", err)
	}
	meta := upload(t, svc, "bob", []byte("bob's file"))

	if _, err := svc.MoveFiles([]string{meta.ID}, docs.ID, "bob"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for foreign target directory, got %v", err)
	}
	got, _ := svc.files.GetByID(meta.ID)
	if got.DirectoryID != "" {
		t.Error("file moved despite invalid target")
	}
}

func TestInitializeUpload_UnknownDirectory(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.InitializeUpload("u1", "f.bin", 10, "", "no-such-dir")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
