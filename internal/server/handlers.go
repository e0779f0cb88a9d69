package server

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/service"
	"github.com/sxlmons/filelink/internal/store"
	"github.com/sxlmons/filelink/internal/store/dirmeta"
	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/internal/store/users"
	"github.com/sxlmons/filelink/pkg/wire"
)

// Dispatcher holds the handlers, one per request command. Handlers validate
// input, call the services and map outcomes to responses; they never touch
// the disk or the socket themselves.
type Dispatcher struct {
	users  *users.Store
	files  *service.Files
	logger *zap.Logger
}

// NewDispatcher creates the handler set.
func NewDispatcher(u *users.Store, f *service.Files, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{users: u, files: f, logger: logger.Named("handlers")}
}

// notFoundMessage is the user-visible text for both missing and foreign
// resources, so ids cannot be probed for existence.
const notFoundMessage = "file or directory not found"

// failureMessage maps a service error to response text without leaking
// whether a resource exists.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrForbidden):
		return notFoundMessage
	case errors.Is(err, store.ErrConflict):
		return err.Error()
	default:
		return err.Error()
	}
}

func fileInfo(m *filemeta.FileMetadata) wire.FileInfo {
	return wire.FileInfo{
		FileID:      m.ID,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		ContentType: m.ContentType,
		IsComplete:  m.IsComplete,
		DirectoryID: m.DirectoryID,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func directoryInfo(d *dirmeta.DirectoryMetadata) wire.DirectoryInfo {
	return wire.DirectoryInfo{
		DirectoryID:       d.ID,
		Name:              d.Name,
		ParentDirectoryID: d.ParentDirectoryID,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// CreateAccount handles CREATE_ACCOUNT_REQUEST.
func (d *Dispatcher) CreateAccount(s *Session, pkt *wire.Packet) *wire.Packet {
	var body wire.CreateAccountRequestBody
	if err := pkt.DecodeBody(&body); err != nil {
		return wire.NewCreateAccountResponse(pkt, false, "malformed account request", "")
	}
	if strings.TrimSpace(body.Username) == "" || body.Password == "" {
		return wire.NewCreateAccountResponse(pkt, false, "username and password are required", "")
	}

	user, err := d.users.Create(body.Username, body.Password, body.Email, users.RoleUser)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return wire.NewCreateAccountResponse(pkt, false, "username is already taken", "")
		}
		d.logger.Error("account creation failed", zap.Error(err))
		return wire.NewCreateAccountResponse(pkt, false, "account creation failed", "")
	}

	d.logger.Info("account created",
		zap.String("userId", user.ID),
		zap.String("username", user.Username))
	return wire.NewCreateAccountResponse(pkt, true, "account created", user.ID)
}

// Login handles LOGIN_REQUEST. The second return value reports whether the
// session is now authenticated.
func (d *Dispatcher) Login(s *Session, pkt *wire.Packet) (*wire.Packet, bool) {
	var body wire.LoginRequestBody
	if err := pkt.DecodeBody(&body); err != nil {
		return wire.NewLoginResponse(pkt, false, "malformed login request", ""), false
	}

	user, err := d.users.Validate(body.Username, body.Password)
	if err != nil {
		d.logger.Error("credential validation failed", zap.Error(err))
		return wire.NewLoginResponse(pkt, false, "login failed", ""), false
	}
	if user == nil {
		return wire.NewLoginResponse(pkt, false, "invalid username or password", ""), false
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()

	d.logger.Info("login",
		zap.String("userId", user.ID),
		zap.String("username", user.Username))
	return wire.NewLoginResponse(pkt, true, "login successful", user.ID), true
}

// FileList handles FILE_LIST_REQUEST.
func (d *Dispatcher) FileList(s *Session, pkt *wire.Packet) *wire.Packet {
	metas, err := d.files.ListFiles(s.UserID())
	if err != nil {
		d.logger.Error("file list failed", zap.Error(err))
		return wire.NewErrorResponse(pkt, "failed to list files")
	}
	infos := make([]wire.FileInfo, 0, len(metas))
	for _, m := range metas {
		infos = append(infos, fileInfo(m))
	}
	return wire.NewFileListResponse(pkt, infos)
}

// UploadInit handles FILE_UPLOAD_INIT_REQUEST. On success the returned
// metadata binds the session's transfer state.
func (d *Dispatcher) UploadInit(s *Session, pkt *wire.Packet) (*wire.Packet, *filemeta.FileMetadata) {
	var body wire.UploadInitRequestBody
	if err := pkt.DecodeBody(&body); err != nil {
		return wire.NewUploadInitResponse(pkt, false, "", "malformed upload request"), nil
	}
	if body.FileName == "" || body.FileSize < 1 {
		return wire.NewUploadInitResponse(pkt, false, "", "file name and a positive size are required"), nil
	}

	meta, err := d.files.InitializeUpload(s.UserID(), body.FileName, body.FileSize,
		body.ContentType, pkt.Meta(wire.MetaDirectoryID))
	if err != nil {
		d.logger.Warn("upload init failed", zap.Error(err))
		return wire.NewUploadInitResponse(pkt, false, "", failureMessage(err)), nil
	}
	return wire.NewUploadInitResponse(pkt, true, meta.ID, "upload initialized"), meta
}

// UploadChunk handles FILE_UPLOAD_CHUNK_REQUEST inside an upload transfer.
// ok=false aborts the transfer.
func (d *Dispatcher) UploadChunk(s *Session, pkt *wire.Packet, fileID string) (*wire.Packet, bool) {
	chunkIndex, haveIndex := pkt.IntMeta(wire.MetaChunkIndex)
	if !haveIndex {
		return wire.NewUploadChunkResponse(pkt, false, fileID, -1, "missing chunk index"), false
	}
	isLast := pkt.BoolMeta(wire.MetaIsLastChunk)

	if err := d.files.ProcessChunk(fileID, chunkIndex, isLast, pkt.Payload); err != nil {
		d.logger.Warn("chunk rejected",
			zap.String("fileId", fileID),
			zap.Int("chunkIndex", chunkIndex),
			zap.Error(err))
		return wire.NewUploadChunkResponse(pkt, false, fileID, chunkIndex, failureMessage(err)), false
	}
	return wire.NewUploadChunkResponse(pkt, true, fileID, chunkIndex, ""), true
}

// UploadComplete handles FILE_UPLOAD_COMPLETE_REQUEST.
func (d *Dispatcher) UploadComplete(s *Session, pkt *wire.Packet, fileID string) *wire.Packet {
	if err := d.files.FinalizeUpload(fileID); err != nil {
		d.logger.Error("finalize failed", zap.String("fileId", fileID), zap.Error(err))
		d.files.AbortUpload(fileID)
		return wire.NewUploadCompleteResponse(pkt, false, fileID, failureMessage(err))
	}
	d.logger.Info("upload complete", zap.String("fileId", fileID))
	return wire.NewUploadCompleteResponse(pkt, true, fileID, "upload complete")
}

// DownloadInit handles FILE_DOWNLOAD_INIT_REQUEST.
func (d *Dispatcher) DownloadInit(s *Session, pkt *wire.Packet) (*wire.Packet, *filemeta.FileMetadata) {
	fileID := pkt.Meta(wire.MetaFileID)
	if fileID == "" {
		return wire.NewDownloadInitResponse(pkt, &wire.DownloadInitResponseBody{
			Message: "missing file id",
		}), nil
	}

	meta, err := d.files.InitializeDownload(fileID, s.UserID())
	if err != nil {
		d.logger.Warn("download init failed", zap.String("fileId", fileID), zap.Error(err))
		return wire.NewDownloadInitResponse(pkt, &wire.DownloadInitResponseBody{
			Message: failureMessage(err),
		}), nil
	}

	resp := wire.NewDownloadInitResponse(pkt, &wire.DownloadInitResponseBody{
		Success:     true,
		FileID:      meta.ID,
		FileName:    meta.FileName,
		FileSize:    meta.FileSize,
		ContentType: meta.ContentType,
		TotalChunks: meta.TotalChunks,
	})
	if meta.ContentHash != "" {
		resp.SetMeta(wire.MetaContentHash, meta.ContentHash)
	}
	return resp, meta
}

// DownloadChunk handles FILE_DOWNLOAD_CHUNK_REQUEST inside a download
// transfer. ok=false aborts the transfer.
func (d *Dispatcher) DownloadChunk(s *Session, pkt *wire.Packet, fileID string) (*wire.Packet, bool) {
	chunkIndex, haveIndex := pkt.IntMeta(wire.MetaChunkIndex)
	if !haveIndex {
		return wire.NewErrorResponse(pkt, "missing chunk index"), false
	}

	data, isLast, err := d.files.GetChunk(fileID, chunkIndex)
	if err != nil {
		d.logger.Warn("chunk read failed",
			zap.String("fileId", fileID),
			zap.Int("chunkIndex", chunkIndex),
			zap.Error(err))
		return wire.NewErrorResponse(pkt, failureMessage(err)), false
	}
	return wire.NewDownloadChunkResponse(pkt, fileID, chunkIndex, isLast, data), true
}

// FileDelete handles FILE_DELETE_REQUEST.
func (d *Dispatcher) FileDelete(s *Session, pkt *wire.Packet) *wire.Packet {
	fileID := pkt.Meta(wire.MetaFileID)
	if fileID == "" {
		return wire.NewErrorResponse(pkt, "missing file id")
	}
	if err := d.files.DeleteFile(fileID, s.UserID()); err != nil {
		d.logger.Warn("delete failed", zap.String("fileId", fileID), zap.Error(err))
		return wire.NewErrorResponse(pkt, failureMessage(err))
	}
	d.logger.Info("file deleted", zap.String("fileId", fileID))
	return wire.NewStatusResponse(pkt, true, "file deleted")
}

// FileMove handles FILE_MOVE_REQUEST.
func (d *Dispatcher) FileMove(s *Session, pkt *wire.Packet) *wire.Packet {
	var body wire.FileMoveRequestBody
	if err := pkt.DecodeBody(&body); err != nil {
		return wire.NewErrorResponse(pkt, "malformed move request")
	}
	if len(body.FileIDs) == 0 {
		return wire.NewErrorResponse(pkt, "no files to move")
	}

	all, err := d.files.MoveFiles(body.FileIDs, body.TargetDirectoryID, s.UserID())
	if err != nil {
		d.logger.Warn("move failed", zap.Error(err))
		return wire.NewErrorResponse(pkt, failureMessage(err))
	}
	if !all {
		return wire.NewStatusResponse(pkt, false, "some files could not be moved")
	}
	d.logger.Info("files moved",
		zap.Int("count", len(body.FileIDs)),
		zap.String("targetDirectoryId", body.TargetDirectoryID))
	return wire.NewStatusResponse(pkt, true, fmt.Sprintf("moved %d file(s)", len(body.FileIDs)))
}

// DirectoryContents handles DIRECTORY_CONTENTS_REQUEST.
func (d *Dispatcher) DirectoryContents(s *Session, pkt *wire.Packet) *wire.Packet {
	dirID := pkt.Meta(wire.MetaDirectoryID)
	metas, dirs, err := d.files.ListDirectory(s.UserID(), dirID)
	if err != nil {
		d.logger.Warn("directory listing failed", zap.String("directoryId", dirID), zap.Error(err))
		return wire.NewErrorResponse(pkt, failureMessage(err))
	}
	infos := make([]wire.FileInfo, 0, len(metas))
	for _, m := range metas {
		infos = append(infos, fileInfo(m))
	}
	dirInfos := make([]wire.DirectoryInfo, 0, len(dirs))
	for _, dir := range dirs {
		dirInfos = append(dirInfos, directoryInfo(dir))
	}
	return wire.NewDirectoryContentsResponse(pkt, infos, dirInfos)
}

// DirectoryCreate handles DIRECTORY_CREATE_REQUEST.
func (d *Dispatcher) DirectoryCreate(s *Session, pkt *wire.Packet) *wire.Packet {
	var body wire.DirectoryCreateRequestBody
	if err := pkt.DecodeBody(&body); err != nil {
		return wire.NewDirectoryCreateResponse(pkt, false, "", "malformed directory request")
	}
	if strings.TrimSpace(body.DirectoryName) == "" {
		return wire.NewDirectoryCreateResponse(pkt, false, "", "directory name is required")
	}

	dir, err := d.files.CreateDirectory(s.UserID(), body.DirectoryName, body.ParentDirectoryID)
	if err != nil {
		d.logger.Warn("directory create failed",
			zap.String("name", body.DirectoryName), zap.Error(err))
		return wire.NewDirectoryCreateResponse(pkt, false, "", failureMessage(err))
	}
	d.logger.Info("directory created",
		zap.String("directoryId", dir.ID),
		zap.String("name", dir.Name))
	return wire.NewDirectoryCreateResponse(pkt, true, dir.ID, "directory created")
}

// DirectoryDelete handles DIRECTORY_DELETE_REQUEST.
func (d *Dispatcher) DirectoryDelete(s *Session, pkt *wire.Packet) *wire.Packet {
	dirID := pkt.Meta(wire.MetaDirectoryID)
	if dirID == "" {
		return wire.NewErrorResponse(pkt, "missing directory id")
	}
	if err := d.files.DeleteDirectory(s.UserID(), dirID); err != nil {
		d.logger.Warn("directory delete failed", zap.String("directoryId", dirID), zap.Error(err))
		return wire.NewErrorResponse(pkt, failureMessage(err))
	}
	d.logger.Info("directory deleted", zap.String("directoryId", dirID))
	return wire.NewStatusResponse(pkt, true, "directory deleted")
}
