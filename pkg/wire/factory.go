package wire

import (
	"strconv"

	"github.com/sxlmons/filelink/pkg/commands"
)

// Factory helpers build canonical request and response packets. Every
// success/failure response carries Success and, when relevant, Message
// metadata alongside its structured payload.

func mustBody(v interface{}) []byte {
	data, err := EncodeBody(v)
	if err != nil {
		// The payload bodies are plain structs of strings, numbers and
		// bools; marshaling them cannot fail at runtime.
		panic(err)
	}
	return data
}

// Request constructors.

// NewCreateAccountRequest creates a CREATE_ACCOUNT_REQUEST packet.
func NewCreateAccountRequest(username, password, email string) *Packet {
	p := NewPacket(commands.CreateAccountRequest)
	p.Payload = mustBody(&CreateAccountRequestBody{
		Username: username,
		Password: password,
		Email:    email,
	})
	return p
}

// NewLoginRequest creates a LOGIN_REQUEST packet.
func NewLoginRequest(username, password string) *Packet {
	p := NewPacket(commands.LoginRequest)
	p.Payload = mustBody(&LoginRequestBody{Username: username, Password: password})
	return p
}

// NewLogoutRequest creates a LOGOUT_REQUEST packet.
func NewLogoutRequest(userID string) *Packet {
	p := NewPacket(commands.LogoutRequest)
	p.UserID = userID
	return p
}

// NewFileListRequest creates a FILE_LIST_REQUEST packet.
func NewFileListRequest(userID string) *Packet {
	p := NewPacket(commands.FileListRequest)
	p.UserID = userID
	return p
}

// NewUploadInitRequest creates a FILE_UPLOAD_INIT_REQUEST packet. An empty
// directoryID targets the user root.
func NewUploadInitRequest(userID, fileName string, fileSize int64, contentType, directoryID string) *Packet {
	p := NewPacket(commands.FileUploadInitRequest)
	p.UserID = userID
	p.Payload = mustBody(&UploadInitRequestBody{
		FileName:    fileName,
		FileSize:    fileSize,
		ContentType: contentType,
	})
	if directoryID != "" {
		p.SetMeta(MetaDirectoryID, directoryID)
	}
	return p
}

// NewUploadChunkRequest creates a FILE_UPLOAD_CHUNK_REQUEST packet. The
// payload is the raw chunk bytes.
func NewUploadChunkRequest(userID, fileID string, chunkIndex int, isLastChunk bool, data []byte) *Packet {
	p := NewPacket(commands.FileUploadChunkRequest)
	p.UserID = userID
	p.Payload = data
	p.SetMeta(MetaFileID, fileID)
	p.SetMeta(MetaChunkIndex, strconv.Itoa(chunkIndex))
	p.SetMeta(MetaIsLastChunk, strconv.FormatBool(isLastChunk))
	return p
}

// NewUploadCompleteRequest creates a FILE_UPLOAD_COMPLETE_REQUEST packet.
func NewUploadCompleteRequest(userID, fileID string) *Packet {
	p := NewPacket(commands.FileUploadCompleteRequest)
	p.UserID = userID
	p.SetMeta(MetaFileID, fileID)
	return p
}

// NewDownloadInitRequest creates a FILE_DOWNLOAD_INIT_REQUEST packet.
func NewDownloadInitRequest(userID, fileID string) *Packet {
	p := NewPacket(commands.FileDownloadInitRequest)
	p.UserID = userID
	p.SetMeta(MetaFileID, fileID)
	return p
}

// NewDownloadChunkRequest creates a FILE_DOWNLOAD_CHUNK_REQUEST packet.
func NewDownloadChunkRequest(userID, fileID string, chunkIndex int) *Packet {
	p := NewPacket(commands.FileDownloadChunkRequest)
	p.UserID = userID
	p.SetMeta(MetaFileID, fileID)
	p.SetMeta(MetaChunkIndex, strconv.Itoa(chunkIndex))
	return p
}

// NewDownloadCompleteRequest creates a FILE_DOWNLOAD_COMPLETE_REQUEST packet.
func NewDownloadCompleteRequest(userID, fileID string) *Packet {
	p := NewPacket(commands.FileDownloadCompleteRequest)
	p.UserID = userID
	p.SetMeta(MetaFileID, fileID)
	return p
}

// NewFileDeleteRequest creates a FILE_DELETE_REQUEST packet.
func NewFileDeleteRequest(userID, fileID string) *Packet {
	p := NewPacket(commands.FileDeleteRequest)
	p.UserID = userID
	p.SetMeta(MetaFileID, fileID)
	return p
}

// NewFileMoveRequest creates a FILE_MOVE_REQUEST packet. An empty
// targetDirectoryID moves the files to the user root.
func NewFileMoveRequest(userID string, fileIDs []string, targetDirectoryID string) *Packet {
	p := NewPacket(commands.FileMoveRequest)
	p.UserID = userID
	p.Payload = mustBody(&FileMoveRequestBody{
		FileIDs:           fileIDs,
		TargetDirectoryID: targetDirectoryID,
	})
	return p
}

// NewDirectoryContentsRequest creates a DIRECTORY_CONTENTS_REQUEST packet.
// An empty directoryID lists the user root.
func NewDirectoryContentsRequest(userID, directoryID string) *Packet {
	p := NewPacket(commands.DirectoryContentsRequest)
	p.UserID = userID
	if directoryID != "" {
		p.SetMeta(MetaDirectoryID, directoryID)
	}
	return p
}

// NewDirectoryCreateRequest creates a DIRECTORY_CREATE_REQUEST packet.
func NewDirectoryCreateRequest(userID, name, parentDirectoryID string) *Packet {
	p := NewPacket(commands.DirectoryCreateRequest)
	p.UserID = userID
	p.Payload = mustBody(&DirectoryCreateRequestBody{
		DirectoryName:     name,
		ParentDirectoryID: parentDirectoryID,
	})
	return p
}

// NewDirectoryDeleteRequest creates a DIRECTORY_DELETE_REQUEST packet.
func NewDirectoryDeleteRequest(userID, directoryID string) *Packet {
	p := NewPacket(commands.DirectoryDeleteRequest)
	p.UserID = userID
	p.SetMeta(MetaDirectoryID, directoryID)
	return p
}

// Response constructors.

// newResponse builds the canonical response for a request with Success and
// Message metadata set. The response inherits the request's user id.
func newResponse(req *Packet, success bool, message string) *Packet {
	p := NewPacket(commands.ResponseFor(req.CommandCode))
	p.UserID = req.UserID
	p.SetMeta(MetaSuccess, strconv.FormatBool(success))
	if message != "" {
		p.SetMeta(MetaMessage, message)
	}
	return p
}

// NewStatusResponse builds the canonical response for a request carrying a
// plain success/failure payload.
func NewStatusResponse(req *Packet, success bool, message string) *Packet {
	p := newResponse(req, success, message)
	p.Payload = mustBody(&StatusBody{Success: success, Message: message})
	return p
}

// NewErrorResponse reports a failure for a request whose matching response
// still applies; unknown request codes get the ERROR sentinel code.
func NewErrorResponse(req *Packet, message string) *Packet {
	return NewStatusResponse(req, false, message)
}

// NewUnauthorizedResponse reports a command rejected for lack of
// authentication.
func NewUnauthorizedResponse(req *Packet, message string) *Packet {
	p := NewPacket(commands.Unauthorized)
	p.UserID = req.UserID
	p.SetMeta(MetaSuccess, "false")
	p.SetMeta(MetaMessage, message)
	p.Payload = mustBody(&StatusBody{Success: false, Message: message})
	return p
}

// NewLoginResponse creates a LOGIN_RESPONSE packet. On success userID
// identifies the authenticated user.
func NewLoginResponse(req *Packet, success bool, message, userID string) *Packet {
	p := newResponse(req, success, message)
	if success {
		p.UserID = userID
	}
	p.Payload = mustBody(&StatusBody{Success: success, Message: message})
	return p
}

// NewCreateAccountResponse creates a CREATE_ACCOUNT_RESPONSE packet.
func NewCreateAccountResponse(req *Packet, success bool, message, userID string) *Packet {
	p := newResponse(req, success, message)
	p.Payload = mustBody(&CreateAccountResponseBody{
		Success: success,
		Message: message,
		UserID:  userID,
	})
	return p
}

// NewFileListResponse creates a FILE_LIST_RESPONSE packet. The payload is
// the JSON list of the user's files; an empty list encodes as [].
func NewFileListResponse(req *Packet, files []FileInfo) *Packet {
	p := newResponse(req, true, "")
	if files == nil {
		files = []FileInfo{}
	}
	p.Payload = mustBody(files)
	return p
}

// NewUploadInitResponse creates a FILE_UPLOAD_INIT_RESPONSE packet.
func NewUploadInitResponse(req *Packet, success bool, fileID, message string) *Packet {
	p := newResponse(req, success, message)
	if fileID != "" {
		p.SetMeta(MetaFileID, fileID)
	}
	p.Payload = mustBody(&UploadInitResponseBody{
		Success: success,
		FileID:  fileID,
		Message: message,
	})
	return p
}

// NewUploadChunkResponse creates a FILE_UPLOAD_CHUNK_RESPONSE packet.
func NewUploadChunkResponse(req *Packet, success bool, fileID string, chunkIndex int, message string) *Packet {
	p := newResponse(req, success, message)
	p.SetMeta(MetaFileID, fileID)
	p.SetMeta(MetaChunkIndex, strconv.Itoa(chunkIndex))
	p.Payload = mustBody(&StatusBody{Success: success, Message: message})
	return p
}

// NewUploadCompleteResponse creates a FILE_UPLOAD_COMPLETE_RESPONSE packet.
func NewUploadCompleteResponse(req *Packet, success bool, fileID, message string) *Packet {
	p := newResponse(req, success, message)
	p.SetMeta(MetaFileID, fileID)
	p.Payload = mustBody(&StatusBody{Success: success, Message: message})
	return p
}

// NewDownloadInitResponse creates a FILE_DOWNLOAD_INIT_RESPONSE packet.
func NewDownloadInitResponse(req *Packet, body *DownloadInitResponseBody) *Packet {
	p := newResponse(req, body.Success, body.Message)
	if body.FileID != "" {
		p.SetMeta(MetaFileID, body.FileID)
	}
	p.Payload = mustBody(body)
	return p
}

// NewDownloadChunkResponse creates a FILE_DOWNLOAD_CHUNK_RESPONSE packet.
// The payload is the raw chunk bytes.
func NewDownloadChunkResponse(req *Packet, fileID string, chunkIndex int, isLastChunk bool, data []byte) *Packet {
	p := newResponse(req, true, "")
	p.Payload = data
	p.SetMeta(MetaFileID, fileID)
	p.SetMeta(MetaChunkIndex, strconv.Itoa(chunkIndex))
	p.SetMeta(MetaIsLastChunk, strconv.FormatBool(isLastChunk))
	return p
}

// NewDownloadCompleteResponse creates a FILE_DOWNLOAD_COMPLETE_RESPONSE packet.
func NewDownloadCompleteResponse(req *Packet, success bool, fileID, message string) *Packet {
	p := newResponse(req, success, message)
	p.SetMeta(MetaFileID, fileID)
	p.Payload = mustBody(&StatusBody{Success: success, Message: message})
	return p
}

// NewDirectoryContentsResponse creates a DIRECTORY_CONTENTS_RESPONSE packet.
func NewDirectoryContentsResponse(req *Packet, files []FileInfo, directories []DirectoryInfo) *Packet {
	p := newResponse(req, true, "")
	if files == nil {
		files = []FileInfo{}
	}
	if directories == nil {
		directories = []DirectoryInfo{}
	}
	p.Payload = mustBody(&DirectoryContentsResponseBody{
		Success:     true,
		Files:       files,
		Directories: directories,
	})
	return p
}

// NewDirectoryCreateResponse creates a DIRECTORY_CREATE_RESPONSE packet.
func NewDirectoryCreateResponse(req *Packet, success bool, directoryID, message string) *Packet {
	p := newResponse(req, success, message)
	if directoryID != "" {
		p.SetMeta(MetaDirectoryID, directoryID)
	}
	p.Payload = mustBody(&DirectoryCreateResponseBody{
		Success:     success,
		DirectoryID: directoryID,
		Message:     message,
	})
	return p
}
