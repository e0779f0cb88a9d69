package wire

import (
	"encoding/json"
	"fmt"
	"time"
)

// Structured payloads are UTF-8 JSON documents. Field names are part of the
// protocol contract; unknown fields are ignored on read and never written.

// CreateAccountRequestBody is the CREATE_ACCOUNT_REQUEST payload.
type CreateAccountRequestBody struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
	Email    string `json:"Email"`
}

// LoginRequestBody is the LOGIN_REQUEST payload.
type LoginRequestBody struct {
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// StatusBody is the generic success/failure payload used by responses that
// carry no other data.
type StatusBody struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
}

// CreateAccountResponseBody is the CREATE_ACCOUNT_RESPONSE payload.
type CreateAccountResponseBody struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
	UserID  string `json:"UserId"`
}

// UploadInitRequestBody is the FILE_UPLOAD_INIT_REQUEST payload. The target
// directory travels in the DirectoryId metadata entry, absent for the root.
type UploadInitRequestBody struct {
	FileName    string `json:"FileName"`
	FileSize    int64  `json:"FileSize"`
	ContentType string `json:"ContentType"`
}

// UploadInitResponseBody is the FILE_UPLOAD_INIT_RESPONSE payload.
type UploadInitResponseBody struct {
	Success bool   `json:"Success"`
	FileID  string `json:"FileId"`
	Message string `json:"Message"`
}

// DownloadInitResponseBody is the FILE_DOWNLOAD_INIT_RESPONSE payload.
type DownloadInitResponseBody struct {
	Success     bool   `json:"Success"`
	FileID      string `json:"FileId"`
	FileName    string `json:"FileName"`
	FileSize    int64  `json:"FileSize"`
	ContentType string `json:"ContentType"`
	TotalChunks int    `json:"TotalChunks"`
	Message     string `json:"Message"`
}

// FileInfo is one entry of a FILE_LIST_RESPONSE or DIRECTORY_CONTENTS_RESPONSE
// payload.
type FileInfo struct {
	FileID      string    `json:"FileId"`
	FileName    string    `json:"FileName"`
	FileSize    int64     `json:"FileSize"`
	ContentType string    `json:"ContentType"`
	IsComplete  bool      `json:"IsComplete"`
	DirectoryID string    `json:"DirectoryId,omitempty"`
	CreatedAt   time.Time `json:"CreatedAt"`
	UpdatedAt   time.Time `json:"UpdatedAt"`
}

// DirectoryInfo is one directory entry of a DIRECTORY_CONTENTS_RESPONSE
// payload.
type DirectoryInfo struct {
	DirectoryID       string    `json:"DirectoryId"`
	Name              string    `json:"Name"`
	ParentDirectoryID string    `json:"ParentDirectoryId,omitempty"`
	CreatedAt         time.Time `json:"CreatedAt"`
	UpdatedAt         time.Time `json:"UpdatedAt"`
}

// DirectoryContentsResponseBody is the DIRECTORY_CONTENTS_RESPONSE payload.
type DirectoryContentsResponseBody struct {
	Success     bool            `json:"Success"`
	Files       []FileInfo      `json:"Files"`
	Directories []DirectoryInfo `json:"Directories"`
	Message     string          `json:"Message"`
}

// DirectoryCreateRequestBody is the DIRECTORY_CREATE_REQUEST payload. An
// empty ParentDirectoryID targets the user root.
type DirectoryCreateRequestBody struct {
	DirectoryName     string `json:"DirectoryName"`
	ParentDirectoryID string `json:"ParentDirectoryId,omitempty"`
}

// DirectoryCreateResponseBody is the DIRECTORY_CREATE_RESPONSE payload.
type DirectoryCreateResponseBody struct {
	Success     bool   `json:"Success"`
	DirectoryID string `json:"DirectoryId"`
	Message     string `json:"Message"`
}

// FileMoveRequestBody is the FILE_MOVE_REQUEST payload. An empty
// TargetDirectoryID moves the files to the user root.
type FileMoveRequestBody struct {
	FileIDs           []string `json:"FileIds"`
	TargetDirectoryID string   `json:"TargetDirectoryId,omitempty"`
}

// EncodeBody serializes a payload body to its wire form.
func EncodeBody(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload body: %w", err)
	}
	return data, nil
}

// DecodeBody parses the packet payload into v. Unknown fields in the
// payload are ignored.
func (p *Packet) DecodeBody(v interface{}) error {
	if len(p.Payload) == 0 {
		return fmt.Errorf("packet %s has no payload", p.CommandCode)
	}
	if err := json.Unmarshal(p.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", p.CommandCode, err)
	}
	return nil
}
