// Package commands enumerates the FileLink command codes and the
// request/response pairing that drives server dispatch.
package commands

import "fmt"

// Code identifies the purpose of a packet on the wire.
type Code int32

// Authentication (100-199).
const (
	LoginRequest          Code = 100
	LoginResponse         Code = 101
	LogoutRequest         Code = 102
	LogoutResponse        Code = 103
	CreateAccountRequest  Code = 110
	CreateAccountResponse Code = 111
)

// File operations (200-249).
const (
	FileListRequest              Code = 200
	FileListResponse             Code = 201
	FileUploadInitRequest        Code = 210
	FileUploadInitResponse       Code = 211
	FileUploadChunkRequest       Code = 212
	FileUploadChunkResponse      Code = 213
	FileUploadCompleteRequest    Code = 214
	FileUploadCompleteResponse   Code = 215
	FileDownloadInitRequest      Code = 220
	FileDownloadInitResponse     Code = 221
	FileDownloadChunkRequest     Code = 222
	FileDownloadChunkResponse    Code = 223
	FileDownloadCompleteRequest  Code = 224
	FileDownloadCompleteResponse Code = 225
	FileDeleteRequest            Code = 230
	FileDeleteResponse           Code = 231
	FileMoveRequest              Code = 240
	FileMoveResponse             Code = 241
)

// Directory operations (250-299).
const (
	DirectoryContentsRequest  Code = 250
	DirectoryContentsResponse Code = 251
	DirectoryCreateRequest    Code = 252
	DirectoryCreateResponse   Code = 253
	DirectoryDeleteRequest    Code = 254
	DirectoryDeleteResponse   Code = 255
)

// Status (300-399).
const (
	Success      Code = 300
	Error        Code = 301
	Unauthorized Code = 302
)

// responseFor maps each request code to its canonical response code.
var responseFor = map[Code]Code{
	LoginRequest:                LoginResponse,
	LogoutRequest:               LogoutResponse,
	CreateAccountRequest:        CreateAccountResponse,
	FileListRequest:             FileListResponse,
	FileUploadInitRequest:       FileUploadInitResponse,
	FileUploadChunkRequest:      FileUploadChunkResponse,
	FileUploadCompleteRequest:   FileUploadCompleteResponse,
	FileDownloadInitRequest:     FileDownloadInitResponse,
	FileDownloadChunkRequest:    FileDownloadChunkResponse,
	FileDownloadCompleteRequest: FileDownloadCompleteResponse,
	FileDeleteRequest:           FileDeleteResponse,
	FileMoveRequest:             FileMoveResponse,
	DirectoryContentsRequest:    DirectoryContentsResponse,
	DirectoryCreateRequest:      DirectoryCreateResponse,
	DirectoryDeleteRequest:      DirectoryDeleteResponse,
}

// ResponseFor returns the canonical response code for a request code.
// Codes that are not requests map to the Error sentinel; handlers decide
// what to do with unknown codes, the registry never rejects them.
func ResponseFor(request Code) Code {
	if resp, ok := responseFor[request]; ok {
		return resp
	}
	return Error
}

// IsRequest reports whether code has a canonical response pairing.
func IsRequest(code Code) bool {
	_, ok := responseFor[code]
	return ok
}

var names = map[Code]string{
	LoginRequest:                 "LOGIN_REQUEST",
	LoginResponse:                "LOGIN_RESPONSE",
	LogoutRequest:                "LOGOUT_REQUEST",
	LogoutResponse:               "LOGOUT_RESPONSE",
	CreateAccountRequest:         "CREATE_ACCOUNT_REQUEST",
	CreateAccountResponse:        "CREATE_ACCOUNT_RESPONSE",
	FileListRequest:              "FILE_LIST_REQUEST",
	FileListResponse:             "FILE_LIST_RESPONSE",
	FileUploadInitRequest:        "FILE_UPLOAD_INIT_REQUEST",
	FileUploadInitResponse:       "FILE_UPLOAD_INIT_RESPONSE",
	FileUploadChunkRequest:       "FILE_UPLOAD_CHUNK_REQUEST",
	FileUploadChunkResponse:      "FILE_UPLOAD_CHUNK_RESPONSE",
	FileUploadCompleteRequest:    "FILE_UPLOAD_COMPLETE_REQUEST",
	FileUploadCompleteResponse:   "FILE_UPLOAD_COMPLETE_RESPONSE",
	FileDownloadInitRequest:      "FILE_DOWNLOAD_INIT_REQUEST",
	FileDownloadInitResponse:     "FILE_DOWNLOAD_INIT_RESPONSE",
	FileDownloadChunkRequest:     "FILE_DOWNLOAD_CHUNK_REQUEST",
	FileDownloadChunkResponse:    "FILE_DOWNLOAD_CHUNK_RESPONSE",
	FileDownloadCompleteRequest:  "FILE_DOWNLOAD_COMPLETE_REQUEST",
	FileDownloadCompleteResponse: "FILE_DOWNLOAD_COMPLETE_RESPONSE",
	FileDeleteRequest:            "FILE_DELETE_REQUEST",
	FileDeleteResponse:           "FILE_DELETE_RESPONSE",
	FileMoveRequest:              "FILE_MOVE_REQUEST",
	FileMoveResponse:             "FILE_MOVE_RESPONSE",
	DirectoryContentsRequest:     "DIRECTORY_CONTENTS_REQUEST",
	DirectoryContentsResponse:    "DIRECTORY_CONTENTS_RESPONSE",
	DirectoryCreateRequest:       "DIRECTORY_CREATE_REQUEST",
	DirectoryCreateResponse:      "DIRECTORY_CREATE_RESPONSE",
	DirectoryDeleteRequest:       "DIRECTORY_DELETE_REQUEST",
	DirectoryDeleteResponse:      "DIRECTORY_DELETE_RESPONSE",
	Success:                      "SUCCESS",
	Error:                        "ERROR",
	Unauthorized:                 "UNAUTHORIZED",
}

// Name returns the display name for a code, for logs.
func Name(code Code) string {
	if n, ok := names[code]; ok {
		return n
	}
	return fmt.Sprintf("UNKNOWN_%d", int32(code))
}

// String implements fmt.Stringer.
func (c Code) String() string { return Name(c) }
