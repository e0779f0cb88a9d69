package wire

import (
	"bytes"
	"testing"

	"github.com/sxlmons/filelink/pkg/commands"
)

func TestNewUploadChunkRequest_Metadata(t *testing.T) {
	data := []byte{1, 2, 3}
	p := NewUploadChunkRequest("user-1", "file-1", 2, true, data)

	if p.CommandCode != commands.FileUploadChunkRequest {
		t.Errorf("command = %s", p.CommandCode)
	}
	if p.Meta(MetaFileID) != "file-1" {
		t.Errorf("FileId = %q", p.Meta(MetaFileID))
	}
	if p.Meta(MetaChunkIndex) != "2" {
		t.Errorf("ChunkIndex = %q", p.Meta(MetaChunkIndex))
	}
	if !p.BoolMeta(MetaIsLastChunk) {
		t.Error("IsLastChunk should be true")
	}
	if !bytes.Equal(p.Payload, data) {
		t.Error("payload must be the raw chunk bytes")
	}
}

func TestResponses_CarrySuccessMetadata(t *testing.T) {
	req := NewLoginRequest("alice", "secret")

	tests := []struct {
		name    string
		resp    *Packet
		code    commands.Code
		success bool
	}{
		{"login_ok", NewLoginResponse(req, true, "welcome", "u1"), commands.LoginResponse, true},
		{"login_fail", NewLoginResponse(req, false, "bad password", ""), commands.LoginResponse, false},
		{"error", NewErrorResponse(NewFileListRequest("u1"), "nope"), commands.FileListResponse, false},
		{"unauthorized", NewUnauthorizedResponse(NewFileListRequest(""), "login first"), commands.Unauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.resp.CommandCode != tt.code {
				t.Errorf("code = %s, want %s", tt.resp.CommandCode, tt.code)
			}
			if tt.resp.IsSuccess() != tt.success {
				t.Errorf("IsSuccess = %v, want %v", tt.resp.IsSuccess(), tt.success)
			}
		})
	}
}

func TestNewLoginResponse_Body(t *testing.T) {
	req := NewLoginRequest("alice", "secret")
	resp := NewLoginResponse(req, true, "welcome", "user-9")

	if resp.UserID != "user-9" {
		t.Errorf("UserID = %q, want user-9", resp.UserID)
	}
	var body StatusBody
	if err := resp.DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if !body.Success || body.Message != "welcome" {
		t.Errorf("body = %+v", body)
	}
}

func TestNewFileListResponse_EmptyListEncodesAsList(t *testing.T) {
	resp := NewFileListResponse(NewFileListRequest("u1"), nil)
	if string(resp.Payload) != "[]" {
		t.Errorf("empty list payload = %q, want []", resp.Payload)
	}

	var files []FileInfo
	if err := resp.DecodeBody(&files); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("decoded %d files, want 0", len(files))
	}
}

func TestNewDownloadInitResponse_RoundTrip(t *testing.T) {
	req := NewDownloadInitRequest("u1", "f1")
	resp := NewDownloadInitResponse(req, &DownloadInitResponseBody{
		Success:     true,
		FileID:      "f1",
		FileName:    "report.pdf",
		FileSize:    2_500_000,
		ContentType: "application/pdf",
		TotalChunks: 3,
	})

	var body DownloadInitResponseBody
	if err := resp.DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if body.TotalChunks != 3 || body.FileSize != 2_500_000 || body.FileName != "report.pdf" {
		t.Errorf("body = %+v", body)
	}
}

func TestDecodeBody_IgnoresUnknownFields(t *testing.T) {
	p := NewPacket(commands.LoginRequest)
	p.Payload = []byte(`{"Username":"alice","Password":"pw","Extra":"ignored"}`)

	var body LoginRequestBody
	if err := p.DecodeBody(&body); err != nil {
		t.Fatalf("DecodeBody failed: %v", err)
	}
	if body.Username != "alice" || body.Password != "pw" {
		t.Errorf("body = %+v", body)
	}
}
