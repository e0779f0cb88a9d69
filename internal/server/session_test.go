package server

import (
	"strings"
	"testing"

	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/pkg/commands"
	"github.com/sxlmons/filelink/pkg/wire"
)

func TestPhaseString(t *testing.T) {
	tests := []struct {
		phase Phase
		want  string
	}{
		{PhaseAuthRequired, "AuthRequired"},
		{PhaseAuthenticated, "Authenticated"},
		{PhaseTransfer, "Transfer"},
		{PhaseDisconnecting, "Disconnecting"},
	}
	for _, tt := range tests {
		if got := tt.phase.String(); got != tt.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tt.phase, got, tt.want)
		}
	}
}

func TestRejectForPhase_NamesTheState(t *testing.T) {
	s := pipeSession(t)

	// AuthRequired: the rejection is an UNAUTHORIZED response.
	resp := s.handle(wire.NewFileListRequest(""))
	if resp.CommandCode != commands.Unauthorized {
		t.Errorf("code = %s, want UNAUTHORIZED", resp.CommandCode)
	}
	if !strings.Contains(resp.Message(), "AuthRequired") {
		t.Errorf("message %q does not name the state", resp.Message())
	}

	// Transfer: an unrelated command is refused but the transfer stays up.
	s.mu.Lock()
	s.phase = PhaseTransfer
	s.userID = "u1"
	s.transfer = &transfer{direction: DirectionUpload, file: &filemeta.FileMetadata{ID: "f1"}}
	s.mu.Unlock()

	req := wire.NewDirectoryCreateRequest("u1", "docs", "")
	req.SetMeta(wire.MetaFileID, "f1") // matches the transfer, still wrong command
	resp = s.handle(req)
	if resp.IsSuccess() {
		t.Error("unexpected command accepted during transfer")
	}
	if !strings.Contains(resp.Message(), "Transfer") {
		t.Errorf("message %q does not name the state", resp.Message())
	}
	if s.Phase() != PhaseTransfer {
		t.Errorf("phase = %s, transfer should survive an unexpected command", s.Phase())
	}

	// Disconnecting: everything is refused.
	s.mu.Lock()
	s.phase = PhaseDisconnecting
	s.mu.Unlock()
	resp = s.handle(wire.NewFileListRequest("u1"))
	if resp.IsSuccess() {
		t.Error("command accepted while disconnecting")
	}
}

func TestCheckUserID(t *testing.T) {
	s := pipeSession(t)
	s.mu.Lock()
	s.userID = "u1"
	s.mu.Unlock()

	if resp := s.checkUserID(wire.NewFileListRequest("u1")); resp != nil {
		t.Error("matching user id rejected")
	}
	if resp := s.checkUserID(wire.NewFileListRequest("")); resp != nil {
		t.Error("empty packet user id rejected")
	}
	if resp := s.checkUserID(wire.NewFileListRequest("u2")); resp == nil {
		t.Error("foreign user id accepted")
	}
}
