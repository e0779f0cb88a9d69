package server

import (
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/pkg/constants"
)

func pipeSession(t *testing.T) *Session {
	t.Helper()
	serverEnd, clientEnd := net.Pipe()
	t.Cleanup(func() {
		serverEnd.Close()
		clientEnd.Close()
	})
	return NewSession(serverEnd, nil,
		constants.DefaultMaxPacketSize, constants.DefaultNetworkBufferSize, zap.NewNop())
}

func TestManager_AddRemoveCap(t *testing.T) {
	m := NewManager(2, time.Minute, zap.NewNop())

	a, b, c := pipeSession(t), pipeSession(t), pipeSession(t)
	if err := m.Add(a); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.Add(b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.Add(c); err == nil {
		t.Error("expected Add past the cap to fail")
	}
	if m.Count() != 2 {
		t.Errorf("Count = %d, want 2", m.Count())
	}

	m.Remove(a.ID)
	if err := m.Add(c); err != nil {
		t.Errorf("Add after Remove failed: %v", err)
	}

	if _, ok := m.Get(b.ID); !ok {
		t.Error("Get lost a live session")
	}
}

func TestManager_SweepDisconnectsIdle(t *testing.T) {
	m := NewManager(10, time.Minute, zap.NewNop())

	idle := pipeSession(t)
	busy := pipeSession(t)
	if err := m.Add(idle); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := m.Add(busy); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// idle last spoke 31 minutes "ago"; busy just now.
	idle.mu.Lock()
	idle.lastActivity = time.Now().Add(-31 * time.Minute)
	idle.mu.Unlock()
	busy.touch()

	m.sweep(time.Now())

	select {
	case <-idle.Done():
	case <-time.After(time.Second):
		t.Error("idle session not disconnected by sweep")
	}
	if idle.Phase() != PhaseDisconnecting {
		t.Errorf("idle phase = %s, want Disconnecting", idle.Phase())
	}

	select {
	case <-busy.Done():
		t.Error("busy session disconnected by sweep")
	default:
	}
}

func TestManager_DisconnectAll(t *testing.T) {
	m := NewManager(10, time.Minute, zap.NewNop())
	sessions := []*Session{pipeSession(t), pipeSession(t), pipeSession(t)}
	for _, s := range sessions {
		if err := m.Add(s); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		m.DisconnectAll("test shutdown")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("DisconnectAll did not return")
	}
	for _, s := range sessions {
		if s.Phase() != PhaseDisconnecting {
			t.Errorf("session %s phase = %s", s.ID, s.Phase())
		}
	}
}
