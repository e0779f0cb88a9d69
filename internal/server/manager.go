package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/pkg/constants"
)

// Manager tracks live sessions by id, enforces the concurrency cap and
// sweeps idle sessions on a fixed cadence.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	maxSessions int
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewManager creates a session manager.
func NewManager(maxSessions int, idleTimeout time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
		logger:      logger.Named("sessions"),
	}
}

// Add registers a session, failing when the server is at capacity.
func (m *Manager) Add(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sessions) >= m.maxSessions {
		return fmt.Errorf("server is at capacity (%d sessions)", m.maxSessions)
	}
	m.sessions[s.ID] = s
	return nil
}

// Remove forgets a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Get returns a session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Run sweeps idle sessions until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(constants.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep disconnects every session idle past the timeout.
func (m *Manager) sweep(now time.Time) {
	m.mu.RLock()
	var idle []*Session
	for _, s := range m.sessions {
		if now.Sub(s.LastActivity()) > m.idleTimeout {
			idle = append(idle, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range idle {
		m.logger.Info("disconnecting idle session",
			zap.String("sessionId", s.ID),
			zap.Duration("idle", now.Sub(s.LastActivity())))
		s.Disconnect("idle timeout")
	}
}

// DisconnectAll broadcasts a disconnect reason to every session and waits
// for their loops to finish.
func (m *Manager) DisconnectAll(reason string) {
	m.mu.RLock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.RUnlock()

	for _, s := range all {
		s.Disconnect(reason)
	}
	for _, s := range all {
		<-s.Done()
	}
}
