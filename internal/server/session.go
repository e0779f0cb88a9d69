package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/pkg/commands"
	"github.com/sxlmons/filelink/pkg/constants"
	"github.com/sxlmons/filelink/pkg/wire"
)

// transfer is the sub-state bound to a session during chunk exchange.
type transfer struct {
	direction Direction
	file      *filemeta.FileMetadata
}

// Session is the per-connection state. The connection loop is strictly
// serial: one request, one response, no pipelining. The phase and counters
// share one lock and socket writes have a separate one, so the sweeper can
// disconnect a session without interleaving a frame in flight.
type Session struct {
	ID string

	conn       net.Conn
	dispatcher *Dispatcher
	logger     *zap.Logger

	maxPacketSize int
	bufferSize    int

	mu           sync.Mutex
	phase        Phase
	userID       string
	transfer     *transfer
	failedLogins int
	lastActivity time.Time

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// NewSession wraps an accepted connection.
func NewSession(conn net.Conn, d *Dispatcher, maxPacketSize, bufferSize int, logger *zap.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:            id,
		conn:          conn,
		dispatcher:    d,
		logger:        logger.Named("session").With(zap.String("sessionId", id)),
		maxPacketSize: maxPacketSize,
		bufferSize:    bufferSize,
		phase:         PhaseAuthRequired,
		lastActivity:  time.Now(),
		done:          make(chan struct{}),
	}
}

// UserID returns the authenticated user id, or "" before login.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LastActivity returns when the session last received a frame.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Disconnect moves the session to its terminal phase and closes the socket.
// Safe to call from any goroutine, any number of times.
func (s *Session) Disconnect(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.phase = PhaseDisconnecting
		if s.transfer != nil && s.transfer.direction == DirectionUpload {
			s.dispatcher.files.AbortUpload(s.transfer.file.ID)
		}
		s.transfer = nil
		s.mu.Unlock()

		s.logger.Info("session disconnecting", zap.String("reason", reason))
		s.conn.Close()
		close(s.done)
	})
}

// Done is closed once the session has been disconnected.
func (s *Session) Done() <-chan struct{} { return s.done }

// writeResponse frames and writes a response under the write lock.
func (s *Session) writeResponse(p *wire.Packet) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.WriteFrame(s.conn, p)
}

// Run is the connection loop: read one frame, dispatch it against the
// current phase, write the response. Protocol errors, socket errors and
// cancellation all end the loop through Disconnect.
func (s *Session) Run(ctx context.Context) {
	// Unblock the pending read when the server shuts down.
	stop := context.AfterFunc(ctx, func() {
		s.Disconnect("server shutting down")
	})
	defer stop()
	defer s.Disconnect("connection loop finished")

	reader := bufio.NewReaderSize(s.conn, s.bufferSize)
	for {
		pkt, err := wire.ReadFrame(reader, s.maxPacketSize)
		if err != nil {
			var protoErr *wire.ProtocolError
			switch {
			case errors.As(err, &protoErr):
				s.logger.Warn("protocol error", zap.Error(err))
			case errors.Is(err, io.EOF):
				s.logger.Debug("client closed connection")
			default:
				if s.Phase() != PhaseDisconnecting {
					s.logger.Warn("read failed", zap.Error(err))
				}
			}
			return
		}

		s.touch()
		resp := s.handle(pkt)
		if resp == nil {
			continue
		}
		if err := s.writeResponse(resp); err != nil {
			s.logger.Warn("write failed", zap.Error(err))
			return
		}
		if s.Phase() == PhaseDisconnecting {
			return
		}
	}
}

// handle dispatches one packet against the current phase.
func (s *Session) handle(pkt *wire.Packet) *wire.Packet {
	s.logger.Debug("request",
		zap.String("command", commands.Name(pkt.CommandCode)),
		zap.String("phase", s.Phase().String()))

	switch s.Phase() {
	case PhaseAuthRequired:
		return s.handleAuthRequired(pkt)
	case PhaseAuthenticated:
		return s.handleAuthenticated(pkt)
	case PhaseTransfer:
		return s.handleTransfer(pkt)
	default:
		return wire.NewErrorResponse(pkt, "session is in state Disconnecting")
	}
}

func (s *Session) rejectForPhase(pkt *wire.Packet) *wire.Packet {
	msg := fmt.Sprintf("command %s is not allowed in state %s",
		commands.Name(pkt.CommandCode), s.Phase())
	if s.Phase() == PhaseAuthRequired {
		return wire.NewUnauthorizedResponse(pkt, msg)
	}
	return wire.NewErrorResponse(pkt, msg)
}

// checkUserID enforces that a packet claiming a user id matches the
// session's authenticated user.
func (s *Session) checkUserID(pkt *wire.Packet) *wire.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pkt.UserID != "" && s.userID != "" && pkt.UserID != s.userID {
		return wire.NewErrorResponse(pkt, "packet user id does not match session user")
	}
	return nil
}

func (s *Session) handleAuthRequired(pkt *wire.Packet) *wire.Packet {
	switch pkt.CommandCode {
	case commands.CreateAccountRequest:
		return s.dispatcher.CreateAccount(s, pkt)

	case commands.LoginRequest:
		resp, ok := s.dispatcher.Login(s, pkt)
		if ok {
			s.mu.Lock()
			s.phase = PhaseAuthenticated
			s.mu.Unlock()
			return resp
		}
		s.mu.Lock()
		s.failedLogins++
		exhausted := s.failedLogins >= constants.MaxFailedLoginAttempts
		s.mu.Unlock()
		if exhausted {
			final := wire.NewLoginResponse(pkt, false,
				"too many failed login attempts, disconnecting", "")
			if err := s.writeResponse(final); err != nil {
				s.logger.Debug("failed to write final login response", zap.Error(err))
			}
			s.Disconnect("too many failed login attempts")
			return nil
		}
		return resp

	default:
		return s.rejectForPhase(pkt)
	}
}

func (s *Session) handleAuthenticated(pkt *wire.Packet) *wire.Packet {
	if resp := s.checkUserID(pkt); resp != nil {
		return resp
	}

	switch pkt.CommandCode {
	case commands.LogoutRequest:
		resp := wire.NewStatusResponse(pkt, true, "logged out")
		if err := s.writeResponse(resp); err != nil {
			s.logger.Debug("failed to write logout response", zap.Error(err))
		}
		s.Disconnect("logout")
		return nil

	case commands.FileListRequest:
		return s.dispatcher.FileList(s, pkt)

	case commands.FileUploadInitRequest:
		resp, meta := s.dispatcher.UploadInit(s, pkt)
		if meta != nil {
			s.enterTransfer(DirectionUpload, meta)
		}
		return resp

	case commands.FileDownloadInitRequest:
		resp, meta := s.dispatcher.DownloadInit(s, pkt)
		if meta != nil {
			s.enterTransfer(DirectionDownload, meta)
		}
		return resp

	case commands.FileDeleteRequest:
		return s.dispatcher.FileDelete(s, pkt)

	case commands.FileMoveRequest:
		return s.dispatcher.FileMove(s, pkt)

	case commands.DirectoryContentsRequest:
		return s.dispatcher.DirectoryContents(s, pkt)

	case commands.DirectoryCreateRequest:
		return s.dispatcher.DirectoryCreate(s, pkt)

	case commands.DirectoryDeleteRequest:
		return s.dispatcher.DirectoryDelete(s, pkt)

	default:
		return s.rejectForPhase(pkt)
	}
}

func (s *Session) enterTransfer(dir Direction, meta *filemeta.FileMetadata) {
	s.mu.Lock()
	s.phase = PhaseTransfer
	s.transfer = &transfer{direction: dir, file: meta}
	s.mu.Unlock()
	s.logger.Info("transfer started",
		zap.String("direction", dir.String()),
		zap.String("fileId", meta.ID))
}

// leaveTransfer returns the session to Authenticated, aborting any upload
// hash state when the transfer did not finish cleanly.
func (s *Session) leaveTransfer(abort bool) {
	s.mu.Lock()
	t := s.transfer
	s.transfer = nil
	s.phase = PhaseAuthenticated
	s.mu.Unlock()
	if abort && t != nil && t.direction == DirectionUpload {
		s.dispatcher.files.AbortUpload(t.file.ID)
	}
}

func (s *Session) currentTransfer() *transfer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transfer
}

func (s *Session) handleTransfer(pkt *wire.Packet) *wire.Packet {
	if resp := s.checkUserID(pkt); resp != nil {
		return resp
	}
	t := s.currentTransfer()
	if t == nil {
		s.leaveTransfer(false)
		return wire.NewErrorResponse(pkt, "no transfer in progress")
	}

	switch pkt.CommandCode {
	case commands.FileUploadChunkRequest, commands.FileUploadCompleteRequest,
		commands.FileDownloadChunkRequest, commands.FileDownloadCompleteRequest:
		// Transfer commands must reference the file this transfer is
		// bound to; a mismatch aborts the transfer.
		if fileID := pkt.Meta(wire.MetaFileID); fileID != t.file.ID {
			s.leaveTransfer(true)
			return wire.NewErrorResponse(pkt,
				fmt.Sprintf("file id %q does not match the active transfer", fileID))
		}
	default:
		return s.rejectForPhase(pkt)
	}

	switch {
	case t.direction == DirectionUpload && pkt.CommandCode == commands.FileUploadChunkRequest:
		resp, ok := s.dispatcher.UploadChunk(s, pkt, t.file.ID)
		if !ok {
			s.leaveTransfer(true)
		}
		return resp

	case t.direction == DirectionUpload && pkt.CommandCode == commands.FileUploadCompleteRequest:
		resp := s.dispatcher.UploadComplete(s, pkt, t.file.ID)
		s.leaveTransfer(false)
		return resp

	case t.direction == DirectionDownload && pkt.CommandCode == commands.FileDownloadChunkRequest:
		resp, ok := s.dispatcher.DownloadChunk(s, pkt, t.file.ID)
		if !ok {
			s.leaveTransfer(true)
		}
		return resp

	case t.direction == DirectionDownload && pkt.CommandCode == commands.FileDownloadCompleteRequest:
		resp := wire.NewDownloadCompleteResponse(pkt, true, t.file.ID, "download complete")
		s.leaveTransfer(false)
		return resp

	default:
		return s.rejectForPhase(pkt)
	}
}
