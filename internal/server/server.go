// Package server is the FileLink storage server: the TCP listener, the
// per-connection session loops, the command handlers and the session
// manager that sweeps idle connections.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"

	"github.com/sxlmons/filelink/internal/service"
	"github.com/sxlmons/filelink/internal/storage"
	"github.com/sxlmons/filelink/internal/store/dirmeta"
	"github.com/sxlmons/filelink/internal/store/filemeta"
	"github.com/sxlmons/filelink/internal/store/users"
	"github.com/sxlmons/filelink/pkg/config"
)

// Server wires the stores, services and listener together. All
// configuration is passed at construction; nothing reads globals.
type Server struct {
	cfg        *config.Config
	users      *users.Store
	storage    *storage.Store
	dispatcher *Dispatcher
	manager    *Manager
	logger     *zap.Logger

	listener net.Listener
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New builds a server from configuration, opening the stores.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	userStore, err := users.New(cfg.UsersPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open user store: %w", err)
	}

	st, err := storage.New(cfg.FileStoragePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	files := filemeta.New(cfg.MetadataPath, logger)
	dirs := dirmeta.New(cfg.MetadataPath, logger)
	svc := service.NewFiles(files, dirs, st, logger)

	return &Server{
		cfg:        cfg,
		users:      userStore,
		storage:    st,
		dispatcher: NewDispatcher(userStore, svc, logger),
		manager:    NewManager(cfg.MaxConcurrentClients, cfg.SessionTimeout(), logger),
		logger:     logger.Named("server"),
	}, nil
}

// Manager exposes the session manager, for tests and admin tooling.
func (s *Server) Manager() *Manager { return s.manager }

// Addr returns the bound listen address once the server has started.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Start binds the listener and begins accepting connections. It returns
// once the listener is bound; the accept loop and sweeper run until
// Shutdown.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ln, err := net.Listen("tcp", s.cfg.ListenAddr())
	if err != nil {
		cancel()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddr(), err)
	}
	s.listener = ln
	s.logger.Info("listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("maxClients", s.cfg.MaxConcurrentClients))

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.manager.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx)
	}()

	// Close the listener when the context ends so Accept unblocks.
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("accept failed", zap.Error(err))
			continue
		}

		sess := NewSession(conn, s.dispatcher,
			s.cfg.MaxPacketSize, s.cfg.NetworkBufferSize, s.logger)
		if err := s.manager.Add(sess); err != nil {
			s.logger.Warn("connection rejected",
				zap.String("remote", conn.RemoteAddr().String()),
				zap.Error(err))
			conn.Close()
			continue
		}

		s.logger.Info("connection accepted",
			zap.String("sessionId", sess.ID),
			zap.String("remote", conn.RemoteAddr().String()))

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.manager.Remove(sess.ID)
			sess.Run(ctx)
		}()
	}
}

// Shutdown broadcasts a disconnect to every session, waits for their loops
// and releases the storage lock.
func (s *Server) Shutdown() {
	s.logger.Info("shutting down")
	if s.cancel != nil {
		s.cancel()
	}
	s.manager.DisconnectAll("server shutting down")
	s.wg.Wait()
	if s.listener != nil {
		s.listener.Close()
	}
	if err := s.storage.Close(); err != nil {
		s.logger.Warn("failed to release storage lock", zap.Error(err))
	}
	s.logger.Info("shutdown complete")
}
