package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server is the reference delivery server: the websocket push channel
// plus the HTTP message API on one listener.
type Server struct {
	addr    string
	hub     *Hub
	history *HistoryStore
	api     *API
	bridge  *RedisBridge
	log     *zap.Logger

	listener   net.Listener
	httpServer *http.Server
	runCtx     context.Context
	runCancel  context.CancelFunc
	quit       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// New creates a Server. bridge may be nil for single-instance fan-out;
// a nil logger is replaced with a no-op.
func New(addr string, bridge *RedisBridge, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	history := NewHistoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		hub:       NewHub(),
		history:   history,
		api:       NewAPI(history, log),
		bridge:    bridge,
		log:       log,
		runCtx:    ctx,
		runCancel: cancel,
		quit:      make(chan struct{}),
	}
}

// Start listens and serves until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	r := mux.NewRouter()
	s.api.Routes(r)
	r.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Handler: r}

	if s.bridge != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.bridge.Run(s.runCtx, s.hub)
		}()
	}

	s.log.Info("server started", zap.String("addr", listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed: %w", err)
	case <-s.quit:
		return nil
	}
}

// Stop shuts the server down. Safe to call more than once.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.runCancel()
		if s.httpServer != nil {
			s.httpServer.Close()
		}
		if s.bridge != nil {
			s.bridge.Close()
		}
		s.wg.Wait()
		s.log.Info("server stopped")
	})
}

// Addr returns the listening address once Start has bound it.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
