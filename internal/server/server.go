package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/kuraysdev/Vint/internal/config"
	"github.com/kuraysdev/Vint/internal/ecs"
	"github.com/kuraysdev/Vint/internal/protocol"
	"go.uber.org/zap"
)

// Server owns the listening socket and the set of live connections.
type Server struct {
	cfg      config.NetworkConfig
	registry *protocol.Registry
	entities *ecs.Registry
	log      *zap.Logger

	ln net.Listener

	mu    sync.Mutex
	conns map[*Connection]struct{}
}

func New(cfg config.NetworkConfig, registry *protocol.Registry, entities *ecs.Registry, log *zap.Logger) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		entities: entities,
		log:      log.Named("server"),
		conns:    make(map[*Connection]struct{}),
	}
}

// ListenAndServe accepts clients until ctx is cancelled, then closes the
// listener and every live connection.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.BindAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.BindAddress, err)
	}
	s.ln = ln
	s.log.Info("listening", zap.String("addr", s.cfg.BindAddress))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.shutdown()
				return nil
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}
		s.handle(conn)
	}
}

func (s *Server) handle(raw net.Conn) {
	if tc, ok := raw.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}

	c := NewConnection(raw, s.registry, s.entities,
		s.cfg.ExecuteQueueSize, s.cfg.SendQueueSize, s.cfg.WriteTimeout, s.log)
	s.track(c)
	c.log.Info("connection accepted", zap.String("remote", raw.RemoteAddr().String()))
	c.Start()
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-c.closeCh
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
	}()
}

// ConnectionCount reports the number of live connections.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) shutdown() {
	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.log.Info("server stopped", zap.Int("connections_closed", len(conns)))
}
