// Package bridge accepts TCP connections carrying raw wiimote frames and
// runs one decode session per connection.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/wiistream/device/wiimote"
	"github.com/Alia5/wiistream/internal/log"
	"github.com/Alia5/wiistream/internal/server/auth"
	"github.com/Alia5/wiistream/internal/transport"
)

// Config represents the serve subcommand's listener configuration.
type Config struct {
	Addr             string        `help:"Bridge listen address" default:":3780" env:"WIISTREAM_SERVE_ADDR"`
	Password         string        `help:"Require the encrypted handshake with this password" env:"WIISTREAM_SERVE_PASSWORD"`
	ReadTimeout      time.Duration `help:"Close a session when no frame arrives within this duration (0 disables)" default:"0s" env:"WIISTREAM_SERVE_READ_TIMEOUT"`
	HandshakeTimeout time.Duration `help:"Time allowed for the auth handshake" default:"5s" env:"WIISTREAM_SERVE_HANDSHAKE_TIMEOUT"`
}

// DeviceFactory creates the device collaborator for a new session.
type DeviceFactory func(session string, remote net.Addr) wiimote.Device

// SessionInfo describes an active session.
type SessionInfo struct {
	ID      string
	Remote  string
	Started time.Time
	Frames  uint64
}

type session struct {
	streamer *wiimote.Streamer
	remote   string
	started  time.Time
}

// Server is the frame bridge.
type Server struct {
	cfg       Config
	key       []byte
	newDevice DeviceFactory
	logger    *slog.Logger
	raw       log.RawLogger

	ln     net.Listener
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	sessions map[string]*session
	closed   bool
}

// New creates a bridge server. With a password in cfg every client must
// complete the auth handshake before frames are decoded.
func New(cfg Config, factory DeviceFactory, logger *slog.Logger, raw log.RawLogger) (*Server, error) {
	s := &Server{
		cfg:       cfg,
		newDevice: factory,
		logger:    logger,
		raw:       raw,
		conns:     map[net.Conn]struct{}{},
		sessions:  map[string]*session{},
	}
	if cfg.Password != "" {
		key, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			return nil, err
		}
		s.key = key
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Start listens on the configured address and serves incoming connections.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("bridge listening", "addr", ln.Addr().String(), "auth", s.key != nil)
	s.wg.Add(1)
	go s.serve()
	return nil
}

// Addr returns the listen address once started.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Sessions returns the active sessions ordered by start time.
func (s *Server) Sessions() []SessionInfo {
	s.mu.Lock()
	out := make([]SessionInfo, 0, len(s.sessions))
	for id, ss := range s.sessions {
		out = append(out, SessionInfo{ID: id, Remote: ss.remote, Started: ss.started, Frames: ss.streamer.Frames()})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Started.Before(out[j].Started) })
	return out
}

// Close stops accepting, ends all sessions and waits for them to finish.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for _, ss := range s.sessions {
		ss.streamer.RequestStop()
	}
	// Closing the raw conns also aborts handshakes in progress.
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(strings.ToLower(err.Error()), "use of closed network connection") {
				s.logger.Info("bridge stopped")
				return
			}
			s.logger.Error("bridge accept error", "error", err)
			return
		}
		s.wg.Add(1)
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()
	if !s.track(conn) {
		return
	}
	defer s.untrack(conn)

	connLogger := s.logger.With("remote", conn.RemoteAddr().String())
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	if s.key != nil {
		if s.cfg.HandshakeTimeout > 0 {
			_ = conn.SetDeadline(time.Now().Add(s.cfg.HandshakeTimeout))
		}
		secured, err := auth.Accept(conn, s.key)
		if err != nil {
			connLogger.Warn("bridge handshake failed", "error", err)
			return
		}
		_ = conn.SetDeadline(time.Time{})
		conn = secured
	}

	id := uuid.NewString()
	connLogger = connLogger.With("session", id)
	dev := s.newDevice(id, conn.RemoteAddr())
	st := wiimote.NewStreamer(
		transport.NewConnSource(conn, s.cfg.ReadTimeout),
		dev,
		wiimote.WithSessionID(id),
		wiimote.WithLogger(s.logger.With("remote", conn.RemoteAddr().String())),
		wiimote.WithRawLogger(s.raw),
	)

	if !s.add(id, &session{streamer: st, remote: conn.RemoteAddr().String(), started: time.Now()}) {
		return
	}
	defer s.remove(id)

	connLogger.Info("session opened")
	err := st.Run(s.ctx)
	if err != nil && s.ctx.Err() == nil {
		connLogger.Info("session closed", "frames", st.Frames(), "error", err)
		return
	}
	connLogger.Info("session closed", "frames", st.Frames())
}

func (s *Server) track(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) add(id string, ss *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.sessions[id] = ss
	return true
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}
