// Package server runs the WebSocket endpoint edge clients stream audio
// to and receive audio from.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/soyeahso/gerald/internal/config"
	"github.com/soyeahso/gerald/internal/logging"
	"github.com/soyeahso/gerald/internal/session"
)

// maxFrameBytes caps a single frame; streamed utterances are a few
// hundred KB of PCM at most.
const maxFrameBytes = 8 * 1024 * 1024

// HandlerFactory builds the session orchestrator for a new connection.
type HandlerFactory func(t session.Transport) *session.Handler

// Server accepts client connections and hands each one to a session
// handler.
type Server struct {
	cfg        config.ServerConfig
	newHandler HandlerFactory
	log        *logging.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// New creates a server. The factory is invoked once per connection.
func New(cfg config.ServerConfig, newHandler HandlerFactory, log *logging.Logger) *Server {
	return &Server{
		cfg:        cfg,
		newHandler: newHandler,
		log:        log.Sub("server"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// resolveBindAddr computes the listen address from config.
func resolveBindAddr(cfg config.ServerConfig) string {
	switch cfg.Bind {
	case "loopback":
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	case "lan":
		return fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	case "custom":
		host := cfg.CustomBindHost
		if host == "" {
			host = "0.0.0.0"
		}
		return fmt.Sprintf("%s:%d", host, cfg.Port)
	default:
		return fmt.Sprintf("127.0.0.1:%d", cfg.Port)
	}
}

// Start begins listening for WebSocket connections. It blocks until the
// context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	addr := resolveBindAddr(s.cfg)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.handleWebSocket(ctx, w, r)
	})

	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.log.Info().Str("addr", ln.Addr().String()).Msg("server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the server's listen address, or empty string if not started.
func (s *Server) Addr() string {
	if s.httpServer != nil {
		return s.httpServer.Addr
	}
	return ""
}

// handleWebSocket upgrades the connection and runs its read loop.
func (s *Server) handleWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	sock.SetReadLimit(maxFrameBytes)

	conn := NewConn(sock)
	defer conn.Close()

	s.log.Info().Str("connId", conn.ID).Str("remote", r.RemoteAddr).Msg("client connected")

	handler := s.newHandler(conn)
	defer handler.HandleClose()
	go handler.Run(ctx)

	s.readLoop(ctx, conn, handler)

	s.log.Info().Str("connId", conn.ID).Msg("client disconnected")
}

// readLoop routes inbound frames to the session handler by tag.
func (s *Server) readLoop(ctx context.Context, conn *Conn, handler *session.Handler) {
	for {
		tag, payload, err := conn.ReadFrame()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Str("connId", conn.ID).Msg("read error")
			}
			return
		}

		switch tag {
		case TagJSON:
			if err := handler.HandleJSON(ctx, payload); err != nil {
				s.log.Error().Err(err).Str("connId", conn.ID).Msg("closing connection")
				return
			}
		case TagAudio:
			handler.HandleAudio(ctx, payload)
		default:
			s.log.Warn().
				Str("connId", conn.ID).
				Str("tag", string(tag)).
				Int("payloadBytes", len(payload)).
				Msg("unexpected frame tag")
		}
	}
}
