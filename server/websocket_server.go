package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/messages"
	"github.com/room4-2/auralis/session"
)

// Server serves browser calls on /ws plus the staff calendar API.
type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	logger         *zap.Logger
}

// NewServerWebsocket builds the browser-facing server. store may be nil when
// no booking backend is configured.
func NewServerWebsocket(cfg *config.Config, sessionManager *session.Manager, calendar *CalendarHandler, store Pinger, logger *zap.Logger) *Server {
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		logger:         logger.With(zap.String("server", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // 64KB for audio chunks
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin:       originChecker(cfg.AllowedOrigins),
		},
	}

	r := newEngine(s.logger)
	// engine-wide so unrouted preflight requests are answered too
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	r.GET("/ws", s.handleWebSocket)
	r.GET("/health", healthHandler("websocket", sessionManager, store))
	if calendar != nil {
		calendar.Register(r)
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("websocket server starting",
		zap.String("addr", s.httpServer.Addr),
		zap.String("endpoint", fmt.Sprintf("ws://localhost:%d/ws", s.config.Port)))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down websocket server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// the request context ends with the handler, the Live session must not
	clientSession, err := s.sessionManager.CreateSession(context.Background(), conn)
	if err != nil {
		s.logger.Error("failed to create session", zap.Error(err))
		_ = conn.WriteJSON(messages.NewErrorMessage("", messages.ErrCodeSessionFailed, err.Error()))
		_ = conn.Close()
		return
	}

	clientSession.Start()
	<-clientSession.CloseChan

	_ = s.sessionManager.RemoveSession(context.Background(), clientSession.ID)
}
