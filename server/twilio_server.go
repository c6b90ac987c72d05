package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/session"
)

// WebsocketTwilio serves phone calls: /voice returns TwiML pointing Twilio
// at the /stream media WebSocket.
type WebsocketTwilio struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	logger         *zap.Logger
}

// NewServerWebsocketTwilio builds the Twilio-facing server.
func NewServerWebsocketTwilio(cfg *config.Config, sessionManager *session.Manager, store Pinger, logger *zap.Logger) *WebsocketTwilio {
	s := &WebsocketTwilio{
		sessionManager: sessionManager,
		config:         cfg,
		logger:         logger.With(zap.String("server", "twilio")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			// Twilio doesn't support WebSocket compression
			EnableCompression: false,
			// Twilio sends no browser Origin header
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := newEngine(s.logger)
	r.GET("/stream", s.handleWebsocketTwilio)
	r.Any("/voice", s.handleVoiceCall)
	r.GET("/health", healthHandler("twilio", sessionManager, store))

	// standalone Twilio server uses the main port
	port := cfg.TwilioPort
	if cfg.ServerType == "twilio" {
		port = cfg.Port
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
		// No ReadTimeout/WriteTimeout: they would cut long-lived media streams.
	}
	return s
}

// Start begins listening for connections
func (s *WebsocketTwilio) Start() error {
	s.logger.Info("twilio server starting",
		zap.String("addr", s.httpServer.Addr),
		zap.String("stream", "/stream"),
		zap.String("voice", "/voice"))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *WebsocketTwilio) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down twilio server")
	return s.httpServer.Shutdown(ctx)
}

func (s *WebsocketTwilio) handleWebsocketTwilio(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("twilio websocket upgrade failed", zap.Error(err))
		return
	}

	clientSession, err := s.sessionManager.CreateTwilioSession(context.Background(), conn)
	if err != nil {
		s.logger.Error("failed to create twilio session", zap.Error(err))
		_ = conn.Close()
		return
	}

	clientSession.StartTwilio()
	<-clientSession.CloseChan

	_ = s.sessionManager.RemoveSession(context.Background(), clientSession.ID)
}

func (s *WebsocketTwilio) handleVoiceCall(c *gin.Context) {
	c.Data(http.StatusOK, "text/xml", []byte(twiml("wss://"+c.Request.Host+"/stream")))
}

func twiml(streamURL string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Response>
	<Connect>
		<Stream url="%s" />
	</Connect>
</Response>`, streamURL)
}

// GetAddr returns the server's listen address
func (s *WebsocketTwilio) GetAddr() string {
	return s.httpServer.Addr
}
