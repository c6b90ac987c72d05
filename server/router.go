package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger reports whether the booking backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SessionCounter reports the number of live calls.
type SessionCounter interface {
	GetActiveSessionCount() int
}

func newEngine(logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	return r
}

// requestLogger logs plain HTTP requests. WebSocket upgrades are logged by
// the session once it exists.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.IsWebsocket() {
			return
		}
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// healthHandler reports session count and store reachability. A down store
// does not fail the check: calls still work, only bookings degrade.
func healthHandler(server string, sessions SessionCounter, store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		storeStatus := "connected"
		if store == nil {
			storeStatus = "disconnected"
		} else {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := store.Ping(ctx); err != nil {
				storeStatus = "disconnected"
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"server":   server,
			"sessions": sessions.GetActiveSessionCount(),
			"store":    storeStatus,
		})
	}
}
