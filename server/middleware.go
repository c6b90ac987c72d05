package server

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/room4-2/auralis/messages"
)

// calendar writes per client IP
const (
	calendarWritesPerMinute = 30
	calendarWriteBurst      = 10
)

// corsMiddleware lets the staff calendar UI call the API from its own origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// limiterTTL is how long an idle client's limiter is kept.
const limiterTTL = 10 * time.Minute

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type ipLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	every     time.Duration
	burst     int
	lastSweep time.Time
}

func newIPLimiters(perMinute, burst int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*ipLimiter),
		every:    time.Minute / time.Duration(perMinute),
		burst:    burst,
	}
}

func (l *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > limiterTTL {
		l.sweepLocked(now)
	}

	entry, ok := l.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Every(l.every), l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// sweepLocked drops limiters idle for longer than limiterTTL. An idle
// limiter has refilled its burst, so dropping it loses no state.
func (l *ipLimiters) sweepLocked(now time.Time) {
	for ip, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterTTL {
			delete(l.limiters, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// rateLimit allows perMinute requests per client IP with the given burst.
func rateLimit(perMinute, burst int, logger *zap.Logger) gin.HandlerFunc {
	store := newIPLimiters(perMinute, burst)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip, time.Now()).Allow() {
			logger.Warn("rate limit exceeded", zap.String("ip", ip), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": messages.ErrCodeRateLimited})
			return
		}
		c.Next()
	}
}
