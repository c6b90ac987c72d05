package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/events"
	"github.com/room4-2/auralis/gemini"
	"github.com/room4-2/auralis/logging"
	"github.com/room4-2/auralis/transcript"
)

// transcriptTTL is how long a finished call's transcript stays in Redis.
const transcriptTTL = 7 * 24 * time.Hour

// ErrMaxSessions is returned when the session cap is reached.
var ErrMaxSessions = errors.New("maximum sessions reached")

// HandlerFactory builds the tool handler bound to one call's state.
type HandlerFactory func(state *State, logger *zap.Logger) ToolHandler

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex

	redis    *redis.Client
	config   *config.Config
	client   *genai.Client
	tools    []*genai.Tool
	handlers HandlerFactory
	logger   *zap.Logger
	now      func() time.Time
}

// NewManager creates a session manager. Redis is optional: when it can't be
// reached the registry, transcript snapshots and event pub/sub are skipped.
func NewManager(cfg *config.Config, client *genai.Client, tools []*genai.Tool, handlers HandlerFactory, logger *zap.Logger) *Manager {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, continuing without it", zap.String("addr", cfg.RedisURL), zap.Error(err))
		_ = redisClient.Close()
		redisClient = nil
	}

	return &Manager{
		sessions: make(map[string]*ClientSession),
		redis:    redisClient,
		config:   cfg,
		client:   client,
		tools:    tools,
		handlers: handlers,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateSession creates a new browser session
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	return sm.create(ctx, clientConn, false)
}

// CreateTwilioSession creates a new Twilio voice call session
func (sm *Manager) CreateTwilioSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	return sm.create(ctx, clientConn, true)
}

func (sm *Manager) create(ctx context.Context, clientConn *websocket.Conn, isTwilio bool) (*ClientSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, ErrMaxSessions
	}

	sessionID := uuid.New().String()
	logger := sm.logger.With(zap.String("session", logging.ShortID(sessionID)), zap.Bool("twilio", isTwilio))

	proxy := gemini.NewProxy(sm.client, logger)
	if err := proxy.Setup(ctx, SystemPrompt(sm.now()), sm.tools); err != nil {
		return nil, fmt.Errorf("failed to setup gemini: %w", err)
	}

	state := NewState(sessionID)
	var sinks []events.Sink
	if sm.redis != nil {
		sinks = append(sinks, events.NewRedisSink(sm.redis, sessionID))
	}

	session := newClientSession(sessionID, clientConn, isTwilio, callOptions{
		proxy:         proxy,
		tools:         sm.handlers(state, logger),
		state:         state,
		sinks:         sinks,
		maxBufferSize: sm.config.MaxBufferSize,
		logger:        logger,
	})

	sm.storeSession(ctx, sessionID, session)
	logger.Info("session created", zap.Int("active", len(sm.sessions)))
	return session, nil
}

// storeSession saves a session to memory and Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, session *ClientSession) {
	sm.sessions[sessionID] = session

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]any{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity.Format(time.RFC3339),
			"status":        "active",
			"is_twilio":     session.IsTwilio,
		})
		sm.redis.SAdd(ctx, "active_sessions", sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession closes a session, snapshots its transcript and forgets it.
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	session, exists := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if !exists {
		return nil
	}
	sm.endSession(ctx, session)
	return nil
}

// endSession runs without sm.mu held so slow Redis calls don't block new
// callers. The session must already be out of the map.
func (sm *Manager) endSession(ctx context.Context, session *ClientSession) {
	_ = session.Close()

	if sm.redis == nil {
		return
	}
	if err := sm.saveTranscript(ctx, session); err != nil {
		session.logger.Warn("failed to save transcript", zap.Error(err))
	}
	sm.redis.Del(ctx, "session:"+session.ID)
	sm.redis.SRem(ctx, "active_sessions", session.ID)
}

func (sm *Manager) saveTranscript(ctx context.Context, session *ClientSession) error {
	body, err := encodeTranscript(session.History)
	if err != nil || body == nil {
		return err
	}
	return sm.redis.Set(ctx, TranscriptKey(session.ID), body, transcriptTTL).Err()
}

// encodeTranscript serializes the full call, not the pruned model context.
// It returns nil for a call with no turns.
func encodeTranscript(h *transcript.History) ([]byte, error) {
	turns := h.Transcript()
	if len(turns) == 0 {
		return nil, nil
	}
	body, err := sonic.Marshal(turns)
	if err != nil {
		return nil, fmt.Errorf("encode transcript: %w", err)
	}
	return body, nil
}

// TranscriptKey is the Redis key holding a finished call's transcript.
func TranscriptKey(sessionID string) string {
	return "transcript:" + sessionID
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions idle for longer than the
// configured timeout.
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	now := sm.now()

	sm.mu.Lock()
	var stale []*ClientSession
	for id, session := range sm.sessions {
		if session.IsClosed() || session.Idle(now) > sm.config.SessionTimeout {
			stale = append(stale, session)
			delete(sm.sessions, id)
		}
	}
	sm.mu.Unlock()

	for _, session := range stale {
		session.logger.Info("removing inactive session")
		sm.endSession(ctx, session)
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown(ctx context.Context) {
	sm.mu.Lock()
	all := make([]*ClientSession, 0, len(sm.sessions))
	for id, session := range sm.sessions {
		all = append(all, session)
		delete(sm.sessions, id)
	}
	sm.mu.Unlock()

	for _, session := range all {
		sm.endSession(ctx, session)
	}

	if sm.redis != nil {
		_ = sm.redis.Close()
	}
}
