package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/config"
	"github.com/room4-2/auralis/transcript"
)

func newTestManager(timeout time.Duration, now time.Time) *Manager {
	return &Manager{
		sessions: make(map[string]*ClientSession),
		config:   &config.Config{SessionTimeout: timeout, MaxSessions: 2},
		logger:   zap.NewNop(),
		now:      func() time.Time { return now },
	}
}

func TestCleanupInactiveSessions(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	sm := newTestManager(30*time.Minute, now)

	idle, idleLive, _ := newTestSession()
	idle.ID = "idle"
	idle.LastActivity = now.Add(-time.Hour)

	active, activeLive, _ := newTestSession()
	active.ID = "active"
	active.LastActivity = now.Add(-time.Minute)

	sm.sessions[idle.ID] = idle
	sm.sessions[active.ID] = active

	sm.CleanupInactiveSessions(context.Background())

	if _, ok := sm.GetSession("idle"); ok {
		t.Fatalf("idle session should be removed")
	}
	if !idle.IsClosed() || !idleLive.closed {
		t.Fatalf("idle session should be closed")
	}
	if _, ok := sm.GetSession("active"); !ok {
		t.Fatalf("active session should remain")
	}
	if active.IsClosed() || activeLive.closed {
		t.Fatalf("active session should stay open")
	}
	if n := sm.GetActiveSessionCount(); n != 1 {
		t.Fatalf("expected 1 session, got %d", n)
	}
}

func TestRemoveAndShutdown(t *testing.T) {
	sm := newTestManager(time.Hour, time.Now())

	a, _, _ := newTestSession()
	a.ID = "a"
	b, _, _ := newTestSession()
	b.ID = "b"
	sm.sessions["a"] = a
	sm.sessions["b"] = b

	if err := sm.RemoveSession(context.Background(), "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := sm.RemoveSession(context.Background(), "missing"); err != nil {
		t.Fatalf("removing an unknown session should be a no-op: %v", err)
	}
	if !a.IsClosed() || sm.GetActiveSessionCount() != 1 {
		t.Fatalf("expected a closed and one session left")
	}

	sm.Shutdown(context.Background())
	if !b.IsClosed() || sm.GetActiveSessionCount() != 0 {
		t.Fatalf("expected all sessions closed on shutdown")
	}
}

func TestTranscriptKey(t *testing.T) {
	if got := TranscriptKey("abc"); got != "transcript:abc" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestEndingSessionsDoesNotHoldManagerLock(t *testing.T) {
	sm := newTestManager(time.Minute, time.Now())

	// each teardown checks that the registry is still usable while it runs
	var blocked []string
	track := func(id string, live *fakeLive) {
		live.onClose = func() {
			done := make(chan struct{})
			go func() {
				sm.GetActiveSessionCount()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(time.Second):
				blocked = append(blocked, id)
			}
		}
	}

	removed, removedLive, _ := newTestSession()
	removed.ID = "removed"
	track(removed.ID, removedLive)

	stale, staleLive, _ := newTestSession()
	stale.ID = "stale"
	stale.LastActivity = time.Now().Add(-time.Hour)
	track(stale.ID, staleLive)

	last, lastLive, _ := newTestSession()
	last.ID = "last"
	last.LastActivity = time.Now()
	track(last.ID, lastLive)

	sm.sessions[removed.ID] = removed
	sm.sessions[stale.ID] = stale
	sm.sessions[last.ID] = last

	_ = sm.RemoveSession(context.Background(), removed.ID)
	sm.CleanupInactiveSessions(context.Background())
	sm.Shutdown(context.Background())

	if len(blocked) != 0 {
		t.Fatalf("manager lock held while ending sessions: %v", blocked)
	}
	if !removedLive.closed || !staleLive.closed || !lastLive.closed {
		t.Fatalf("expected every session closed")
	}
}

func TestEncodeTranscriptKeepsWholeCall(t *testing.T) {
	cs, _, _ := newTestSession()

	cs.greet()
	cs.onAgentTranscript(Greeting)
	cs.commitAgentUtterance()
	for i := 1; i <= 6; i++ {
		cs.onUserTranscript(fmt.Sprintf("question %d", i))
		cs.onAgentTranscript(fmt.Sprintf("answer %d", i))
		cs.commitAgentUtterance()
	}
	if n := cs.History.Len(); n != transcript.DefaultMaxTurns {
		t.Fatalf("model context should stay bounded, got %d turns", n)
	}

	body, err := encodeTranscript(cs.History)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var turns []transcript.Turn
	if err := sonic.Unmarshal(body, &turns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(turns) != 13 {
		t.Fatalf("expected greeting plus 12 turns, got %d", len(turns))
	}
	if turns[0].Text != Greeting || turns[1].Text != "question 1" || turns[12].Text != "answer 6" {
		t.Fatalf("unexpected transcript order: first=%q second=%q last=%q", turns[0].Text, turns[1].Text, turns[12].Text)
	}

	empty, err := encodeTranscript(transcript.NewHistory(transcript.DefaultMaxTurns))
	if err != nil || empty != nil {
		t.Fatalf("empty call should encode to nil, got %q, %v", empty, err)
	}
}
