package events

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
)

// Event types mirrored to the observer UI.
const (
	TypeUserTranscript  = "user_transcript"
	TypeAgentTranscript = "agent_transcript"
	TypeState           = "state"
)

// DefaultBufferSize is the bus capacity used per call.
const DefaultBufferSize = 64

// Event is one side-channel message.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// UserTranscript is a committed caller utterance.
func UserTranscript(text string) Event {
	return Event{Type: TypeUserTranscript, Data: map[string]any{"text": text}}
}

// AgentTranscript is a committed agent utterance.
func AgentTranscript(text string) Event {
	return Event{Type: TypeAgentTranscript, Data: map[string]any{"text": text}}
}

// State is an agent state change such as "listening" or "speaking".
func State(status string) Event {
	return Event{Type: TypeState, Data: map[string]any{"status": status}}
}

// Encode returns the JSON wire form.
func (e Event) Encode() ([]byte, error) {
	return sonic.Marshal(e)
}

// Bus is a bounded, fire-and-forget event queue. Publish never blocks: when
// the buffer is full the event is dropped.
type Bus struct {
	ch      chan Event
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewBus returns a bus holding up to size events.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Bus{ch: make(chan Event, size)}
}

// Publish enqueues e and reports whether it was accepted.
func (b *Bus) Publish(e Event) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false
	}
	select {
	case b.ch <- e:
		return true
	default:
		b.dropped.Add(1)
		return false
	}
}

// Dropped returns how many events were discarded because the bus was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events. Queued events remain readable.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// Events is the receive side drained by a Relay.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Sink receives relayed events.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Send(ctx context.Context, e Event) error {
	return f(ctx, e)
}
