package transcript

import (
	"sync"
	"time"
)

// Roles recorded in a call transcript.
const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleAgent  = "agent"
)

// DefaultMaxTurns bounds the history handed to the dialogue model.
const DefaultMaxTurns = 10

// Turn is one utterance in the conversation.
type Turn struct {
	Role string    `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// History keeps the first turn (the priming turn) plus the most recent ones.
// Once it grows past maxTurns it is cut back to the first turn and the
// latest maxTurns-1. Every turn is also kept in an unpruned log for the
// end-of-call transcript.
type History struct {
	mu       sync.Mutex
	turns    []Turn
	log      []Turn
	maxTurns int
	nowFunc  func() time.Time
}

// NewHistory returns an empty history. maxTurns below 2 falls back to DefaultMaxTurns.
func NewHistory(maxTurns int) *History {
	if maxTurns < 2 {
		maxTurns = DefaultMaxTurns
	}
	return &History{
		maxTurns: maxTurns,
		nowFunc:  time.Now,
	}
}

// Append records a turn and prunes if the bound is exceeded. It reports
// whether pruning happened.
func (h *History) Append(role, text string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	turn := Turn{Role: role, Text: text, At: h.nowFunc()}
	h.log = append(h.log, turn)
	h.turns = append(h.turns, turn)
	if len(h.turns) <= h.maxTurns {
		return false
	}

	keep := h.maxTurns - 1
	pruned := make([]Turn, 0, h.maxTurns)
	pruned = append(pruned, h.turns[0])
	pruned = append(pruned, h.turns[len(h.turns)-keep:]...)
	h.turns = pruned
	return true
}

// Turns returns a copy of the retained turns in order.
func (h *History) Turns() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Transcript returns a copy of every turn ever appended, pruned or not.
func (h *History) Transcript() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.log))
	copy(out, h.log)
	return out
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}
