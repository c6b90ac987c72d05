package transcript

import (
	"fmt"
	"testing"
)

func TestHistoryKeepsUpToMax(t *testing.T) {
	h := NewHistory(DefaultMaxTurns)
	for i := 0; i < DefaultMaxTurns; i++ {
		if h.Append(RoleUser, fmt.Sprintf("turn %d", i)) {
			t.Fatalf("pruned too early at turn %d", i)
		}
	}
	if h.Len() != DefaultMaxTurns {
		t.Fatalf("Len = %d, want %d", h.Len(), DefaultMaxTurns)
	}
}

func TestHistoryPrunesToFirstPlusLastNine(t *testing.T) {
	h := NewHistory(DefaultMaxTurns)
	h.Append(RoleSystem, "priming")
	for i := 1; i <= 15; i++ {
		h.Append(RoleUser, fmt.Sprintf("turn %d", i))
	}

	turns := h.Turns()
	if len(turns) != DefaultMaxTurns {
		t.Fatalf("len = %d, want %d", len(turns), DefaultMaxTurns)
	}
	if turns[0].Text != "priming" || turns[0].Role != RoleSystem {
		t.Fatalf("first turn not preserved: %+v", turns[0])
	}
	for i, turn := range turns[1:] {
		want := fmt.Sprintf("turn %d", 7+i)
		if turn.Text != want {
			t.Fatalf("turns[%d] = %q, want %q", i+1, turn.Text, want)
		}
	}
}

func TestHistoryEleventhTurnPrunes(t *testing.T) {
	h := NewHistory(DefaultMaxTurns)
	for i := 0; i < 10; i++ {
		h.Append(RoleAgent, fmt.Sprintf("t%d", i))
	}
	if !h.Append(RoleAgent, "t10") {
		t.Fatalf("expected prune on turn 11")
	}
	turns := h.Turns()
	if turns[0].Text != "t0" || turns[1].Text != "t2" || turns[9].Text != "t10" {
		t.Fatalf("unexpected turns after prune: %+v", turns)
	}
}

func TestHistoryTurnsIsCopy(t *testing.T) {
	h := NewHistory(0)
	h.Append(RoleUser, "hello")
	turns := h.Turns()
	turns[0].Text = "changed"
	if h.Turns()[0].Text != "hello" {
		t.Fatalf("Turns must return a copy")
	}
}

func TestHistoryTranscriptIsUnpruned(t *testing.T) {
	h := NewHistory(DefaultMaxTurns)
	h.Append(RoleAgent, "greeting")
	for i := 1; i <= 15; i++ {
		h.Append(RoleUser, fmt.Sprintf("turn %d", i))
	}

	if h.Len() != DefaultMaxTurns {
		t.Fatalf("retained turns = %d, want %d", h.Len(), DefaultMaxTurns)
	}
	log := h.Transcript()
	if len(log) != 16 {
		t.Fatalf("transcript len = %d, want 16", len(log))
	}
	for i, turn := range log[1:] {
		if want := fmt.Sprintf("turn %d", i+1); turn.Text != want {
			t.Fatalf("log[%d] = %q, want %q", i+1, turn.Text, want)
		}
	}
}
