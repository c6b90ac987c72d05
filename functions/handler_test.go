package functions

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/room4-2/auralis/booking"
	"github.com/room4-2/auralis/frontdesk"
	"github.com/room4-2/auralis/session"
)

type staticSearcher string

func (s staticSearcher) Search(ctx context.Context, query string) string { return string(s) }

func newDisconnectedHandler() *Handler {
	state := session.NewState("call")
	desk := frontdesk.NewDesk(state, booking.NewStore(nil, booking.DefaultCapacity, nil), staticSearcher("We offer a comprehensive 3-year warranty on all certified pre-owned vehicles."), nil)
	return NewHandler(desk, nil)
}

func TestHandleMatchesIDsAndNames(t *testing.T) {
	h := newDisconnectedHandler()
	calls := []*genai.FunctionCall{
		{ID: "1", Name: ConsultPolicy, Args: map[string]any{"topic": "warranty"}},
		{ID: "2", Name: SubmitBookingRequest, Args: map[string]any{"date": "2025-03-01", "service_type": "Oil Change"}},
		{ID: "3", Name: "teleport"},
	}

	responses := h.Handle(context.Background(), calls)
	if len(responses) != 3 {
		t.Fatalf("expected 3 responses, got %d", len(responses))
	}
	for i, r := range responses {
		if r.ID != calls[i].ID || r.Name != calls[i].Name {
			t.Fatalf("response %d = %s/%s", i, r.ID, r.Name)
		}
	}

	if out, _ := responses[0].Response["output"].(string); out == "" {
		t.Fatalf("policy output missing: %+v", responses[0].Response)
	}
	if responses[1].Response["message"] != "Authentication required. Identify customer first." {
		t.Fatalf("submit must short-circuit: %+v", responses[1].Response)
	}
	if _, ok := responses[2].Response["error"]; !ok {
		t.Fatalf("unknown function must report an error: %+v", responses[2].Response)
	}
}

func TestCallDisconnectedLookup(t *testing.T) {
	h := newDisconnectedHandler()
	resp := h.Call(context.Background(), LookupCustomer, map[string]any{"identifier": "9876543210"})
	if resp["status"] != frontdesk.StatusUnavailable {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestStringArg(t *testing.T) {
	args := map[string]any{"s": "x", "n": 2025.0, "nil": nil}
	if stringArg(args, "s") != "x" || stringArg(args, "n") != "2025" || stringArg(args, "nil") != "" || stringArg(args, "missing") != "" {
		t.Fatalf("unexpected stringArg results")
	}
}

func TestToolsDeclareFourActions(t *testing.T) {
	tools := Tools()
	if len(tools) != 1 || len(tools[0].FunctionDeclarations) != 4 {
		t.Fatalf("unexpected tools %+v", tools)
	}
	for _, d := range tools[0].FunctionDeclarations {
		if d.Parameters == nil || len(d.Parameters.Required) == 0 {
			t.Fatalf("%s must declare required parameters", d.Name)
		}
	}
}
