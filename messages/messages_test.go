package messages

import (
	"encoding/json"
	"testing"

	"github.com/room4-2/auralis/events"
)

func TestEventMessageWireShape(t *testing.T) {
	raw, err := json.Marshal(NewEventMessage("abc", events.AgentTranscript("Hello")))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var got struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Payload   struct {
			Type string            `json:"type"`
			Data map[string]string `json:"data"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != TypeEvent || got.SessionID != "abc" {
		t.Fatalf("unexpected envelope: %s", raw)
	}
	if got.Payload.Type != events.TypeAgentTranscript || got.Payload.Data["text"] != "Hello" {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestTwilioFrames(t *testing.T) {
	var start TwilioMessage
	if err := json.Unmarshal([]byte(`{"event":"start","start":{"streamSid":"MZ1","callSid":"CA1"}}`), &start); err != nil {
		t.Fatalf("unmarshal start: %v", err)
	}
	if start.Start == nil || start.Start.StreamSid != "MZ1" || start.Media != nil {
		t.Fatalf("unexpected start frame: %+v", start)
	}

	var media TwilioMessage
	if err := json.Unmarshal([]byte(`{"event":"media","media":{"payload":"//8="}}`), &media); err != nil {
		t.Fatalf("unmarshal media: %v", err)
	}
	if media.Media == nil || media.Media.Payload != "//8=" {
		t.Fatalf("unexpected media frame: %+v", media)
	}

	raw, _ := json.Marshal(NewTwilioMessageBack("MZ1", "AAA="))
	if string(raw) != `{"event":"media","streamSid":"MZ1","media":{"payload":"AAA="}}` {
		t.Fatalf("unexpected outbound frame: %s", raw)
	}
}
