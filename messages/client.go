package messages

import "encoding/json"

// TypeControl is the client control message type. Clients send audio
// with TypeAudio.
const TypeControl = "control"

// ClientMessage represents a message from frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "audio", "control"
	Payload json.RawMessage `json:"payload"`
}

// AudioPayload contains audio data from client
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded PCM audio
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "ping", "end_turn"
}

// TwilioMessage is an inbound Twilio media stream frame. Twilio sends
// connected, start, media, mark and stop events.
type TwilioMessage struct {
	Event string       `json:"event"`
	Start *TwilioStart `json:"start,omitempty"`
	Media *TwilioMedia `json:"media,omitempty"`
}

// TwilioStart is the payload of a "start" event
type TwilioStart struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid"`
}

// TwilioMedia is the payload of a "media" event
type TwilioMedia struct {
	Payload string `json:"payload"` // Base64-encoded mu-law 8kHz audio
}
