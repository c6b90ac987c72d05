package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/auralis/events"
	"github.com/room4-2/auralis/gemini"
	"github.com/room4-2/auralis/messages"
	"github.com/room4-2/auralis/transcript"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	toolCallTimeout = 15 * time.Second
	readLimit       = 512 * 1024
)

// Agent states published on the side channel.
const (
	AgentListening = "listening"
	AgentThinking  = "thinking"
	AgentSpeaking  = "speaking"
)

// ToolHandler resolves the model's function calls for one call.
type ToolHandler interface {
	Handle(ctx context.Context, calls []*genai.FunctionCall) []*genai.FunctionResponse
}

// LiveProxy is the dialogue runtime a call talks to.
type LiveProxy interface {
	StartReceiving(ctx context.Context)
	SendAudio(audioData []byte) error
	SendAudioBatch(audioData []byte) error
	SendText(text string) error
	SendToolResponse(responses []*genai.FunctionResponse) error
	Close() error
}

// ClientSession is one caller's connection: the client socket, the Live
// session and the per-call state, history and event bus.
type ClientSession struct {
	ID           string
	IsTwilio     bool   // Twilio media stream rather than browser socket
	StreamSid    string // set on the Twilio "start" event
	ClientConn   *websocket.Conn
	GeminiProxy  *gemini.Proxy
	AudioBuffer  *AudioBuffer
	State        *State
	History      *transcript.History
	Events       *events.Bus
	CreatedAt    time.Time
	LastActivity time.Time

	live   LiveProxy
	tools  ToolHandler
	relay  *events.Relay
	logger *zap.Logger

	// utterances are assembled from transcription chunks and committed at
	// turn boundaries
	userUtterance  strings.Builder
	agentUtterance strings.Builder
	skipGreeting   bool

	writeChan chan any

	mu        sync.RWMutex
	closed    bool
	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// callOptions carries the collaborators the manager builds for a call.
type callOptions struct {
	proxy         *gemini.Proxy
	tools         ToolHandler
	state         *State
	sinks         []events.Sink
	maxBufferSize int
	logger        *zap.Logger
}

func newClientSession(id string, clientConn *websocket.Conn, isTwilio bool, opts callOptions) *ClientSession {
	ctx, cancel := context.WithCancel(context.Background())

	clientConn.SetReadLimit(readLimit)
	// Twilio doesn't support WebSocket compression
	clientConn.EnableWriteCompression(!isTwilio)
	if !isTwilio {
		_ = clientConn.SetCompressionLevel(6)
	}

	now := time.Now()
	cs := &ClientSession{
		ID:           id,
		IsTwilio:     isTwilio,
		ClientConn:   clientConn,
		GeminiProxy:  opts.proxy,
		AudioBuffer:  NewAudioBuffer(opts.maxBufferSize),
		State:        opts.state,
		History:      transcript.NewHistory(transcript.DefaultMaxTurns),
		Events:       events.NewBus(events.DefaultBufferSize),
		CreatedAt:    now,
		LastActivity: now,
		live:         opts.proxy,
		tools:        opts.tools,
		logger:       opts.logger,
		writeChan:    make(chan any, writeBufferSize),
		CloseChan:    make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}

	sinks := opts.sinks
	if !isTwilio {
		sinks = append(sinks, events.SinkFunc(func(ctx context.Context, e events.Event) error {
			cs.queueMessage(messages.NewEventMessage(cs.ID, e))
			return nil
		}))
	}
	cs.relay = events.NewRelay(cs.Events, opts.logger, sinks...)
	return cs
}

// Start begins message handling for a browser WebSocket client.
func (cs *ClientSession) Start() {
	go cs.writePump()
	go cs.relay.Run(cs.ctx)
	cs.setupGeminiCallbacks()
	cs.live.StartReceiving(cs.ctx)
	cs.queueMessage(messages.NewStatusMessage(cs.ID, "connected", "Session established"))
	cs.greet()
	go cs.handleClientMessages()
}

// StartTwilio begins message handling for a Twilio media stream. The
// greeting waits for the stream SID.
func (cs *ClientSession) StartTwilio() {
	go cs.writePump()
	go cs.relay.Run(cs.ctx)
	cs.setupGeminiCallbacks()
	cs.live.StartReceiving(cs.ctx)
	go cs.handleClientMessagesFromTwilio()
}

// greet records the greeting and asks the model to speak it. The model's
// own transcription of it is not recorded a second time.
func (cs *ClientSession) greet() {
	cs.mu.Lock()
	cs.skipGreeting = true
	cs.mu.Unlock()

	cs.History.Append(transcript.RoleAgent, Greeting)
	cs.Events.Publish(events.AgentTranscript(Greeting))

	if err := cs.live.SendText(greetingInstruction()); err != nil {
		cs.logger.Error("failed to send greeting", zap.Error(err))
	}
}

func (cs *ClientSession) setupGeminiCallbacks() {
	p := cs.GeminiProxy
	if p == nil {
		return
	}

	if cs.IsTwilio {
		p.OnAudioRaw = cs.forwardAudioToTwilio
	} else {
		p.OnAudioRaw = func(base64Data string) {
			cs.queueMessage(messages.NewAudioMessage(cs.ID, base64Data))
		}
		p.OnText = func(text string) {
			cs.queueMessage(messages.NewTextMessage(cs.ID, text))
		}
	}

	p.OnInputTranscript = cs.onUserTranscript
	p.OnOutputTranscript = cs.onAgentTranscript
	p.OnInterrupted = func() {
		cs.commitAgentUtterance()
		cs.Events.Publish(events.State(AgentListening))
	}
	p.OnComplete = func() {
		cs.commitAgentUtterance()
		cs.Events.Publish(events.State(AgentListening))
		if !cs.IsTwilio {
			cs.queueMessage(messages.NewStatusMessage(cs.ID, "turn_complete", ""))
		}
	}
	p.OnToolCall = cs.handleToolCalls
	p.OnError = cs.handleGeminiError
	p.OnClosed = cs.onLiveClosed
}

func (cs *ClientSession) onUserTranscript(text string) {
	cs.mu.Lock()
	cs.userUtterance.WriteString(text)
	cs.mu.Unlock()
}

func (cs *ClientSession) onAgentTranscript(text string) {
	// the agent answering closes the caller's utterance
	cs.commitUserUtterance()

	cs.mu.Lock()
	first := cs.agentUtterance.Len() == 0
	cs.agentUtterance.WriteString(text)
	cs.mu.Unlock()

	if first {
		cs.Events.Publish(events.State(AgentSpeaking))
	}
}

func (cs *ClientSession) commitUserUtterance() {
	cs.mu.Lock()
	text := strings.TrimSpace(cs.userUtterance.String())
	cs.userUtterance.Reset()
	cs.mu.Unlock()

	if text == "" {
		return
	}
	if cs.History.Append(transcript.RoleUser, text) {
		cs.logger.Debug("pruned transcript history")
	}
	cs.Events.Publish(events.UserTranscript(text))
}

func (cs *ClientSession) commitAgentUtterance() {
	cs.mu.Lock()
	text := strings.TrimSpace(cs.agentUtterance.String())
	cs.agentUtterance.Reset()
	skip := cs.skipGreeting
	if text != "" {
		cs.skipGreeting = false
	}
	cs.mu.Unlock()

	if text == "" || skip {
		return
	}
	if cs.History.Append(transcript.RoleAgent, text) {
		cs.logger.Debug("pruned transcript history")
	}
	cs.Events.Publish(events.AgentTranscript(text))
}

// forwardAudioToTwilio converts Gemini's 24kHz PCM to 8kHz mu-law frames.
func (cs *ClientSession) forwardAudioToTwilio(base64Data string) {
	cs.mu.RLock()
	streamSid := cs.StreamSid
	cs.mu.RUnlock()

	if streamSid == "" {
		cs.logger.Warn("audio from Gemini before stream start")
		return
	}

	pcm, err := base64.StdEncoding.DecodeString(base64Data)
	if err != nil {
		cs.logger.Error("failed to decode audio from Gemini", zap.Error(err))
		return
	}

	encoded := base64.StdEncoding.EncodeToString(pcm24kToMuLaw8k(pcm))
	cs.queueMessage(messages.NewTwilioMessageBack(streamSid, encoded))
}

func (cs *ClientSession) handleGeminiError(err error) {
	cs.logger.Error("gemini error", zap.Error(err))
	if !cs.IsTwilio {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
	}
}

// onLiveClosed ends the call when the Live session is gone; nothing would
// answer the caller otherwise.
func (cs *ClientSession) onLiveClosed() {
	cs.logger.Info("gemini session ended, closing call")
	_ = cs.Close()
}

// handleToolCalls resolves function calls and returns the results. Store
// writes finish before the response goes back.
func (cs *ClientSession) handleToolCalls(calls []*genai.FunctionCall) {
	cs.Events.Publish(events.State(AgentThinking))

	ctx, cancel := context.WithTimeout(cs.ctx, toolCallTimeout)
	defer cancel()

	responses := cs.tools.Handle(ctx, calls)
	if err := cs.live.SendToolResponse(responses); err != nil {
		cs.logger.Error("failed to send tool response", zap.Error(err))
		if !cs.IsTwilio {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
		}
	}
}

// writePump handles all outgoing messages in a single goroutine
func (cs *ClientSession) writePump() {
	defer func() {
		_ = cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case msg, ok := <-cs.writeChan:
			if !ok {
				return
			}
			_ = cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cs.ClientConn.WriteJSON(msg); err != nil {
				cs.logger.Debug("client write failed", zap.Error(err))
				return
			}
		}
	}
}

// queueMessage adds a message to the write queue without blocking. A full
// queue drops the message.
func (cs *ClientSession) queueMessage(msg any) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return
	}
	select {
	case cs.writeChan <- msg:
		cs.LastActivity = time.Now()
	default:
	}
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.LastActivity = time.Now()
	cs.mu.Unlock()
}

// Idle reports how long the session has been inactive.
func (cs *ClientSession) Idle(now time.Time) time.Duration {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return now.Sub(cs.LastActivity)
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	close(cs.writeChan)
	close(cs.CloseChan)
	cs.mu.Unlock()

	// flush whatever the caller was saying when the line dropped
	cs.commitUserUtterance()
	cs.commitAgentUtterance()
	cs.Events.Close()
	cs.cancel()

	if cs.AudioBuffer != nil {
		cs.AudioBuffer.Clear()
	}
	if cs.live != nil {
		_ = cs.live.Close()
	}
	if cs.ClientConn != nil {
		_ = cs.ClientConn.Close()
	}
	return nil
}

// IsClosed returns whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// handleClientMessagesFromTwilio streams caller audio straight to Gemini,
// which does its own voice activity detection.
func (cs *ClientSession) handleClientMessagesFromTwilio() {
	defer cs.Close()
	for {
		_, raw, err := cs.ClientConn.ReadMessage()
		if err != nil {
			if !cs.IsClosed() {
				cs.logger.Info("twilio stream read ended", zap.Error(err))
			}
			return
		}
		cs.touch()

		var msg messages.TwilioMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			cs.logger.Warn("failed to parse Twilio message", zap.Error(err))
			continue
		}

		switch msg.Event {
		case "connected":
			cs.logger.Info("twilio stream connected")

		case "start":
			if msg.Start == nil || msg.Start.StreamSid == "" {
				cs.logger.Warn("twilio start event missing streamSid")
				continue
			}
			cs.mu.Lock()
			cs.StreamSid = msg.Start.StreamSid
			cs.mu.Unlock()
			cs.logger.Info("twilio stream started", zap.String("stream_sid", msg.Start.StreamSid))
			cs.greet()

		case "media":
			if msg.Media == nil {
				continue
			}
			muLaw, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
			if err != nil {
				cs.logger.Warn("failed to decode Twilio audio", zap.Error(err))
				continue
			}
			if err := cs.live.SendAudio(muLawToPCM16k(muLaw)); err != nil {
				cs.logger.Error("failed to send audio to Gemini", zap.Error(err))
			}

		case "stop":
			cs.logger.Info("twilio stream stopped")
			return

		case "mark":

		default:
			cs.logger.Debug("unknown Twilio event", zap.String("event", msg.Event))
		}
	}
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	for {
		messageType, raw, err := cs.ClientConn.ReadMessage()
		if err != nil {
			return
		}
		cs.touch()

		// raw PCM is buffered until end_turn
		if messageType == websocket.BinaryMessage {
			cs.bufferAudio(raw)
			continue
		}

		var clientMsg messages.ClientMessage
		if err := json.Unmarshal(raw, &clientMsg); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
			continue
		}
		cs.processClientMessage(&clientMsg)
	}
}

func (cs *ClientSession) bufferAudio(chunk []byte) {
	if err := cs.AudioBuffer.Append(chunk); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull,
			fmt.Sprintf("Audio buffer full (max %d bytes)", cs.AudioBuffer.MaxSize())))
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case messages.TypeAudio:
		var payload messages.AudioPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid audio payload"))
			return
		}
		audio, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 audio data"))
			return
		}
		cs.bufferAudio(audio)

	case messages.TypeControl:
		var payload messages.ControlPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *ClientSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case "ping":
		cs.queueMessage(messages.NewStatusMessage(cs.ID, "pong", ""))
	case "end_turn":
		cs.handleEndTurn()
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

// handleEndTurn flushes the audio buffer and sends it to Gemini as one turn.
func (cs *ClientSession) handleEndTurn() {
	if cs.AudioBuffer.IsEmpty() {
		cs.logger.Debug("end_turn with empty buffer")
		return
	}
	chunks := cs.AudioBuffer.ChunkCount()
	audio := cs.AudioBuffer.Flush()
	cs.logger.Debug("sending buffered audio", zap.Int("bytes", len(audio)), zap.Int("chunks", chunks))

	if err := cs.live.SendAudioBatch(audio); err != nil {
		cs.logger.Error("failed to send audio to Gemini", zap.Error(err))
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
	}
}
