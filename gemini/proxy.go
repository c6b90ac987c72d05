package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// LiveModel is the native-audio model used for calls.
const LiveModel = "models/gemini-2.5-flash-native-audio-preview-12-2025"

// DefaultVoice is the prebuilt voice the agent speaks with.
const DefaultVoice = "Zephyr"

// Live context compression: once the session context reaches
// compressionTriggerTokens the oldest turns are dropped down to
// compressionTargetTokens. The system instruction is always kept.
const (
	compressionTriggerTokens int64 = 25600
	compressionTargetTokens  int64 = 12800
)

// ErrNotConnected is returned by senders before Setup or after Close.
var ErrNotConnected = errors.New("proxy is closed or not connected")

// NewClient creates the shared Gemini API client.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// Proxy manages one call's Live API session. Callbacks run on the receive
// goroutine and must be set before StartReceiving.
type Proxy struct {
	client  *genai.Client
	session *genai.Session
	logger  *zap.Logger

	OnAudioRaw         func(base64Data string)
	OnText             func(text string)
	OnInputTranscript  func(text string)
	OnOutputTranscript func(text string)
	OnInterrupted      func()
	OnComplete         func()
	OnToolCall         func(functionCalls []*genai.FunctionCall)
	OnError            func(err error)
	// OnClosed fires once when the receiver stops without Close having
	// been called, i.e. the Live session died under the call.
	OnClosed func()

	mu     sync.RWMutex
	closed bool
}

// NewProxy returns an unconnected proxy on a shared client.
func NewProxy(client *genai.Client, logger *zap.Logger) *Proxy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Proxy{client: client, logger: logger}
}

// Setup establishes the Live session with transcription of both sides.
func (gp *Proxy) Setup(ctx context.Context, systemPrompt string, tools []*genai.Tool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return ErrNotConnected
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction:  genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Tools:              tools,
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: DefaultVoice,
				},
			},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		ContextWindowCompression: contextCompression(),
	}

	session, err := gp.client.Live.Connect(ctx, LiveModel, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Live API: %w", err)
	}

	gp.session = session
	gp.logger.Info("connected to Gemini Live", zap.String("model", LiveModel))
	return nil
}

// contextCompression bounds a long call's context with a sliding window,
// the Live counterpart of the pruned history used for text chats.
func contextCompression() *genai.ContextWindowCompressionConfig {
	trigger, target := compressionTriggerTokens, compressionTargetTokens
	return &genai.ContextWindowCompressionConfig{
		TriggerTokens: &trigger,
		SlidingWindow: &genai.SlidingWindow{TargetTokens: &target},
	}
}

// StartReceiving reads server messages on a new goroutine until the
// session ends.
func (gp *Proxy) StartReceiving(ctx context.Context) {
	go gp.receive(ctx, func() (*genai.LiveServerMessage, error) {
		session, err := gp.current()
		if err != nil {
			return nil, err
		}
		return session.Receive()
	})
}

// receive dispatches messages from next until it fails or ctx ends. A
// failure is reported through OnError once, then OnClosed.
func (gp *Proxy) receive(ctx context.Context, next func() (*genai.LiveServerMessage, error)) {
	defer func() {
		if ctx.Err() == nil && !gp.IsClosed() && gp.OnClosed != nil {
			gp.OnClosed()
		}
	}()

	for ctx.Err() == nil {
		resp, err := next()
		if err != nil {
			if !gp.IsClosed() && !errors.Is(err, ErrNotConnected) {
				gp.logger.Error("gemini receive error", zap.Error(err))
				if gp.OnError != nil {
					gp.OnError(err)
				}
			}
			return
		}
		gp.handleResponse(resp)
	}
}

func (gp *Proxy) handleResponse(resp *genai.LiveServerMessage) {
	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		gp.logger.Debug("function calls received", zap.Int("count", len(resp.ToolCall.FunctionCalls)))
		if gp.OnToolCall != nil {
			gp.OnToolCall(resp.ToolCall.FunctionCalls)
		}
	}

	sc := resp.ServerContent
	if sc == nil {
		return
	}

	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" && gp.OnInputTranscript != nil {
		gp.OnInputTranscript(sc.InputTranscription.Text)
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" && gp.OnOutputTranscript != nil {
		gp.OnOutputTranscript(sc.OutputTranscription.Text)
	}

	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part.Text != "" && gp.OnText != nil {
				gp.OnText(part.Text)
			}
			if part.InlineData != nil && gp.OnAudioRaw != nil {
				gp.OnAudioRaw(base64.StdEncoding.EncodeToString(part.InlineData.Data))
			}
		}
	}

	if sc.Interrupted && gp.OnInterrupted != nil {
		gp.OnInterrupted()
	}
	if sc.TurnComplete && gp.OnComplete != nil {
		gp.OnComplete()
	}
}

// SendAudio streams a PCM 16kHz chunk.
func (gp *Proxy) SendAudio(audioData []byte) error {
	return gp.sendRealtimeInput(audioData)
}

// SendAudioBatch sends buffered audio followed by an end-of-stream marker.
func (gp *Proxy) SendAudioBatch(audioData []byte) error {
	if len(audioData) == 0 {
		return nil
	}
	if err := gp.sendRealtimeInput(audioData); err != nil {
		return fmt.Errorf("failed to send audio batch: %w", err)
	}
	return gp.sendAudioStreamEnd()
}

// SendText sends a complete user turn as text.
func (gp *Proxy) SendText(text string) error {
	session, err := gp.current()
	if err != nil {
		return err
	}

	turnComplete := true
	err = session.SendClientContent(genai.LiveSendClientContentParameters{
		Turns:        []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

func (gp *Proxy) sendRealtimeInput(data []byte) error {
	session, err := gp.current()
	if err != nil {
		return err
	}

	err = session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: "audio/pcm;rate=16000",
			Data:     data,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio: %w", err)
	}
	return nil
}

func (gp *Proxy) sendAudioStreamEnd() error {
	session, err := gp.current()
	if err != nil {
		return err
	}
	if err := session.SendRealtimeInput(genai.LiveRealtimeInput{AudioStreamEnd: true}); err != nil {
		return fmt.Errorf("failed to send audio stream end: %w", err)
	}
	return nil
}

// SendToolResponse returns function results to the model.
func (gp *Proxy) SendToolResponse(responses []*genai.FunctionResponse) error {
	session, err := gp.current()
	if err != nil {
		return err
	}

	err = session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	gp.logger.Debug("tool responses sent", zap.Int("count", len(responses)))
	return nil
}

func (gp *Proxy) current() (*genai.Session, error) {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	if gp.closed || gp.session == nil {
		return nil, ErrNotConnected
	}
	return gp.session, nil
}

// IsClosed reports whether Close has been called.
func (gp *Proxy) IsClosed() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.closed
}

// Close terminates the Live session.
func (gp *Proxy) Close() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return nil
	}
	gp.closed = true

	if gp.session != nil {
		return gp.session.Close()
	}
	return nil
}
