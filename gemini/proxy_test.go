package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"google.golang.org/genai"
)

func TestHandleResponseDispatch(t *testing.T) {
	gp := NewProxy(nil, nil)

	var input, output, text, audio string
	var calls int
	var complete, interrupted bool
	gp.OnInputTranscript = func(s string) { input = s }
	gp.OnOutputTranscript = func(s string) { output = s }
	gp.OnText = func(s string) { text = s }
	gp.OnAudioRaw = func(s string) { audio = s }
	gp.OnToolCall = func(fcs []*genai.FunctionCall) { calls = len(fcs) }
	gp.OnComplete = func() { complete = true }
	gp.OnInterrupted = func() { interrupted = true }

	gp.handleResponse(&genai.LiveServerMessage{
		ToolCall: &genai.LiveServerToolCall{FunctionCalls: []*genai.FunctionCall{{Name: "lookup_customer"}}},
		ServerContent: &genai.LiveServerContent{
			InputTranscription:  &genai.Transcription{Text: "my number is 987 654 3210"},
			OutputTranscription: &genai.Transcription{Text: "One moment."},
			ModelTurn: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking"},
				{InlineData: &genai.Blob{Data: []byte{1, 2}}},
			}},
			Interrupted:  true,
			TurnComplete: true,
		},
	})

	if input != "my number is 987 654 3210" || output != "One moment." || text != "thinking" {
		t.Fatalf("transcripts not dispatched: %q %q %q", input, output, text)
	}
	if audio != base64.StdEncoding.EncodeToString([]byte{1, 2}) {
		t.Fatalf("audio = %q", audio)
	}
	if calls != 1 || !complete || !interrupted {
		t.Fatalf("calls=%d complete=%v interrupted=%v", calls, complete, interrupted)
	}
}

func TestSendBeforeSetup(t *testing.T) {
	gp := NewProxy(nil, nil)
	if err := gp.SendText("hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := gp.SendAudioBatch(nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
	if err := gp.Close(); err != nil || !gp.IsClosed() {
		t.Fatalf("Close: %v", err)
	}
	if err := gp.SendAudio([]byte{0}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestReceiveFailureReportsOnceThenCloses(t *testing.T) {
	gp := NewProxy(nil, nil)

	var errs []error
	closed := 0
	var texts []string
	gp.OnError = func(err error) { errs = append(errs, err) }
	gp.OnClosed = func() { closed++ }
	gp.OnOutputTranscript = func(s string) { texts = append(texts, s) }

	boom := errors.New("stream reset")
	msgs := []*genai.LiveServerMessage{
		{ServerContent: &genai.LiveServerContent{OutputTranscription: &genai.Transcription{Text: "Hello."}}},
	}
	gp.receive(context.Background(), func() (*genai.LiveServerMessage, error) {
		if len(msgs) == 0 {
			return nil, boom
		}
		m := msgs[0]
		msgs = msgs[1:]
		return m, nil
	})

	if len(texts) != 1 || texts[0] != "Hello." {
		t.Fatalf("messages before the failure should be dispatched, got %v", texts)
	}
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Fatalf("expected one error report, got %v", errs)
	}
	if closed != 1 {
		t.Fatalf("expected OnClosed once, got %d", closed)
	}
}

func TestReceiveAfterCloseIsQuiet(t *testing.T) {
	gp := NewProxy(nil, nil)
	reported := false
	gp.OnError = func(error) { reported = true }
	gp.OnClosed = func() { reported = true }

	_ = gp.Close()
	gp.receive(context.Background(), func() (*genai.LiveServerMessage, error) {
		return nil, errors.New("use of closed connection")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewProxy(nil, nil).receive(ctx, func() (*genai.LiveServerMessage, error) {
		t.Fatalf("receive must not read after ctx is done")
		return nil, nil
	})

	if reported {
		t.Fatalf("a deliberate close must not be reported")
	}
}

func TestContextCompressionUsesSlidingWindow(t *testing.T) {
	cfg := contextCompression()
	if cfg.SlidingWindow == nil || cfg.TriggerTokens == nil || cfg.SlidingWindow.TargetTokens == nil {
		t.Fatalf("expected trigger and sliding window target, got %+v", cfg)
	}
	if *cfg.SlidingWindow.TargetTokens >= *cfg.TriggerTokens {
		t.Fatalf("target %d must be below trigger %d", *cfg.SlidingWindow.TargetTokens, *cfg.TriggerTokens)
	}
}
