// Command callclient places a test call against the /ws endpoint: it streams
// a PCM file, ends the turn, plays the reply through sox and prints the
// transcript and agent state events.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/room4-2/auralis/events"
	"github.com/room4-2/auralis/logging"
	"github.com/room4-2/auralis/messages"
)

// inbound mirrors messages.ServerMessage with the payload left raw.
type inbound struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

// player streams 24kHz PCM to sox.
type player struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func newPlayer() (*player, error) {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", "24000",
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &player{cmd: cmd, stdin: stdin}, nil
}

func (p *player) Play(pcm []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	_, _ = p.stdin.Write(pcm)
}

func (p *player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	_ = p.stdin.Close()
	_ = p.cmd.Wait()
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	audioFile := flag.String("file", "testdata/caller.pcm", "16kHz PCM or WAV file to send")
	mute := flag.Bool("mute", false, "don't play audio replies")
	flag.Parse()

	base, err := logging.New(false, "info")
	if err != nil {
		panic(err)
	}
	log := base.Sugar()
	defer func() { _ = log.Sync() }()

	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalw("failed to connect", "server", *serverURL, zap.Error(err))
	}
	defer conn.Close()
	log.Infow("connected", "server", *serverURL)

	var out *player
	if !*mute {
		if out, err = newPlayer(); err != nil {
			log.Fatalw("failed to start sox", zap.Error(err))
		}
		defer out.Close()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	turnDone := make(chan struct{}, 1)

	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Infow("connection closed", zap.Error(err))
				return
			}
			var msg inbound
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warnw("unparseable message", zap.Error(err))
				continue
			}
			handle(log, out, msg, turnDone)
		}
	}()

	// let the greeting play before the caller speaks
	time.Sleep(3 * time.Second)

	audio, err := loadAudioFile(*audioFile)
	if err != nil {
		log.Fatalw("failed to load audio", "file", *audioFile, zap.Error(err))
	}

	const chunkSize = 3200 // 100ms at 16kHz
	for i := 0; i < len(audio); i += chunkSize {
		end := min(i+chunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[i:end]); err != nil {
			log.Errorw("send failed", zap.Error(err))
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	endTurn, _ := json.Marshal(map[string]any{
		"type":    messages.TypeControl,
		"payload": messages.ControlPayload{Action: "end_turn"},
	})
	if err := conn.WriteMessage(websocket.TextMessage, endTurn); err != nil {
		log.Errorw("end_turn failed", zap.Error(err))
	}
	log.Infow("audio sent", "bytes", len(audio))

	select {
	case <-done:
	case <-turnDone:
		// give the relay a moment to deliver the final transcript
		time.Sleep(500 * time.Millisecond)
	case <-interrupt:
	case <-time.After(30 * time.Second):
		log.Warn("timed out waiting for reply")
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func handle(log *zap.SugaredLogger, out *player, msg inbound, turnDone chan<- struct{}) {
	switch msg.Type {
	case messages.TypeAudio:
		var p messages.AudioResponsePayload
		if json.Unmarshal(msg.Payload, &p) != nil {
			return
		}
		if pcm, err := base64.StdEncoding.DecodeString(p.Data); err == nil && out != nil {
			out.Play(pcm)
		}

	case messages.TypeEvent:
		var e events.Event
		if json.Unmarshal(msg.Payload, &e) != nil {
			return
		}
		switch e.Type {
		case events.TypeUserTranscript:
			log.Infof("caller: %v", e.Data["text"])
		case events.TypeAgentTranscript:
			log.Infof("agent:  %v", e.Data["text"])
		case events.TypeState:
			log.Debugw("agent state", "status", e.Data["status"])
		}

	case messages.TypeStatus:
		var p messages.StatusPayload
		if json.Unmarshal(msg.Payload, &p) != nil {
			return
		}
		log.Infow("status", "status", p.Status, "session", msg.SessionID)
		if p.Status == "turn_complete" {
			select {
			case turnDone <- struct{}{}:
			default:
			}
		}

	case messages.TypeError:
		log.Errorw("server error", "payload", string(msg.Payload))
	}
}

// loadAudioFile returns raw PCM, skipping a standard 44-byte WAV header.
func loadAudioFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 44 && string(data[0:4]) == "RIFF" {
		return data[44:], nil
	}
	return data, nil
}
