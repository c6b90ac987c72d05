package session

import (
	"errors"
	"sync"
)

// ErrBufferFull is returned when a chunk would push the buffer past its limit.
var ErrBufferFull = errors.New("audio buffer full")

// AudioBuffer collects a browser caller's PCM until end_turn.
type AudioBuffer struct {
	mu      sync.Mutex
	data    []byte
	chunks  int
	maxSize int
}

// NewAudioBuffer returns a buffer holding at most maxSize bytes.
func NewAudioBuffer(maxSize int) *AudioBuffer {
	return &AudioBuffer{maxSize: maxSize}
}

// MaxSize returns the byte limit.
func (ab *AudioBuffer) MaxSize() int {
	return ab.maxSize
}

// Append copies chunk into the buffer. A chunk that doesn't fit is rejected
// whole and the buffer is left unchanged.
func (ab *AudioBuffer) Append(chunk []byte) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if len(ab.data)+len(chunk) > ab.maxSize {
		return ErrBufferFull
	}
	ab.data = append(ab.data, chunk...)
	ab.chunks++
	return nil
}

// Flush returns everything buffered, in arrival order, and empties the buffer.
func (ab *AudioBuffer) Flush() []byte {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.chunks == 0 {
		return nil
	}
	out := ab.data
	ab.data = nil
	ab.chunks = 0
	return out
}

// Clear drops buffered audio.
func (ab *AudioBuffer) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.data = nil
	ab.chunks = 0
}

// Size returns the buffered byte count.
func (ab *AudioBuffer) Size() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.data)
}

// IsEmpty reports whether nothing has been appended since the last flush.
func (ab *AudioBuffer) IsEmpty() bool {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.chunks == 0
}

// ChunkCount returns how many chunks were appended since the last flush.
func (ab *AudioBuffer) ChunkCount() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.chunks
}
