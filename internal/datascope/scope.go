package datascope

import (
	"fmt"
	"sync"

	"github.com/banshee-data/touchscope/internal/monitoring"
)

// Sender transmits an encoded frame. *scopeuart.Transport satisfies it.
// Implementations return 0 with a nil error when the debug link is inactive.
type Sender interface {
	Send(frame []byte) (int, error)
}

// Scope pairs an Encoder with a Sender and runs encode-then-send as one
// critical section.
type Scope struct {
	mu     sync.Mutex
	enc    *Encoder
	sender Sender
	frames uint64
}

// NewScope returns a Scope with its own encoder.
func NewScope(sender Sender) *Scope {
	return &Scope{
		enc:    NewEncoder(),
		sender: sender,
	}
}

// Print encodes the first n values and hands the frame to the sender. It
// returns the number of bytes written, which is 0 when the sender skipped
// the frame. Encode failures are returned before any transmission.
func (s *Scope) Print(values []float32, n int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame, err := s.enc.Encode(values, n)
	if err != nil {
		return 0, err
	}

	written, err := s.sender.Send(frame)
	if err != nil {
		return written, fmt.Errorf("failed to send frame: %w", err)
	}
	if written > 0 {
		s.frames++
		monitoring.Debugf("frame %d: %d channels, %d bytes", s.frames, n, written)
	}
	return written, nil
}

// LastFrame returns a copy of the most recently encoded frame for n channels.
func (s *Scope) LastFrame(n int) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !ValidChannel(n) {
		return nil
	}
	out := make([]byte, FrameLength(n))
	copy(out, s.enc.Bytes())
	return out
}

// FramesSent returns the number of frames the sender accepted.
func (s *Scope) FramesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
