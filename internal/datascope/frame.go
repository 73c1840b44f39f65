package datascope

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// MaxChannels is the number of channel slots in a frame.
	MaxChannels = 10
	// Header marks the start of every frame.
	Header byte = '$'
	// BufferSize holds one frame with every channel populated.
	BufferSize = 4*MaxChannels + 2
)

// ValidChannel reports whether ch is a 1-based channel index in range.
func ValidChannel(ch int) bool {
	return ch >= 1 && ch <= MaxChannels
}

// ChannelOffset returns the buffer offset of the first payload byte for a
// 1-based channel index.
func ChannelOffset(ch int) int {
	return 4*(ch-1) + 1
}

// TrailerOffset returns the offset of the trailer byte for a frame carrying n
// channels. The trailer byte stores this same value.
func TrailerOffset(n int) int {
	return 4*n + 1
}

// FrameLength returns the number of bytes to transmit for n channels.
func FrameLength(n int) int {
	return 4*n + 2
}

// Encoder owns a single frame buffer. Each Encode overwrites the previous
// frame in place and nothing is allocated per call. An Encoder is not safe
// for concurrent use; see Scope for a synchronised encode-then-send.
type Encoder struct {
	buf [BufferSize]byte
}

// NewEncoder returns an Encoder with a zeroed buffer.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// SetChannel writes the raw bytes of value into the slot for channel ch.
// Channels outside [1, MaxChannels] are ignored.
func (e *Encoder) SetChannel(value float32, ch int) {
	if !ValidChannel(ch) {
		return
	}
	off := ChannelOffset(ch)
	binary.LittleEndian.PutUint32(e.buf[off:off+4], math.Float32bits(value))
}

// Finalize writes the frame header and the trailer for a frame carrying n
// channels and returns the frame length. It returns 0 and leaves the buffer
// untouched when n is out of range.
func (e *Encoder) Finalize(n int) int {
	if !ValidChannel(n) {
		return 0
	}
	e.buf[0] = Header
	t := TrailerOffset(n)
	e.buf[t] = byte(t)
	return FrameLength(n)
}

// Encode loads the first n values into channels 1..n, finalizes the frame
// and returns a view of the encoded bytes. The returned slice aliases the
// encoder's buffer and is only valid until the next call.
func (e *Encoder) Encode(values []float32, n int) ([]byte, error) {
	if values == nil {
		return nil, ErrNullData
	}
	if !ValidChannel(n) {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidChannelCount, n, MaxChannels)
	}
	if len(values) < n {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrShortData, len(values), n)
	}

	for i := 0; i < n; i++ {
		e.SetChannel(values[i], i+1)
	}
	length := e.Finalize(n)
	return e.buf[:length], nil
}

// Bytes returns the full buffer, including slots beyond the last frame.
func (e *Encoder) Bytes() []byte {
	return e.buf[:]
}
