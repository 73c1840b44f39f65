package scopeuart

import (
	"bytes"
	"errors"
	"sync"
	"time"

	"go.bug.st/serial"
)

// TestableSerialPort implements SerialPorter and Drainer with configurable
// behaviour for testing. It records writes and drain calls.
type TestableSerialPort struct {
	mu sync.Mutex

	// WriteBuffer captures data written to the port
	WriteBuffer *bytes.Buffer

	// WriteLatency adds a delay to each Write call
	WriteLatency time.Duration

	// DrainLatency adds a delay to each Drain call
	DrainLatency time.Duration

	// WriteError is returned by the next Write call if set
	WriteError error

	// DrainError is returned by the next Drain call if set
	DrainError error

	// CloseError is returned by Close if set
	CloseError error

	// ShortWrite makes Write accept one byte less than offered
	ShortWrite bool

	// Closed indicates whether Close was called
	Closed bool

	// WriteCalls records the number of Write calls
	WriteCalls int

	// DrainCalls records the number of Drain calls
	DrainCalls int
}

// NewTestableSerialPort creates a new TestableSerialPort for testing.
func NewTestableSerialPort() *TestableSerialPort {
	return &TestableSerialPort{
		WriteBuffer: bytes.NewBuffer(nil),
	}
}

// Write appends to the write buffer, optionally simulating latency and errors.
func (t *TestableSerialPort) Write(p []byte) (n int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.WriteCalls++

	if t.Closed {
		return 0, errors.New("serial port closed")
	}

	if t.WriteError != nil {
		err := t.WriteError
		t.WriteError = nil
		return 0, err
	}

	if t.WriteLatency > 0 {
		t.mu.Unlock()
		time.Sleep(t.WriteLatency)
		t.mu.Lock()
	}

	if t.ShortWrite && len(p) > 0 {
		p = p[:len(p)-1]
	}
	return t.WriteBuffer.Write(p)
}

// Drain implements Drainer.
func (t *TestableSerialPort) Drain() error {
	t.mu.Lock()
	t.DrainCalls++
	latency := t.DrainLatency
	err := t.DrainError
	t.DrainError = nil
	t.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	return err
}

// Close marks the port as closed.
func (t *TestableSerialPort) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Closed = true
	return t.CloseError
}

// GetWrittenData returns a copy of all data written to the port.
func (t *TestableSerialPort) GetWrittenData() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]byte(nil), t.WriteBuffer.Bytes()...)
}

// Calls returns the write and drain call counts.
func (t *TestableSerialPort) Calls() (writes, drains int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.WriteCalls, t.DrainCalls
}

// MockSerialPortFactory implements SerialPortFactory for testing.
type MockSerialPortFactory struct {
	mu sync.Mutex

	// Port is the port to return from Open
	Port SerialPorter

	// Error is returned by Open if set
	Error error

	// OpenCalls records all Open calls
	OpenCalls []MockOpenCall
}

// MockOpenCall records details of an Open call.
type MockOpenCall struct {
	Path string
	Mode *serial.Mode
}

// NewMockSerialPortFactory creates a new MockSerialPortFactory.
func NewMockSerialPortFactory(port SerialPorter) *MockSerialPortFactory {
	return &MockSerialPortFactory{Port: port}
}

// Open returns the configured port or error.
func (f *MockSerialPortFactory) Open(path string, mode *serial.Mode) (SerialPorter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.OpenCalls = append(f.OpenCalls, MockOpenCall{
		Path: path,
		Mode: mode,
	})

	if f.Error != nil {
		return nil, f.Error
	}

	return f.Port, nil
}

// LastCall returns the most recent Open call, or nil if none.
func (f *MockSerialPortFactory) LastCall() *MockOpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.OpenCalls) == 0 {
		return nil
	}
	return &f.OpenCalls[len(f.OpenCalls)-1]
}
