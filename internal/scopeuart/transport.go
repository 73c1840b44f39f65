// Package scopeuart drives the serial link that carries DataScope frames.
//
// A Transport addresses one UART index. Configure opens the device mapped to
// a port and marks that port active; Send only writes while the active port
// matches the addressed one. Anything else (never configured, disabled, or a
// different port configured) is a silent skip that reports zero bytes.
package scopeuart

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/touchscope/internal/monitoring"
)

// NoPort marks that no UART is active.
const NoPort = -1

// DefaultDrainTimeout bounds the wait for a previous frame to leave the
// device before the next one is written.
const DefaultDrainTimeout = time.Second

// Transport writes frames to the debug UART.
type Transport struct {
	mu sync.Mutex

	addr         int
	devices      PortTable
	factory      SerialPortFactory
	drainTimeout time.Duration

	active int
	cfg    Config
	path   string
	port   SerialPorter
	tx     *bufio.Writer

	stats Stats
	last  []byte
}

// Stats counts transport activity since creation.
type Stats struct {
	FramesSent   uint64 `json:"frames_sent"`
	BytesSent    uint64 `json:"bytes_sent"`
	SkippedSends uint64 `json:"skipped_sends"`
	WriteErrors  uint64 `json:"write_errors"`
}

// Status is a point-in-time view of the transport for diagnostics.
type Status struct {
	AddressedPort int    `json:"addressed_port"`
	ActivePort    int    `json:"active_port"`
	Device        string `json:"device,omitempty"`
	TxPin         int    `json:"tx_pin"`
	RxPin         int    `json:"rx_pin"`
	BaudRate      int    `json:"baud_rate"`
	Stats         Stats  `json:"stats"`
	LastFrame     string `json:"last_frame,omitempty"`
}

// NewTransport returns an unconfigured transport addressing UART addr.
// Sends are skipped until Configure activates that port.
func NewTransport(addr int, devices PortTable, factory SerialPortFactory) *Transport {
	if factory == nil {
		factory = RealPortFactory{}
	}
	return &Transport{
		addr:         addr,
		devices:      devices,
		factory:      factory,
		drainTimeout: DefaultDrainTimeout,
		active:       NoPort,
	}
}

// SetDrainTimeout changes the bound on the pre-send drain wait. A
// non-positive value waits without a bound.
func (t *Transport) SetDrainTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drainTimeout = d
}

// Configure opens the device mapped to cfg.Port with 8-N-1 framing and no
// flow control, then marks cfg.Port active. A previously opened device is
// closed only once the new one is open; if the open fails the previous
// configuration stays in effect.
func (t *Transport) Configure(cfg Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}
	path, ok := t.devices.Lookup(cfg.Port)
	if !ok {
		return fmt.Errorf("%w: no device mapped to uart %d", ErrInvalidPort, cfg.Port)
	}
	mode, err := cfg.SerialMode()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// The previous port keeps working if the new one cannot be opened.
	port, err := t.factory.Open(path, mode)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}

	if t.port != nil && t.port != port {
		if err := t.port.Close(); err != nil {
			monitoring.Logf("failed to close previous scope port %s: %v", t.path, err)
		}
	}

	t.cfg = cfg
	t.path = path
	t.port = port
	t.tx = bufio.NewWriterSize(port, TxBufferSize)
	t.active = cfg.Port

	monitoring.Logf("scope debug on uart%d (%s): baud=%d tx_pin=%d rx_pin=%d",
		cfg.Port, path, cfg.BaudRate, cfg.TxPin, cfg.RxPin)
	return nil
}

// Send writes frame to the device and returns the number of bytes written.
// It returns 0 without waiting when the addressed port is not the active
// one. Otherwise it blocks until the previous transmission has drained.
func (t *Transport) Send(frame []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == NoPort || t.active != t.addr || t.port == nil {
		t.stats.SkippedSends++
		return 0, nil
	}

	if err := t.waitDrained(); err != nil {
		t.stats.WriteErrors++
		return 0, err
	}

	n, err := t.tx.Write(frame)
	if err == nil {
		err = t.tx.Flush()
	}
	if err != nil {
		t.stats.WriteErrors++
		t.tx.Reset(t.port)
		if errors.Is(err, io.ErrShortWrite) {
			return 0, ErrWriteFailed
		}
		return 0, err
	}

	t.stats.FramesSent++
	t.stats.BytesSent += uint64(n)
	t.last = append(t.last[:0], frame...)
	return n, nil
}

// waitDrained blocks until the device reports its output queue empty, or
// the drain timeout elapses. Ports without Drain are treated as drained.
func (t *Transport) waitDrained() error {
	d, ok := t.port.(Drainer)
	if !ok {
		return nil
	}
	if t.drainTimeout <= 0 {
		return d.Drain()
	}

	done := make(chan error, 1)
	go func() { done <- d.Drain() }()

	timer := time.NewTimer(t.drainTimeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrDrainTimeout
	}
}

// Disable marks no port active. Later sends return 0 until Configure is
// called again. The device stays open until Close.
func (t *Transport) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != NoPort {
		monitoring.Logf("scope debug disabled on uart%d", t.active)
	}
	t.active = NoPort
}

// Active returns the active UART index, or NoPort.
func (t *Transport) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Close disables the transport and closes the device.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.active = NoPort
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port, t.tx = nil, nil
	return err
}

// Status returns a snapshot for diagnostics.
func (t *Transport) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Status{
		AddressedPort: t.addr,
		ActivePort:    t.active,
		Device:        t.path,
		TxPin:         t.cfg.TxPin,
		RxPin:         t.cfg.RxPin,
		BaudRate:      t.cfg.BaudRate,
		Stats:         t.stats,
		LastFrame:     fmt.Sprintf("% x", t.last),
	}
}
