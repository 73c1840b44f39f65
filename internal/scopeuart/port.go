package scopeuart

import (
	"io"

	"go.bug.st/serial"
)

// SerialPorter is the minimal interface the transport needs from a serial
// port. The receive path is never read, so only writing and closing are
// required. This abstraction enables unit testing without real hardware.
type SerialPorter interface {
	io.Writer
	io.Closer
}

// Drainer is implemented by ports that can block until all queued output has
// been transmitted. go.bug.st/serial ports implement it.
type Drainer interface {
	Drain() error
}

// SerialPortFactory opens serial ports. It exists so tests can inject a
// port without touching the operating system.
type SerialPortFactory interface {
	// Open opens the serial device at path with the given mode.
	Open(path string, mode *serial.Mode) (SerialPorter, error)
}

// PortTable maps UART indices to device paths, e.g. 1 -> /dev/ttyUSB0.
type PortTable map[int]string

// Lookup returns the device path for a UART index.
func (t PortTable) Lookup(port int) (string, bool) {
	path, ok := t[port]
	return path, ok && path != ""
}
