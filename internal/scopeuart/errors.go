package scopeuart

import "errors"

var (
	// ErrInvalidPort is returned by Configure for a port index outside the
	// hardware range or one with no device mapped to it.
	ErrInvalidPort = errors.New("invalid uart port")
	// ErrWriteFailed is returned when the device accepted fewer bytes than
	// the frame length.
	ErrWriteFailed = errors.New("failed to write to serial port")
	// ErrDrainTimeout is returned when the previous transmission did not
	// complete within the drain timeout.
	ErrDrainTimeout = errors.New("timed out waiting for transmission to drain")
)
