package scopeuart

import (
	"fmt"

	"go.bug.st/serial"
)

const (
	// MaxPorts is the number of UART indices a transport may address.
	MaxPorts = 3
	// DefaultBaudRate is the rate the DataScope tool expects by default.
	DefaultBaudRate = 256000
	// TxBufferSize is the capacity of the transmit buffer placed in front of
	// the device.
	TxBufferSize = 1024
)

// Config describes the debug UART. It is captured once by Configure and not
// re-validated per send.
type Config struct {
	Port     int `json:"port"`
	TxPin    int `json:"tx_pin"`
	RxPin    int `json:"rx_pin"`
	BaudRate int `json:"baud_rate"`
}

// ValidPort reports whether port is a UART index in [0, MaxPorts).
func ValidPort(port int) bool {
	return port >= 0 && port < MaxPorts
}

// Normalize validates the config and applies defaults for unset values.
func (c Config) Normalize() (Config, error) {
	cfg := c

	if !ValidPort(cfg.Port) {
		return cfg, fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidPort, cfg.Port, MaxPorts-1)
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	return cfg, nil
}

// SerialMode converts the config into the 8-N-1 serial.Mode used when
// opening the device. Flow control is never enabled.
func (c Config) SerialMode() (*serial.Mode, error) {
	cfg, err := c.Normalize()
	if err != nil {
		return nil, err
	}

	return &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}, nil
}
