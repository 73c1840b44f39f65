package scopeuart

import (
	"go.bug.st/serial"
)

// RealPortFactory opens operating-system serial ports through go.bug.st/serial.
type RealPortFactory struct{}

// Open implements SerialPortFactory.
func (RealPortFactory) Open(path string, mode *serial.Mode) (SerialPorter, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// ListPorts returns the serial devices present on this machine.
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}
