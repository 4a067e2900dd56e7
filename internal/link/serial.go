package link

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/1ureka/groundlink/internal/util"
)

// Serial is a KISS TNC on a serial port. The port's RTS and DTR outputs
// double as the RX and TX activity lines.
type Serial struct {
	*Stream
	port serial.Port
}

var (
	_ Link  = (*Serial)(nil)
	_ Lines = (*Serial)(nil)
)

// OpenSerial opens portName at baud and starts reading frames.
func OpenSerial(portName string, baud int) (*Serial, error) {
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	// Short read timeout so the read loop notices Close promptly.
	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	util.LogInfo("opened serial port %s at %d baud", portName, baud)

	s := &Serial{port: port}
	s.Stream = NewStream(port)
	s.Stream.drain = port.Drain
	return s, nil
}

// SetRX drives the RX activity line (RTS).
func (s *Serial) SetRX(on bool) error { return s.port.SetRTS(on) }

// SetTX drives the TX activity line (DTR).
func (s *Serial) SetTX(on bool) error { return s.port.SetDTR(on) }

// ListSerialPorts returns the serial ports present on this machine.
func ListSerialPorts() ([]string, error) {
	return serial.GetPortsList()
}
