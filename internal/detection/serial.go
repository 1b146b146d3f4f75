package detection

import (
	"fmt"

	"go.bug.st/serial"
)

// SerialMode maps the configuration onto a port mode for go.bug.st/serial.
// Inversion is a line-driver setting and has no counterpart in the mode.
//
// Returns ErrInvalidBaud or ErrInvalidFraming (wrapped) when the values
// cannot describe a UART.
func (c CommConfig) SerialMode() (*serial.Mode, error) {
	if c.Baud <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBaud, c.Baud)
	}

	dataBits, parity, stopBits, err := ParseFraming(c.Parity)
	if err != nil {
		return nil, err
	}

	return &serial.Mode{
		BaudRate: c.Baud,
		DataBits: dataBits,
		Parity:   parity,
		StopBits: stopBits,
	}, nil
}

// ParseFraming decodes a framing string such as "8E1" or "7N2":
// data bits (5-8), parity (N, E, O, M or S) and stop bits (1 or 2).
func ParseFraming(framing string) (dataBits int, parity serial.Parity, stopBits serial.StopBits, err error) {
	if len(framing) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: %q", ErrInvalidFraming, framing)
	}

	if framing[0] < '5' || framing[0] > '8' {
		return 0, 0, 0, fmt.Errorf("%w: data bits in %q", ErrInvalidFraming, framing)
	}
	dataBits = int(framing[0] - '0')

	switch framing[1] {
	case 'N', 'n':
		parity = serial.NoParity
	case 'E', 'e':
		parity = serial.EvenParity
	case 'O', 'o':
		parity = serial.OddParity
	case 'M', 'm':
		parity = serial.MarkParity
	case 'S', 's':
		parity = serial.SpaceParity
	default:
		return 0, 0, 0, fmt.Errorf("%w: parity in %q", ErrInvalidFraming, framing)
	}

	switch framing[2] {
	case '1':
		stopBits = serial.OneStopBit
	case '2':
		stopBits = serial.TwoStopBits
	default:
		return 0, 0, 0, fmt.Errorf("%w: stop bits in %q", ErrInvalidFraming, framing)
	}

	return dataBits, parity, stopBits, nil
}

// SerialPorts lists the serial ports present on this host.
func SerialPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
