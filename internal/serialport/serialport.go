// Package serialport opens UART devices as raw byte sources.
package serialport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ErrBaudRate is returned for rates the device cannot be configured with.
var ErrBaudRate = errors.New("unsupported baud rate")

const (
	// pollTimeout bounds how long Buffered waits for the first byte.
	pollTimeout = 10 * time.Millisecond
	readChunk   = 4096
)

// Port is an open serial device in raw 8N1 mode. Device names are platform
// paths such as /dev/ttyUSB0, /dev/tty.usbserial-210 or COM3.
type Port struct {
	name    string
	port    serial.Port
	buf     []byte
	pending []byte
}

// Open opens name at baudRate.
func Open(name string, baudRate int) (*Port, error) {
	if baudRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrBaudRate, baudRate)
	}
	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.InvalidSpeed {
			return nil, fmt.Errorf("%w: %d: %w", ErrBaudRate, baudRate, err)
		}
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	if err := sp.SetReadTimeout(pollTimeout); err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("configuring %s: %w", name, err)
	}
	return &Port{
		name: name,
		port: sp,
		buf:  make([]byte, readChunk),
	}, nil
}

// Buffered returns the number of bytes ready to be read. When none are
// held it waits up to pollTimeout for the device to deliver some.
func (p *Port) Buffered() (int, error) {
	if len(p.pending) > 0 {
		return len(p.pending), nil
	}
	n, err := p.port.Read(p.buf)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", p.name, err)
	}
	p.pending = p.buf[:n]
	return n, nil
}

// Read returns bytes held by Buffered first, then reads the device.
func (p *Port) Read(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}
	n, err := p.port.Read(b)
	if err != nil {
		return n, fmt.Errorf("reading %s: %w", p.name, err)
	}
	return n, nil
}

// Close releases the device.
func (p *Port) Close() error {
	if err := p.port.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", p.name, err)
	}
	return nil
}

// Name returns the device name.
func (p *Port) Name() string {
	return p.name
}

// List returns the serial devices present on this machine.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}
