// Package serialio opens real serial devices as io.ReadWriteClosers. It is
// the one concrete implementation behind the "OS-provided byte stream"
// seam the Line Pipe and directory layers otherwise treat abstractly.
package serialio

import (
	"fmt"

	"go.bug.st/serial"
)

// Config names one real device to open at startup.
type Config struct {
	Device   string
	BaudRate int
}

// Open opens a serial device with 8 data bits, no parity, one stop bit —
// the overwhelming default for the TTY devices this service expects to
// see (sensor rigs, benches, lab equipment), matching the mode field
// names the go.bug.st/serial library exposes.
func Open(cfg Config) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("serialio: open %s: %w", cfg.Device, err)
	}
	return port, nil
}
