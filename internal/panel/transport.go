package panel

import (
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// Transport is the byte-stream link to the NX-587E module.
//
// Implementations must make Read return promptly with (0, nil) when no data
// arrives within a bounded interval, so workers can observe shutdown, and
// must make Close unblock a concurrent Read.
type Transport interface {
	io.Reader
	io.Writer

	// Open establishes the connection for a session.
	Open() error

	// Close releases the connection. Safe to call when not open.
	Close() error

	// Probe tests whether the transport is available for exclusive use,
	// without keeping it open.
	Probe() bool
}

// Serial port parameters for the NX-587E (fixed by the module: 9600 8N1).
const (
	serialBaudRate = 9600

	// serialReadTimeout bounds each Read so the reader worker can check
	// the session-active flag between reads.
	serialReadTimeout = 250 * time.Millisecond
)

// SerialTransport is the production Transport on a local serial port.
type SerialTransport struct {
	device string

	mu   sync.Mutex
	port serial.Port
}

// NewSerialTransport creates a transport for a serial device path such as
// /dev/ttyUSB0 or COM3. The port is not opened until Open is called.
func NewSerialTransport(device string) *SerialTransport {
	return &SerialTransport{device: device}
}

// serialMode returns the fixed line parameters for the module.
func serialMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: serialBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the serial port and configures the bounded read timeout.
func (t *SerialTransport) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port != nil {
		return fmt.Errorf("serial %s: already open", t.device)
	}

	port, err := serial.Open(t.device, serialMode())
	if err != nil {
		return fmt.Errorf("serial %s: %w", t.device, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("serial %s: set read timeout: %w", t.device, err)
	}

	t.port = port
	return nil
}

// Close closes the port if open, unblocking any pending Read.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	port := t.port
	t.port = nil
	t.mu.Unlock()

	if port == nil {
		return nil
	}
	return port.Close()
}

// Probe attempts an open-then-close to test availability. A port that is
// missing (adapter unplugged) or held by another process reports false.
func (t *SerialTransport) Probe() bool {
	port, err := serial.Open(t.device, serialMode())
	if err != nil {
		return false
	}
	port.Close()
	return true
}

// Read reads from the open port. Returns (0, nil) on read timeout.
func (t *SerialTransport) Read(p []byte) (int, error) {
	port := t.current()
	if port == nil {
		return 0, io.ErrClosedPipe
	}
	return port.Read(p)
}

// Write writes to the open port.
func (t *SerialTransport) Write(p []byte) (int, error) {
	port := t.current()
	if port == nil {
		return 0, io.ErrClosedPipe
	}
	return port.Write(p)
}

// current returns the open port, or nil.
func (t *SerialTransport) current() serial.Port {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port
}
