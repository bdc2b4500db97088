package bus

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaud = 115200

	// serialReadTimeout bounds each Read so the loop can notice Close.
	serialReadTimeout = 100 * time.Millisecond

	// readBufSize is sized for bursts of short acknowledgement lines.
	readBufSize = 256

	// maxLeftover caps unterminated carry-over between reads. A stream
	// with no newline for this long is garbage and gets dropped.
	maxLeftover = 4096
)

// serialPort is the slice of serial.Port the transport uses.
type serialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
}

// SerialTransport is the byte-level link over a serial port.
// It implements protocol.Transport: writes go out verbatim, inbound
// bytes are scanned into newline-terminated lines and delivered on a
// channel.
type SerialTransport struct {
	port  serialPort
	lines chan string

	mu     sync.Mutex
	open   bool
	closed chan struct{}
	done   chan struct{}
}

// OpenSerial opens the port at 8-N-1 framing and starts the read loop.
func OpenSerial(params SerialParams) (*SerialTransport, error) {
	baud := params.Baud
	if baud <= 0 {
		baud = defaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(params.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", params.Port, err)
	}
	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		port.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("configuring %s: %w", params.Port, err)
	}

	t := &SerialTransport{
		port:   port,
		lines:  make(chan string, 64),
		open:   true,
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t, nil
}

// Write sends one frame. The frame carries its own terminator.
func (t *SerialTransport) Write(frame []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return ErrClosed
	}
	n, err := t.port.Write(frame)
	if err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("serial write: short write %d of %d", n, len(frame))
	}
	return nil
}

// Lines delivers inbound lines, newline stripped. Closed on shutdown.
func (t *SerialTransport) Lines() <-chan string {
	return t.lines
}

// IsOpen reports whether the port is usable.
func (t *SerialTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close stops the read loop and releases the port.
func (t *SerialTransport) Close() error {
	t.mu.Lock()
	if !t.open {
		t.mu.Unlock()
		return nil
	}
	t.open = false
	close(t.closed)
	t.mu.Unlock()

	err := t.port.Close()
	<-t.done
	return err
}

// readLoop accumulates inbound bytes and emits complete lines.
// Partial lines carry over between reads; an unterminated run longer
// than maxLeftover is discarded as garbage.
func (t *SerialTransport) readLoop() {
	defer close(t.done)
	defer close(t.lines)

	buf := make([]byte, readBufSize)
	var leftover []byte

	for {
		select {
		case <-t.closed:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			// Port gone. Whoever flips open first owns the port close;
			// on a racing Close() that is the Close side.
			t.mu.Lock()
			wasOpen := t.open
			t.open = false
			t.mu.Unlock()
			if wasOpen {
				t.port.Close() //nolint:errcheck // Port already failing
			}
			return
		}
		if n == 0 {
			// Read timeout tick.
			continue
		}

		leftover = append(leftover, buf[:n]...)
		for {
			idx := bytes.IndexByte(leftover, '\n')
			if idx < 0 {
				break
			}
			line := string(leftover[:idx])
			leftover = leftover[idx+1:]
			if line == "" {
				continue
			}
			select {
			case t.lines <- line:
			case <-t.closed:
				return
			}
		}
		if len(leftover) > maxLeftover {
			leftover = leftover[:0]
		}
		// Compact so the slice does not pin the whole history.
		if len(leftover) > 0 && cap(leftover) > 4*readBufSize {
			leftover = append(make([]byte, 0, len(leftover)), leftover...)
		}
	}
}
