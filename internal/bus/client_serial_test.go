package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/protocol"
)

// echoTransport is an in-memory protocol.Transport that answers every
// written frame according to a scripted reply function.
type echoTransport struct {
	mu    sync.Mutex
	open  bool
	lines chan string
	reply func(frame string) (string, bool)
}

func newEchoTransport(reply func(frame string) (string, bool)) *echoTransport {
	return &echoTransport{open: true, lines: make(chan string, 16), reply: reply}
}

func (e *echoTransport) Write(frame []byte) error {
	if line, ok := e.reply(string(frame)); ok {
		e.lines <- line
	}
	return nil
}

func (e *echoTransport) Lines() <-chan string { return e.lines }

func (e *echoTransport) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

func (e *echoTransport) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		e.open = false
		close(e.lines)
	}
	return nil
}

func requestFor(flowerID int, commandID string, frames ...string) *command.Request {
	req := &command.Request{
		BusID:      "field-a",
		FlowerID:   flowerID,
		CommandID:  commandID,
		AckTimeout: 200 * time.Millisecond,
	}
	for _, f := range frames {
		req.Frames = append(req.Frames, []byte(f))
	}
	return req
}

func TestSerialClientSendAcked(t *testing.T) {
	tr := newEchoTransport(func(string) (string, bool) { return "7/ACK", true })
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	got := c.Send(context.Background(), requestFor(7, command.Ping, "7/PING\n"))
	if got != command.Acked {
		t.Errorf("Send() = %q, want %q", got, command.Acked)
	}
}

func TestSerialClientSendNacked(t *testing.T) {
	tr := newEchoTransport(func(string) (string, bool) { return "7/NACK:stalled", true })
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	got := c.Send(context.Background(), requestFor(7, command.MotorOpen, "7/OPEN\n"))
	if got != command.Nacked {
		t.Errorf("Send() = %q, want %q", got, command.Nacked)
	}
}

func TestSerialClientSendTimeout(t *testing.T) {
	tr := newEchoTransport(func(string) (string, bool) { return "", false })
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	got := c.Send(context.Background(), requestFor(7, command.Ping, "7/PING\n"))
	if got != command.Timeout {
		t.Errorf("Send() = %q, want %q", got, command.Timeout)
	}
}

func TestSerialClientCancelledSettlesTimeout(t *testing.T) {
	tr := newEchoTransport(func(string) (string, bool) { return "", false })
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := c.Send(ctx, requestFor(7, command.Ping, "7/PING\n"))
	if got != command.Timeout {
		t.Errorf("Send() = %q, want %q", got, command.Timeout)
	}
}

func TestSerialClientBroadcastNeverAcks(t *testing.T) {
	var written []string
	var mu sync.Mutex
	tr := newEchoTransport(func(frame string) (string, bool) {
		mu.Lock()
		written = append(written, frame)
		mu.Unlock()
		// Even a stray reply must not settle a broadcast as acked.
		return "0/ACK", true
	})
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	got := c.Send(context.Background(), requestFor(command.BroadcastID, command.Ping, "0/PING\n"))
	if got != command.Timeout {
		t.Errorf("Send() = %q, want %q", got, command.Timeout)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(written) != 1 || written[0] != "0/PING\n" {
		t.Errorf("written = %v", written)
	}
}

func TestSerialClientMultiFrameStopsOnNack(t *testing.T) {
	calls := 0
	tr := newEchoTransport(func(string) (string, bool) {
		calls++
		if calls == 1 {
			return "7/ACK", true
		}
		return "7/NACK", true
	})
	c := NewSerialClient("field-a", protocol.NewClient(tr, nil), nil)
	defer c.Close() //nolint:errcheck

	got := c.Send(context.Background(), requestFor(7, command.LEDRamp, "7/A\n", "7/B\n", "7/C\n"))
	if got != command.Nacked {
		t.Errorf("Send() = %q, want %q", got, command.Nacked)
	}
	if calls != 2 {
		t.Errorf("frames written = %d, want 2", calls)
	}
}
