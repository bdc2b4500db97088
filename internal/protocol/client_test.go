package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockTransport is an in-memory Transport for client tests.
type mockTransport struct {
	mu       sync.Mutex
	written  [][]byte
	lines    chan string
	open     bool
	writeErr error
}

func newMockTransport() *mockTransport {
	return &mockTransport{lines: make(chan string, 16), open: true}
}

func (m *mockTransport) Write(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	m.written = append(m.written, cp)
	return nil
}

func (m *mockTransport) Lines() <-chan string { return m.lines }

func (m *mockTransport) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.open {
		m.open = false
		close(m.lines)
	}
	return nil
}

func (m *mockTransport) writtenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.written)
}

func TestParseReply(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Reply
		wantErr bool
	}{
		{"ack", "7/ACK", Reply{FlowerID: 7, Ack: true}, false},
		{"ack with text", "7/ACK:v2.1", Reply{FlowerID: 7, Ack: true, Text: "v2.1"}, false},
		{"ack with cr", "7/ACK\r", Reply{FlowerID: 7, Ack: true}, false},
		{"nack", "12/NACK", Reply{FlowerID: 12, Ack: false}, false},
		{"nack with text", "12/NACK:busy", Reply{FlowerID: 12, Ack: false, Text: "busy"}, false},
		{"empty", "", Reply{}, true},
		{"no slash", "7ACK", Reply{}, true},
		{"bad id", "abc/ACK", Reply{}, true},
		{"negative id", "-1/ACK", Reply{}, true},
		{"unknown verb", "7/PONG", Reply{}, true},
		{"debug chatter", "boot: led driver ready", Reply{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReply(tt.line)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedReply) {
					t.Fatalf("ParseReply(%q) error = %v, want ErrMalformedReply", tt.line, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseReply(%q) error = %v", tt.line, err)
			}
			if got != tt.want {
				t.Errorf("ParseReply(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

func TestClientSendAck(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	done := make(chan struct{})
	var reply Reply
	var sendErr error
	go func() {
		reply, sendErr = c.Send(context.Background(), 7, []byte("7/PING\n"), time.Second)
		close(done)
	}()

	waitFor(t, func() bool { return tr.writtenCount() == 1 })
	tr.lines <- "7/ACK"

	<-done
	if sendErr != nil {
		t.Fatalf("Send() error = %v", sendErr)
	}
	if !reply.Ack || reply.FlowerID != 7 {
		t.Errorf("reply = %+v", reply)
	}
}

func TestClientSendNack(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	done := make(chan struct{})
	var reply Reply
	go func() {
		reply, _ = c.Send(context.Background(), 3, []byte("3/OPEN\n"), time.Second)
		close(done)
	}()

	waitFor(t, func() bool { return tr.writtenCount() == 1 })
	tr.lines <- "3/NACK:stalled"

	<-done
	if reply.Ack {
		t.Error("reply.Ack = true, want false")
	}
	if reply.Text != "stalled" {
		t.Errorf("reply.Text = %q, want %q", reply.Text, "stalled")
	}
}

func TestClientSendTimeout(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	_, err := c.Send(context.Background(), 7, []byte("7/PING\n"), 20*time.Millisecond)
	if !errors.Is(err, ErrAckTimeout) {
		t.Fatalf("Send() error = %v, want ErrAckTimeout", err)
	}
}

func TestClientSendCancelled(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, 7, []byte("7/PING\n"), time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Send() error = %v, want context.Canceled", err)
	}
}

func TestClientMalformedLinesIgnored(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	done := make(chan struct{})
	var reply Reply
	var sendErr error
	go func() {
		reply, sendErr = c.Send(context.Background(), 7, []byte("7/PING\n"), time.Second)
		close(done)
	}()

	waitFor(t, func() bool { return tr.writtenCount() == 1 })
	tr.lines <- "noise"
	tr.lines <- "boot: motor driver ready"
	tr.lines <- "7/ACK"

	<-done
	if sendErr != nil {
		t.Fatalf("Send() error = %v", sendErr)
	}
	if !reply.Ack {
		t.Error("reply.Ack = false, want true")
	}
}

func TestClientReplyForOtherAddressIgnored(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	done := make(chan struct{})
	var sendErr error
	go func() {
		_, sendErr = c.Send(context.Background(), 7, []byte("7/PING\n"), 50*time.Millisecond)
		close(done)
	}()

	waitFor(t, func() bool { return tr.writtenCount() == 1 })
	tr.lines <- "8/ACK"

	<-done
	if !errors.Is(sendErr, ErrAckTimeout) {
		t.Fatalf("Send() error = %v, want ErrAckTimeout", sendErr)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	tr := newMockTransport()
	c := NewClient(tr, nil)
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := c.Send(context.Background(), 7, []byte("7/PING\n"), time.Second); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() error = %v, want ErrClosed", err)
	}
	if err := c.SendNoWait([]byte("0/PING\n")); !errors.Is(err, ErrClosed) {
		t.Errorf("SendNoWait() error = %v, want ErrClosed", err)
	}
}

func TestClientWriteError(t *testing.T) {
	tr := newMockTransport()
	tr.writeErr = errors.New("port gone")
	c := NewClient(tr, nil)
	defer c.Close() //nolint:errcheck

	_, err := c.Send(context.Background(), 7, []byte("7/PING\n"), time.Second)
	if err == nil || errors.Is(err, ErrAckTimeout) {
		t.Fatalf("Send() error = %v, want write error", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
