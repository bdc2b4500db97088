package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrAckTimeout is returned when no matching reply arrives within
	// the ack window.
	ErrAckTimeout = errors.New("protocol: ack timeout")

	// ErrClosed is returned when sending on a closed client.
	ErrClosed = errors.New("protocol: client closed")
)

// Transport is the byte-level link the client speaks over.
// The serial transport implements it; tests use an in-memory pair.
type Transport interface {
	// Write sends one frame. The frame carries its own terminator.
	Write(frame []byte) error

	// Lines delivers inbound reply lines, terminator stripped.
	// The channel closes when the transport closes.
	Lines() <-chan string

	// IsOpen reports link health.
	IsOpen() bool

	Close() error
}

// Logger is the minimal logging interface the client needs.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// pendingEntry is one in-flight exchange awaiting its reply.
type pendingEntry struct {
	flowerID int
	ch       chan Reply
}

// Client correlates request frames with acknowledgement lines.
//
// Reply lines carry the unit's wire address but no exchange token, so
// the client keeps a secondary index from address to the most recent
// exchange for that address and resolves replies against it. Two
// concurrent exchanges to the same address would race on that index;
// the dispatcher's per-unit serialization is what keeps the invariant.
type Client struct {
	transport Transport
	logger    Logger

	mu      sync.Mutex
	pending map[uuid.UUID]pendingEntry
	latest  map[int]uuid.UUID
	closed  bool
}

// NewClient wraps a transport and starts the read loop.
// The loop exits when the transport's line channel closes.
func NewClient(t Transport, logger Logger) *Client {
	if logger == nil {
		logger = noopLogger{}
	}
	c := &Client{
		transport: t,
		logger:    logger,
		pending:   make(map[uuid.UUID]pendingEntry),
		latest:    make(map[int]uuid.UUID),
	}
	go c.readLoop()
	return c
}

// Send writes one frame addressed to flowerID and waits up to timeout
// for the matching ACK or NACK.
//
// Returns ErrAckTimeout when the window elapses, the context error on
// cancellation, or the write error if the frame never left.
func (c *Client) Send(ctx context.Context, flowerID int, frame []byte, timeout time.Duration) (Reply, error) {
	id := uuid.New()
	ch := make(chan Reply, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Reply{}, ErrClosed
	}
	c.pending[id] = pendingEntry{flowerID: flowerID, ch: ch}
	c.latest[flowerID] = id
	c.mu.Unlock()

	if err := c.transport.Write(frame); err != nil {
		c.drop(id)
		return Reply{}, fmt.Errorf("writing frame: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		c.drop(id)
		return Reply{}, ErrAckTimeout
	case <-ctx.Done():
		c.drop(id)
		return Reply{}, ctx.Err()
	}
}

// SendNoWait writes one frame without registering an exchange.
// Used for broadcast frames, which are never acknowledged.
func (c *Client) SendNoWait(frame []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return c.transport.Write(frame)
}

// IsOpen reports whether the underlying transport link is up.
func (c *Client) IsOpen() bool {
	return c.transport.IsOpen()
}

// Close shuts the transport down and fails any in-flight exchanges.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = make(map[uuid.UUID]pendingEntry)
	c.latest = make(map[int]uuid.UUID)
	c.mu.Unlock()

	return c.transport.Close()
}

// readLoop parses inbound lines and resolves pending exchanges.
// Unrecognised lines are logged and dropped; the firmware occasionally
// emits debug chatter between acknowledgements.
func (c *Client) readLoop() {
	for line := range c.transport.Lines() {
		reply, err := ParseReply(line)
		if err != nil {
			c.logger.Debug("dropping unrecognised line", "line", line)
			continue
		}
		c.resolve(reply)
	}
}

// resolve matches a reply to the most recent exchange for its address.
func (c *Client) resolve(reply Reply) {
	c.mu.Lock()
	id, ok := c.latest[reply.FlowerID]
	var entry pendingEntry
	if ok {
		entry, ok = c.pending[id]
	}
	if ok {
		delete(c.pending, id)
		delete(c.latest, reply.FlowerID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Debug("reply with no pending exchange", "flower_id", reply.FlowerID)
		return
	}
	entry.ch <- reply
}

// drop removes an exchange that settled without a reply.
func (c *Client) drop(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pending[id]
	if !ok {
		return
	}
	delete(c.pending, id)
	if c.latest[entry.flowerID] == id {
		delete(c.latest, entry.flowerID)
	}
}
