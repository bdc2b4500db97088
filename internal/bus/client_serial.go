package bus

import (
	"context"

	"github.com/nerrad567/flower-core/internal/command"
	"github.com/nerrad567/flower-core/internal/protocol"
)

// SerialClient drives a serial bus through the acknowledgement
// protocol client.
type SerialClient struct {
	id     string
	proto  *protocol.Client
	logger Logger
}

// newProtocolClient attaches the acknowledgement protocol to an open
// serial transport.
func newProtocolClient(t *SerialTransport, logger Logger) *protocol.Client {
	return protocol.NewClient(t, logger)
}

// NewSerialClient wraps a protocol client as a bus Client.
func NewSerialClient(id string, proto *protocol.Client, logger Logger) *SerialClient {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SerialClient{id: id, proto: proto, logger: logger}
}

func (c *SerialClient) ID() string   { return c.id }
func (c *SerialClient) Type() Type   { return TypeSerial }
func (c *SerialClient) IsOpen() bool { return c.proto.IsOpen() }

// Send performs one exchange: every frame is written and awaited in
// order, and the first non-acknowledgement settles the request.
//
// Broadcast frames are written without waiting; nothing acknowledges
// the broadcast address, so the exchange settles Timeout regardless.
// Cancellation, write failures and silent units all settle Timeout as
// well, which marks the unit degraded until a probe revives it.
func (c *SerialClient) Send(ctx context.Context, req *command.Request) command.Outcome {
	if req.FlowerID == command.BroadcastID {
		for _, f := range req.Frames {
			if err := c.proto.SendNoWait(f); err != nil {
				c.logger.Warn("broadcast write failed", "bus", c.id, "error", err)
				break
			}
		}
		return command.Timeout
	}

	for _, f := range req.Frames {
		reply, err := c.proto.Send(ctx, req.FlowerID, f, req.AckTimeout)
		if err != nil {
			c.logger.Debug("exchange settled without ack",
				"bus", c.id, "flower_id", req.FlowerID, "command", req.CommandID, "error", err)
			return command.Timeout
		}
		if !reply.Ack {
			c.logger.Debug("unit rejected command",
				"bus", c.id, "flower_id", req.FlowerID, "command", req.CommandID, "text", reply.Text)
			return command.Nacked
		}
	}
	return command.Acked
}

// Close shuts the protocol client and the underlying port down.
func (c *SerialClient) Close() error {
	return c.proto.Close()
}
