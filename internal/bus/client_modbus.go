package bus

import (
	"context"

	"github.com/nerrad567/flower-core/internal/command"
)

// ModbusClient drives a Modbus TCP bus by mapping catalog commands to
// register operations.
type ModbusClient struct {
	id        string
	transport *ModbusTransport
	mapper    Mapper
	logger    Logger
}

// NewModbusClient wraps a transport and mapper as a bus Client.
func NewModbusClient(id string, transport *ModbusTransport, mapper Mapper, logger Logger) *ModbusClient {
	if logger == nil {
		logger = noopLogger{}
	}
	if mapper == nil {
		mapper = NewDefaultMapper()
	}
	return &ModbusClient{id: id, transport: transport, mapper: mapper, logger: logger}
}

func (c *ModbusClient) ID() string   { return c.id }
func (c *ModbusClient) Type() Type   { return TypeModbusTCP }
func (c *ModbusClient) IsOpen() bool { return c.transport.IsOpen() }

// Send maps the command to register operations and executes them in
// order. A completed sequence settles Acked: register writes have no
// application-level acknowledgement beyond the Modbus confirmation.
// Commands outside the gateway's register map settle Nacked; transport
// failures settle Timeout. There is no register broadcast, so the
// broadcast address settles Timeout without touching the wire.
func (c *ModbusClient) Send(ctx context.Context, req *command.Request) command.Outcome {
	if req.FlowerID == command.BroadcastID {
		return command.Timeout
	}
	if err := ctx.Err(); err != nil {
		return command.Timeout
	}

	ops, err := c.mapper.Map(req.FlowerID, req.CommandID, req.Args)
	if err != nil {
		c.logger.Debug("command has no register mapping",
			"bus", c.id, "flower_id", req.FlowerID, "command", req.CommandID, "error", err)
		return command.Nacked
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return command.Timeout
		}
		if err := c.transport.Execute(op); err != nil {
			c.logger.Debug("register operation failed",
				"bus", c.id, "flower_id", req.FlowerID, "command", req.CommandID, "error", err)
			return command.Timeout
		}
	}
	return command.Acked
}

// Close disconnects from the gateway.
func (c *ModbusClient) Close() error {
	return c.transport.Close()
}
