package bus

import (
	"fmt"
	"sync"

	"github.com/simonvetter/modbus"
)

// ModbusTransport wraps a Modbus TCP connection to a field gateway.
// The underlying client is not safe for concurrent use and the
// dispatcher runs one worker per unit, so every exchange goes through
// the transport mutex.
type ModbusTransport struct {
	client *modbus.ModbusClient

	mu   sync.Mutex
	open bool
}

// OpenModbus dials the gateway and verifies the link with one read.
func OpenModbus(params ModbusParams) (*ModbusTransport, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s:%d", params.Host, params.Port),
		Timeout: params.ConnectTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("configuring modbus client: %w", err)
	}
	if err := client.SetUnitId(params.UnitID); err != nil {
		return nil, fmt.Errorf("setting unit id: %w", err)
	}
	if err := client.Open(); err != nil {
		return nil, fmt.Errorf("dialing %s:%d: %w", params.Host, params.Port, err)
	}

	t := &ModbusTransport{client: client, open: true}
	if err := t.probe(); err != nil {
		t.Close() //nolint:errcheck // Already failing
		return nil, fmt.Errorf("verifying %s:%d: %w", params.Host, params.Port, err)
	}
	return t, nil
}

// TestConnection dials, probes and disconnects. Used by the API's
// dry-run endpoint so operators can verify gateway reachability before
// committing a bus config.
func TestConnection(params ModbusParams) error {
	t, err := OpenModbus(params)
	if err != nil {
		return err
	}
	return t.Close()
}

// Execute performs one register operation.
func (t *ModbusTransport) Execute(op Operation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return ErrClosed
	}
	switch op.Kind {
	case OpWriteCoil:
		if err := t.client.WriteCoil(op.Address, op.Bit); err != nil {
			return fmt.Errorf("writing coil %d: %w", op.Address, err)
		}
	case OpWriteRegister:
		if err := t.client.WriteRegister(op.Address, op.Value); err != nil {
			return fmt.Errorf("writing register %d: %w", op.Address, err)
		}
	case OpReadProbe:
		if _, err := t.client.ReadRegisters(op.Address, 1, modbus.HOLDING_REGISTER); err != nil {
			return fmt.Errorf("reading register %d: %w", op.Address, err)
		}
	default:
		return fmt.Errorf("unknown operation kind %d", op.Kind)
	}
	return nil
}

// IsOpen reports whether the link is up.
func (t *ModbusTransport) IsOpen() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

// Close disconnects from the gateway.
func (t *ModbusTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.open {
		return nil
	}
	t.open = false
	return t.client.Close()
}

// probe reads the first holding register to confirm the gateway answers.
func (t *ModbusTransport) probe() error {
	return t.Execute(Operation{Kind: OpReadProbe, Address: regLEDBase})
}
