package bus

import (
	"context"
	"fmt"
	"sync"
)

// Factory builds a connected Client from a validated config.
// Tests substitute an in-memory factory.
type Factory func(cfg Config, logger Logger) (Client, error)

// DefaultFactory opens the real transport for the config's type.
func DefaultFactory(cfg Config, logger Logger) (Client, error) {
	switch cfg.Type {
	case TypeSerial:
		transport, err := OpenSerial(cfg.Serial)
		if err != nil {
			return nil, err
		}
		proto := newProtocolClient(transport, logger)
		return NewSerialClient(cfg.ID, proto, logger), nil
	case TypeModbusTCP:
		transport, err := OpenModbus(cfg.Modbus)
		if err != nil {
			return nil, err
		}
		return NewModbusClient(cfg.ID, transport, NewDefaultMapper(), logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown bus type %q", ErrInvalidConfig, cfg.Type)
	}
}

// Status is a read-only snapshot of one directory entry.
type Status struct {
	ID   string `json:"id"`
	Type Type   `json:"type"`
	Open bool   `json:"open"`
}

// Directory owns the live bus clients.
//
// Connect and Disconnect are serialized through a single gate so that
// at most one teardown-and-replace runs at a time; reconnecting a bus
// an operator is simultaneously disconnecting cannot interleave. Reads
// (Get, IsOpen, List) only take the entry lock and never wait on the
// gate.
type Directory struct {
	factory Factory
	logger  Logger

	gate chan struct{}

	mu      sync.RWMutex
	entries map[string]Client
	closed  bool
}

// NewDirectory creates an empty directory. A nil factory selects
// DefaultFactory.
func NewDirectory(factory Factory, logger Logger) *Directory {
	if factory == nil {
		factory = DefaultFactory
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Directory{
		factory: factory,
		logger:  logger,
		gate:    make(chan struct{}, 1),
		entries: make(map[string]Client),
	}
}

// Connect opens a bus from its config, replacing any existing client
// under the same ID. The old client is fully torn down before the new
// one is built; if the new connection fails, the bus is left absent
// rather than half-registered.
func (d *Directory) Connect(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	old := d.entries[cfg.ID]
	delete(d.entries, cfg.ID)
	d.mu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Warn("closing previous bus client", "bus", cfg.ID, "error", err)
		}
	}

	client, err := d.factory(cfg, d.logger)
	if err != nil {
		return fmt.Errorf("connecting bus %q: %w", cfg.ID, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		client.Close() //nolint:errcheck // Directory shut down mid-connect
		return ErrClosed
	}
	d.entries[cfg.ID] = client
	d.mu.Unlock()

	d.logger.Info("bus connected", "bus", cfg.ID, "type", cfg.Type)
	return nil
}

// ConnectAll opens each config in order. Failures are logged and
// skipped so one dead gateway does not block the rest of the field.
func (d *Directory) ConnectAll(ctx context.Context, configs []Config) {
	for _, cfg := range configs {
		if err := d.Connect(ctx, cfg); err != nil {
			d.logger.Error("bus connect failed", "bus", cfg.ID, "error", err)
		}
	}
}

// Disconnect tears one bus down and removes it.
func (d *Directory) Disconnect(ctx context.Context, id string) error {
	if err := d.acquire(ctx); err != nil {
		return err
	}
	defer d.release()

	d.mu.Lock()
	client, ok := d.entries[id]
	delete(d.entries, id)
	d.mu.Unlock()

	if !ok {
		return ErrBusNotFound
	}
	if err := client.Close(); err != nil {
		return fmt.Errorf("disconnecting bus %q: %w", id, err)
	}
	d.logger.Info("bus disconnected", "bus", id)
	return nil
}

// Get returns the live client for a bus ID.
func (d *Directory) Get(id string) (Client, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	client, ok := d.entries[id]
	if !ok {
		return nil, ErrBusNotFound
	}
	return client, nil
}

// IsOpen reports whether a bus exists and its link is up.
func (d *Directory) IsOpen(id string) bool {
	client, err := d.Get(id)
	return err == nil && client.IsOpen()
}

// List returns a snapshot of every registered bus.
func (d *Directory) List() []Status {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]Status, 0, len(d.entries))
	for _, c := range d.entries {
		out = append(out, Status{ID: c.ID(), Type: c.Type(), Open: c.IsOpen()})
	}
	return out
}

// Close tears every bus down and rejects further connects.
func (d *Directory) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	entries := d.entries
	d.entries = make(map[string]Client)
	d.mu.Unlock()

	var firstErr error
	for id, c := range entries {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing bus %q: %w", id, err)
		}
	}
	return firstErr
}

func (d *Directory) acquire(ctx context.Context) error {
	select {
	case d.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Directory) release() {
	<-d.gate
}
