package bus

import (
	"context"

	"github.com/nerrad567/flower-core/internal/command"
)

// Client is one connected bus. Send blocks for the duration of the
// exchange and always settles with an outcome; transport failures
// surface as outcomes, not errors, so the dispatcher has a single
// settlement path.
type Client interface {
	// ID returns the bus identifier.
	ID() string

	// Type returns the transport type.
	Type() Type

	// IsOpen reports link health.
	IsOpen() bool

	// Send performs one command exchange.
	Send(ctx context.Context, req *command.Request) command.Outcome

	// Close tears the link down.
	Close() error
}

// Logger is the minimal logging interface the bus layer needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
