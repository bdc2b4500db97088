package bus

import "errors"

var (
	// ErrBusNotFound is returned when a bus ID has no directory entry.
	ErrBusNotFound = errors.New("bus: not found")

	// ErrInvalidConfig is returned when a bus config fails validation.
	ErrInvalidConfig = errors.New("bus: invalid config")

	// ErrNotMappable is returned by a register mapper for commands that
	// have no register representation on that bus.
	ErrNotMappable = errors.New("bus: command not mappable")

	// ErrClosed is returned when operating on a closed bus or directory.
	ErrClosed = errors.New("bus: closed")
)
