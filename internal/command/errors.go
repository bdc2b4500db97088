package command

import "errors"

var (
	// ErrUnknownCommand is returned when a command ID is not in the catalog.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrUnsupportedCategory is returned when a command does not apply to
	// the target unit's category.
	ErrUnsupportedCategory = errors.New("command: unsupported category")

	// ErrInvalidArgs is returned when argument validation fails.
	ErrInvalidArgs = errors.New("command: invalid arguments")
)
