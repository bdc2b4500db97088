package command

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/flower-core/internal/flower"
)

// Args holds a command's named arguments as decoded from JSON or a
// show file. Numeric values may arrive as float64 (encoding/json),
// json.Number or native ints; use Int to read them uniformly.
type Args map[string]any

// Int reads a named integer argument.
// Fractional values are rejected rather than truncated.
func (a Args) Int(key string) (int, error) {
	v, ok := a[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArgs, key)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgs, key)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgs, key)
		}
		return int(i), nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidArgs, key)
	}
}

// IntInRange reads a named integer argument and checks its bounds.
func (a Args) IntInRange(key string, min, max int) (int, error) {
	n, err := a.Int(key)
	if err != nil {
		return 0, err
	}
	if n < min || n > max {
		return 0, fmt.Errorf("%w: %q must be between %d and %d", ErrInvalidArgs, key, min, max)
	}
	return n, nil
}

// Merge overlays a on top of defaults and returns the result.
// Neither input is modified.
func Merge(defaults, a Args) Args {
	out := make(Args, len(defaults)+len(a))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Definition describes one command in the catalog: its identity, the
// unit categories it applies to, argument validation, the wire frames
// it emits and the state mutation applied when the unit acknowledges.
type Definition struct {
	// ID is the stable command identifier, e.g. "led.ramp".
	ID string

	// DisplayName is a human-readable label for UIs.
	DisplayName string

	// Categories lists the unit categories the command supports.
	// Empty means all categories; CategoryAny in the list also means all.
	Categories []flower.Category

	// Defaults supplies argument values merged under caller-provided args.
	Defaults Args

	// Validate checks the merged args. Nil means no arguments.
	Validate func(a Args) error

	// Frames renders the wire frames for a target unit. Args must have
	// been validated first. Most commands emit a single frame.
	Frames func(flowerID int, a Args) [][]byte

	// OnAck returns the state mutation to apply when the unit
	// acknowledges, or nil when the command has no state effect.
	OnAck func(a Args) flower.Mutator
}

// Supports reports whether the definition applies to units of the
// given category.
func (d Definition) Supports(c flower.Category) bool {
	if len(d.Categories) == 0 {
		return true
	}
	for _, dc := range d.Categories {
		if dc == flower.CategoryAny || dc == c {
			return true
		}
	}
	return false
}

// validateArgs runs the definition's validator if it has one.
func (d Definition) validateArgs(a Args) error {
	if d.Validate == nil {
		return nil
	}
	return d.Validate(a)
}
