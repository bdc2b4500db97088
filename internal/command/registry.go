package command

import (
	"fmt"
	"sort"

	"github.com/nerrad567/flower-core/internal/flower"
)

// catalog indexes the builtin definitions by ID.
var catalog = func() map[string]Definition {
	m := make(map[string]Definition, len(builtins))
	for _, d := range builtins {
		if _, dup := m[d.ID]; dup {
			panic(fmt.Sprintf("command: duplicate definition %q", d.ID))
		}
		m[d.ID] = d
	}
	return m
}()

// Get returns the definition for a command ID.
func Get(id string) (Definition, error) {
	d, ok := catalog[id]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownCommand, id)
	}
	return d, nil
}

// All returns every catalog definition, sorted by ID.
func All() []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForCategory returns the definitions applicable to units of the given
// category, sorted by ID.
func ForCategory(c flower.Category) []Definition {
	out := make([]Definition, 0, len(catalog))
	for _, d := range catalog {
		if d.Supports(c) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
