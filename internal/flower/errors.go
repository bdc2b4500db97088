package flower

import "errors"

// Domain errors for the flower package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, flower.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a unit ID does not exist in the fleet.
	ErrNotFound = errors.New("flower: not found")

	// ErrExists is returned when creating a unit with an ID that already exists.
	ErrExists = errors.New("flower: already exists")

	// ErrPriorityTaken is returned when a unit's priority key collides
	// with another unit.
	ErrPriorityTaken = errors.New("flower: priority already taken")

	// ErrInvalidUnit is returned when unit validation fails.
	ErrInvalidUnit = errors.New("flower: invalid unit")

	// ErrInvalidID is returned when a unit ID is outside 1..999.
	ErrInvalidID = errors.New("flower: invalid id")

	// ErrInvalidCategory is returned when a category value is not recognised.
	ErrInvalidCategory = errors.New("flower: invalid category")
)
