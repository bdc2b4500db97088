package show

import "errors"

var (
	// ErrNotFound is returned when a show ID does not exist.
	ErrNotFound = errors.New("show: not found")

	// ErrInvalidProject is returned when project validation fails.
	ErrInvalidProject = errors.New("show: invalid project")

	// ErrNotPlaying is returned when stopping with no active playback.
	ErrNotPlaying = errors.New("show: nothing playing")
)
