package show

import (
	"fmt"

	"github.com/nerrad567/flower-core/internal/command"
)

// Event is one scheduled command. Units are referenced by their
// priority key rather than their wire address, so a show survives
// re-addressing of the physical fleet.
type Event struct {
	Priority  int          `json:"priority" yaml:"priority"`
	CommandID string       `json:"command_id" yaml:"command_id"`
	Args      command.Args `json:"args,omitempty" yaml:"args,omitempty"`
}

// TimedEvent is an event placed on the show timeline.
type TimedEvent struct {
	// AtMs is the offset from the start of the loop.
	AtMs  int   `json:"at_ms" yaml:"at_ms"`
	Event Event `json:"event" yaml:"event"`
}

// Track is one named lane of the timeline. Tracks exist for authoring
// convenience; playback flattens them into a single ordered sequence.
type Track struct {
	Name string `json:"name" yaml:"name"`

	// LoopMs is the track's loop length. The project loops on the
	// longest track; zero means derive from the last event.
	LoopMs int `json:"loop_ms" yaml:"loop_ms"`

	Events []TimedEvent `json:"events" yaml:"events"`
}

// Project is one stored show.
type Project struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Repeat bool    `json:"repeat" yaml:"repeat"`
	Tracks []Track `json:"tracks" yaml:"tracks"`
}

// Validate checks a project's structure and its event references
// against the command catalog.
func (p Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty project id", ErrInvalidProject)
	}
	for ti, tr := range p.Tracks {
		if tr.LoopMs < 0 {
			return fmt.Errorf("%w: track %d has negative loop length", ErrInvalidProject, ti)
		}
		for ei, ev := range tr.Events {
			if ev.AtMs < 0 {
				return fmt.Errorf("%w: track %d event %d has negative offset", ErrInvalidProject, ti, ei)
			}
			if _, err := command.Get(ev.Event.CommandID); err != nil {
				return fmt.Errorf("%w: track %d event %d: %v", ErrInvalidProject, ti, ei, err)
			}
		}
	}
	return nil
}

// flatten merges all tracks into one stable-ordered timeline and
// returns it with the loop length: the longest declared track loop,
// or the last event plus a second when no track declares one.
func (p Project) flatten() ([]TimedEvent, int) {
	var out []TimedEvent
	loopMs := 0
	lastAt := 0
	for _, tr := range p.Tracks {
		out = append(out, tr.Events...)
		if tr.LoopMs > loopMs {
			loopMs = tr.LoopMs
		}
		for _, ev := range tr.Events {
			if ev.AtMs > lastAt {
				lastAt = ev.AtMs
			}
		}
	}
	sortEvents(out)
	if loopMs == 0 {
		loopMs = lastAt + 1000
	}
	return out, loopMs
}
