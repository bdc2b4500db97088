// Package show stores choreography projects and plays them against the
// dispatcher.
//
// A project is a set of tracks of timed events; playback flattens them
// into one ordered timeline. Events reference units by priority key, so
// a show written for "the third flower from the path" keeps working
// after the fleet is re-addressed. The player anchors every slot to the
// loop start rather than the previous event, which keeps per-event
// lateness from accumulating, and dispatches fire-and-forget so a
// silent unit never stalls the timeline.
package show
