package command

import (
	"time"

	"github.com/nerrad567/flower-core/internal/flower"
)

// Request is a fully-resolved command ready for dispatch: frames
// rendered, state hooks bound, target fixed. Requests are built by
// Builder and consumed once by the dispatcher.
type Request struct {
	// BusID names the bus the target unit is reachable on.
	BusID string

	// FlowerID is the target wire address. 0 is the broadcast address.
	FlowerID int

	// CommandID identifies the catalog entry this request was built
	// from, after any rewrite.
	CommandID string

	// Args are the merged, validated arguments the frames were
	// rendered from.
	Args Args

	// AckTimeout bounds the wait for each frame's acknowledgement.
	AckTimeout time.Duration

	// Frames are the wire frames to send, in order. Serial buses send
	// them verbatim; register buses map them through the bus mapper.
	Frames [][]byte

	// ShouldSkip, when set, is evaluated against the unit's state at
	// dequeue time. True settles the request as SkippedNoOp without
	// any bus I/O.
	ShouldSkip func(u flower.Unit) bool

	// OnAck is applied to the unit when the exchange settles Acked.
	// May be nil.
	OnAck flower.Mutator

	// OnTimeout is applied when the exchange settles Timeout. Nil means
	// the dispatcher's default (mark the unit degraded).
	OnTimeout flower.Mutator
}

// Probe reports whether the request is the reachability probe, which
// bypasses the degraded/disconnected gate.
func (r *Request) Probe() bool {
	return r.CommandID == Ping
}
