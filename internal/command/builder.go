package command

import (
	"time"

	"github.com/nerrad567/flower-core/internal/flower"
)

// BroadcastID is the wire address every unit on a bus listens to.
// Broadcast exchanges never produce a correlated acknowledgement, so
// they always settle Timeout.
const BroadcastID = 0

// Builder turns (unit, command ID, args) into dispatch-ready Requests.
// It merges defaults, validates arguments, applies the combined-command
// rewrite and binds the state hooks.
type Builder struct {
	ackTimeout time.Duration
}

// NewBuilder creates a builder. ackTimeout bounds the per-frame wait
// for an acknowledgement on every request it produces.
func NewBuilder(ackTimeout time.Duration) *Builder {
	return &Builder{ackTimeout: ackTimeout}
}

// Build resolves a command against a specific unit.
//
// Combined motor+LED commands whose motor half would be a no-op against
// the unit's current position are rewritten to a pure LED ramp carrying
// the same endIntensity and durationMs; the rewritten command's ack
// effect updates brightness only and never touches the position. Pure
// motor commands get a dequeue-time no-op check instead, so a queued
// open against an already-open unit settles SkippedNoOp.
func (b *Builder) Build(u flower.Unit, commandID string, args Args) (*Request, error) {
	def, err := Get(commandID)
	if err != nil {
		return nil, err
	}
	if !def.Supports(u.Category) {
		return nil, ErrUnsupportedCategory
	}

	merged := Merge(def.Defaults, args)
	if err := def.validateArgs(merged); err != nil {
		return nil, err
	}

	switch commandID {
	case MotorOpenLEDRamp:
		if u.FlowerStatus == flower.FlowerOpen {
			return b.rewriteToRamp(u, merged)
		}
	case MotorCloseLEDRamp:
		if u.FlowerStatus == flower.FlowerClosed {
			return b.rewriteToRamp(u, merged)
		}
	}

	req := b.resolve(u.BusID, u.ID, def, merged)

	switch commandID {
	case MotorOpen:
		req.ShouldSkip = func(u flower.Unit) bool {
			return u.FlowerStatus == flower.FlowerOpen
		}
	case MotorClose:
		req.ShouldSkip = func(u flower.Unit) bool {
			return u.FlowerStatus == flower.FlowerClosed
		}
	}

	return req, nil
}

// BuildBroadcast resolves a command against the broadcast address of a
// bus. No category check or state-dependent rewrite applies; there is
// no single unit to check against.
func (b *Builder) BuildBroadcast(busID, commandID string, args Args) (*Request, error) {
	def, err := Get(commandID)
	if err != nil {
		return nil, err
	}
	merged := Merge(def.Defaults, args)
	if err := def.validateArgs(merged); err != nil {
		return nil, err
	}
	return b.resolve(busID, BroadcastID, def, merged), nil
}

// rewriteToRamp re-resolves a validated combined command as a pure LED
// ramp. The args carry over unchanged and are validated again under
// the ramp command's own rules.
func (b *Builder) rewriteToRamp(u flower.Unit, merged Args) (*Request, error) {
	ramp, err := Get(LEDRamp)
	if err != nil {
		return nil, err
	}
	if err := ramp.validateArgs(merged); err != nil {
		return nil, err
	}
	return b.resolve(u.BusID, u.ID, ramp, merged), nil
}

// resolve renders the frames and binds the ack hook.
func (b *Builder) resolve(busID string, flowerID int, def Definition, merged Args) *Request {
	req := &Request{
		BusID:      busID,
		FlowerID:   flowerID,
		CommandID:  def.ID,
		Args:       merged,
		AckTimeout: b.ackTimeout,
		Frames:     def.Frames(flowerID, merged),
	}
	if def.OnAck != nil {
		req.OnAck = def.OnAck(merged)
	}
	return req
}
