// Package command defines the command catalog and the request builder.
//
// A Definition is one catalog entry: identity, supported unit
// categories, argument validation, wire frame rendering and the state
// effect applied when the unit acknowledges. The catalog is fixed at
// compile time; Get, All and ForCategory read it.
//
// Builder resolves (unit, command ID, args) into a Request the
// dispatcher can consume: defaults merged, arguments validated, frames
// rendered, hooks bound. Two resolution rules live here rather than in
// the dispatcher because they depend on catalog knowledge:
//
//   - Combined motor+LED commands whose motor half is a no-op against
//     the unit's current position are rewritten to a pure LED ramp.
//   - Pure motor commands carry a ShouldSkip predicate so a queued
//     open/close that became redundant settles SkippedNoOp at dequeue.
package command
