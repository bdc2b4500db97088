// Package dispatch serializes command traffic per (bus, unit) lane and
// turns settled outcomes into fleet state transitions.
//
// Callers enqueue built requests and receive a settlement channel; the
// lane worker runs the gate, the no-op check and the bus exchange, then
// applies exactly one transition per settlement. Per-lane serialization
// is load-bearing: the serial protocol resolves replies against the
// most recent exchange for an address, which is only sound while one
// exchange per unit is in flight.
package dispatch
