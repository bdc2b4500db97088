package command

// Outcome is the settled result of one dispatched command.
type Outcome string

// Settled outcomes.
//
// SkippedNoOp and SkippedNotConnected settle before any bus I/O.
// The remaining outcomes reflect the bus exchange itself.
const (
	// Acked: the unit confirmed the command.
	Acked Outcome = "acked"

	// Nacked: the unit explicitly rejected the command.
	Nacked Outcome = "nacked"

	// Timeout: no matching reply arrived within the ack window, or the
	// exchange was cancelled or failed mid-flight.
	Timeout Outcome = "timeout"

	// BusNotConnected: the unit's bus exists but its link is down.
	BusNotConnected Outcome = "bus_not_connected"

	// SkippedNotConnected: the unit is gated (degraded or disconnected)
	// and the command is not the reachability probe.
	SkippedNotConnected Outcome = "skipped_not_connected"

	// SkippedNoOp: the command would not change the unit's state.
	SkippedNoOp Outcome = "skipped_no_op"
)

// Settled reports whether o is a terminal outcome. All outcomes are
// terminal; this exists so callers can distinguish the zero value.
func (o Outcome) Settled() bool {
	return o != ""
}
