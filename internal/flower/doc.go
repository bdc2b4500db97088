// Package flower defines the fleet model and the single-writer state
// registry for flower units.
//
// A Unit carries two kinds of fields. Static fields (ID, category, bus
// assignment, priority) are operator-assigned, validated on write and
// persisted through Repository. Runtime fields (connection status,
// mechanical position, brightness) exist only in memory: they are reset
// on every load and mutated exclusively through Registry.Apply and
// Registry.TouchConnection so that the command dispatcher remains the
// sole writer of runtime state.
//
//	┌────────────┐   Load/CRUD    ┌──────────────────┐
//	│ Repository │ ◄────────────► │     Registry      │
//	│  (SQLite)  │                │  cache + hooks    │
//	└────────────┘                └──────────────────┘
//	                                 ▲           │
//	                        Apply /  │           │ onChange
//	                  TouchConnection│           ▼
//	                            dispatcher   observers (WS, MQTT)
//
// Show playback resolves units by their priority key, not their wire
// address, so shows survive re-addressing of the physical fleet.
package flower
