package flower

// Category identifies the physical model of a flower unit.
// Commands declare which categories they support.
type Category string

// Known flower categories.
const (
	CategorySmallTulip Category = "small_tulip"
	CategoryBigTulip   Category = "big_tulip"
	CategoryAny        Category = "any"
)

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	switch c {
	case CategorySmallTulip, CategoryBigTulip, CategoryAny:
		return true
	}
	return false
}

// ConnectionStatus is the runtime link health of a flower unit.
type ConnectionStatus string

// Connection states.
//
// A Degraded unit is assigned to a bus but has stopped answering; it is
// hard-gated from all commands except the reachability probe until it
// re-acknowledges.
const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusDegraded     ConnectionStatus = "degraded"
	StatusConnected    ConnectionStatus = "connected"
)

// FlowerStatus is the last commanded mechanical position of a unit.
type FlowerStatus string

// Mechanical positions.
const (
	FlowerOpen   FlowerStatus = "open"
	FlowerClosed FlowerStatus = "closed"
)

// Unit is one controllable flower fixture.
//
// ID, Category, BusID and Priority are operator-assigned and persisted.
// ConnectionStatus, FlowerStatus and CurrentBrightness are runtime-only;
// they are reset on load and mutated exclusively through Registry.Apply
// and Registry.TouchConnection (single-writer rule).
type Unit struct {
	// ID is the stable operator-assigned wire address, 1..999.
	// ID 0 is reserved for broadcast and never appears in the fleet.
	ID int `json:"id"`

	Category Category `json:"category"`

	// BusID names the bus this unit is reachable on. Empty until assigned.
	BusID string `json:"bus_id"`

	// Priority is a secondary unique key used to bind show events to
	// units independently of their wire IDs.
	Priority int `json:"priority"`

	ConnectionStatus  ConnectionStatus `json:"connection_status"`
	FlowerStatus      FlowerStatus     `json:"flower_status"`
	CurrentBrightness int              `json:"current_brightness"`

	// Selected marks the unit for bulk actions in a front end.
	// The core never reads it.
	Selected bool `json:"selected"`
}

// Mutator applies a state delta to a unit in place.
type Mutator func(*Unit)

// minID and maxID bound operator-assigned unit IDs.
const (
	minID = 1
	maxID = 999
)

// Validate checks the static fields of a unit.
func Validate(u *Unit) error {
	if u == nil {
		return ErrInvalidUnit
	}
	if u.ID < minID || u.ID > maxID {
		return ErrInvalidID
	}
	if !ValidCategory(u.Category) {
		return ErrInvalidCategory
	}
	return nil
}

// ResetRuntime restores the runtime fields to their load-time defaults.
// Called for every unit when the fleet is (re)loaded, matching the rule
// that runtime state is never persisted.
func (u *Unit) ResetRuntime() {
	u.ConnectionStatus = StatusDisconnected
	u.FlowerStatus = FlowerClosed
	u.CurrentBrightness = 0
}
