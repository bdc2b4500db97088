package mqtt

import "fmt"

// Topic prefixes for the Flower Core MQTT surface.
//
// Scheme: flowercore/{category}/{...}. State topics are retained so a
// front end joining late sees the current fleet immediately; outcome
// and show topics are events and are not retained.
const (
	// TopicPrefix is the base for all Flower Core topics.
	TopicPrefix = "flowercore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "flowercore/system"
)

// Topics provides builders for Flower Core MQTT topics. Using these
// helpers keeps topic naming consistent across publishers and
// subscribers.
type Topics struct{}

// FlowerState returns the retained state topic for one unit.
//
// Example: flowercore/state/flower/7
func (Topics) FlowerState(flowerID int) string {
	return fmt.Sprintf("%s/state/flower/%d", TopicPrefix, flowerID)
}

// CommandOutcome returns the topic for settled command exchanges.
//
// Example: flowercore/outcome/field-a/7
func (Topics) CommandOutcome(busID string, flowerID int) string {
	return fmt.Sprintf("%s/outcome/%s/%d", TopicPrefix, busID, flowerID)
}

// ShowStatus returns the retained show playback status topic.
//
// Example: flowercore/show/status
func (Topics) ShowStatus() string {
	return fmt.Sprintf("%s/show/status", TopicPrefix)
}

// FlowerCommand returns the inbound command topic for one unit.
// External systems publish here to drive a unit.
//
// Example: flowercore/command/flower/7
func (Topics) FlowerCommand(flowerID int) string {
	return fmt.Sprintf("%s/command/flower/%d", TopicPrefix, flowerID)
}

// AllFlowerCommands returns a pattern matching inbound commands for
// every unit.
//
// Pattern: flowercore/command/flower/+
func (Topics) AllFlowerCommands() string {
	return fmt.Sprintf("%s/command/flower/+", TopicPrefix)
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: flowercore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}
