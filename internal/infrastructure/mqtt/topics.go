package mqtt

import "fmt"

// Topic prefixes for the UWB ranging core message bus.
//
// All topics use the flat scheme: uwb/{category}/{identifier}/{detail}
const (
	// TopicPrefix is the base for all topics.
	TopicPrefix = "uwb"

	// TopicPrefixAdapter is the base for adapter-level topics.
	TopicPrefixAdapter = "uwb/adapter"

	// TopicPrefixSession is the base for per-session topics.
	TopicPrefixSession = "uwb/session"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "uwb/system"
)

// Topics provides builders for UWB ranging core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.AdapterState()
//	// Returns: "uwb/adapter/state"
type Topics struct{}

// =============================================================================
// Adapter Topics
// =============================================================================

// AdapterState returns the topic for aggregate adapter state broadcasts.
//
// Example: uwb/adapter/state
func (Topics) AdapterState() string {
	return fmt.Sprintf("%s/state", TopicPrefixAdapter)
}

// AdapterChipState returns the topic for a single chip's state.
//
// Example: uwb/adapter/chip/chip0/state
func (Topics) AdapterChipState(chipID string) string {
	return fmt.Sprintf("%s/chip/%s/state", TopicPrefixAdapter, chipID)
}

// =============================================================================
// Session Topics
// =============================================================================

// SessionEvent returns the topic for session lifecycle events.
//
// Example: uwb/session/9f2c.../event/opened
func (Topics) SessionEvent(handle, eventType string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefixSession, handle, eventType)
}

// SessionReport returns the topic for ranging reports of a session.
//
// Example: uwb/session/9f2c.../report
func (Topics) SessionReport(handle string) string {
	return fmt.Sprintf("%s/%s/report", TopicPrefixSession, handle)
}

// SessionData returns the topic for in-band data received on a session.
//
// Example: uwb/session/9f2c.../data
func (Topics) SessionData(handle string) string {
	return fmt.Sprintf("%s/%s/data", TopicPrefixSession, handle)
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the system status topic.
//
// Example: uwb/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllSessionEvents returns a pattern matching every session lifecycle event.
//
// Pattern: uwb/session/+/event/+
func (Topics) AllSessionEvents() string {
	return fmt.Sprintf("%s/+/event/+", TopicPrefixSession)
}

// AllSessionReports returns a pattern matching every ranging report.
//
// Pattern: uwb/session/+/report
func (Topics) AllSessionReports() string {
	return fmt.Sprintf("%s/+/report", TopicPrefixSession)
}

// AllTopics returns a pattern matching all UWB ranging core topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: uwb/#
func (Topics) AllTopics() string {
	return "uwb/#"
}
