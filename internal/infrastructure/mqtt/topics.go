package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every topic when none is configured.
const DefaultTopicPrefix = "phaselink"

// Topics builds PhaseLink MQTT topics under a configurable root.
// Using these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.NewTopics("phaselink")
//	topics.DeviceStatus("meter-01")
//	// Returns: "phaselink/status/meter-01"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
// An empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// =============================================================================
// Device Topics
// =============================================================================

// DevicePresence returns the retained online/offline topic for a device.
//
// Example: phaselink/presence/meter-01
func (t Topics) DevicePresence(deviceID string) string {
	return fmt.Sprintf("%s/presence/%s", t.Prefix(), deviceID)
}

// DeviceStatus returns the retained phase status topic for a device.
//
// Example: phaselink/status/meter-01
func (t Topics) DeviceStatus(deviceID string) string {
	return fmt.Sprintf("%s/status/%s", t.Prefix(), deviceID)
}

// DeviceCommand returns the topic operators publish commands for a device to.
//
// Example: phaselink/command/meter-01
func (t Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/command/%s", t.Prefix(), deviceID)
}

// DeviceCommandAck returns the topic a command's delivery outcome is published to.
//
// Example: phaselink/command/meter-01/ack
func (t Topics) DeviceCommandAck(deviceID string) string {
	return fmt.Sprintf("%s/command/%s/ack", t.Prefix(), deviceID)
}

// ParseDeviceCommand extracts the device identity from a command topic.
func (t Topics) ParseDeviceCommand(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.Prefix()+"/command/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the server's own online/offline topic.
//
// Example: phaselink/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.Prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllDeviceCommands returns a pattern matching commands for every device.
//
// Pattern: phaselink/command/+
func (t Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/command/+", t.Prefix())
}

// AllDeviceStatus returns a pattern matching every device's status.
//
// Pattern: phaselink/status/+
func (t Topics) AllDeviceStatus() string {
	return fmt.Sprintf("%s/status/+", t.Prefix())
}

// AllTopics returns a pattern matching every PhaseLink topic.
//
// Pattern: phaselink/#
func (t Topics) AllTopics() string {
	return t.Prefix() + "/#"
}
