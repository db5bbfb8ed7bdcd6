package mqtt

import "fmt"

// TopicPrefix is the base for all bridge topics.
//
// The hierarchy is flat and mirrors the device model:
//
//	nx587/state/{category}/{id}/{topic}   retained tri-state values
//	nx587/command/send                    keypad commands into the panel
//	nx587/ack/send                        command acknowledgements
//	nx587/history/get                     recorded-event queries
//	nx587/history/result                  recorded-event query results
//	nx587/health/bridge                   periodic bridge health reports
//	nx587/panel/status                    panel link up/down (retained)
//	nx587/system/status                   bridge online/offline (retained, LWT)
const TopicPrefix = "nx587"

// Topics provides builders for bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.PanelState("zone", 3, "fault")
//	// Returns: "nx587/state/zone/3/fault"
type Topics struct{}

// PanelState returns the topic for a single device status flag.
//
// Example: nx587/state/zone/3/fault
func (Topics) PanelState(category string, id int, topic string) string {
	return fmt.Sprintf("%s/state/%s/%d/%s", TopicPrefix, category, id, topic)
}

// CommandSend returns the topic keypad commands are received on.
//
// Example: nx587/command/send
func (Topics) CommandSend() string {
	return fmt.Sprintf("%s/command/send", TopicPrefix)
}

// CommandAck returns the topic command acknowledgements are published on.
//
// Example: nx587/ack/send
func (Topics) CommandAck() string {
	return fmt.Sprintf("%s/ack/send", TopicPrefix)
}

// HistoryGet returns the topic recorded-event queries are received on.
//
// Example: nx587/history/get
func (Topics) HistoryGet() string {
	return fmt.Sprintf("%s/history/get", TopicPrefix)
}

// HistoryResult returns the topic query results are published on.
//
// Example: nx587/history/result
func (Topics) HistoryResult() string {
	return fmt.Sprintf("%s/history/result", TopicPrefix)
}

// BridgeHealth returns the topic for periodic bridge health reports.
//
// Example: nx587/health/bridge
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/bridge", TopicPrefix)
}

// PanelStatus returns the topic for panel link state changes.
//
// Example: nx587/panel/status
func (Topics) PanelStatus() string {
	return fmt.Sprintf("%s/panel/status", TopicPrefix)
}

// SystemStatus returns the bridge online/offline status topic.
// This is also the Last Will topic.
//
// Example: nx587/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", TopicPrefix)
}

// AllStates returns a pattern matching every retained state flag.
//
// Pattern: nx587/state/+/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+/+", TopicPrefix)
}
