package bridge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openkeypad/nx587-bridge/internal/history"
)

// MQTT message types exchanged between the bridge and its consumers.

// StateMessage is published when a device status flag changes.
// Topic: nx587/state/{category}/{id}/{topic}
// QoS: 1, Retained: Yes
type StateMessage struct {
	// Category is the device category ("zone" or "partition").
	Category string `json:"category"`

	// DeviceID is the 1-based device number within the category.
	DeviceID int `json:"device_id"`

	// Topic is the status flag name (e.g. "fault", "armed").
	Topic string `json:"topic"`

	// Value is the new flag value.
	Value bool `json:"value"`

	// Timestamp is when the transition was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`
}

// CommandMessage is received to run a keypad command on the panel.
// Topic: nx587/command/send
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Command is the keypad function name or a user code.
	// Examples: "stay", "chime", "partial", "1234".
	Command string `json:"command"`
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was queued to the panel.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// Error codes for command failures.
const (
	ErrCodeInvalidCommand  = "INVALID_COMMAND"
	ErrCodePanelNotReady   = "PANEL_NOT_READY"
	ErrCodeCommandOverflow = "COMMAND_OVERFLOW"
	ErrCodeBridgeError     = "BRIDGE_ERROR"
)

// AckMessage is published to acknowledge a command.
// Topic: nx587/ack/send
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "INVALID_COMMAND").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// HistoryQueryMessage is received to look up recorded state transitions.
// Topic: nx587/history/get
type HistoryQueryMessage struct {
	// ID uniquely identifies this query for correlation with the result.
	ID string `json:"id"`

	// Category optionally narrows the query to one device category.
	Category string `json:"category,omitempty"`

	// DeviceID optionally narrows the query to one device. Requires Category.
	DeviceID int `json:"device_id,omitempty"`

	// Limit caps the number of returned events. The store clamps zero or
	// out-of-range values to its defaults.
	Limit int `json:"limit,omitempty"`
}

// HistoryResultMessage answers one history query, newest events first.
// Topic: nx587/history/result
// QoS: 1, Retained: No
type HistoryResultMessage struct {
	// QueryID is the ID from the originating query.
	QueryID string `json:"query_id"`

	// Timestamp is when the result was produced (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Events holds the matching transitions, newest first.
	Events []history.Event `json:"events"`

	// Error describes a failed lookup; Events is empty when set.
	Error string `json:"error,omitempty"`
}

// PanelStatusMessage reports the serial link state.
// Topic: nx587/panel/status
// QoS: 1, Retained: Yes
type PanelStatusMessage struct {
	// Status is "connected" or "disconnected".
	Status string `json:"status"`

	// Timestamp is when the link state changed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates the bridge is operating normally.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the bridge is operating with issues.
	HealthDegraded HealthStatus = "degraded"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: nx587/health/bridge
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Bridge is the bridge identifier.
	Bridge string `json:"bridge"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the bridge software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the bridge has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// PanelConnected reports the serial link state.
	PanelConnected bool `json:"panel_connected"`

	// Statistics contains operational metrics.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// BridgeStatistics contains operational metrics from the panel driver.
type BridgeStatistics struct {
	// LinesReceived is the total number of protocol lines received.
	LinesReceived uint64 `json:"lines_received"`

	// LinesDropped counts lines lost to a stalled processor. Each one
	// faults its session, so a nonzero value implies reconnects.
	LinesDropped uint64 `json:"lines_dropped"`

	// CommandsSent is the total number of commands written to the panel.
	CommandsSent uint64 `json:"commands_sent"`

	// EventsEmitted is the total number of state transitions reported.
	EventsEmitted uint64 `json:"events_emitted"`

	// Faults is the number of session faults encountered.
	Faults uint64 `json:"faults"`

	// Sessions is the number of sessions established since start.
	Sessions uint64 `json:"sessions"`
}

// NewAckMessage creates an acknowledgment for a successfully queued command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Status:    status,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		Status:    AckFailed,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// ParseHistoryQueryMessage decodes and validates an incoming query payload.
func ParseHistoryQueryMessage(payload []byte) (HistoryQueryMessage, error) {
	var q HistoryQueryMessage
	if err := json.Unmarshal(payload, &q); err != nil {
		return HistoryQueryMessage{}, fmt.Errorf("unmarshal history query: %w", err)
	}
	if q.ID == "" {
		return HistoryQueryMessage{}, fmt.Errorf("history query missing id field")
	}
	if q.DeviceID != 0 && q.Category == "" {
		return HistoryQueryMessage{}, fmt.Errorf("history query has device_id without category")
	}
	return q, nil
}

// ParseCommandMessage decodes and validates an incoming command payload.
func ParseCommandMessage(payload []byte) (CommandMessage, error) {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return CommandMessage{}, fmt.Errorf("unmarshal command message: %w", err)
	}
	if cmd.Command == "" {
		return CommandMessage{}, fmt.Errorf("command message missing command field")
	}
	return cmd, nil
}
