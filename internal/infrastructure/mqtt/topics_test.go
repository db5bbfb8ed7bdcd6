package mqtt

import (
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"panel state", topics.PanelState("zone", 3, "fault"), "nx587/state/zone/3/fault"},
		{"partition state", topics.PanelState("partition", 1, "armed"), "nx587/state/partition/1/armed"},
		{"command send", topics.CommandSend(), "nx587/command/send"},
		{"command ack", topics.CommandAck(), "nx587/ack/send"},
		{"history get", topics.HistoryGet(), "nx587/history/get"},
		{"history result", topics.HistoryResult(), "nx587/history/result"},
		{"bridge health", topics.BridgeHealth(), "nx587/health/bridge"},
		{"panel status", topics.PanelStatus(), "nx587/panel/status"},
		{"system status", topics.SystemStatus(), "nx587/system/status"},
		{"all states", topics.AllStates(), "nx587/state/+/+/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("nx587-bridge")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, `"client_id":"nx587-bridge"`) {
		t.Errorf("online payload malformed: %s", online)
	}

	offline := buildOfflinePayload("nx587-bridge")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, `"reason":"graceful_shutdown"`) {
		t.Errorf("offline payload malformed: %s", offline)
	}
}
