// Package bridge connects the panel driver to MQTT.
//
// Responsibilities:
//   - Publish state transitions retained to nx587/state/{category}/{id}/{topic}
//   - Accept keypad commands on nx587/command/send and acknowledge them
//     on nx587/ack/send
//   - Report serial link state on nx587/panel/status
//   - Report bridge health periodically on nx587/health/bridge
//
// The bridge is wired to the driver through its callbacks:
//
//	ctrl, err := panel.New(panel.Options{
//	    OnEvent:      br.HandleEvent,
//	    OnConnect:    func() { br.PublishPanelStatus(true) },
//	    OnDisconnect: func() { br.PublishPanelStatus(false) },
//	    ...
//	})
package bridge
