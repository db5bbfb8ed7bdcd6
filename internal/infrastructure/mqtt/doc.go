// Package mqtt provides the bridge's MQTT broker connectivity.
//
// It wraps paho.mqtt.golang with:
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament for offline detection (nx587/system/status)
//   - Subscription tracking and restoration across reconnects
//   - Panic recovery around message handlers
//   - Topic builders for the nx587/ hierarchy
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := mqtt.Topics{}
//	client.PublishRetained(topics.PanelState("zone", 3, "fault"), payload)
package mqtt
