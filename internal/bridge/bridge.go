package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/openkeypad/nx587-bridge/internal/history"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/mqtt"
	"github.com/openkeypad/nx587-bridge/internal/panel"
)

// MQTTClient is the broker surface the bridge needs.
// Implemented by mqtt.Client; narrowed for testing.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Panel is the driver surface the bridge needs.
// Implemented by panel.Controller; narrowed for testing.
type Panel interface {
	Send(command string) error
	Connected() bool
	Stats() panel.Stats
}

// Recorder persists state transitions. Implemented by history.Recorder.
type Recorder interface {
	Record(e history.Event)
}

// HistoryStore answers queries over recorded transitions.
// Implemented by history.Store; narrowed for testing.
type HistoryStore interface {
	GetRecent(ctx context.Context, limit int) ([]history.Event, error)
	GetDevice(ctx context.Context, category string, deviceID int, limit int) ([]history.Event, error)
}

// Logger is the minimal logging surface the bridge needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds bridge wiring options.
type Config struct {
	// QoS is the quality of service for bridge publishes.
	QoS byte

	// Version is the bridge software version, reported in health messages.
	Version string
}

// Bridge connects the panel driver to MQTT.
//
// Inbound: command messages on nx587/command/send are decoded and handed
// to the panel driver, with an acknowledgment on nx587/ack/send. History
// queries on nx587/history/get are answered on nx587/history/result.
//
// Outbound: state transitions from the driver are published retained to
// nx587/state/{category}/{id}/{topic} and recorded to history.
type Bridge struct {
	client   MQTTClient
	panel    Panel
	recorder Recorder
	store    HistoryStore
	logger   Logger
	cfg      Config
	topics   mqtt.Topics
}

// New creates a Bridge over the given client and panel driver.
// recorder and store may be nil when history is disabled.
func New(cfg Config, client MQTTClient, pnl Panel, recorder Recorder, store HistoryStore, logger Logger) *Bridge {
	return &Bridge{
		client:   client,
		panel:    pnl,
		recorder: recorder,
		store:    store,
		logger:   logger,
		cfg:      cfg,
	}
}

// Start subscribes to the inbound topics.
// Call after the MQTT client is connected.
func (b *Bridge) Start() error {
	if err := b.client.Subscribe(b.topics.CommandSend(), b.cfg.QoS, b.handleCommand); err != nil {
		return err
	}
	if b.store == nil {
		return nil
	}
	return b.client.Subscribe(b.topics.HistoryGet(), b.cfg.QoS, b.handleHistoryQuery)
}

// HandleEvent publishes one state transition and records it to history.
//
// Wire it as the panel driver's OnEvent callback. The driver delivers
// events synchronously from its processor worker, so this must not block
// longer than a publish timeout.
func (b *Bridge) HandleEvent(n panel.ChangeNotification) {
	msg := StateMessage{
		Category:  n.Category.Slug(),
		DeviceID:  n.ID,
		Topic:     n.Topic,
		Value:     n.Value,
		Timestamp: n.Timestamp.UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshalling state message", "error", err)
		return
	}

	topic := b.topics.PanelState(msg.Category, msg.DeviceID, msg.Topic)
	if err := b.client.Publish(topic, payload, b.cfg.QoS, true); err != nil {
		b.logError("publishing state", "topic", topic, "error", err)
	}

	if b.recorder != nil {
		b.recorder.Record(history.Event{
			Category:  msg.Category,
			DeviceID:  msg.DeviceID,
			Topic:     msg.Topic,
			Value:     msg.Value,
			Timestamp: msg.Timestamp,
		})
	}
}

// PublishPanelStatus publishes the serial link state, retained.
//
// Wire it as the panel driver's OnConnect/OnDisconnect callbacks.
func (b *Bridge) PublishPanelStatus(connected bool) {
	status := "disconnected"
	if connected {
		status = "connected"
	}

	msg := PanelStatusMessage{
		Status:    status,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("marshalling panel status", "error", err)
		return
	}

	if err := b.client.Publish(b.topics.PanelStatus(), payload, b.cfg.QoS, true); err != nil {
		b.logError("publishing panel status", "error", err)
	}
}

// handleCommand processes one inbound command message.
func (b *Bridge) handleCommand(_ string, payload []byte) error {
	cmd, err := ParseCommandMessage(payload)
	if err != nil {
		b.logWarn("rejecting malformed command", "error", err)
		// Malformed payloads carry no correlation ID, so there is
		// nothing useful to acknowledge.
		return err
	}

	if err := b.panel.Send(cmd.Command); err != nil {
		b.publishAck(b.ackForSendError(cmd, err))
		return err
	}

	b.logDebug("command queued", "id", cmd.ID)
	b.publishAck(NewAckMessage(cmd, AckAccepted))
	return nil
}

// handleHistoryQuery answers one recorded-event lookup.
func (b *Bridge) handleHistoryQuery(_ string, payload []byte) error {
	query, err := ParseHistoryQueryMessage(payload)
	if err != nil {
		b.logWarn("rejecting malformed history query", "error", err)
		// No correlation ID means no addressable result.
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var events []history.Event
	if query.Category != "" && query.DeviceID > 0 {
		events, err = b.store.GetDevice(ctx, query.Category, query.DeviceID, query.Limit)
	} else {
		events, err = b.store.GetRecent(ctx, query.Limit)
	}

	result := HistoryResultMessage{
		QueryID:   query.ID,
		Timestamp: time.Now().UTC(),
		Events:    events,
	}
	if err != nil {
		b.logError("history lookup failed", "query_id", query.ID, "error", err)
		result.Events = nil
		result.Error = "history lookup failed"
	}

	body, merr := json.Marshal(result)
	if merr != nil {
		b.logError("marshalling history result", "error", merr)
		return merr
	}
	if perr := b.client.Publish(b.topics.HistoryResult(), body, b.cfg.QoS, false); perr != nil {
		b.logError("publishing history result", "query_id", query.ID, "error", perr)
		return perr
	}
	return err
}

// ackForSendError maps a driver error to an acknowledgment.
func (b *Bridge) ackForSendError(cmd CommandMessage, err error) AckMessage {
	code := ErrCodeBridgeError
	switch {
	case errors.Is(err, panel.ErrUnknownCommand):
		code = ErrCodeInvalidCommand
	case errors.Is(err, panel.ErrNotConnected):
		code = ErrCodePanelNotReady
	case errors.Is(err, panel.ErrCommandOverflow):
		code = ErrCodeCommandOverflow
	}
	return NewAckError(cmd, code, err.Error())
}

// publishAck publishes a command acknowledgment, best-effort.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("marshalling ack", "error", err)
		return
	}
	if err := b.client.Publish(b.topics.CommandAck(), payload, b.cfg.QoS, false); err != nil {
		b.logError("publishing ack", "command_id", ack.CommandID, "error", err)
	}
}

func (b *Bridge) logDebug(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func (b *Bridge) logError(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Error(msg, args...)
	}
}
