package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/openkeypad/nx587-bridge/internal/history"
	"github.com/openkeypad/nx587-bridge/internal/infrastructure/mqtt"
	"github.com/openkeypad/nx587-bridge/internal/panel"
)

// fakeClient captures publishes and subscriptions in memory.
type fakeClient struct {
	mu        sync.Mutex
	published []publishCall
	handlers  map[string]mqtt.MessageHandler
	connected bool

	publishErr error
}

type publishCall struct {
	topic    string
	payload  []byte
	retained bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		handlers:  make(map[string]mqtt.MessageHandler),
		connected: true,
	}
}

func (f *fakeClient) Publish(topic string, payload []byte, _ byte, retained bool) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	f.published = append(f.published, publishCall{topic: topic, payload: payload, retained: retained})
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) IsConnected() bool { return f.connected }

func (f *fakeClient) calls(topic string) []publishCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publishCall
	for _, c := range f.published {
		if c.topic == topic {
			out = append(out, c)
		}
	}
	return out
}

// fakePanel scripts the driver surface.
type fakePanel struct {
	mu        sync.Mutex
	sent      []string
	sendErr   error
	connected bool
	stats     panel.Stats
}

func (f *fakePanel) Send(command string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, command)
	f.mu.Unlock()
	return nil
}

func (f *fakePanel) Connected() bool    { return f.connected }
func (f *fakePanel) Stats() panel.Stats { return f.stats }

// fakeRecorder captures recorded events.
type fakeRecorder struct {
	mu     sync.Mutex
	events []history.Event
}

func (f *fakeRecorder) Record(e history.Event) {
	f.mu.Lock()
	f.events = append(f.events, e)
	f.mu.Unlock()
}

// fakeStore scripts the history query surface.
type fakeStore struct {
	recent []history.Event
	device []history.Event
	err    error

	lastCategory string
	lastDeviceID int
	lastLimit    int
}

func (f *fakeStore) GetRecent(_ context.Context, limit int) ([]history.Event, error) {
	f.lastLimit = limit
	return f.recent, f.err
}

func (f *fakeStore) GetDevice(_ context.Context, category string, deviceID, limit int) ([]history.Event, error) {
	f.lastCategory, f.lastDeviceID, f.lastLimit = category, deviceID, limit
	return f.device, f.err
}

func newTestBridge(client *fakeClient, pnl *fakePanel, rec Recorder) *Bridge {
	return New(Config{QoS: 1, Version: "test"}, client, pnl, rec, nil, nil)
}

func newTestBridgeWithStore(client *fakeClient, store HistoryStore) *Bridge {
	return New(Config{QoS: 1, Version: "test"}, client, &fakePanel{}, nil, store, nil)
}

func TestHandleEventPublishesRetainedState(t *testing.T) {
	client := newFakeClient()
	recorder := &fakeRecorder{}
	br := newTestBridge(client, &fakePanel{}, recorder)

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	br.HandleEvent(panel.ChangeNotification{
		Category:  panel.CategoryZone,
		ID:        3,
		Topic:     "fault",
		Value:     true,
		Timestamp: ts,
	})

	calls := client.calls("nx587/state/zone/3/fault")
	if len(calls) != 1 {
		t.Fatalf("publishes = %d, want 1", len(calls))
	}
	if !calls[0].retained {
		t.Error("state message not retained")
	}

	var msg StateMessage
	if err := json.Unmarshal(calls[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if msg.Category != "zone" || msg.DeviceID != 3 || msg.Topic != "fault" || !msg.Value {
		t.Errorf("state message = %+v", msg)
	}
	if !msg.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, ts)
	}

	if len(recorder.events) != 1 || recorder.events[0].DeviceID != 3 {
		t.Errorf("recorded events = %+v", recorder.events)
	}
}

func TestHandleEventWithoutRecorder(t *testing.T) {
	client := newFakeClient()
	br := newTestBridge(client, &fakePanel{}, nil)

	// Must not panic with history disabled.
	br.HandleEvent(panel.ChangeNotification{
		Category:  panel.CategoryPartition,
		ID:        1,
		Topic:     "armed",
		Value:     true,
		Timestamp: time.Now(),
	})

	if len(client.calls("nx587/state/partition/1/armed")) != 1 {
		t.Error("state not published")
	}
}

func TestCommandAccepted(t *testing.T) {
	client := newFakeClient()
	pnl := &fakePanel{connected: true}
	br := newTestBridge(client, pnl, nil)

	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	handler := client.handlers["nx587/command/send"]
	if handler == nil {
		t.Fatal("command subscription missing")
	}

	payload := []byte(`{"id":"cmd-1","command":"stay"}`)
	if err := handler("nx587/command/send", payload); err != nil {
		t.Fatalf("handler: %v", err)
	}

	if len(pnl.sent) != 1 || pnl.sent[0] != "stay" {
		t.Errorf("panel received %v", pnl.sent)
	}

	acks := client.calls("nx587/ack/send")
	if len(acks) != 1 {
		t.Fatalf("acks = %d, want 1", len(acks))
	}
	var ack AckMessage
	if err := json.Unmarshal(acks[0].payload, &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.CommandID != "cmd-1" || ack.Status != AckAccepted {
		t.Errorf("ack = %+v", ack)
	}
}

func TestCommandErrorCodes(t *testing.T) {
	tests := []struct {
		name     string
		sendErr  error
		wantCode string
	}{
		{"unknown command", panel.ErrUnknownCommand, ErrCodeInvalidCommand},
		{"not connected", panel.ErrNotConnected, ErrCodePanelNotReady},
		{"overflow", panel.ErrCommandOverflow, ErrCodeCommandOverflow},
		{"other", errors.New("boom"), ErrCodeBridgeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient()
			br := newTestBridge(client, &fakePanel{sendErr: tt.sendErr}, nil)
			if err := br.Start(); err != nil {
				t.Fatalf("Start: %v", err)
			}

			handler := client.handlers["nx587/command/send"]
			payload := []byte(`{"id":"cmd-2","command":"stay"}`)
			if err := handler("nx587/command/send", payload); err == nil {
				t.Fatal("handler swallowed the send error")
			}

			acks := client.calls("nx587/ack/send")
			if len(acks) != 1 {
				t.Fatalf("acks = %d, want 1", len(acks))
			}
			var ack AckMessage
			if err := json.Unmarshal(acks[0].payload, &ack); err != nil {
				t.Fatalf("unmarshal ack: %v", err)
			}
			if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != tt.wantCode {
				t.Errorf("ack = %+v, want code %s", ack, tt.wantCode)
			}
		})
	}
}

func TestMalformedCommandGetsNoAck(t *testing.T) {
	client := newFakeClient()
	br := newTestBridge(client, &fakePanel{}, nil)
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := client.handlers["nx587/command/send"]
	if err := handler("nx587/command/send", []byte("not json")); err == nil {
		t.Error("malformed payload accepted")
	}
	if err := handler("nx587/command/send", []byte(`{"id":"x"}`)); err == nil {
		t.Error("empty command accepted")
	}

	if len(client.calls("nx587/ack/send")) != 0 {
		t.Error("ack published for unparseable command")
	}
}

func TestHistoryQueryRecent(t *testing.T) {
	client := newFakeClient()
	store := &fakeStore{recent: []history.Event{
		{ID: 2, Category: "zone", DeviceID: 1, Topic: "fault", Value: true},
		{ID: 1, Category: "zone", DeviceID: 1, Topic: "fault", Value: false},
	}}
	br := newTestBridgeWithStore(client, store)
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := client.handlers["nx587/history/get"]
	if handler == nil {
		t.Fatal("history subscription missing")
	}
	if err := handler("nx587/history/get", []byte(`{"id":"q-1","limit":10}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if store.lastLimit != 10 {
		t.Errorf("limit forwarded = %d, want 10", store.lastLimit)
	}

	results := client.calls("nx587/history/result")
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if results[0].retained {
		t.Error("history result retained")
	}
	var msg HistoryResultMessage
	if err := json.Unmarshal(results[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if msg.QueryID != "q-1" || len(msg.Events) != 2 || msg.Events[0].ID != 2 {
		t.Errorf("result = %+v", msg)
	}
}

func TestHistoryQueryForDevice(t *testing.T) {
	client := newFakeClient()
	store := &fakeStore{device: []history.Event{
		{ID: 7, Category: "partition", DeviceID: 2, Topic: "armed", Value: true},
	}}
	br := newTestBridgeWithStore(client, store)
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := client.handlers["nx587/history/get"]
	payload := []byte(`{"id":"q-2","category":"partition","device_id":2,"limit":5}`)
	if err := handler("nx587/history/get", payload); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if store.lastCategory != "partition" || store.lastDeviceID != 2 || store.lastLimit != 5 {
		t.Errorf("device query forwarded as (%q, %d, %d)", store.lastCategory, store.lastDeviceID, store.lastLimit)
	}

	var msg HistoryResultMessage
	results := client.calls("nx587/history/result")
	if err := json.Unmarshal(results[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if msg.QueryID != "q-2" || len(msg.Events) != 1 || msg.Events[0].ID != 7 {
		t.Errorf("result = %+v", msg)
	}
}

func TestHistoryQueryLookupFailure(t *testing.T) {
	client := newFakeClient()
	store := &fakeStore{err: errors.New("disk gone")}
	br := newTestBridgeWithStore(client, store)
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := client.handlers["nx587/history/get"]
	if err := handler("nx587/history/get", []byte(`{"id":"q-3"}`)); err == nil {
		t.Error("handler swallowed the lookup error")
	}

	var msg HistoryResultMessage
	results := client.calls("nx587/history/result")
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if err := json.Unmarshal(results[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if msg.QueryID != "q-3" || msg.Error == "" || len(msg.Events) != 0 {
		t.Errorf("result = %+v", msg)
	}
}

func TestMalformedHistoryQueryGetsNoResult(t *testing.T) {
	client := newFakeClient()
	br := newTestBridgeWithStore(client, &fakeStore{})
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	handler := client.handlers["nx587/history/get"]
	if err := handler("nx587/history/get", []byte("not json")); err == nil {
		t.Error("malformed payload accepted")
	}
	if err := handler("nx587/history/get", []byte(`{"limit":5}`)); err == nil {
		t.Error("query without id accepted")
	}
	if err := handler("nx587/history/get", []byte(`{"id":"q-4","device_id":3}`)); err == nil {
		t.Error("device_id without category accepted")
	}

	if len(client.calls("nx587/history/result")) != 0 {
		t.Error("result published for unparseable query")
	}
}

func TestStartWithoutStoreSkipsHistorySubscription(t *testing.T) {
	client := newFakeClient()
	br := newTestBridge(client, &fakePanel{}, nil)
	if err := br.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if client.handlers["nx587/history/get"] != nil {
		t.Error("history subscription made with history disabled")
	}
	if client.handlers["nx587/command/send"] == nil {
		t.Error("command subscription missing")
	}
}

func TestPublishPanelStatus(t *testing.T) {
	client := newFakeClient()
	br := newTestBridge(client, &fakePanel{}, nil)

	br.PublishPanelStatus(true)
	br.PublishPanelStatus(false)

	calls := client.calls("nx587/panel/status")
	if len(calls) != 2 {
		t.Fatalf("publishes = %d, want 2", len(calls))
	}

	var msg PanelStatusMessage
	if err := json.Unmarshal(calls[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Status != "connected" {
		t.Errorf("first status = %q", msg.Status)
	}
	if !calls[0].retained {
		t.Error("panel status not retained")
	}
}

func TestHealthReporterStatus(t *testing.T) {
	client := newFakeClient()
	pnl := &fakePanel{
		connected: true,
		stats: panel.Stats{
			LinesRx:       10,
			CommandsTx:    4,
			SessionsTotal: 1,
			Connected:     true,
		},
	}

	reporter := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "nx587",
		Version:   "test",
		Publisher: client,
		Panel:     pnl,
	})

	if err := reporter.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	calls := client.calls("nx587/health/bridge")
	if len(calls) != 1 {
		t.Fatalf("publishes = %d, want 1", len(calls))
	}

	var msg HealthMessage
	if err := json.Unmarshal(calls[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthHealthy {
		t.Errorf("status = %q, want healthy", msg.Status)
	}
	if !msg.PanelConnected || msg.Statistics == nil || msg.Statistics.LinesReceived != 10 {
		t.Errorf("health message = %+v", msg)
	}
}

func TestHealthReporterDegradedWhenPanelDown(t *testing.T) {
	client := newFakeClient()
	reporter := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "nx587",
		Publisher: client,
		Panel:     &fakePanel{connected: false},
	})

	if err := reporter.PublishNow(); err != nil {
		t.Fatalf("PublishNow: %v", err)
	}

	var msg HealthMessage
	calls := client.calls("nx587/health/bridge")
	if err := json.Unmarshal(calls[0].payload, &msg); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if msg.Status != HealthDegraded || msg.Reason != "panel link down" {
		t.Errorf("health = %+v", msg)
	}
}

func TestHealthReporterStopPublishesStopping(t *testing.T) {
	client := newFakeClient()
	reporter := NewHealthReporter(HealthReporterConfig{
		BridgeID:  "nx587",
		Interval:  time.Hour,
		Publisher: client,
		Panel:     &fakePanel{connected: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter.Start(ctx)

	waitForPublish(t, client, "nx587/health/bridge", 1)
	reporter.Stop()
	reporter.Stop() // idempotent

	calls := client.calls("nx587/health/bridge")
	var last HealthMessage
	if err := json.Unmarshal(calls[len(calls)-1].payload, &last); err != nil {
		t.Fatalf("unmarshal health: %v", err)
	}
	if last.Status != HealthStopping {
		t.Errorf("final status = %q, want stopping", last.Status)
	}
}

func waitForPublish(t *testing.T, client *fakeClient, topic string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(client.calls(topic)) >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d publishes on %s", n, topic)
}
