package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/openkeypad/nx587-bridge/internal/infrastructure/config"
)

// InfluxDB errors.
var (
	// ErrInfluxDisabled is returned by NewInfluxWriter when influxdb is
	// disabled in config.
	ErrInfluxDisabled = errors.New("history: influxdb disabled in configuration")

	// ErrInfluxConnectionFailed is returned when the initial ping fails.
	ErrInfluxConnectionFailed = errors.New("history: influxdb connection failed")
)

// Default timeouts for InfluxDB operations.
const (
	influxConnectTimeout = 10 * time.Second
	influxPingTimeout    = 5 * time.Second

	// millisecondsPerSecond converts seconds to milliseconds for the InfluxDB API.
	millisecondsPerSecond = 1000
)

// InfluxWriter records state transitions to InfluxDB as the
// "panel_events" measurement.
//
// Writes are non-blocking and batched by the underlying client.
// All methods are safe for concurrent use.
type InfluxWriter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected bool
	mu        sync.RWMutex

	// onError is called when async write errors occur.
	onError func(err error)
}

// NewInfluxWriter connects to InfluxDB and prepares the write API.
//
// It performs the following setup:
//  1. Creates the client with token authentication and batching options
//  2. Verifies connectivity with a ping
//  3. Starts draining the async error channel
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *InfluxWriter: Connected writer ready for use
//   - error: ErrInfluxDisabled if disabled, or connection failure
func NewInfluxWriter(cfg config.InfluxDBConfig) (*InfluxWriter, error) {
	if !cfg.Enabled {
		return nil, ErrInfluxDisabled
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	// #nosec G115 -- values validated above to be positive
	client := influxdb2.NewClientWithOptions(
		cfg.URL,
		cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batchSize)).
			SetFlushInterval(uint(flushInterval)*millisecondsPerSecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), influxConnectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrInfluxConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrInfluxConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)

	w := &InfluxWriter{
		client:    client,
		writeAPI:  writeAPI,
		cfg:       cfg,
		connected: true,
	}

	go w.handleWriteErrors(writeAPI.Errors())

	return w, nil
}

// handleWriteErrors processes async write errors from the WriteAPI.
func (w *InfluxWriter) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		w.mu.RLock()
		callback := w.onError
		w.mu.RUnlock()

		if callback != nil {
			callback(err)
		}
	}
}

// WriteEvent records one state transition as a point in the
// "panel_events" measurement.
//
// Tags carry the device address (category, device_id, topic); the field
// is the flag value as 0/1 so dashboards can graph transitions.
// The write is non-blocking; data is batched and sent asynchronously.
func (w *InfluxWriter) WriteEvent(e Event) {
	if !w.IsConnected() {
		return
	}

	value := 0
	if e.Value {
		value = 1
	}

	point := write.NewPoint(
		"panel_events",
		map[string]string{
			"category":  e.Category,
			"device_id": fmt.Sprintf("%d", e.DeviceID),
			"topic":     e.Topic,
		},
		map[string]interface{}{
			"value": value,
		},
		e.Timestamp,
	)

	w.writeAPI.WritePoint(point)
}

// Close flushes pending writes and shuts down the client.
func (w *InfluxWriter) Close() error {
	if w.client == nil {
		return nil
	}

	w.mu.Lock()
	w.connected = false
	w.mu.Unlock()

	w.writeAPI.Flush()
	w.client.Close()

	return nil
}

// HealthCheck verifies the InfluxDB connection is alive.
func (w *InfluxWriter) HealthCheck(ctx context.Context) error {
	if !w.IsConnected() {
		return fmt.Errorf("influxdb health check: %w", ErrInfluxConnectionFailed)
	}

	checkCtx, cancel := context.WithTimeout(ctx, influxPingTimeout)
	defer cancel()

	healthy, err := w.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}

	return nil
}

// IsConnected returns the last known connection state.
func (w *InfluxWriter) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// SetOnError sets a callback invoked when async write errors occur.
//
// Since writes are non-blocking, errors are delivered asynchronously.
// Use this callback to log write failures.
func (w *InfluxWriter) SetOnError(callback func(err error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}
