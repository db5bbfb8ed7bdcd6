package history

import (
	"context"
	"time"
)

// recordTimeout bounds each SQLite insert so a wedged disk cannot stall
// the caller indefinitely.
const recordTimeout = 5 * time.Second

// Logger is the minimal logging surface the recorder needs.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

// Recorder fans state transitions out to the configured history sinks.
//
// The SQLite store is required; the InfluxDB writer is optional (nil
// when disabled). Sink errors are logged and swallowed so history
// recording can never disturb the panel event path.
type Recorder struct {
	store  *Store
	influx *InfluxWriter
	logger Logger
}

// NewRecorder creates a recorder over the given sinks.
// influx may be nil when time-series recording is disabled.
func NewRecorder(store *Store, influx *InfluxWriter, logger Logger) *Recorder {
	return &Recorder{
		store:  store,
		influx: influx,
		logger: logger,
	}
}

// Record persists one state transition to every sink.
//
// Safe to call from the panel's event callback: failures are logged,
// never returned.
func (r *Recorder) Record(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.store.Record(ctx, e); err != nil {
		if r.logger != nil {
			r.logger.Error("recording event to sqlite",
				"category", e.Category,
				"device_id", e.DeviceID,
				"topic", e.Topic,
				"error", err,
			)
		}
	}

	if r.influx != nil {
		r.influx.WriteEvent(e)
	}
}

// PruneLoop deletes expired events on the given cadence until ctx is done.
//
// Run it in its own goroutine:
//
//	go recorder.PruneLoop(ctx, cfg.GetRetention(), time.Hour)
func (r *Recorder) PruneLoop(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.store.Prune(ctx, retention); err != nil {
				if r.logger != nil {
					r.logger.Error("pruning event history", "error", err)
				}
			}
		}
	}
}
