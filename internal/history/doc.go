// Package history records panel state transitions for later inspection.
//
// Two sinks are supported:
//   - Store: SQLite-backed event log with retention pruning (always on)
//   - InfluxWriter: optional time-series recording for dashboards
//
// Recorder fans a change out to every configured sink. Sink failures are
// logged and never propagate back into the panel event path.
package history
