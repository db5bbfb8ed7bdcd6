package history

import (
	"context"
	"fmt"
	"time"

	"github.com/openkeypad/nx587-bridge/internal/infrastructure/database"
)

// Query limits for event history reads.
const (
	// defaultRecentLimit is used when the caller passes a non-positive limit.
	defaultRecentLimit = 50

	// maxRecentLimit caps how many rows a single read can return.
	maxRecentLimit = 200
)

// Event is one recorded state transition.
type Event struct {
	ID        int64     `json:"id"`
	Category  string    `json:"category"`
	DeviceID  int       `json:"device_id"`
	Topic     string    `json:"topic"`
	Value     bool      `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists state transitions to SQLite.
//
// The schema is created on construction; there is no separate migration
// step for a single-table event log.
type Store struct {
	db *database.DB
}

// schema is the event log table. The composite index serves the
// per-device queries the retention pruner and readers run.
const schema = `
CREATE TABLE IF NOT EXISTS event_history (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    category   TEXT    NOT NULL,
    device_id  INTEGER NOT NULL,
    topic      TEXT    NOT NULL,
    value      INTEGER NOT NULL,
    timestamp  TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_event_history_device
    ON event_history (category, device_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_event_history_timestamp
    ON event_history (timestamp);
`

// NewStore creates the event history store, ensuring the schema exists.
//
// Parameters:
//   - ctx: Context for the schema creation
//   - db: Open database connection
//
// Returns:
//   - *Store: Ready-to-use store
//   - error: If schema creation fails
func NewStore(ctx context.Context, db *database.DB) (*Store, error) {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating event history schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one state transition.
//
// Timestamps are stored as RFC3339 UTC text, SQLite's conventional
// lexicographically-sortable format.
func (s *Store) Record(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO event_history (category, device_id, topic, value, timestamp)
         VALUES (?, ?, ?, ?, ?)`,
		e.Category, e.DeviceID, e.Topic, boolToInt(e.Value),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("recording event: %w", err)
	}
	return nil
}

// GetRecent returns the most recent events, newest first.
//
// A non-positive limit defaults to 50; limits above 200 are clamped.
func (s *Store) GetRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, category, device_id, topic, value, timestamp
         FROM event_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var events []Event
	for rows.Next() {
		var (
			e     Event
			value int
			ts    string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.DeviceID, &e.Topic, &value, &ts); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Value = value != 0
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", ts, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// GetDevice returns the most recent events for one device, newest first.
func (s *Store) GetDevice(ctx context.Context, category string, deviceID int, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT id, category, device_id, topic, value, timestamp
         FROM event_history WHERE category = ? AND device_id = ?
         ORDER BY id DESC LIMIT ?`, category, deviceID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying device events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var events []Event
	for rows.Next() {
		var (
			e     Event
			value int
			ts    string
		)
		if err := rows.Scan(&e.ID, &e.Category, &e.DeviceID, &e.Topic, &value, &ts); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Value = value != 0
		e.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", ts, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}
	return events, nil
}

// Prune deletes events older than the retention window.
//
// A zero or negative retention disables pruning.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: If the delete fails
func (s *Store) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM event_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading prune result: %w", err)
	}
	return deleted, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
