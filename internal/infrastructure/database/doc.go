// Package database provides SQLite connectivity for the event history store.
//
// This package manages:
//   - Connection lifecycle with WAL mode and busy timeout pragmas
//   - Single-writer connection pooling appropriate for SQLite
//   - Health checking for monitoring
//
// Schema creation is owned by the history package; this package only
// provides the connection.
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
