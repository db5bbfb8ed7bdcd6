// Package logging provides structured logging for the NX-587E bridge.
//
// Built on log/slog, it adds:
//   - Configurable output format (JSON or text)
//   - Level filtering from configuration
//   - Default service and version fields on every record
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("session established", "port", cfg.Panel.Port)
package logging
