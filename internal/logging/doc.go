// Package logging provides structured logging with per-module level
// control on top of log/slog.
//
// Records fan out to stdout (text or JSON), the systemd journal when
// available, and an in-memory ring buffer that backs the API's log
// endpoint. Module levels come from configuration and can be adjusted
// at runtime through each module's LevelVar.
//
// Usage:
//
//	logging.Initialize(logging.Config{Level: "info", Format: "text"})
//	log := logging.GetLogger("pipeline")
//	log.Info("capture started", "format", "nv12")
package logging
