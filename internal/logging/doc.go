// Package logging provides structured logging for the botrelay server.
//
// This package wraps a process-wide zap logger with convenience functions for
// the logging patterns used throughout the relay: connection lifecycle events,
// WebSocket frames in both directions, and broadcast delivery summaries.
//
// # Log Levels
//
//   - Debug: Frame payloads, ping/pong, per-connection send results
//   - Info: Connections, device status reports, command dispatch
//   - Warn: Malformed frames, unrecognized message kinds, evictions
//   - Error: Bind failures, unexpected transport errors
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// When the level is empty the BOTRELAY_LOG_LEVEL environment variable is
// consulted. If neither is set, logging is silent so CLI commands can render
// their own output cleanly.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
