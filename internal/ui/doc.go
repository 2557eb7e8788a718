// Package ui provides terminal output for the botrelay command-line tools.
//
// Most commands run once and exit, so the package mostly renders styled
// strings with Lipgloss:
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning or failure box with details
//   - DeviceTable: the connected-device list from a status query
//
// The one interactive piece is WatchModel, a Bubble Tea program behind
// "botrelay-ctl watch" that polls a server and redraws its device list.
//
// # Logging Integration
//
// Logging is controlled by the BOTRELAY_LOG_LEVEL environment variable.
// When it is unset zap is silent, so this package's output is the only
// thing on the terminal.
package ui
