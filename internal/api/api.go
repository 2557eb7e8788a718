// Package api defines the HTTP command surface shared by the relay server
// and its command-line client.
package api

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/muurk/botrelay/internal/relay"
)

// Routes served next to the WebSocket endpoint.
const (
	PathWebSocket = "/ws"
	PathStatus    = "/status"
	PathHealth    = "/healthz"
	PathMetrics   = "/metrics"
	PathLED       = "/api/v1/led"
	PathDisplay   = "/api/v1/display"
	PathServo     = "/api/v1/servo"
	PathSend      = "/api/v1/send"
	PathEvents    = "/api/v1/events"
)

// Error codes carried in CommandResponse.Error.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation"
	CodeNoDevices    = "no_devices"
	CodeNotDelivered = "not_delivered"
	CodeInternal     = "internal"
)

// DefaultUser is recorded as from_user when a request names nobody.
const DefaultUser = "api"

// CommandRequest pairs a caller identity with a command intent. On the wire
// both are flattened into a single JSON object.
type CommandRequest[C any] struct {
	User    string
	Command C
}

// UnmarshalJSON decodes the "user" field and the command from one object.
func (r *CommandRequest[C]) UnmarshalJSON(data []byte) error {
	var who struct {
		User string `json:"user"`
	}
	if err := json.Unmarshal(data, &who); err != nil {
		return err
	}
	r.User = who.User
	return json.Unmarshal(data, &r.Command)
}

// MarshalJSON writes the command fields with "user" added alongside.
func (r CommandRequest[C]) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(r.Command)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("command must encode as an object: %w", err)
	}
	if r.User != "" {
		user, _ := json.Marshal(r.User)
		fields["user"] = user
	}
	return json.Marshal(fields)
}

// Command request bodies.
type (
	LEDRequest     = CommandRequest[relay.LEDCommand]
	DisplayRequest = CommandRequest[relay.DisplayCommand]
	ServoRequest   = CommandRequest[relay.ServoCommand]
)

// SendRequest carries a free-form command string.
type SendRequest struct {
	User    string `json:"user,omitempty"`
	Command string `json:"command"`
}

// CommandResponse is returned by the LED, display, servo and send routes.
// Result is always human-readable, including on failure.
type CommandResponse struct {
	Result   string          `json:"result"`
	Error    string          `json:"error,omitempty"`
	Delivery *relay.Delivery `json:"delivery,omitempty"`
}

// EventResponse is returned by the events route.
type EventResponse struct {
	Delivered bool `json:"delivered"`
}

// ErrorCode classifies a command error.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case relay.IsValidation(err):
		return CodeValidation
	case errors.Is(err, relay.ErrNoDevices):
		return CodeNoDevices
	case errors.Is(err, relay.ErrNotDelivered):
		return CodeNotDelivered
	default:
		return CodeInternal
	}
}
