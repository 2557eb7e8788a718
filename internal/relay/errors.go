package relay

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDevices is returned when a command is issued with no device connected.
	ErrNoDevices = errors.New("no devices connected")

	// ErrNotDelivered is returned when every send of a command failed.
	ErrNotDelivered = errors.New("command was not delivered to any device")
)

// ValidationError describes a rejected command parameter.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Allowed []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	if len(e.Allowed) > 0 {
		msg += " (supported: " + strings.Join(e.Allowed, ", ") + ")"
	}
	return msg
}

func invalidAction(capability, action string, allowed []string) *ValidationError {
	return &ValidationError{
		Field:   "action",
		Value:   action,
		Reason:  "not a supported " + capability + " action",
		Allowed: allowed,
	}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
