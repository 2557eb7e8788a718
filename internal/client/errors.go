package client

import (
	"errors"
	"fmt"

	"github.com/muurk/botrelay/internal/api"
)

// ErrUnreachable wraps transport failures talking to the server.
var ErrUnreachable = errors.New("botrelay server unreachable")

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Code       string
	Result     string
}

func (e *APIError) Error() string {
	if e.Result != "" {
		return e.Result
	}
	return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
}

// NoDevices reports whether the server had no device to send to.
func (e *APIError) NoDevices() bool {
	return e.Code == api.CodeNoDevices
}

// IsAPIError returns the *APIError in err's chain, if any.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
