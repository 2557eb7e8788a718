package mqttbridge

import "errors"

var (
	// ErrNotConnected is returned when publishing while disconnected.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrSubscribeFailed is returned when a subscribe operation fails.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnknownCommand is returned for command topics with an unsupported kind.
	ErrUnknownCommand = errors.New("mqtt: unknown command kind")

	errBadRequest = errors.New("invalid request")
)
