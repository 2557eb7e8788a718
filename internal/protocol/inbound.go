package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound message types (device to server)
const (
	TypeStatus    = "status"
	TypeHeartbeat = "heartbeat"
)

// ErrMalformedMessage is returned for frames that are not JSON objects.
var ErrMalformedMessage = errors.New("malformed message")

// Inbound is a message received from a device.
type Inbound interface {
	// MessageType returns the wire discriminator as received.
	MessageType() string
	inbound()
}

// StatusReport is a device status update.
type StatusReport struct {
	Status string
}

// Heartbeat is a device liveness probe. It is answered with HeartbeatAck.
type Heartbeat struct{}

// UnknownMessage is any well-formed object with an unrecognized type.
type UnknownMessage struct {
	Type string
	Raw  json.RawMessage
}

func (*StatusReport) MessageType() string     { return TypeStatus }
func (*Heartbeat) MessageType() string        { return TypeHeartbeat }
func (m *UnknownMessage) MessageType() string { return m.Type }

func (*StatusReport) inbound()   {}
func (*Heartbeat) inbound()      {}
func (*UnknownMessage) inbound() {}

// ParseInbound classifies a device frame.
func ParseInbound(data []byte) (Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if fields == nil {
		// literal null
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedMessage)
	}

	msgType := stringField(fields, "type", "")

	switch msgType {
	case TypeStatus:
		return &StatusReport{Status: stringField(fields, "status", "unknown")}, nil
	case TypeHeartbeat:
		return &Heartbeat{}, nil
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		return &UnknownMessage{Type: msgType, Raw: raw}, nil
	}
}

// stringField reads key as a string. Non-string values are returned in
// their JSON form; absent keys yield def.
func stringField(fields map[string]json.RawMessage, key, def string) string {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return def
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
