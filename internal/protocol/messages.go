package protocol

import (
	"encoding/json"
	"fmt"
)

// Outbound message types (server to device)
const (
	TypeWelcome       = "welcome"
	TypeHeartbeatAck  = "heartbeat_ack"
	TypeChatMessage   = "astrbot_message"
	TypeLEDControl    = "led_control"
	TypeOLEDControl   = "oled_control"
	TypeServoControl  = "servo_control"
	TypeCustomCommand = "custom_command"
)

// Outbound is a message the relay sends to devices.
type Outbound interface {
	// MessageType returns the wire discriminator.
	MessageType() string
	outbound()
}

// Encode serializes an outbound message, including its type discriminator.
func Encode(msg Outbound) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("cannot encode nil message")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.MessageType(), err)
	}
	return data, nil
}

// Welcome is sent exactly once, immediately after a device connects.
type Welcome struct {
	Message   string    `json:"message"`
	Timestamp Timestamp `json:"timestamp"`
}

// HeartbeatAck answers a device heartbeat.
type HeartbeatAck struct {
	Timestamp Timestamp `json:"timestamp"`
}

// LEDControl switches the device LED.
type LEDControl struct {
	Action     string    `json:"action"`
	Brightness int       `json:"brightness"`
	FromUser   string    `json:"from_user"`
	Timestamp  Timestamp `json:"timestamp"`
}

// OLEDControl drives the device display.
type OLEDControl struct {
	Action    string    `json:"action"`
	Content   string    `json:"content"`
	FromUser  string    `json:"from_user"`
	Timestamp Timestamp `json:"timestamp"`
}

// ServoControl positions the device servo.
type ServoControl struct {
	Action    string    `json:"action"`
	Angle     int       `json:"angle"`
	FromUser  string    `json:"from_user"`
	Timestamp Timestamp `json:"timestamp"`
}

// CustomCommand carries a free-form command string to devices.
type CustomCommand struct {
	Command   string    `json:"command"`
	FromUser  string    `json:"from_user"`
	Timestamp Timestamp `json:"timestamp"`
}

func (Welcome) MessageType() string       { return TypeWelcome }
func (HeartbeatAck) MessageType() string  { return TypeHeartbeatAck }
func (ChatMessage) MessageType() string   { return TypeChatMessage }
func (LEDControl) MessageType() string    { return TypeLEDControl }
func (OLEDControl) MessageType() string   { return TypeOLEDControl }
func (ServoControl) MessageType() string  { return TypeServoControl }
func (CustomCommand) MessageType() string { return TypeCustomCommand }

func (Welcome) outbound()       {}
func (HeartbeatAck) outbound()  {}
func (ChatMessage) outbound()   {}
func (LEDControl) outbound()    {}
func (OLEDControl) outbound()   {}
func (ServoControl) outbound()  {}
func (CustomCommand) outbound() {}

// The MarshalJSON methods below flatten the message fields next to the
// "type" discriminator. Each alias type drops the method set so the inner
// json.Marshal call does not recurse.

// MarshalJSON implements json.Marshaler.
func (m Welcome) MarshalJSON() ([]byte, error) {
	type alias Welcome
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeWelcome, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m HeartbeatAck) MarshalJSON() ([]byte, error) {
	type alias HeartbeatAck
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeHeartbeatAck, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	type alias ChatMessage
	if m.Components == nil {
		m.Components = []Component{}
	}
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeChatMessage, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m LEDControl) MarshalJSON() ([]byte, error) {
	type alias LEDControl
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeLEDControl, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m OLEDControl) MarshalJSON() ([]byte, error) {
	type alias OLEDControl
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeOLEDControl, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m ServoControl) MarshalJSON() ([]byte, error) {
	type alias ServoControl
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeServoControl, alias(m)})
}

// MarshalJSON implements json.Marshaler.
func (m CustomCommand) MarshalJSON() ([]byte, error) {
	type alias CustomCommand
	return json.Marshal(struct {
		Type string `json:"type"`
		alias
	}{TypeCustomCommand, alias(m)})
}
