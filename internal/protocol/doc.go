// Package protocol defines the JSON wire protocol spoken between the relay
// and its devices.
//
// Every frame is a UTF-8 JSON object carrying a "type" discriminator. The
// package models each direction as a closed set of Go types:
//
//   - Outbound (server to device): Welcome, HeartbeatAck, ChatMessage,
//     LEDControl, OLEDControl, ServoControl, CustomCommand
//   - Inbound (device to server): StatusReport, Heartbeat, UnknownMessage
//
// Both sets are sealed with an unexported marker method, so the only way to
// add a message kind is to add a type to this package.
//
// # Encoding
//
// Outbound messages are encoded with Encode, which stamps the discriminator:
//
//	data, err := protocol.Encode(protocol.LEDControl{
//	    Action:     "on",
//	    Brightness: 80,
//	    FromUser:   "alice",
//	    Timestamp:  protocol.Now(),
//	})
//	// {"type":"led_control","action":"on","brightness":80,"from_user":"alice","timestamp":1700000000.123}
//
// # Decoding
//
// ParseInbound classifies device frames. Frames that are not JSON objects
// return ErrMalformedMessage; objects with an unrecognized or missing type
// decode to *UnknownMessage rather than an error.
//
// # Timestamps
//
// Timestamps are encoded as Unix seconds with millisecond precision, which is
// what the device firmware's JSON parser expects for numeric fields.
package protocol
