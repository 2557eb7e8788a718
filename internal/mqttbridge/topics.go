package mqttbridge

import (
	"strings"
)

// Command kinds accepted under the command topic.
const (
	KindLED     = "led"
	KindDisplay = "display"
	KindServo   = "servo"
	KindSend    = "send"
)

// Topics builds the bridge's MQTT topics under a prefix.
//
//	topics := Topics{Prefix: "botrelay"}
//	topics.Result("led")
//	// Returns: "botrelay/result/led"
type Topics struct {
	Prefix string
}

// Events is where the platform publishes chat events.
func (t Topics) Events() string {
	return t.Prefix + "/events"
}

// Command returns the command topic for one kind.
func (t Topics) Command(kind string) string {
	return t.Prefix + "/command/" + kind
}

// CommandFilter matches every command topic.
func (t Topics) CommandFilter() string {
	return t.Prefix + "/command/+"
}

// Result returns the topic command outcomes are published to.
func (t Topics) Result(kind string) string {
	return t.Prefix + "/result/" + kind
}

// Status returns the status topic for a device.
func (t Topics) Status(deviceID string) string {
	return t.Prefix + "/status/" + SanitizeSegment(deviceID)
}

// Bridge is the retained online/offline topic.
func (t Topics) Bridge() string {
	return t.Prefix + "/bridge"
}

// CommandKind extracts the kind from a command topic.
func (t Topics) CommandKind(topic string) (string, bool) {
	kind, ok := strings.CutPrefix(topic, t.Prefix+"/command/")
	if !ok || kind == "" || strings.Contains(kind, "/") {
		return "", false
	}
	return kind, true
}

// SanitizeSegment makes s safe to use as a single topic level by replacing
// separators, wildcards and whitespace.
func SanitizeSegment(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ', '\t', '\n', '\r', 0:
			return '_'
		}
		return r
	}, s)
}
