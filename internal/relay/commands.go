package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// LED actions
const (
	LEDOn     = "on"
	LEDOff    = "off"
	LEDToggle = "toggle"
)

// Display actions
const (
	DisplayEmotion = "emotion"
	DisplayText    = "text"
	DisplayClear   = "clear"
)

// Servo actions
const (
	ServoRotate = "rotate"
	ServoCenter = "center"
	ServoSweep  = "sweep"
)

const (
	defaultBrightness = 100
	maxBrightness     = 100
	defaultAngle      = "90"
	centerAngle       = 90
	maxAngle          = 180
)

var (
	ledActions     = []string{LEDOn, LEDOff, LEDToggle}
	displayActions = []string{DisplayEmotion, DisplayText, DisplayClear}
	servoActions   = []string{ServoRotate, ServoCenter, ServoSweep}
)

// emotions lists each canonical emotion with its accepted aliases.
var emotions = []struct {
	name    string
	aliases []string
}{
	{"happy", []string{"开心", "高兴", "快乐"}},
	{"sad", []string{"伤心", "难过"}},
	{"angry", []string{"生气", "愤怒"}},
	{"surprised", []string{"惊讶", "吃惊"}},
	{"sleepy", []string{"困", "睡觉"}},
	{"love", []string{"爱心", "喜欢"}},
	{"cool", []string{"酷", "帅"}},
	{"thinking", []string{"思考", "想"}},
}

// CanonicalEmotion maps an emotion name or alias to its canonical English
// name. Matching ignores case and surrounding whitespace.
func CanonicalEmotion(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, e := range emotions {
		if strings.EqualFold(s, e.name) {
			return e.name, true
		}
		for _, alias := range e.aliases {
			if strings.EqualFold(s, alias) {
				return e.name, true
			}
		}
	}
	return "", false
}

// EmotionNames returns every accepted emotion name, canonical names first
// within each group.
func EmotionNames() []string {
	var names []string
	for _, e := range emotions {
		names = append(names, e.name)
		names = append(names, e.aliases...)
	}
	return names
}

// LEDCommand is a request to switch the LED. A nil Brightness means 100.
type LEDCommand struct {
	Action     string `json:"action"`
	Brightness *int   `json:"brightness,omitempty"`
}

// Brightness is a helper for building an LEDCommand literal.
func Brightness(n int) *int {
	return &n
}

// DisplayCommand is a request to drive the OLED display.
type DisplayCommand struct {
	Action  string `json:"action"`
	Content string `json:"content,omitempty"`
}

// ServoCommand is a request to move the servo. Angle is textual, as supplied
// by the caller; empty means "90".
type ServoCommand struct {
	Action string `json:"action"`
	Angle  string `json:"angle,omitempty"`
}

// UnmarshalJSON accepts the angle either as a string or as a bare number.
func (c *ServoCommand) UnmarshalJSON(data []byte) error {
	var raw struct {
		Action string          `json:"action"`
		Angle  json.RawMessage `json:"angle"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Action = raw.Action
	c.Angle = ""

	angle := bytes.TrimSpace(raw.Angle)
	switch {
	case len(angle) == 0 || bytes.Equal(angle, []byte("null")):
	case angle[0] == '"':
		if err := json.Unmarshal(angle, &c.Angle); err != nil {
			return fmt.Errorf("invalid angle: %w", err)
		}
	default:
		c.Angle = string(angle)
	}
	return nil
}

type ledParams struct {
	action     string
	brightness int
}

type displayParams struct {
	action  string
	content string
	// emotion holds the canonical name for emotion actions.
	emotion string
}

type servoParams struct {
	action string
	angle  int
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (c LEDCommand) validate() (ledParams, error) {
	p := ledParams{
		action:     normalizeAction(c.Action),
		brightness: defaultBrightness,
	}
	if !contains(ledActions, p.action) {
		return p, invalidAction("LED", c.Action, ledActions)
	}
	if c.Brightness != nil {
		p.brightness = *c.Brightness
	}
	if p.brightness < 0 || p.brightness > maxBrightness {
		return p, &ValidationError{
			Field:  "brightness",
			Value:  strconv.Itoa(p.brightness),
			Reason: fmt.Sprintf("must be between 0 and %d", maxBrightness),
		}
	}
	return p, nil
}

func (c DisplayCommand) validate() (displayParams, error) {
	p := displayParams{
		action:  normalizeAction(c.Action),
		content: c.Content,
	}
	switch p.action {
	case DisplayEmotion:
		name, ok := CanonicalEmotion(c.Content)
		if !ok {
			return p, &ValidationError{
				Field:   "emotion",
				Value:   c.Content,
				Reason:  "not a supported emotion",
				Allowed: EmotionNames(),
			}
		}
		p.emotion = name
		p.content = name
	case DisplayText:
	case DisplayClear:
		p.content = ""
	default:
		return p, invalidAction("display", c.Action, displayActions)
	}
	return p, nil
}

func (c ServoCommand) validate() (servoParams, error) {
	p := servoParams{action: normalizeAction(c.Action)}
	if !contains(servoActions, p.action) {
		return p, invalidAction("servo", c.Action, servoActions)
	}
	if p.action == ServoCenter {
		p.angle = centerAngle
		return p, nil
	}

	text := strings.TrimSpace(c.Angle)
	if text == "" {
		text = defaultAngle
	}
	angle, err := strconv.Atoi(text)
	if err != nil {
		return p, &ValidationError{
			Field:  "angle",
			Value:  c.Angle,
			Reason: "must be a number",
		}
	}
	if angle < 0 || angle > maxAngle {
		return p, &ValidationError{
			Field:  "angle",
			Value:  text,
			Reason: fmt.Sprintf("must be between 0 and %d degrees", maxAngle),
		}
	}
	p.angle = angle
	return p, nil
}

func (p ledParams) result() string {
	switch p.action {
	case LEDOn:
		return fmt.Sprintf("LED turned on at %d%% brightness", p.brightness)
	case LEDToggle:
		return fmt.Sprintf("LED toggled, brightness set to %d%%", p.brightness)
	default:
		return "LED turned off"
	}
}

func (p displayParams) result() string {
	switch p.action {
	case DisplayEmotion:
		return fmt.Sprintf("Showing %s emotion on the display", p.emotion)
	case DisplayText:
		return fmt.Sprintf("Showing text on the display: %s", p.content)
	default:
		return "Display cleared"
	}
}

func (p servoParams) result() string {
	switch p.action {
	case ServoRotate:
		return fmt.Sprintf("Servo rotated to %d degrees", p.angle)
	case ServoCenter:
		return "Servo returned to center (90 degrees)"
	default:
		return fmt.Sprintf("Servo sweeping around %d degrees", p.angle)
	}
}
