package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muurk/botrelay/internal/protocol"
)

func newController(conns ...*fakeConn) *Controller {
	d := NewDispatcher(newRegistry(conns...), time.Second, nil)
	return NewController(d, func() string { return "0.0.0.0:8765" })
}

func TestCommandsRequireDevices(t *testing.T) {
	c := newController()
	ctx := context.Background()

	// Invalid parameters still report the missing devices first.
	if _, err := c.LED(ctx, "alice", LEDCommand{Action: "spin"}); !errors.Is(err, ErrNoDevices) {
		t.Errorf("LED() error = %v, want ErrNoDevices", err)
	}
	if _, err := c.Display(ctx, "alice", DisplayCommand{Action: "emotion", Content: "furious"}); !errors.Is(err, ErrNoDevices) {
		t.Errorf("Display() error = %v, want ErrNoDevices", err)
	}
	if _, err := c.Servo(ctx, "alice", ServoCommand{Action: "rotate", Angle: "abc"}); !errors.Is(err, ErrNoDevices) {
		t.Errorf("Servo() error = %v, want ErrNoDevices", err)
	}
	if _, err := c.SendCustom(ctx, "alice", "dance"); !errors.Is(err, ErrNoDevices) {
		t.Errorf("SendCustom() error = %v, want ErrNoDevices", err)
	}

	got := c.ControlLED(ctx, "alice", LEDCommand{Action: "on"})
	if !strings.Contains(got, "No devices connected") {
		t.Errorf("ControlLED() = %q, want no devices message", got)
	}
}

func TestLED(t *testing.T) {
	tests := []struct {
		name        string
		cmd         LEDCommand
		wantErr     bool
		errContains []string
		want        string
		wantAction  string
		wantLevel   float64
	}{
		{
			name:        "brightness above range",
			cmd:         LEDCommand{Action: "on", Brightness: Brightness(150)},
			wantErr:     true,
			errContains: []string{"100"},
		},
		{
			name:        "negative brightness",
			cmd:         LEDCommand{Action: "toggle", Brightness: Brightness(-1)},
			wantErr:     true,
			errContains: []string{"0 and 100"},
		},
		{
			name:        "unknown action",
			cmd:         LEDCommand{Action: "spin"},
			wantErr:     true,
			errContains: []string{"on", "off", "toggle"},
		},
		{
			name:       "toggle echoes brightness",
			cmd:        LEDCommand{Action: "toggle", Brightness: Brightness(50)},
			want:       "50",
			wantAction: "toggle",
			wantLevel:  50,
		},
		{
			name:       "on defaults to full brightness",
			cmd:        LEDCommand{Action: "On"},
			want:       "LED turned on at 100% brightness",
			wantAction: "on",
			wantLevel:  100,
		},
		{
			name:       "off",
			cmd:        LEDCommand{Action: "OFF", Brightness: Brightness(0)},
			want:       "LED turned off",
			wantAction: "off",
			wantLevel:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeConn{id: "192.168.1.20:40000"}
			c := newController(dev)

			got, err := c.LED(context.Background(), "alice", tt.cmd)
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("LED() error = %v, want *ValidationError", err)
				}
				for _, s := range tt.errContains {
					if !strings.Contains(err.Error(), s) {
						t.Errorf("error %q does not mention %q", err.Error(), s)
					}
				}
				if n := len(dev.sent()); n != 0 {
					t.Errorf("rejected command sent %d frames", n)
				}
				return
			}
			if err != nil {
				t.Fatalf("LED() unexpected error: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("LED() = %q, want it to contain %q", got, tt.want)
			}

			frame := dev.lastFrame(t)
			if frame["type"] != protocol.TypeLEDControl {
				t.Errorf("type = %v, want %s", frame["type"], protocol.TypeLEDControl)
			}
			if frame["action"] != tt.wantAction {
				t.Errorf("action = %v, want %s", frame["action"], tt.wantAction)
			}
			if frame["brightness"] != tt.wantLevel {
				t.Errorf("brightness = %v, want %v", frame["brightness"], tt.wantLevel)
			}
			if frame["from_user"] != "alice" {
				t.Errorf("from_user = %v, want alice", frame["from_user"])
			}
			if _, ok := frame["timestamp"].(float64); !ok {
				t.Errorf("timestamp = %v, want a number", frame["timestamp"])
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name        string
		cmd         DisplayCommand
		wantErr     bool
		wantContent string
		want        string
	}{
		{"localized alias", DisplayCommand{Action: "emotion", Content: "快乐"}, false, "happy", "happy"},
		{"english mixed case", DisplayCommand{Action: "Emotion", Content: "Thinking"}, false, "thinking", "thinking"},
		{"single character alias", DisplayCommand{Action: "emotion", Content: "帅"}, false, "cool", "cool"},
		{"unknown emotion", DisplayCommand{Action: "emotion", Content: "furious"}, true, "", ""},
		{"text passes through", DisplayCommand{Action: "text", Content: "  Hello, 世界  "}, false, "  Hello, 世界  ", "Hello, 世界"},
		{"clear ignores content", DisplayCommand{Action: "clear", Content: "ignored"}, false, "", "cleared"},
		{"unknown action", DisplayCommand{Action: "blink"}, true, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeConn{id: "192.168.1.20:40000"}
			c := newController(dev)

			got, err := c.Display(context.Background(), "bob", tt.cmd)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("Display() error = %v, want validation error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Display() unexpected error: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Display() = %q, want it to contain %q", got, tt.want)
			}
			frame := dev.lastFrame(t)
			if frame["type"] != protocol.TypeOLEDControl {
				t.Errorf("type = %v, want %s", frame["type"], protocol.TypeOLEDControl)
			}
			if frame["content"] != tt.wantContent {
				t.Errorf("content = %q, want %q", frame["content"], tt.wantContent)
			}
		})
	}
}

func TestDisplayRejectionListsEmotions(t *testing.T) {
	c := newController(&fakeConn{id: "192.168.1.20:40000"})

	_, err := c.Display(context.Background(), "bob", DisplayCommand{Action: "emotion", Content: "furious"})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Display() error = %v, want *ValidationError", err)
	}
	for _, name := range []string{"happy", "sad", "angry", "surprised", "sleepy", "love", "cool", "thinking", "快乐"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("rejection %q does not list %q", err.Error(), name)
		}
	}
	if ve.Value != "furious" {
		t.Errorf("Value = %q, want furious", ve.Value)
	}
}

func TestServo(t *testing.T) {
	tests := []struct {
		name        string
		cmd         ServoCommand
		wantErr     bool
		errContains string
		wantAngle   float64
	}{
		{"out of range", ServoCommand{Action: "rotate", Angle: "200"}, true, "0 and 180", 0},
		{"negative", ServoCommand{Action: "sweep", Angle: "-5"}, true, "0 and 180", 0},
		{"non numeric", ServoCommand{Action: "rotate", Angle: "abc"}, true, "must be a number", 0},
		{"unknown action", ServoCommand{Action: "spin"}, true, "rotate, center, sweep", 0},
		{"default angle", ServoCommand{Action: "rotate"}, false, "", 90},
		{"upper bound", ServoCommand{Action: "rotate", Angle: "180"}, false, "", 180},
		{"center ignores angle", ServoCommand{Action: "center", Angle: "abc"}, false, "", 90},
		{"center forces ninety", ServoCommand{Action: "CENTER", Angle: "10"}, false, "", 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &fakeConn{id: "192.168.1.20:40000"}
			c := newController(dev)

			_, err := c.Servo(context.Background(), "carol", tt.cmd)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("Servo() error = %v, want validation error", err)
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not mention %q", err.Error(), tt.errContains)
				}
				if tt.cmd.Angle != "" && !strings.Contains(err.Error(), tt.cmd.Angle) {
					t.Errorf("error %q does not identify value %q", err.Error(), tt.cmd.Angle)
				}
				return
			}
			if err != nil {
				t.Fatalf("Servo() unexpected error: %v", err)
			}
			frame := dev.lastFrame(t)
			if frame["angle"] != tt.wantAngle {
				t.Errorf("angle = %v, want %v", frame["angle"], tt.wantAngle)
			}
		})
	}
}

func TestCommandNotDelivered(t *testing.T) {
	c := newController(&fakeConn{id: "192.168.1.20:40000", fail: true})

	_, err := c.LED(context.Background(), "alice", LEDCommand{Action: "on"})
	if !errors.Is(err, ErrNotDelivered) {
		t.Fatalf("LED() error = %v, want ErrNotDelivered", err)
	}
	if n := c.Status().Count; n != 0 {
		t.Errorf("failed device still registered, count = %d", n)
	}
}

func TestControlBoundaries(t *testing.T) {
	c := newController(&fakeConn{id: "192.168.1.20:40000"})
	ctx := context.Background()

	if got := c.ControlLED(ctx, "alice", LEDCommand{Action: "on", Brightness: Brightness(150)}); !strings.HasPrefix(got, "Rejected:") {
		t.Errorf("ControlLED() = %q, want rejection text", got)
	}
	if got := c.ControlDisplay(ctx, "alice", DisplayCommand{Action: "emotion", Content: "开心"}); !strings.Contains(got, "happy") {
		t.Errorf("ControlDisplay() = %q, want happy confirmation", got)
	}
	if got := c.ControlServo(ctx, "alice", ServoCommand{Action: "center"}); !strings.Contains(got, "90") {
		t.Errorf("ControlServo() = %q, want center confirmation", got)
	}
}

func TestSendCustomAndForward(t *testing.T) {
	dev := &fakeConn{id: "192.168.1.20:40000"}
	c := newController(dev)
	ctx := context.Background()

	d, err := c.SendCustom(ctx, "alice", "dance")
	if err != nil || d.Delivered != 1 {
		t.Fatalf("SendCustom() = %+v, %v", d, err)
	}
	frame := dev.lastFrame(t)
	if frame["type"] != protocol.TypeCustomCommand || frame["command"] != "dance" {
		t.Errorf("custom frame = %v", frame)
	}

	ev := protocol.ChatEvent{
		Platform:   "qq",
		SenderID:   "42",
		SenderName: "alice",
		Text:       "hi",
		Components: []protocol.Component{protocol.Text("hi")},
	}
	if !c.Forward(ctx, ev) {
		t.Fatal("Forward() = false, want true")
	}
	frame = dev.lastFrame(t)
	if frame["type"] != protocol.TypeChatMessage || frame["message_text"] != "hi" {
		t.Errorf("chat frame = %v", frame)
	}

	if newController().Forward(ctx, ev) {
		t.Error("Forward() with no devices = true, want false")
	}
}

func TestForwardGroupMessage(t *testing.T) {
	dev := &fakeConn{id: "192.168.1.20:40000"}
	c := newController(dev)

	ev := protocol.ChatEvent{
		Platform:    "qq",
		SenderID:    "42",
		SenderName:  "alice",
		Text:        "hello group",
		MessageKind: "GroupMessage",
		GroupID:     "9001",
		Components:  []protocol.Component{protocol.Text("hello group")},
	}
	if !c.Forward(context.Background(), ev) {
		t.Fatal("Forward() of a group message = false, want true")
	}
	frame := dev.lastFrame(t)
	if frame["message_type"] != "GroupMessage" || frame["group_id"] != "9001" {
		t.Errorf("chat frame = %v", frame)
	}
	if frame["is_private"] != false {
		t.Errorf("is_private = %v, want false", frame["is_private"])
	}
}

func TestStatus(t *testing.T) {
	c := newController(&fakeConn{id: "192.168.1.21:40000"}, &fakeConn{id: "192.168.1.20:40000"})

	st := c.Status()
	if st.Address != "0.0.0.0:8765" || st.Count != 2 {
		t.Errorf("Status() = %+v", st)
	}
	if st.Connections[0] != "192.168.1.20:40000" {
		t.Errorf("Connections not sorted: %v", st.Connections)
	}

	summary := st.Summary()
	for _, want := range []string{"ws://0.0.0.0:8765", "Connected devices: 2", "device 2: 192.168.1.21:40000"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}

	empty := newController().Status()
	if !strings.Contains(empty.Summary(), "No devices connected") {
		t.Errorf("Summary() = %q, want no devices", empty.Summary())
	}
}

func TestServoCommandDecode(t *testing.T) {
	tests := []struct {
		input string
		want  ServoCommand
	}{
		{`{"action":"rotate","angle":"45"}`, ServoCommand{Action: "rotate", Angle: "45"}},
		{`{"action":"rotate","angle":120}`, ServoCommand{Action: "rotate", Angle: "120"}},
		{`{"action":"sweep"}`, ServoCommand{Action: "sweep"}},
		{`{"action":"center","angle":null}`, ServoCommand{Action: "center"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got ServoCommand
			if err := json.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Unmarshal() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
