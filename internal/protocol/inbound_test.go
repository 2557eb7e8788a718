package protocol

import (
	"errors"
	"testing"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name       string
		frame      string
		wantErr    bool
		wantType   string
		wantStatus string
	}{
		{name: "status", frame: `{"type":"status","status":"LED on, 80%"}`, wantType: TypeStatus, wantStatus: "LED on, 80%"},
		{name: "status without text", frame: `{"type":"status"}`, wantType: TypeStatus, wantStatus: "unknown"},
		{name: "status with numeric text", frame: `{"type":"status","status":42}`, wantType: TypeStatus, wantStatus: "42"},
		{name: "heartbeat", frame: `{"type":"heartbeat"}`, wantType: TypeHeartbeat},
		{name: "heartbeat with extras", frame: `{"type":"heartbeat","uptime":1234}`, wantType: TypeHeartbeat},
		{name: "unknown type", frame: `{"type":"telemetry","temp":21.5}`, wantType: "telemetry"},
		{name: "missing type", frame: `{"status":"ok"}`, wantType: ""},
		{name: "not json", frame: `hello there`, wantErr: true},
		{name: "json array", frame: `[1,2,3]`, wantErr: true},
		{name: "json string", frame: `"heartbeat"`, wantErr: true},
		{name: "json null", frame: `null`, wantErr: true},
		{name: "truncated", frame: `{"type":"heart`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseInbound([]byte(tt.frame))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedMessage) {
					t.Fatalf("ParseInbound() error = %v, want ErrMalformedMessage", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseInbound() error = %v", err)
			}
			if msg.MessageType() != tt.wantType {
				t.Errorf("MessageType() = %q, want %q", msg.MessageType(), tt.wantType)
			}

			switch m := msg.(type) {
			case *StatusReport:
				if m.Status != tt.wantStatus {
					t.Errorf("Status = %q, want %q", m.Status, tt.wantStatus)
				}
			case *Heartbeat:
			case *UnknownMessage:
				if string(m.Raw) != tt.frame {
					t.Errorf("Raw = %s, want %s", m.Raw, tt.frame)
				}
			default:
				t.Fatalf("unexpected inbound type %T", msg)
			}
		})
	}
}
