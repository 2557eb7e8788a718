package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/muurk/botrelay/internal/api"
	"github.com/muurk/botrelay/internal/relay"
)

// execute runs the root command with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

type recorded struct {
	path string
	body map[string]any
}

func fakeServer(t *testing.T, status int, resp any) (*httptest.Server, *recorded) {
	t.Helper()
	rec := &recorded{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.path = r.URL.Path
		rec.body = nil
		_ = json.NewDecoder(r.Body).Decode(&rec.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(ts.Close)
	return ts, rec
}

func TestLEDCommand(t *testing.T) {
	ts, rec := fakeServer(t, http.StatusOK, api.CommandResponse{Result: "LED turned on at 40% brightness"})

	out, err := execute(t, "--server", ts.URL, "--format", "detailed", "--user", "alice", "led", "on", "--brightness", "40")
	if err != nil {
		t.Fatalf("led error = %v\n%s", err, out)
	}
	if rec.path != api.PathLED {
		t.Errorf("path = %q, want %q", rec.path, api.PathLED)
	}
	if rec.body["action"] != "on" || rec.body["brightness"] != float64(40) || rec.body["user"] != "alice" {
		t.Errorf("body = %v", rec.body)
	}
	if !strings.Contains(out, "LED turned on at 40% brightness") {
		t.Errorf("output:\n%s", out)
	}
}

func TestDisplayAndServoArgs(t *testing.T) {
	ts, rec := fakeServer(t, http.StatusOK, api.CommandResponse{Result: "ok"})

	if _, err := execute(t, "--server", ts.URL, "--format", "json", "display", "text", "hello", "there"); err != nil {
		t.Fatal(err)
	}
	if rec.path != api.PathDisplay || rec.body["content"] != "hello there" {
		t.Errorf("display request = %s %v", rec.path, rec.body)
	}

	if _, err := execute(t, "--server", ts.URL, "--format", "json", "servo", "rotate", "45"); err != nil {
		t.Fatal(err)
	}
	if rec.path != api.PathServo || rec.body["angle"] != "45" {
		t.Errorf("servo request = %s %v", rec.path, rec.body)
	}
}

func TestCommandFailureIsReported(t *testing.T) {
	ts, _ := fakeServer(t, http.StatusConflict, api.CommandResponse{
		Result: "No devices connected, cannot run servo command",
		Error:  api.CodeNoDevices,
	})

	out, err := execute(t, "--server", ts.URL, "--format", "detailed", "servo", "center")
	var reported reportedError
	if !errors.As(err, &reported) {
		t.Fatalf("error = %v, want reportedError", err)
	}
	for _, want := range []string{"FAILED", "No devices connected", "Troubleshooting:", "ws://"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCommandFailureJSON(t *testing.T) {
	ts, _ := fakeServer(t, http.StatusUnprocessableEntity, api.CommandResponse{
		Result: "Rejected: invalid action \"blink\"",
		Error:  api.CodeValidation,
	})

	out, err := execute(t, "--server", ts.URL, "--format", "json", "led", "blink")
	if err == nil {
		t.Fatal("expected an error")
	}
	var resp api.CommandResponse
	if jerr := json.Unmarshal([]byte(out), &resp); jerr != nil {
		t.Fatalf("output is not JSON: %v\n%s", jerr, out)
	}
	if resp.Error != api.CodeValidation {
		t.Errorf("error code = %q, want %q", resp.Error, api.CodeValidation)
	}
}

func TestStatusJSON(t *testing.T) {
	ts, _ := fakeServer(t, http.StatusOK, relay.Status{
		Address:     "0.0.0.0:8765",
		Count:       1,
		Connections: []string{"10.0.0.4:3000"},
	})

	out, err := execute(t, "--server", ts.URL, "--format", "json", "status")
	if err != nil {
		t.Fatal(err)
	}
	var status relay.Status
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if status.Count != 1 || status.Connections[0] != "10.0.0.4:3000" {
		t.Errorf("status = %+v", status)
	}
}

func TestEventCommand(t *testing.T) {
	ts, rec := fakeServer(t, http.StatusOK, api.EventResponse{Delivered: true})

	if _, err := execute(t, "--server", ts.URL, "--format", "json", "--user", "erin", "event", "--group", "42", "hi", "all"); err != nil {
		t.Fatal(err)
	}
	if rec.path != api.PathEvents {
		t.Errorf("path = %q", rec.path)
	}
	if rec.body["message_text"] != "hi all" || rec.body["group_id"] != "42" || rec.body["sender_name"] != "erin" {
		t.Errorf("event body = %v", rec.body)
	}
}

func TestResolveServerFromEnv(t *testing.T) {
	serverAddr = ""
	t.Setenv(ServerEnvVar, "10.1.2.3:8765")

	got, err := resolveServer(context.Background())
	if err != nil || got != "10.1.2.3:8765" {
		t.Errorf("resolveServer() = %q, %v", got, err)
	}
}

func TestWSURL(t *testing.T) {
	tests := map[string]string{
		"http://10.0.0.2:8765":  "ws://10.0.0.2:8765/",
		"https://relay.example": "wss://relay.example/",
		"relay":                 "relay",
	}
	for in, want := range tests {
		if got := wsURL(in); got != want {
			t.Errorf("wsURL(%q) = %q, want %q", in, got, want)
		}
	}
}
