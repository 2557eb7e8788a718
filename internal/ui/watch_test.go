package ui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/botrelay/internal/relay"
)

func staticStatus(status *relay.Status, err error) StatusFunc {
	return func(context.Context) (*relay.Status, error) {
		return status, err
	}
}

func TestWatchPollUpdatesStatus(t *testing.T) {
	status := &relay.Status{Address: "0.0.0.0:8765", Count: 1, Connections: []string{"10.0.0.9:5555"}}
	m := NewWatchModel("10.0.0.2:8765", time.Second, staticStatus(status, nil))
	m.Width = 80

	msg := m.poll(m.seq)()
	updated, cmd := m.Update(msg)
	wm := updated.(WatchModel)

	if wm.Status != status || wm.Err != nil {
		t.Fatalf("Status = %+v, Err = %v", wm.Status, wm.Err)
	}
	if wm.LastUpdate.IsZero() {
		t.Error("LastUpdate not set")
	}
	if cmd == nil {
		t.Error("expected the next poll to be scheduled")
	}

	view := wm.View()
	for _, want := range []string{"DEVICE MONITOR", "10.0.0.9:5555", "Updated"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestWatchKeepsLastStatusOnError(t *testing.T) {
	status := &relay.Status{Address: "0.0.0.0:8765"}
	m := NewWatchModel("srv", time.Second, nil)
	m.Status = status

	updated, _ := m.Update(statusMsg{seq: m.seq, err: errors.New("connection refused"), at: time.Now()})
	wm := updated.(WatchModel)

	if wm.Status != status {
		t.Error("previous status discarded on error")
	}
	if !strings.Contains(wm.View(), "connection refused") {
		t.Errorf("error not shown:\n%s", wm.View())
	}
}

func TestWatchDropsStaleReplies(t *testing.T) {
	m := NewWatchModel("srv", time.Second, staticStatus(&relay.Status{}, nil))
	m.seq = 3
	m.Loading = true

	updated, cmd := m.Update(statusMsg{seq: 2, status: &relay.Status{Count: 9}})
	wm := updated.(WatchModel)
	if wm.Status != nil || cmd != nil || !wm.Loading {
		t.Error("stale reply was applied")
	}

	updated, cmd = wm.Update(pollTickMsg{seq: 1})
	if cmd != nil || updated.(WatchModel).seq != 3 {
		t.Error("stale tick started a poll")
	}
}

func TestWatchKeys(t *testing.T) {
	m := NewWatchModel("srv", time.Second, staticStatus(&relay.Status{}, nil))

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key did not quit")
	}

	// Refresh is ignored until the initial poll has answered.
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil {
		t.Error("refresh during the initial poll started another")
	}
	m.Loading = false

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	wm := updated.(WatchModel)
	if !wm.Loading || wm.seq != 1 || cmd == nil {
		t.Errorf("refresh: Loading = %v, seq = %d", wm.Loading, wm.seq)
	}

	// A second refresh while loading is ignored.
	updated, cmd = wm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil || updated.(WatchModel).seq != 1 {
		t.Error("refresh while loading started another poll")
	}
}

func TestWatchDefaultInterval(t *testing.T) {
	m := NewWatchModel("srv", 0, nil)
	if m.Interval != DefaultWatchInterval {
		t.Errorf("Interval = %v, want %v", m.Interval, DefaultWatchInterval)
	}
}
