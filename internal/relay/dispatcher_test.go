package relay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/muurk/botrelay/internal/metrics"
	"github.com/muurk/botrelay/internal/protocol"
)

func TestBroadcastEmptyRegistry(t *testing.T) {
	d := NewDispatcher(newRegistry(), time.Second, nil)

	got := d.Broadcast(context.Background(), protocol.HeartbeatAck{Timestamp: protocol.Now()})
	if got.OK() {
		t.Error("Broadcast() on empty registry reported success")
	}
	if got.Recipients != 0 || got.Delivered != 0 || len(got.Failed) != 0 {
		t.Errorf("Broadcast() = %+v, want zero Delivery", got)
	}
}

func TestBroadcastEvictsFailedConnections(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		failed int
	}{
		{"all healthy", 3, 0},
		{"one of three fails", 3, 1},
		{"all fail", 2, 2},
		{"single healthy", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var conns []*fakeConn
			for i := 0; i < tt.total; i++ {
				conns = append(conns, &fakeConn{
					id:   fmt.Sprintf("10.0.0.%d:5000", i+1),
					fail: i < tt.failed,
				})
			}
			reg := newRegistry(conns...)
			d := NewDispatcher(reg, time.Second, metrics.New())

			msg := protocol.LEDControl{Action: "on", Brightness: 40, FromUser: "alice", Timestamp: protocol.Now()}
			got := d.Broadcast(context.Background(), msg)

			healthy := tt.total - tt.failed
			if got.OK() != (healthy > 0) {
				t.Errorf("OK() = %v, want %v", got.OK(), healthy > 0)
			}
			if got.Recipients != tt.total {
				t.Errorf("Recipients = %d, want %d", got.Recipients, tt.total)
			}
			if got.Delivered != healthy {
				t.Errorf("Delivered = %d, want %d", got.Delivered, healthy)
			}
			if len(got.Failed) != tt.failed {
				t.Errorf("len(Failed) = %d, want %d", len(got.Failed), tt.failed)
			}
			if reg.Count() != healthy {
				t.Errorf("registry count = %d, want %d", reg.Count(), healthy)
			}

			for _, c := range conns {
				if c.fail {
					if !c.isClosed() {
						t.Errorf("failed connection %s was not closed", c.id)
					}
					continue
				}
				if c.isClosed() {
					t.Errorf("healthy connection %s was closed", c.id)
				}
				if n := len(c.sent()); n != 1 {
					t.Errorf("%s received %d frames, want 1", c.id, n)
				}
				frame := c.lastFrame(t)
				if frame["type"] != protocol.TypeLEDControl {
					t.Errorf("%s frame type = %v, want %s", c.id, frame["type"], protocol.TypeLEDControl)
				}
			}
		})
	}
}

func TestBroadcastSlowConnectionTimesOut(t *testing.T) {
	slow := &fakeConn{id: "10.0.0.1:5000", block: true}
	fast := &fakeConn{id: "10.0.0.2:5000"}
	reg := newRegistry(slow, fast)
	d := NewDispatcher(reg, 50*time.Millisecond, nil)

	start := time.Now()
	got := d.Broadcast(context.Background(), protocol.HeartbeatAck{Timestamp: protocol.Now()})
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Broadcast() took %v, expected to be bounded by the send timeout", elapsed)
	}

	if !got.OK() || got.Delivered != 1 {
		t.Errorf("Broadcast() = %+v, want one delivery", got)
	}
	if len(got.Failed) != 1 || got.Failed[0] != slow.id {
		t.Errorf("Failed = %v, want [%s]", got.Failed, slow.id)
	}
	if ids := reg.IDs(); len(ids) != 1 || ids[0] != fast.id {
		t.Errorf("registry = %v, want only %s", ids, fast.id)
	}
}

func TestBroadcastDefaultTimeout(t *testing.T) {
	d := NewDispatcher(newRegistry(), 0, nil)
	if d.sendTimeout != DefaultSendTimeout {
		t.Errorf("sendTimeout = %v, want %v", d.sendTimeout, DefaultSendTimeout)
	}
}

func TestBroadcastDuringMembershipChurn(t *testing.T) {
	reg := newRegistry()
	d := NewDispatcher(reg, time.Second, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c := &fakeConn{id: fmt.Sprintf("10.0.1.%d:6000", i%20), fail: i%3 == 0}
			reg.Register(c)
			if i%2 == 0 {
				reg.Unregister(c)
			}
		}
	}()

	for i := 0; i < 50; i++ {
		d.Broadcast(context.Background(), protocol.HeartbeatAck{Timestamp: protocol.Now()})
	}
	<-done

	// One final sweep removes every failing member left behind.
	d.Broadcast(context.Background(), protocol.HeartbeatAck{Timestamp: protocol.Now()})
	for _, c := range reg.Snapshot() {
		if c.(*fakeConn).fail {
			t.Errorf("failing connection %s still registered", c.ID())
		}
	}
}
