package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/muurk/botrelay/internal/registry"
)

var errBroken = errors.New("broken pipe")

// fakeConn is an in-memory registry.Connection.
type fakeConn struct {
	id    string
	fail  bool
	block bool

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(ctx context.Context, data []byte) error {
	if c.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if c.fail {
		return errBroken
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sent() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.frames...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// lastFrame decodes the most recent frame sent to c.
func (c *fakeConn) lastFrame(t *testing.T) map[string]any {
	t.Helper()
	frames := c.sent()
	if len(frames) == 0 {
		t.Fatalf("no frames sent to %s", c.id)
	}
	var m map[string]any
	if err := json.Unmarshal(frames[len(frames)-1], &m); err != nil {
		t.Fatalf("frame is not a JSON object: %v", err)
	}
	return m
}

func newRegistry(conns ...*fakeConn) *registry.Registry {
	reg := registry.New()
	for _, c := range conns {
		reg.Register(c)
	}
	return reg
}
