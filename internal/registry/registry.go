// Package registry tracks the live set of device connections.
//
// The Registry is the only shared mutable state in the relay. Membership
// changes happen under a mutex; iteration works on a copy returned by
// Snapshot so no lock is ever held during network I/O.
package registry

import (
	"context"
	"sort"
	"sync"
)

// Connection is an open channel to one device.
//
// Implementations must serialize concurrent Send calls. Close must be safe to
// call more than once and concurrently with Send.
type Connection interface {
	// ID returns the stable per-process identity (the device's remote address).
	ID() string
	// Send writes one frame, honouring ctx's deadline.
	Send(ctx context.Context, data []byte) error
	// Close closes the channel.
	Close() error
}

// Registry is a concurrency-safe set of connections keyed by identity.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Connection
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]Connection),
	}
}

// Register adds an open connection. A connection registered under an
// identity that is already present replaces the previous entry; the displaced
// connection is closed and returned so the caller can report it. Register
// returns nil when nothing was displaced.
func (r *Registry) Register(c Connection) Connection {
	r.mu.Lock()
	prev, ok := r.conns[c.ID()]
	r.conns[c.ID()] = c
	r.mu.Unlock()

	if !ok || prev == c {
		return nil
	}
	_ = prev.Close()
	return prev
}

// Unregister removes c if it is still the registered connection for its
// identity. It reports whether anything was removed; removing an absent
// connection is a no-op.
func (r *Registry) Unregister(c Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.conns[c.ID()]
	if !ok || current != c {
		return false
	}
	delete(r.conns, c.ID())
	return true
}

// Snapshot returns the current members. The slice is owned by the caller.
func (r *Registry) Snapshot() []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Empty reports whether no connections are registered.
func (r *Registry) Empty() bool {
	return r.Count() == 0
}

// IDs returns the identities of all live connections, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Drain empties the registry and returns what it held.
func (r *Registry) Drain() []Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Connection, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	r.conns = make(map[string]Connection)
	return out
}
