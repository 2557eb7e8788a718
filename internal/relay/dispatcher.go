package relay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/metrics"
	"github.com/muurk/botrelay/internal/protocol"
	"github.com/muurk/botrelay/internal/registry"
)

// DefaultSendTimeout bounds a single send when none is configured.
const DefaultSendTimeout = 5 * time.Second

// Delivery reports the outcome of one broadcast.
type Delivery struct {
	// Recipients is the size of the snapshot the broadcast was sent to.
	Recipients int `json:"recipients"`
	// Delivered counts sends that completed without error.
	Delivered int `json:"delivered"`
	// Failed holds the identities of connections evicted by this broadcast.
	Failed []string `json:"failed,omitempty"`
}

// OK reports whether at least one device received the message.
func (d Delivery) OK() bool {
	return d.Delivered > 0
}

// Dispatcher sends outbound messages to every live connection.
type Dispatcher struct {
	registry    *registry.Registry
	sendTimeout time.Duration
	metrics     *metrics.Metrics
}

// NewDispatcher creates a dispatcher over reg. A non-positive sendTimeout
// selects DefaultSendTimeout. m may be nil.
func NewDispatcher(reg *registry.Registry, sendTimeout time.Duration, m *metrics.Metrics) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	return &Dispatcher{
		registry:    reg,
		sendTimeout: sendTimeout,
		metrics:     m,
	}
}

// Registry returns the registry the dispatcher sends to.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Broadcast encodes msg once and sends it to every connection in the current
// snapshot. Sends run concurrently and each is bounded by the send timeout, so
// one wedged device cannot hold up the rest. Connections whose send failed are
// unregistered and closed once every send has finished.
//
// An empty registry yields a zero Delivery without encoding anything.
func (d *Dispatcher) Broadcast(ctx context.Context, msg protocol.Outbound) Delivery {
	conns := d.registry.Snapshot()
	if len(conns) == 0 {
		logging.Debug("Broadcast skipped, no devices connected",
			zap.String("type", msg.MessageType()))
		d.metrics.BroadcastCompleted(msg.MessageType(), 0, 0, 0)
		return Delivery{}
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		logging.Error("Failed to encode broadcast", zap.Error(err))
		return Delivery{Recipients: len(conns)}
	}

	started := time.Now()
	errs := make([]error, len(conns))

	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(i int, conn registry.Connection) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()
			errs[i] = conn.Send(sendCtx, data)
		}(i, conn)
	}
	wg.Wait()

	result := Delivery{Recipients: len(conns)}
	for i, conn := range conns {
		if errs[i] == nil {
			result.Delivered++
			continue
		}
		result.Failed = append(result.Failed, conn.ID())
		d.evict(conn, errs[i])
	}

	logging.LogDelivery(msg.MessageType(), result.Recipients, result.Delivered, result.Failed)
	d.metrics.BroadcastCompleted(msg.MessageType(), result.Delivered, len(result.Failed), time.Since(started))
	return result
}

// BroadcastOK is Broadcast reduced to whether any device received msg.
func (d *Dispatcher) BroadcastOK(ctx context.Context, msg protocol.Outbound) bool {
	return d.Broadcast(ctx, msg).OK()
}

func (d *Dispatcher) evict(conn registry.Connection, cause error) {
	if d.registry.Unregister(conn) {
		d.metrics.ConnectionClosed()
	}
	logging.LogConnection(conn.ID(), "evicted", zap.Error(cause))

	if err := conn.Close(); err != nil {
		logging.Debug("Close after failed send returned error",
			zap.String("remote_addr", conn.ID()),
			zap.Error(err))
	}
}
