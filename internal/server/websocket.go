package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed for the close handshake frame during shutdown
	closeGrace = time.Second

	// WelcomeMessage greets every device on connect.
	WelcomeMessage = "Welcome to the botrelay device controller"
)

// wsConn adapts a gorilla connection to registry.Connection.
type wsConn struct {
	id      string
	session string
	conn    *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newWSConn(conn *websocket.Conn, remoteAddr string) *wsConn {
	return &wsConn{
		id:      remoteAddr,
		session: uuid.NewString(),
		conn:    conn,
	}
}

func (c *wsConn) ID() string { return c.id }

// Send writes one text frame. The write deadline is the earlier of ctx's
// deadline and writeWait.
func (c *wsConn) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	logging.LogWebSocketMessage(c.id, "sent", data)
	return nil
}

// ping sends a control frame; safe alongside Send.
func (c *wsConn) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close sends a close frame when possible and releases the socket. Only
// the first call does anything.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing connection")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// handleWebSocket upgrades a device connection and runs it to completion.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.track() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	c := newWSConn(conn, r.RemoteAddr)
	s.serveConn(c)
}

// serveConn runs the per-connection lifecycle: welcome, register, read loop,
// unregister.
func (s *Server) serveConn(c *wsConn) {
	logging.LogConnection(c.id, "connection_accepted", zap.String("session", c.session))

	defer func() {
		if s.registry.Unregister(c) {
			s.metrics.ConnectionClosed()
		}
		_ = c.Close()
		logging.LogConnection(c.id, "connection_closed", zap.String("session", c.session))
	}()

	welcome := protocol.Welcome{
		Message:   WelcomeMessage,
		Timestamp: protocol.Now(),
	}
	if err := s.reply(c, welcome); err != nil {
		logging.Warn("Failed to send welcome message",
			zap.String("remote_addr", c.id),
			zap.Error(err),
		)
		return
	}

	if prev := s.registry.Register(c); prev != nil {
		logging.Warn("Replaced existing connection with the same address",
			zap.String("remote_addr", c.id),
		)
	}
	s.metrics.ConnectionOpened()

	// Stop may have drained the registry between the welcome and Register.
	if s.isStopping() {
		return
	}

	pingDone := make(chan struct{})
	var pinger sync.WaitGroup
	pinger.Add(1)
	go func() {
		defer pinger.Done()
		s.pingLoop(c, pingDone)
	}()
	defer func() {
		close(pingDone)
		pinger.Wait()
	}()

	s.readLoop(c)
}

func (s *Server) readLoop(c *wsConn) {
	pongWait := s.config.PongWait
	c.conn.SetReadLimit(s.config.MaxMessageBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				logging.Info("Connection closed by device", zap.String("remote_addr", c.id))
			case errors.Is(err, net.ErrClosed) || s.isStopping():
				logging.Debug("Connection closed locally", zap.String("remote_addr", c.id))
			default:
				logging.Info("Connection closed or error reading frame",
					zap.String("remote_addr", c.id),
					zap.Error(err),
				)
			}
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		logging.LogWebSocketMessage(c.id, "received", data)
		s.handleFrame(c, data)
	}
}

// handleFrame classifies one device frame and reacts to it.
func (s *Server) handleFrame(c *wsConn, data []byte) {
	msg, err := protocol.ParseInbound(data)
	if err != nil {
		s.metrics.FrameMalformed()
		logging.Warn("Discarding malformed device message",
			zap.String("remote_addr", c.id),
			zap.Error(err),
		)
		return
	}

	switch m := msg.(type) {
	case *protocol.StatusReport:
		s.metrics.FrameReceived(protocol.TypeStatus)
		logging.Info("Device status update",
			zap.String("remote_addr", c.id),
			zap.String("status", m.Status),
		)
		if s.sink != nil {
			s.sink.DeviceStatus(c.id, m.Status)
		}

	case *protocol.Heartbeat:
		s.metrics.FrameReceived(protocol.TypeHeartbeat)
		if err := s.reply(c, protocol.HeartbeatAck{Timestamp: protocol.Now()}); err != nil {
			logging.Warn("Failed to acknowledge heartbeat",
				zap.String("remote_addr", c.id),
				zap.Error(err),
			)
		}

	case *protocol.UnknownMessage:
		s.metrics.FrameReceived("unknown")
		logging.Warn("Unknown message type",
			zap.String("remote_addr", c.id),
			zap.String("type", m.Type),
		)

	default:
		logging.Error("Unhandled inbound message",
			zap.String("remote_addr", c.id),
			zap.String("type", msg.MessageType()),
		)
	}
}

// reply sends msg to one connection, bounded by the send timeout.
func (s *Server) reply(c *wsConn, msg protocol.Outbound) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.baseCtx, s.config.SendTimeout)
	defer cancel()
	return c.Send(ctx, data)
}

func (s *Server) pingLoop(c *wsConn, done <-chan struct{}) {
	ticker := time.NewTicker(s.config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				logging.Debug("Ping failed, closing connection",
					zap.String("remote_addr", c.id),
					zap.Error(err),
				)
				_ = c.Close()
				return
			}
		}
	}
}
