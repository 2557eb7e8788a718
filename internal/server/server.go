package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/config"
	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/metrics"
	"github.com/muurk/botrelay/internal/registry"
	"github.com/muurk/botrelay/internal/relay"
)

// ShutdownTimeout bounds the graceful shutdown performed by Run.
const ShutdownTimeout = 10 * time.Second

// StatusSink receives device status reports as they arrive.
type StatusSink interface {
	DeviceStatus(deviceID, status string)
}

// Deps are the optional collaborators of a Server.
type Deps struct {
	// Registry is created when nil.
	Registry *registry.Registry
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// StatusSink may be nil.
	StatusSink StatusSink
}

// Server represents the botrelay WebSocket server
type Server struct {
	config     config.ServerConfig
	registry   *registry.Registry
	dispatcher *relay.Dispatcher
	controller *relay.Controller
	metrics    *metrics.Metrics
	sink       StatusSink
	upgrader   websocket.Upgrader

	// baseCtx is cancelled by Stop and bounds per-connection sends.
	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	listener   net.Listener
	httpServer *http.Server
	serveDone  chan struct{}
	stopping   bool
	closing    chan struct{}

	// wg tracks connection goroutines.
	wg sync.WaitGroup
}

// New creates a new Server instance. Nothing is bound until Start.
func New(cfg config.ServerConfig, deps Deps) *Server {
	reg := deps.Registry
	if reg == nil {
		reg = registry.New()
	}

	s := &Server{
		config:   withDefaults(cfg),
		registry: reg,
		metrics:  deps.Metrics,
		sink:     deps.StatusSink,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Devices are not browsers and send no Origin worth checking.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		closing: make(chan struct{}),
	}
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.dispatcher = relay.NewDispatcher(reg, s.config.SendTimeout, deps.Metrics)
	s.controller = relay.NewController(s.dispatcher, s.Addr)
	return s
}

// withDefaults fills unset timing and size fields from config.Default.
func withDefaults(cfg config.ServerConfig) config.ServerConfig {
	def := config.Default().Server
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = def.SendTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = def.PongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = (cfg.PongWait * 9) / 10
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = def.MaxMessageBytes
	}
	return cfg
}

// Registry returns the connection registry.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Dispatcher returns the broadcast dispatcher.
func (s *Server) Dispatcher() *relay.Dispatcher { return s.dispatcher }

// Controller returns the command controller.
func (s *Server) Controller() *relay.Controller { return s.controller }

// Start binds the listener and begins serving in the background. A bind
// failure is logged and returned; there is no retry.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("server already started")
	}
	if s.stopping {
		return errors.New("server has been stopped")
	}

	addr := s.config.Address()
	logging.Info("Starting botrelay WebSocket server",
		zap.String("addr", addr),
		zap.Duration("send_timeout", s.config.SendTimeout),
	)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		logging.Error("Failed to bind listener", zap.String("addr", addr), zap.Error(err))
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveDone = make(chan struct{})

	go func(httpServer *http.Server, done chan struct{}) {
		defer close(done)
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server stopped unexpectedly", zap.Error(err))
		}
	}(s.httpServer, s.serveDone)

	logging.Info("Server listening for connections",
		zap.String("addr", listener.Addr().String()),
	)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address()
}

// Stop gracefully shuts the server down. Every step runs even when an
// earlier one fails; only a timeout waiting for goroutines is returned.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	close(s.closing)
	httpServer, serveDone := s.httpServer, s.serveDone
	s.mu.Unlock()

	logging.Info("Shutting down server...")
	s.cancel()

	// Close all active connections
	conns := s.registry.Drain()
	var closers sync.WaitGroup
	for _, c := range conns {
		closers.Add(1)
		go func(c registry.Connection) {
			defer closers.Done()
			logging.Info("Closing active connection", zap.String("remote_addr", c.ID()))
			if err := c.Close(); err != nil {
				logging.Warn("Error closing connection",
					zap.String("remote_addr", c.ID()),
					zap.Error(err),
				)
			}
			s.metrics.ConnectionClosed()
		}(c)
	}
	closers.Wait()

	// Stop accepting new connections
	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			logging.Warn("HTTP server shutdown incomplete, forcing close", zap.Error(err))
			_ = httpServer.Close()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		if serveDone != nil {
			<-serveDone
		}
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All connections closed gracefully")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
		return fmt.Errorf("waiting for connections to finish: %w", ctx.Err())
	}

	logging.Sync()
	return nil
}

// Run starts the server and blocks until ctx is cancelled or SIGINT or
// SIGTERM arrives, then stops it.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logging.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return s.Stop(shutdownCtx)
}

// track adds a connection goroutine to the wait group unless shutdown has
// begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	s.wg.Add(1)
	return true
}

func (s *Server) isStopping() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}
