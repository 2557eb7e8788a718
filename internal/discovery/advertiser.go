package discovery

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/logging"
)

const (
	// ServiceType is the mDNS service type advertised by the relay
	ServiceType = "_botrelay._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// Protocol is advertised in the "proto" TXT record.
	Protocol = "json"
)

// Advertiser publishes the relay's WebSocket endpoint over mDNS.
type Advertiser struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	Text     []string

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an advertiser with the default service type and
// domain. An empty instance falls back to DefaultInstance.
func NewAdvertiser(instance string, port int, version string) *Advertiser {
	if instance == "" {
		instance = DefaultInstance()
	}
	return &Advertiser{
		Instance: instance,
		Service:  ServiceType,
		Domain:   ServiceDomain,
		Port:     port,
		Text:     BuildTXT(version),
	}
}

// BuildTXT returns the TXT records describing a relay.
func BuildTXT(version string) []string {
	if version == "" {
		version = "dev"
	}
	return []string{
		"path=/",
		"version=" + version,
		"proto=" + Protocol,
	}
}

// DefaultInstance derives an instance name from the hostname.
func DefaultInstance() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "botrelay"
	}
	host = strings.TrimSuffix(host, ".local")
	return "botrelay-" + host
}

// Start registers the service. Calling Start twice is an error.
func (a *Advertiser) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return errors.New("mdns advertiser already running")
	}
	if a.Port <= 0 {
		return fmt.Errorf("invalid port %d for mdns advertisement", a.Port)
	}

	server, err := zeroconf.Register(a.Instance, a.Service, a.Domain, a.Port, a.Text, nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service: %w", err)
	}
	a.server = server

	logging.Info("Advertising relay over mDNS",
		zap.String("instance", a.Instance),
		zap.String("service", a.Service),
		zap.String("domain", a.Domain),
		zap.Int("port", a.Port),
		zap.Strings("txt", a.Text),
	)
	return nil
}

// Shutdown withdraws the advertisement. It is safe to call when Start was
// never called or failed.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	logging.Debug("mDNS advertisement withdrawn", zap.String("instance", a.Instance))
}
