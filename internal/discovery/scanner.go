package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
)

// DefaultScanTimeout is the default timeout for relay discovery
const DefaultScanTimeout = 3 * time.Second

// Relay is a botrelay server found on the network.
type Relay struct {
	// Instance is the advertised instance name (e.g., "botrelay-workshop")
	Instance string

	// Hostname is the mDNS hostname (e.g., "workshop.local.")
	Hostname string

	// IP is the preferred address, IPv4 when available
	IP string

	// Port is the relay's HTTP and WebSocket port
	Port int

	// Metadata contains the mDNS TXT record data
	// Common fields: "path=/", "version=v1.2.0", "proto=json"
	Metadata map[string]string

	// DiscoveredAt is when the relay was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the relay
func (r *Relay) String() string {
	return fmt.Sprintf("%s (%s) at %s", r.Instance, r.Hostname, r.hostPort())
}

// BaseURL returns the HTTP base URL for the relay API
func (r *Relay) BaseURL() string {
	return "http://" + r.hostPort()
}

// WebSocketURL returns the URL devices connect to.
func (r *Relay) WebSocketURL() string {
	path := r.GetMetadata("path")
	if path == "" {
		path = "/"
	}
	return "ws://" + r.hostPort() + path
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (r *Relay) GetMetadata(key string) string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata[key]
}

func (r *Relay) hostPort() string {
	return net.JoinHostPort(r.IP, strconv.Itoa(r.Port))
}

// Scanner browses the network for relays.
type Scanner struct {
	// Timeout is the maximum time to wait for answers
	Timeout time.Duration
	// Service is the mDNS service type to browse
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
	}
}

// Scan collects every relay that answers before the timeout or ctx ends.
func (s *Scanner) Scan(ctx context.Context) ([]*Relay, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	var (
		mu     sync.Mutex
		relays []*Relay
		seen   = make(map[string]bool)
		done   = make(chan struct{})
	)

	go func() {
		defer close(done)
		for entry := range entries {
			relay := parseServiceEntry(entry)
			if relay == nil {
				continue
			}
			key := relay.Instance + "@" + relay.hostPort()
			mu.Lock()
			if !seen[key] {
				seen[key] = true
				relays = append(relays, relay)
			}
			mu.Unlock()
		}
	}()

	if err := resolver.Browse(ctx, s.Service, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// The resolver closes entries once the browse context ends.
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	mu.Lock()
	defer mu.Unlock()
	return append([]*Relay(nil), relays...), nil
}

// First returns the first relay found, or an error if none answered.
func (s *Scanner) First(ctx context.Context) (*Relay, error) {
	relays, err := s.Scan(ctx)
	if err != nil {
		return nil, err
	}
	if len(relays) == 0 {
		return nil, fmt.Errorf("no botrelay server found via mDNS within %s", s.Timeout)
	}
	return relays[0], nil
}

// parseServiceEntry converts a zeroconf service entry to a Relay.
// Returns nil for entries without a usable address or speaking another
// protocol.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Relay {
	if entry == nil || entry.Port == 0 {
		return nil
	}

	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	if proto, ok := metadata["proto"]; ok && proto != Protocol {
		return nil
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	return &Relay{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         entry.Port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}
