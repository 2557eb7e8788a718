package discovery

import (
	"net"
	"strings"
	"testing"
)

func TestBuildTXT(t *testing.T) {
	tests := []struct {
		version string
		want    []string
	}{
		{"v1.2.0", []string{"path=/", "version=v1.2.0", "proto=json"}},
		{"", []string{"path=/", "version=dev", "proto=json"}},
	}

	for _, tt := range tests {
		got := BuildTXT(tt.version)
		if strings.Join(got, ",") != strings.Join(tt.want, ",") {
			t.Errorf("BuildTXT(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestNewAdvertiser(t *testing.T) {
	a := NewAdvertiser("", 8765, "v1.0.0")
	if !strings.HasPrefix(a.Instance, "botrelay") {
		t.Errorf("default Instance = %q, want botrelay prefix", a.Instance)
	}
	if a.Service != ServiceType || a.Domain != ServiceDomain {
		t.Errorf("service = %s %s", a.Service, a.Domain)
	}

	named := NewAdvertiser("workshop", 8765, "v1.0.0")
	if named.Instance != "workshop" {
		t.Errorf("Instance = %q, want workshop", named.Instance)
	}
}

func TestAdvertiserRejectsBadPort(t *testing.T) {
	a := NewAdvertiser("workshop", 0, "v1.0.0")
	if err := a.Start(); err == nil {
		a.Shutdown()
		t.Fatal("Start() with port 0 succeeded, want error")
	}
	// Shutdown without a running server is a no-op.
	a.Shutdown()
}

func TestParsedTXTRoundTrip(t *testing.T) {
	e := entry("botrelay-x", "x.local.", 8765, nil, nil, BuildTXT("v2")...)
	e.AddrIPv4 = append(e.AddrIPv4, net.IPv4(127, 0, 0, 1))

	r := parseServiceEntry(e)
	if r == nil {
		t.Fatal("parseServiceEntry() = nil")
	}
	if r.GetMetadata("version") != "v2" || r.GetMetadata("path") != "/" {
		t.Errorf("Metadata = %v", r.Metadata)
	}
}
