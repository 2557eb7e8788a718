package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBoundPort(t *testing.T) {
	tests := []struct {
		addr    string
		want    int
		wantErr bool
	}{
		{"0.0.0.0:8765", 8765, false},
		{"[::]:9000", 9000, false},
		{"127.0.0.1", 0, true},
		{"127.0.0.1:http", 0, true},
	}

	for _, tt := range tests {
		got, err := boundPort(tt.addr)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("boundPort(%q) = %d, %v; want %d, wantErr %v", tt.addr, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "version: 1\nserver:\n  port: 9100\nmdns:\n  enabled: true\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	configPath = path
	t.Cleanup(func() { configPath = "" })

	if err := serverCmd.Flags().Set("host", "127.0.0.1"); err != nil {
		t.Fatal(err)
	}
	if err := serverCmd.Flags().Set("no-mdns", "true"); err != nil {
		t.Fatal(err)
	}
	if err := serverCmd.Flags().Set("mqtt-broker", "tcp://broker:1883"); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(serverCmd)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port = %d, want 9100 from file", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q, want flag value", cfg.Server.Host)
	}
	if cfg.MDNS.Enabled {
		t.Error("--no-mdns did not disable mDNS")
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}
}
