package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// CurrentVersion is the only config file version understood.
const CurrentVersion = 1

// Config represents the entire configuration file.
type Config struct {
	Version int           `yaml:"version"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	MDNS    MDNSConfig    `yaml:"mdns"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// ServerConfig controls the WebSocket listener and connection handling.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	SendTimeout     time.Duration `yaml:"send_timeout"`      // Per-connection bound on a single broadcast send
	PingPeriod      time.Duration `yaml:"ping_period"`       // Interval between server pings
	PongWait        time.Duration `yaml:"pong_wait"`         // Read deadline refreshed by any frame or pong
	MaxMessageBytes int64         `yaml:"max_message_bytes"` // Largest inbound frame accepted
}

// LoggingConfig selects the log level. Empty keeps logging silent.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// MDNSConfig controls LAN service advertising.
type MDNSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance,omitempty"` // Defaults to "botrelay-<hostname>"
	Service  string `yaml:"service"`
	Domain   string `yaml:"domain"`
}

// MQTTConfig controls the optional platform bridge.
type MQTTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Broker         string        `yaml:"broker"` // e.g. tcp://localhost:1883
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username,omitempty"`
	Password       string        `yaml:"password,omitempty"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Default returns a Config with every field set to its default.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8765,
			SendTimeout:     5 * time.Second,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
			MaxMessageBytes: 64 * 1024,
		},
		Logging: LoggingConfig{},
		MDNS: MDNSConfig{
			Enabled: true,
			Service: "_botrelay._tcp",
			Domain:  "local.",
		},
		MQTT: MQTTConfig{
			Enabled:        false,
			Broker:         "tcp://localhost:1883",
			ClientID:       "botrelay",
			TopicPrefix:    "botrelay",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Address returns the host:port the server listens on.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Version != CurrentVersion {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion))
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port))
	}
	if c.Server.SendTimeout <= 0 {
		errs = append(errs, errors.New("server.send_timeout must be positive"))
	}
	if c.Server.PongWait <= 0 {
		errs = append(errs, errors.New("server.pong_wait must be positive"))
	}
	if c.Server.PingPeriod <= 0 || c.Server.PingPeriod >= c.Server.PongWait {
		errs = append(errs, fmt.Errorf("server.ping_period must be positive and shorter than server.pong_wait (%s)", c.Server.PongWait))
	}
	if c.Server.MaxMessageBytes <= 0 {
		errs = append(errs, errors.New("server.max_message_bytes must be positive"))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}

	if c.MDNS.Enabled && !strings.HasPrefix(c.MDNS.Service, "_") {
		errs = append(errs, fmt.Errorf("mdns.service %q must look like _name._tcp", c.MDNS.Service))
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker == "" {
			errs = append(errs, errors.New("mqtt.broker is required when mqtt is enabled"))
		}
		if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "#+") {
			errs = append(errs, fmt.Errorf("mqtt.topic_prefix %q must be non-empty and free of wildcards", c.MQTT.TopicPrefix))
		}
		if c.MQTT.QoS > 2 {
			errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
		}
	}

	return errors.Join(errs...)
}
