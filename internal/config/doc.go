// Package config provides configuration management for the botrelay server.
//
// Configuration is a YAML file with a version marker and one section per
// concern (server, logging, mdns, mqtt). A missing file is not an error: the
// defaults describe a working relay on 0.0.0.0:8765 with mDNS advertising and
// without an MQTT bridge.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/botrelay/config.yaml or $HOME/.config/botrelay/config.yaml
//   - macOS: $HOME/.config/botrelay/config.yaml
//   - Windows: %LOCALAPPDATA%\botrelay\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg.Server.Port = 9000
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Thread Safety
//
// Save is serialized by a package mutex and writes atomically through a
// temporary file, so a crash never leaves a half-written config behind.
package config
