package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/config"
	"github.com/muurk/botrelay/internal/discovery"
	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/metrics"
	"github.com/muurk/botrelay/internal/mqttbridge"
	"github.com/muurk/botrelay/internal/server"
	"github.com/muurk/botrelay/internal/ui"
	"github.com/muurk/botrelay/internal/version"
)

// Server command flags
var (
	configPath string
	host       string
	port       int
	logLevel   string
	noMDNS     bool
	mqttBroker string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the relay server",
	Long: `Start the relay server and accept device connections.

Settings come from the config file (see 'botrelay-server config init'),
overridden by any flags given here. A missing config file means defaults.`,
	Example: `  # Start with defaults (0.0.0.0:8765, mDNS on, MQTT off)
  botrelay-server server

  # Custom port with debug logging
  botrelay-server server --port 9000 --log-level debug

  # Bridge to an MQTT broker
  botrelay-server server --mqtt-broker tcp://broker.local:1883

  # Use a specific config file
  botrelay-server server --config ./botrelay.yaml`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().StringVar(&configPath, "config", "", "Path to config file (default: user config dir)")
	serverCmd.Flags().StringVar(&host, "host", "", "Listen host (empty = all interfaces)")
	serverCmd.Flags().IntVar(&port, "port", 0, "Listen port")
	serverCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serverCmd.Flags().BoolVar(&noMDNS, "no-mdns", false, "Do not advertise the server over mDNS")
	serverCmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "MQTT broker URL; enables the MQTT bridge")
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = host
	}
	if flags.Changed("port") {
		cfg.Server.Port = port
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	if flags.Changed("no-mdns") && noMDNS {
		cfg.MDNS.Enabled = false
	}
	if flags.Changed("mqtt-broker") {
		cfg.MQTT.Enabled = mqttBroker != ""
		cfg.MQTT.Broker = mqttBroker
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging.Level); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Sync()

	m := metrics.New()
	deps := server.Deps{Metrics: m}

	var bridge *mqttbridge.Bridge
	if cfg.MQTT.Enabled {
		bridge = mqttbridge.New(cfg.MQTT)
		deps.StatusSink = bridge
	}

	srv := server.New(cfg.Server, deps)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	params := map[string]string{
		"Listen":  "ws://" + srv.Addr(),
		"Version": version.Version,
		"MQTT":    "disabled",
		"mDNS":    "disabled",
	}

	if bridge != nil {
		params["MQTT"] = cfg.MQTT.Broker
		// The relay keeps serving devices without the broker.
		if err := bridge.Start(ctx, srv.Controller()); err != nil {
			logging.Warn("MQTT bridge unavailable", zap.Error(err))
			params["MQTT"] = "unavailable (" + cfg.MQTT.Broker + ")"
		}
		defer func() { _ = bridge.Close() }()
	}

	if cfg.MDNS.Enabled {
		adv, err := advertise(cfg.MDNS, srv.Addr())
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			params["mDNS"] = adv.Instance + "." + adv.Service
			defer adv.Shutdown()
		}
	}

	ui.NewPrinter(cmd.OutOrStdout()).PrintHeader("botrelay server", "botrelay-server server", params)

	<-ctx.Done()
	logging.Info("Shutdown signal received, stopping server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// advertise registers the bound address over mDNS.
func advertise(cfg config.MDNSConfig, addr string) (*discovery.Advertiser, error) {
	p, err := boundPort(addr)
	if err != nil {
		return nil, err
	}

	adv := discovery.NewAdvertiser(cfg.Instance, p, version.Version)
	if cfg.Service != "" {
		adv.Service = cfg.Service
	}
	if cfg.Domain != "" {
		adv.Domain = cfg.Domain
	}
	if err := adv.Start(); err != nil {
		return nil, err
	}
	return adv, nil
}

func boundPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen port %q: %w", portStr, err)
	}
	return p, nil
}
