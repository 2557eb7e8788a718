package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/muurk/botrelay/internal/api"
	"github.com/muurk/botrelay/internal/client"
	"github.com/muurk/botrelay/internal/discovery"
	"github.com/muurk/botrelay/internal/ui"
)

// ServerEnvVar names the server when --server is not given.
const ServerEnvVar = "BOTRELAY_SERVER"

const (
	formatDetailed = "detailed"
	formatJSON     = "json"
)

// Global flags
var (
	serverAddr     string
	userName       string
	requestTimeout time.Duration
	scanTimeout    time.Duration
	outputFormat   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Server address, host:port or URL (env "+ServerEnvVar+"; default: mDNS discovery)")
	rootCmd.PersistentFlags().StringVar(&userName, "user", "cli", "Name recorded as the command's sender")
	rootCmd.PersistentFlags().DurationVar(&requestTimeout, "timeout", client.DefaultTimeout, "Request timeout")
	rootCmd.PersistentFlags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "mDNS discovery timeout")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", formatDetailed, "Output format (detailed, json)")
}

// resolveServer picks the server from the flag, the environment, or mDNS.
func resolveServer(ctx context.Context) (string, error) {
	if serverAddr != "" {
		return serverAddr, nil
	}
	if env := os.Getenv(ServerEnvVar); env != "" {
		return env, nil
	}

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	relay, err := scanner.First(ctx)
	if err != nil {
		return "", fmt.Errorf("no --server given and %w", err)
	}
	return relay.BaseURL(), nil
}

func connect(ctx context.Context) (*client.Client, error) {
	addr, err := resolveServer(ctx)
	if err != nil {
		return nil, err
	}
	c, err := client.New(addr)
	if err != nil {
		return nil, err
	}
	c.SetTimeout(requestTimeout)
	return c, nil
}

// printJSON writes v indented for scripting.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// reportCommand prints a command outcome in the chosen format.
func reportCommand(cmd *cobra.Command, c *client.Client, capability, result string, err error) error {
	if outputFormat == formatJSON {
		resp := api.CommandResponse{Result: result}
		if err != nil {
			resp.Result = err.Error()
			resp.Error = api.CodeInternal
			if apiErr, ok := client.IsAPIError(err); ok && apiErr.Code != "" {
				resp.Error = apiErr.Code
			}
		}
		if jerr := printJSON(cmd, resp); jerr != nil {
			return jerr
		}
		if err != nil {
			return reportedError{err}
		}
		return nil
	}

	printer := ui.NewPrinter(cmd.OutOrStdout())
	if err != nil {
		printer.PrintError(capability+" command failed", err, troubleshooting(capability, c, err))
		return reportedError{err}
	}
	printer.PrintSuccess(result, map[string]string{
		"Server": c.BaseURL,
		"User":   userName,
	})
	return nil
}

// troubleshooting suggests next steps for a failed command.
func troubleshooting(capability string, c *client.Client, err error) []string {
	if errors.Is(err, client.ErrUnreachable) {
		return []string{
			"Check that botrelay-server is running",
			"Pass --server host:port or set " + ServerEnvVar,
		}
	}

	apiErr, ok := client.IsAPIError(err)
	if !ok {
		return nil
	}
	switch apiErr.Code {
	case api.CodeNoDevices:
		tips := []string{"Check that devices are powered on and online"}
		if c != nil {
			tips = append(tips, "Devices should connect to "+wsURL(c.BaseURL))
		}
		return tips
	case api.CodeValidation:
		return []string{fmt.Sprintf("Run 'botrelay-ctl %s --help' for accepted values", capability)}
	case api.CodeNotDelivered:
		return []string{
			"Devices disconnected while the command was sent",
			"Run 'botrelay-ctl status' to list connected devices",
		}
	}
	return nil
}

// wsURL maps an http(s) base URL to the device WebSocket URL.
func wsURL(base string) string {
	if rest, ok := strings.CutPrefix(base, "https://"); ok {
		return "wss://" + rest + "/"
	}
	if rest, ok := strings.CutPrefix(base, "http://"); ok {
		return "ws://" + rest + "/"
	}
	return base
}
