// Botrelay-server relays commands and chat events to embedded devices over
// WebSocket.
//
// Devices connect to ws://<host>:<port>/ and receive JSON frames. Commands
// arrive through the HTTP API served on the same port, or from an MQTT
// broker when the bridge is enabled. The server can advertise itself over
// mDNS so devices and botrelay-ctl can find it on the LAN.
//
// Usage:
//
//	botrelay-server server [flags]
//
// See 'botrelay-server server --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/botrelay/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "botrelay-server",
	Short: "botrelay device relay server",
	Long: `A WebSocket relay between a chat platform and a fleet of embedded devices.

Devices connect over WebSocket and receive LED, display, servo and custom
commands as JSON frames. Commands come from the HTTP API on the same port or
from an MQTT broker. Device status reports are logged, counted and, with the
MQTT bridge enabled, republished.

To send commands from a terminal, use the separate 'botrelay-ctl' utility.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Line("botrelay-server"))
	},
}
