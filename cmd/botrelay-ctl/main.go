// Botrelay-ctl sends commands to a running botrelay server.
//
// It talks to the server's HTTP command API. The server is given with
// --server or BOTRELAY_SERVER, or found on the LAN over mDNS.
//
// Usage:
//
//	botrelay-ctl [command] [flags]
//
// See 'botrelay-ctl --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/botrelay/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		var reported reportedError
		if !errors.As(err, &reported) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "botrelay-ctl",
	Short: "botrelay command-line controller",
	Long: `Send LED, display, servo and custom commands to the devices connected
to a botrelay server, list them, or watch them connect and disconnect.

Without --server the first server advertising itself over mDNS is used.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Line("botrelay-ctl"))
	},
}

// reportedError marks an error whose details were already printed.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }

func (e reportedError) Unwrap() error { return e.err }
