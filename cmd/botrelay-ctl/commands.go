package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/muurk/botrelay/internal/client"
	"github.com/muurk/botrelay/internal/discovery"
	"github.com/muurk/botrelay/internal/protocol"
	"github.com/muurk/botrelay/internal/relay"
	"github.com/muurk/botrelay/internal/ui"
)

var (
	brightness    int
	watchInterval time.Duration
	eventPlatform string
	eventGroup    string
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(displayCmd)
	rootCmd.AddCommand(servoCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(discoverCmd)

	ledCmd.Flags().IntVar(&brightness, "brightness", 100, "Brightness percent for on and toggle (0-100)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", ui.DefaultWatchInterval, "Polling interval")
	eventCmd.Flags().StringVar(&eventPlatform, "platform", "cli", "Platform name carried in the event")
	eventCmd.Flags().StringVar(&eventGroup, "group", "", "Group id; empty sends a private message")
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List connected devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		c, err := connect(ctx)
		if err != nil {
			return err
		}
		status, err := c.Status(ctx)
		if err != nil {
			return err
		}
		if outputFormat == formatJSON {
			return printJSON(cmd, status)
		}
		ui.NewPrinter(cmd.OutOrStdout()).PrintStatus(status)
		return nil
	},
}

var ledCmd = &cobra.Command{
	Use:       "led <on|off|toggle>",
	Short:     "Control the device LEDs",
	Example:   "  botrelay-ctl led on --brightness 40\n  botrelay-ctl led off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{relay.LEDOn, relay.LEDOff, relay.LEDToggle},
	RunE: func(cmd *cobra.Command, args []string) error {
		ledCommand := relay.LEDCommand{Action: args[0]}
		if cmd.Flags().Changed("brightness") {
			ledCommand.Brightness = relay.Brightness(brightness)
		}
		return runCommand(cmd, relay.CapabilityLED, func(ctx context.Context, c *client.Client) (string, error) {
			return c.LED(ctx, userName, ledCommand)
		})
	},
}

var displayCmd = &cobra.Command{
	Use:   "display <emotion|text|clear> [content...]",
	Short: "Show an emotion or text on the device displays",
	Long: `Show an emotion or text on the device displays, or clear them.

Emotions: ` + strings.Join(relay.EmotionNames(), ", "),
	Example: "  botrelay-ctl display emotion happy\n  botrelay-ctl display text hello there\n  botrelay-ctl display clear",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		displayCommand := displayFromArgs(args)
		return runCommand(cmd, relay.CapabilityDisplay, func(ctx context.Context, c *client.Client) (string, error) {
			return c.Display(ctx, userName, displayCommand)
		})
	},
}

func displayFromArgs(args []string) relay.DisplayCommand {
	return relay.DisplayCommand{Action: args[0], Content: strings.Join(args[1:], " ")}
}

var servoCmd = &cobra.Command{
	Use:     "servo <rotate|center|sweep> [angle]",
	Short:   "Move the device servos",
	Example: "  botrelay-ctl servo rotate 45\n  botrelay-ctl servo center",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		servoCommand := relay.ServoCommand{Action: args[0]}
		if len(args) == 2 {
			servoCommand.Angle = args[1]
		}
		return runCommand(cmd, relay.CapabilityServo, func(ctx context.Context, c *client.Client) (string, error) {
			return c.Servo(ctx, userName, servoCommand)
		})
	},
}

var sendCmd = &cobra.Command{
	Use:     "send <command...>",
	Short:   "Send a free-form command to every device",
	Example: "  botrelay-ctl send dance",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		return runCommand(cmd, relay.CapabilityCustom, func(ctx context.Context, c *client.Client) (string, error) {
			resp, err := c.Send(ctx, userName, command)
			if err != nil {
				return "", err
			}
			return resp.Result, nil
		})
	},
}

var eventCmd = &cobra.Command{
	Use:   "event <text...>",
	Short: "Forward a chat message to every device",
	Long: `Forward a chat message to every device as if it came from the chat
platform. Useful for testing device firmware without a platform.`,
	Example: "  botrelay-ctl event hello devices\n  botrelay-ctl event --group 1234 --user erin hi",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ev := chatEvent(strings.Join(args, " "))
		return runCommand(cmd, "event", func(ctx context.Context, c *client.Client) (string, error) {
			delivered, err := c.Event(ctx, ev)
			if err != nil {
				return "", err
			}
			if !delivered {
				return "", fmt.Errorf("no device received the message")
			}
			return "Message forwarded to devices", nil
		})
	},
}

func chatEvent(text string) protocol.ChatEvent {
	ev := protocol.ChatEvent{
		Platform:    eventPlatform,
		SenderID:    userName,
		SenderName:  userName,
		Text:        text,
		MessageKind: "FriendMessage",
		IsPrivate:   eventGroup == "",
		Components:  []protocol.Component{protocol.Text(text)},
	}
	if eventGroup != "" {
		ev.GroupID = eventGroup
		ev.MessageKind = "GroupMessage"
	}
	return ev
}

// runCommand connects, runs op and reports the outcome.
func runCommand(cmd *cobra.Command, capability string, op func(context.Context, *client.Client) (string, error)) error {
	ctx := cmd.Context()
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	result, err := op(ctx, c)
	return reportCommand(cmd, c, capability, result, err)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch devices connect and disconnect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		model := ui.NewWatchModel(c.BaseURL, watchInterval, c.Status)
		_, err = tea.NewProgram(model, tea.WithContext(cmd.Context())).Run()
		return err
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find botrelay servers on the network",
	Long: `Find botrelay servers advertising themselves over mDNS/DNS-SD.

Uses --scan-timeout to bound the search.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		scanner := discovery.NewScanner()
		scanner.Timeout = scanTimeout

		relays, err := scanner.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		if outputFormat == formatJSON {
			return printJSON(cmd, relays)
		}

		printer := ui.NewPrinter(cmd.OutOrStdout())
		if len(relays) == 0 {
			printer.PrintWarning("No botrelay servers found", map[string]string{
				"Timeout": scanTimeout.String(),
			})
			return nil
		}
		for _, r := range relays {
			printer.PrintSuccess(r.Instance, map[string]string{
				"API":       r.BaseURL(),
				"WebSocket": r.WebSocketURL(),
				"Host":      r.Hostname,
				"Version":   r.GetMetadata("version"),
			})
		}
		printer.Println("Use 'botrelay-ctl --server " + relays[0].BaseURL() + " status' to query a server")
		return nil
	},
}
