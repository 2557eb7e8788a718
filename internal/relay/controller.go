package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/protocol"
)

// Capability names used in logs, metrics and boundary messages.
const (
	CapabilityLED     = "led"
	CapabilityDisplay = "display"
	CapabilityServo   = "servo"
	CapabilityCustom  = "custom"
)

// Status describes the relay as seen by the platform.
type Status struct {
	Address     string   `json:"address"`
	Count       int      `json:"count"`
	Connections []string `json:"connections"`
}

// Summary renders the status for a chat reply.
func (s Status) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "WebSocket server: ws://%s\n", s.Address)
	if s.Count == 0 {
		b.WriteString("No devices connected")
		return b.String()
	}
	fmt.Fprintf(&b, "Connected devices: %d", s.Count)
	for i, id := range s.Connections {
		fmt.Fprintf(&b, "\n  device %d: %s", i+1, id)
	}
	return b.String()
}

// Controller validates device commands and broadcasts them.
type Controller struct {
	dispatcher *Dispatcher
	address    func() string
	now        func() protocol.Timestamp
}

// NewController creates a controller. address reports the listen address
// for Status; it may be nil.
func NewController(d *Dispatcher, address func() string) *Controller {
	if address == nil {
		address = func() string { return "" }
	}
	return &Controller{
		dispatcher: d,
		address:    address,
		now:        protocol.Now,
	}
}

// LED validates cmd and switches the LED on every device.
func (c *Controller) LED(ctx context.Context, user string, cmd LEDCommand) (string, error) {
	if err := c.requireDevices(CapabilityLED); err != nil {
		return "", err
	}
	p, err := cmd.validate()
	if err != nil {
		return "", c.rejected(CapabilityLED, err)
	}

	msg := protocol.LEDControl{
		Action:     p.action,
		Brightness: p.brightness,
		FromUser:   user,
		Timestamp:  c.now(),
	}
	if err := c.send(ctx, CapabilityLED, msg); err != nil {
		return "", err
	}
	return p.result(), nil
}

// Display validates cmd and updates the display on every device. Emotion
// aliases are sent as their canonical English name.
func (c *Controller) Display(ctx context.Context, user string, cmd DisplayCommand) (string, error) {
	if err := c.requireDevices(CapabilityDisplay); err != nil {
		return "", err
	}
	p, err := cmd.validate()
	if err != nil {
		return "", c.rejected(CapabilityDisplay, err)
	}

	msg := protocol.OLEDControl{
		Action:    p.action,
		Content:   p.content,
		FromUser:  user,
		Timestamp: c.now(),
	}
	if err := c.send(ctx, CapabilityDisplay, msg); err != nil {
		return "", err
	}
	return p.result(), nil
}

// Servo validates cmd and moves the servo on every device.
func (c *Controller) Servo(ctx context.Context, user string, cmd ServoCommand) (string, error) {
	if err := c.requireDevices(CapabilityServo); err != nil {
		return "", err
	}
	p, err := cmd.validate()
	if err != nil {
		return "", c.rejected(CapabilityServo, err)
	}

	msg := protocol.ServoControl{
		Action:    p.action,
		Angle:     p.angle,
		FromUser:  user,
		Timestamp: c.now(),
	}
	if err := c.send(ctx, CapabilityServo, msg); err != nil {
		return "", err
	}
	return p.result(), nil
}

// SendCustom broadcasts a free-form command string.
func (c *Controller) SendCustom(ctx context.Context, user, command string) (Delivery, error) {
	if err := c.requireDevices(CapabilityCustom); err != nil {
		return Delivery{}, err
	}

	msg := protocol.CustomCommand{
		Command:   command,
		FromUser:  user,
		Timestamp: c.now(),
	}
	d := c.dispatcher.Broadcast(ctx, msg)
	if !d.OK() {
		c.dispatcher.metrics.CommandHandled(CapabilityCustom, "undelivered")
		return d, ErrNotDelivered
	}
	c.dispatcher.metrics.CommandHandled(CapabilityCustom, "ok")
	return d, nil
}

// Forward relays a platform chat event to every device. It reports whether
// any device received it. Every event kind is relayed, group messages
// included; a producer that wants only private messages filters before
// calling Forward.
func (c *Controller) Forward(ctx context.Context, ev protocol.ChatEvent) bool {
	ok := c.dispatcher.BroadcastOK(ctx, protocol.NewChatMessage(ev, c.now()))
	if ok {
		logging.Debug("Forwarded chat event",
			zap.String("platform", ev.Platform),
			zap.String("sender", ev.SenderName))
	}
	return ok
}

// Status reports the listen address and the live connections.
func (c *Controller) Status() Status {
	ids := c.dispatcher.Registry().IDs()
	return Status{
		Address:     c.address(),
		Count:       len(ids),
		Connections: ids,
	}
}

func (c *Controller) requireDevices(capability string) error {
	if c.dispatcher.Registry().Empty() {
		c.dispatcher.metrics.CommandHandled(capability, "no_devices")
		return ErrNoDevices
	}
	return nil
}

func (c *Controller) rejected(capability string, err error) error {
	logging.Info("Rejected device command",
		zap.String("capability", capability),
		zap.Error(err))
	c.dispatcher.metrics.CommandHandled(capability, "rejected")
	return err
}

func (c *Controller) send(ctx context.Context, capability string, msg protocol.Outbound) error {
	if !c.dispatcher.BroadcastOK(ctx, msg) {
		c.dispatcher.metrics.CommandHandled(capability, "undelivered")
		return ErrNotDelivered
	}
	c.dispatcher.metrics.CommandHandled(capability, "ok")
	return nil
}

// ControlLED is LED with every failure rendered as text.
func (c *Controller) ControlLED(ctx context.Context, user string, cmd LEDCommand) string {
	return Describe(CapabilityLED, c.LED)(ctx, user, cmd)
}

// ControlDisplay is Display with every failure rendered as text.
func (c *Controller) ControlDisplay(ctx context.Context, user string, cmd DisplayCommand) string {
	return Describe(CapabilityDisplay, c.Display)(ctx, user, cmd)
}

// ControlServo is Servo with every failure rendered as text.
func (c *Controller) ControlServo(ctx context.Context, user string, cmd ServoCommand) string {
	return Describe(CapabilityServo, c.Servo)(ctx, user, cmd)
}

// Describe wraps a typed command operation so that it always yields a
// human-readable string.
func Describe[C any](capability string, op func(context.Context, string, C) (string, error)) func(context.Context, string, C) string {
	return func(ctx context.Context, user string, cmd C) string {
		result, err := op(ctx, user, cmd)
		if err != nil {
			return DescribeError(capability, err)
		}
		return result
	}
}

// DescribeError renders a command error for a non-interactive caller.
func DescribeError(capability string, err error) string {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNoDevices):
		return fmt.Sprintf("No devices connected, cannot run %s command", capability)
	case errors.Is(err, ErrNotDelivered):
		return fmt.Sprintf("Failed to send %s command, check the device connections", capability)
	case errors.As(err, &ve):
		return "Rejected: " + ve.Error()
	default:
		return fmt.Sprintf("%s command failed: %v", capability, err)
	}
}
