package mqttbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/muurk/botrelay/internal/api"
	"github.com/muurk/botrelay/internal/config"
	"github.com/muurk/botrelay/internal/logging"
	"github.com/muurk/botrelay/internal/protocol"
	"github.com/muurk/botrelay/internal/relay"
)

const (
	defaultConnectTimeout = 10 * time.Second

	defaultPublishTimeout = 5 * time.Second

	// Milliseconds allowed for in-flight work on disconnect.
	defaultDisconnectQuiesce = 250

	defaultKeepAlive = 60 * time.Second

	// commandTimeout bounds a command triggered by an MQTT message.
	commandTimeout = 15 * time.Second
)

// Commander is the part of relay.Controller the bridge drives.
type Commander interface {
	LED(ctx context.Context, user string, cmd relay.LEDCommand) (string, error)
	Display(ctx context.Context, user string, cmd relay.DisplayCommand) (string, error)
	Servo(ctx context.Context, user string, cmd relay.ServoCommand) (string, error)
	SendCustom(ctx context.Context, user, command string) (relay.Delivery, error)
	Forward(ctx context.Context, ev protocol.ChatEvent) bool
}

// Result is published after every command.
type Result struct {
	ID        string             `json:"id,omitempty"`
	Kind      string             `json:"kind"`
	Result    string             `json:"result"`
	Error     string             `json:"error,omitempty"`
	Timestamp protocol.Timestamp `json:"timestamp"`
}

// StatusUpdate is published for every device status report.
type StatusUpdate struct {
	Device    string             `json:"device"`
	Status    string             `json:"status"`
	Timestamp protocol.Timestamp `json:"timestamp"`
}

type subscription struct {
	topic   string
	handler func(topic string, payload []byte) error
}

// Bridge relays between an MQTT broker and the device fleet.
type Bridge struct {
	cfg    config.MQTTConfig
	topics Topics

	client    pahomqtt.Client
	commander Commander
	ctx       context.Context
	cancel    context.CancelFunc

	subMu         sync.RWMutex
	subscriptions []subscription
}

// New creates a bridge. Nothing connects until Start.
func New(cfg config.MQTTConfig) *Bridge {
	return &Bridge{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix},
	}
}

// Topics returns the bridge's topic builder.
func (b *Bridge) Topics() Topics {
	return b.topics
}

// Start connects to the broker and subscribes to events and commands,
// which are passed to cmd.
func (b *Bridge) Start(ctx context.Context, cmd Commander) error {
	b.commander = cmd
	b.ctx, b.cancel = context.WithCancel(ctx)

	if b.client == nil {
		b.client = pahomqtt.NewClient(b.clientOptions())
	}

	timeout := b.cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	token := b.client.Connect()
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	if err := b.subscribe(b.topics.Events(), b.handleEvent); err != nil {
		return err
	}
	if err := b.subscribe(b.topics.CommandFilter(), b.handleCommand); err != nil {
		return err
	}

	b.publishBridgeStatus("online")
	logging.Info("MQTT bridge connected",
		zap.String("broker", b.cfg.Broker),
		zap.String("client_id", b.cfg.ClientID),
		zap.String("prefix", b.cfg.TopicPrefix),
	)
	return nil
}

func (b *Bridge) clientOptions() *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)
	opts.SetWill(b.topics.Bridge(), bridgePayload("offline", "unexpected_disconnect"), 1, true)

	opts.SetOnConnectHandler(func(pahomqtt.Client) {
		b.restoreSubscriptions()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logging.Warn("MQTT connection lost", zap.Error(err))
	})
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		logging.Info("MQTT reconnecting", zap.String("broker", b.cfg.Broker))
	})
	return opts
}

func (b *Bridge) subscribe(topic string, handler func(string, []byte) error) error {
	token := b.client.Subscribe(topic, b.cfg.QoS, b.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	b.subMu.Lock()
	b.subscriptions = append(b.subscriptions, subscription{topic: topic, handler: handler})
	b.subMu.Unlock()
	return nil
}

// restoreSubscriptions re-subscribes after a reconnect. With a clean
// session the broker has forgotten them.
func (b *Bridge) restoreSubscriptions() {
	b.subMu.RLock()
	defer b.subMu.RUnlock()

	for _, sub := range b.subscriptions {
		b.client.Subscribe(sub.topic, b.cfg.QoS, b.wrapHandler(sub.handler))
	}
	if len(b.subscriptions) > 0 {
		logging.Info("MQTT subscriptions restored", zap.Int("count", len(b.subscriptions)))
		b.publishBridgeStatus("online")
	}
}

func (b *Bridge) wrapHandler(handler func(string, []byte) error) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				logging.Error("MQTT handler panic recovered",
					zap.String("topic", msg.Topic()),
					zap.Any("panic", r),
				)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			logging.Warn("MQTT handler returned error",
				zap.String("topic", msg.Topic()),
				zap.Error(err),
			)
		}
	}
}

func (b *Bridge) handleEvent(_ string, payload []byte) error {
	var ev protocol.ChatEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("invalid chat event: %w", err)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	delivered := b.commander.Forward(ctx, ev)
	logging.Debug("Chat event forwarded from MQTT",
		zap.String("platform", ev.Platform),
		zap.Bool("delivered", delivered),
	)
	return nil
}

func (b *Bridge) handleCommand(topic string, payload []byte) error {
	kind, ok := b.topics.CommandKind(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, topic)
	}

	var envelope struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(payload, &envelope)

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	capability, result, err := b.dispatch(ctx, kind, payload)
	if capability == "" {
		return err
	}

	out := Result{
		ID:        envelope.ID,
		Kind:      kind,
		Result:    result,
		Timestamp: protocol.Now(),
	}
	if err != nil {
		out.Result = relay.DescribeError(capability, err)
		out.Error = api.ErrorCode(err)
		if errors.Is(err, errBadRequest) {
			out.Error = api.CodeBadRequest
		}
	}
	return b.publishJSON(b.topics.Result(kind), out, false)
}

// dispatch runs one command. An empty capability means the kind was not
// recognised and nothing should be published.
func (b *Bridge) dispatch(ctx context.Context, kind string, payload []byte) (capability, result string, err error) {
	switch kind {
	case KindLED:
		var req api.LEDRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return relay.CapabilityLED, "", fmt.Errorf("%w: %w", errBadRequest, err)
		}
		result, err = b.commander.LED(ctx, userOrDefault(req.User), req.Command)
		return relay.CapabilityLED, result, err

	case KindDisplay:
		var req api.DisplayRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return relay.CapabilityDisplay, "", fmt.Errorf("%w: %w", errBadRequest, err)
		}
		result, err = b.commander.Display(ctx, userOrDefault(req.User), req.Command)
		return relay.CapabilityDisplay, result, err

	case KindServo:
		var req api.ServoRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return relay.CapabilityServo, "", fmt.Errorf("%w: %w", errBadRequest, err)
		}
		result, err = b.commander.Servo(ctx, userOrDefault(req.User), req.Command)
		return relay.CapabilityServo, result, err

	case KindSend:
		var req api.SendRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return relay.CapabilityCustom, "", fmt.Errorf("%w: %w", errBadRequest, err)
		}
		d, err := b.commander.SendCustom(ctx, userOrDefault(req.User), req.Command)
		if err != nil {
			return relay.CapabilityCustom, "", err
		}
		return relay.CapabilityCustom, fmt.Sprintf("Command sent to %d device(s)", d.Delivered), nil

	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnknownCommand, kind)
	}
}

// DeviceStatus publishes a device status report. It never blocks the
// caller on the broker.
func (b *Bridge) DeviceStatus(deviceID, status string) {
	update := StatusUpdate{
		Device:    deviceID,
		Status:    status,
		Timestamp: protocol.Now(),
	}
	if err := b.publishJSON(b.topics.Status(deviceID), update, false); err != nil {
		logging.Debug("Device status not published",
			zap.String("device", deviceID),
			zap.Error(err),
		)
	}
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) error {
	if b.client == nil || !b.client.IsConnected() {
		return ErrNotConnected
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", topic, err)
	}
	b.client.Publish(topic, b.cfg.QoS, retained, data)
	return nil
}

func (b *Bridge) publishBridgeStatus(state string) {
	if b.client == nil {
		return
	}
	b.client.Publish(b.topics.Bridge(), 1, true, bridgePayload(state, ""))
}

// Close publishes the offline marker and disconnects.
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.client == nil {
		return nil
	}

	if b.client.IsConnected() {
		token := b.client.Publish(b.topics.Bridge(), 1, true, bridgePayload("offline", "graceful_shutdown"))
		token.WaitTimeout(defaultPublishTimeout)
	}
	b.client.Disconnect(defaultDisconnectQuiesce)
	logging.Info("MQTT bridge disconnected")
	return nil
}

func bridgePayload(state, reason string) string {
	data, _ := json.Marshal(struct {
		Status    string             `json:"status"`
		Reason    string             `json:"reason,omitempty"`
		Timestamp protocol.Timestamp `json:"timestamp"`
	}{state, reason, protocol.Now()})
	return string(data)
}

func userOrDefault(user string) string {
	if user == "" {
		return "mqtt"
	}
	return user
}
