package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/muurk/botrelay/internal/api"
	"github.com/muurk/botrelay/internal/protocol"
	"github.com/muurk/botrelay/internal/relay"
)

const (
	// DefaultTimeout bounds each request. Commands wait for the device
	// broadcast, so this sits above the server's send timeout.
	DefaultTimeout = 15 * time.Second

	// maxResponseBytes caps how much of a reply is read.
	maxResponseBytes = 1 << 20
)

// Client talks to one botrelay server.
type Client struct {
	// BaseURL is the server's HTTP root (e.g., "http://192.168.1.10:8765")
	BaseURL string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client
}

// New creates a client. addr may be a bare host:port or an http, https,
// ws or wss URL; WebSocket schemes are mapped to their HTTP equivalents.
func New(addr string) (*Client, error) {
	base, err := NormalizeBaseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Client{
		BaseURL:    base,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}, nil
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// NormalizeBaseURL turns a user-supplied server address into an HTTP base
// URL without a trailing slash.
//
//	NormalizeBaseURL("10.0.0.2:8765")      // "http://10.0.0.2:8765"
//	NormalizeBaseURL("ws://10.0.0.2:8765/") // "http://10.0.0.2:8765"
func NormalizeBaseURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("server address is empty")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("invalid server address %q: %w", addr, err)
	}
	switch u.Scheme {
	case "http", "https":
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("invalid server address %q: unsupported scheme %q", addr, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server address %q: missing host", addr)
	}

	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.do(ctx, http.MethodGet, api.PathHealth, nil, &out)
}

// Status returns the server's address and connected devices.
func (c *Client) Status(ctx context.Context) (*relay.Status, error) {
	var status relay.Status
	if err := c.do(ctx, http.MethodGet, api.PathStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// LED sends an LED command and returns the server's result text.
func (c *Client) LED(ctx context.Context, user string, cmd relay.LEDCommand) (string, error) {
	return c.command(ctx, api.PathLED, api.LEDRequest{User: user, Command: cmd})
}

// Display sends a display command.
func (c *Client) Display(ctx context.Context, user string, cmd relay.DisplayCommand) (string, error) {
	return c.command(ctx, api.PathDisplay, api.DisplayRequest{User: user, Command: cmd})
}

// Servo sends a servo command.
func (c *Client) Servo(ctx context.Context, user string, cmd relay.ServoCommand) (string, error) {
	return c.command(ctx, api.PathServo, api.ServoRequest{User: user, Command: cmd})
}

// Send broadcasts a free-form command string.
func (c *Client) Send(ctx context.Context, user, command string) (*api.CommandResponse, error) {
	var out api.CommandResponse
	if err := c.do(ctx, http.MethodPost, api.PathSend, api.SendRequest{User: user, Command: command}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Event forwards a chat event to the devices and reports whether any
// device received it.
func (c *Client) Event(ctx context.Context, ev protocol.ChatEvent) (bool, error) {
	var out api.EventResponse
	if err := c.do(ctx, http.MethodPost, api.PathEvents, ev, &out); err != nil {
		return false, err
	}
	return out.Delivered, nil
}

func (c *Client) command(ctx context.Context, path string, body any) (string, error) {
	var out api.CommandResponse
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.Result, nil
}

// do performs one request. Non-2xx replies become *APIError, using the
// CommandResponse body when the server sent one.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var cr api.CommandResponse
		if json.Unmarshal(data, &cr) == nil {
			apiErr.Code = cr.Error
			apiErr.Result = cr.Result
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
