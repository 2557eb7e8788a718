// Package client is a typed HTTP client for a running botrelay server.
//
// It talks to the command API served next to the device WebSocket endpoint
// and is what botrelay-ctl uses:
//
//	c, err := client.New("192.168.1.10:8765")
//	if err != nil {
//		return err
//	}
//	result, err := c.LED(ctx, "alice", relay.LEDCommand{Action: relay.LEDOn})
//
// Failed commands come back as *APIError, which carries the server's error
// code and its human-readable result text.
package client
