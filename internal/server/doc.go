// Package server implements the botrelay WebSocket server.
//
// A single HTTP listener serves device WebSocket connections on "/" and
// "/ws" together with a small JSON command API, a status endpoint and
// Prometheus metrics. Devices speak JSON text frames; see package protocol
// for the message set.
//
// # Connection Handling
//
// Each accepted device connection gets its own goroutine which:
//  1. Sends a welcome message, before the connection becomes visible to
//     broadcasts
//  2. Registers the connection under its remote address
//  3. Reads frames until the device goes away, answering heartbeats and
//     forwarding status reports to the configured StatusSink
//  4. Unregisters the connection exactly once on the way out
//
// The server pings every connection periodically. Any frame or pong from
// the device extends its read deadline.
//
// # Usage Example
//
//	srv := server.New(cfg.Server, server.Deps{Metrics: metrics.New()})
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer srv.Stop(context.Background())
//
//	srv.Controller().ControlLED(ctx, "alice", relay.LEDCommand{Action: "on"})
//
// # Graceful Shutdown
//
// Stop closes every live device connection concurrently, empties the
// registry, shuts the HTTP server down and waits for all connection
// goroutines to finish. Individual close failures are logged and never
// abort the shutdown. Calling Stop again is a no-op.
package server
