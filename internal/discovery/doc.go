// Package discovery advertises and locates botrelay servers on the LAN
// using multicast DNS.
//
// The server side registers a "_botrelay._tcp" service whose TXT records
// tell devices where to connect:
//
//	path=/
//	version=v1.2.0
//	proto=json
//
// The client side browses for the same service type so that botrelay-ctl
// can find a relay without being told its address.
//
// # Usage Example
//
//	adv := discovery.NewAdvertiser("workshop", 8765, version.Version)
//	if err := adv.Start(); err != nil {
//	    log.Printf("mdns disabled: %v", err)
//	}
//	defer adv.Shutdown()
//
//	relays, err := discovery.NewScanner().Scan(ctx)
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Firewall must allow mDNS (UDP port 5353)
package discovery
