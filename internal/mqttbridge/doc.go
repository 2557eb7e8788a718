// Package mqttbridge connects the relay to a chat platform over MQTT.
//
// The bridge subscribes to platform events and device commands and
// publishes device status reports and command results. All topics live
// under a configurable prefix (default "botrelay"):
//
//	botrelay/events              ChatEvent JSON, forwarded to every device
//	botrelay/command/{kind}      command request, kind is led, display, servo or send
//	botrelay/result/{kind}       command outcome, always human-readable
//	botrelay/status/{device}     status reported by a device
//	botrelay/bridge              retained online/offline marker (also the LWT)
//
// The paho client reconnects automatically; subscriptions are restored
// on every reconnect.
package mqttbridge
