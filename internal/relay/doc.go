// Package relay turns platform intents into device frames and fans them out.
//
// The Dispatcher broadcasts an encoded frame to every registered connection,
// evicting connections whose send fails. The Controller sits on top of it and
// validates LED, display and servo commands before anything is sent.
//
// Callers that need plain text (chat bots, tool calls) use the Control*
// functions, which collapse typed errors into a descriptive string.
package relay
