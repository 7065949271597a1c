// Package transport provides wire transports for the LapStream client.
//
// A Transport carries event frames between the client and a LapStream
// server. Dialers are selected by name according to the configured
// preference order, so callers can pin a transport or fall through a
// ranked list:
//
//	dialers, err := transport.Order([]string{"websocket"}, transport.Builtin())
//
// The WebSocket transport is the default and exchanges frames as JSON
// text messages.
package transport
