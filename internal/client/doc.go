// Package client implements the LapStream live-connection client.
//
// The client maintains a persistent connection to a LapStream server,
// buffers inbound telemetry in a bounded ring, dispatches named events
// to subscribers, and sends outbound commands while connected.
//
// Connection lifecycle:
//
//	Disconnected -> Connecting -> Connected
//	Connected    -> Reconnecting (transport loss)
//	Reconnecting -> Connected | Failed (attempts exhausted)
//
// Failed is terminal until Connect is called again. Disconnect is
// valid in every state and cancels any pending reconnection.
package client
