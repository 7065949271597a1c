package domain

import "encoding/json"

// Event names carried on the live connection.
//
// Inbound domain events are produced by the remote source; lifecycle
// events are synthesized locally by the connection manager. Outbound
// command events travel in the other direction.
const (
	// Inbound domain events.
	EventTelemetryData = "telemetry_data"
	EventSessionUpdate = "session_update"
	EventLapCompleted  = "lap_completed"
	EventBestLap       = "best_lap"

	// Local connection lifecycle events.
	EventConnected       = "connected"
	EventDisconnected    = "disconnected"
	EventConnectionError = "connection_error"
	EventReconnected     = "reconnected"
	EventExhausted       = "exhausted"

	// Outbound command events.
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
)

// Frame is one discrete named message unit exchanged over the
// persistent connection. The payload is opaque to the connection
// layer; consumers decode it per event name.
type Frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewFrame builds a frame, encoding the payload as JSON.
func NewFrame(event string, payload any) (Frame, error) {
	if payload == nil {
		return Frame{Event: event}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, ErrSendEncoding.WithCause(err)
	}
	return Frame{Event: event, Payload: raw}, nil
}

// DisconnectReason explains why the connection was lost.
type DisconnectReason string

const (
	// ReasonClientDisconnect means the local caller closed the
	// connection. No reconnection is attempted.
	ReasonClientDisconnect DisconnectReason = "io client disconnect"

	// ReasonTransportClose means the transport dropped unexpectedly.
	// The reconnection policy takes over.
	ReasonTransportClose DisconnectReason = "transport close"

	// ReasonTransportError means a read or write failed mid-connection.
	ReasonTransportError DisconnectReason = "transport error"
)

// CallerInitiated reports whether the disconnect was requested locally.
func (r DisconnectReason) CallerInitiated() bool {
	return r == ReasonClientDisconnect
}

// DisconnectedEvent is the payload of a local "disconnected" event.
type DisconnectedEvent struct {
	Reason DisconnectReason `json:"reason"`
}

// ConnectionErrorEvent is the payload of a local "connection_error"
// event. Attempt carries the failed-attempt counter value.
type ConnectionErrorEvent struct {
	Attempt int    `json:"attempt"`
	Message string `json:"message"`
}

// ReconnectedEvent is the payload of a local "reconnected" event.
// Attempts is the number of failed attempts before this connection
// succeeded.
type ReconnectedEvent struct {
	Attempts int `json:"attempts"`
}

// ExhaustedEvent is the payload of a local "exhausted" event, emitted
// when the client enters its terminal Failed state.
type ExhaustedEvent struct {
	Attempts int `json:"attempts"`
}

// ChannelRequest is the payload of outbound subscribe/unsubscribe
// commands.
type ChannelRequest struct {
	Channel string `json:"channel"`
}
