package client

// State is the connection lifecycle state.
type State int32

const (
	// Disconnected is the initial state. No connection exists and
	// none is being attempted.
	Disconnected State = iota

	// Connecting means a caller-initiated connection attempt is in
	// flight.
	Connecting

	// Connected means the transport is established and frames flow.
	Connected

	// Reconnecting means the connection was lost and the automatic
	// reconnection policy is retrying.
	Reconnecting

	// Failed means reconnection attempts were exhausted. The state
	// is terminal until Connect is called again.
	Failed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
