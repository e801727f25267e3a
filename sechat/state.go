package sechat

// ConnectorState represents where a room's stream connector currently
// is in its reconnect loop. Observability only; the connector never
// terminates on its own while the room is alive.
type ConnectorState int32

const (
	// StateNegotiating means the connector is acquiring a stream URL.
	StateNegotiating ConnectorState = iota

	// StateConnected means the connector is reading frames.
	StateConnected

	// StateErrored means the last connection ended with an error and
	// the connector is about to renegotiate.
	StateErrored

	// StateClosed means the connector task has been cancelled.
	StateClosed
)

// String returns the string representation of a ConnectorState.
func (s ConnectorState) String() string {
	switch s {
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
