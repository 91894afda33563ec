package connection

// State represents the connection state.
type State uint8

const (
	// StateIdle indicates no connection and no pending attempt.
	StateIdle State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateOpen indicates an established connection. Sends are permitted
	// only in this state.
	StateOpen

	// StateClosing indicates an intentional shutdown is in progress.
	StateClosing

	// StateReconnecting indicates a reconnect is scheduled.
	StateReconnecting

	// StateFailed indicates the retry budget is exhausted. Only Open or
	// Close leave this state.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}
