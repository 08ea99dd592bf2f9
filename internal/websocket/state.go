package websocket

// ConnectionState tracks one client connection's lifecycle.
type ConnectionState int32

const (
	StateNew ConnectionState = iota
	StateUpgraded
	StateStreaming
	StateClosing
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateUpgraded:
		return "UPGRADED"
	case StateStreaming:
		return "STREAMING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// validTransition enforces the forward-only lifecycle.
func validTransition(from, to ConnectionState) bool {
	switch from {
	case StateNew:
		return to == StateUpgraded || to == StateClosing
	case StateUpgraded:
		return to == StateStreaming || to == StateClosing
	case StateStreaming:
		return to == StateStreaming || to == StateClosing
	case StateClosing:
		return to == StateClosed
	}
	return false
}
