package types

// ConnectivityState is the console's view of whether the agent is reachable.
type ConnectivityState int

const (
	// ConnectivityUnknown is the state before the first probe settles.
	ConnectivityUnknown ConnectivityState = iota
	ConnectivityConnected
	ConnectivityDisconnected
)

func (s ConnectivityState) String() string {
	switch s {
	case ConnectivityConnected:
		return "connected"
	case ConnectivityDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
