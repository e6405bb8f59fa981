package libsession

// Status is the connection state owned by a Manager. Only the manager mutates it;
// subscribers observe it through status notifications.
type Status uint8

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusDisconnected
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusDisconnected:
		return "disconnected"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsLive reports whether frames can be exchanged in this state.
func (s Status) IsLive() bool {
	return s == StatusConnected
}
