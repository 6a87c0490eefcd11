package ws

// State is the lifecycle state of a Connection.
// Closed and Errored are terminal: a new Connection is needed to recover.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateAuthenticated
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	}
	return "unknown"
}

// Ready reports whether frames can be written in this state
func (s State) Ready() bool {
	return s == StateOpen || s == StateAuthenticated
}

// Terminal reports whether the connection is finished for good
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}
