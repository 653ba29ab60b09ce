package client

// State is a snapshot of where the connection is in its request cycle.
type State int32

const (
	// StateIdle has nothing in flight. The watch is armed if nothing else is queued.
	StateIdle State = iota
	// StateAwaitingCommand has one caller's request in flight.
	StateAwaitingCommand
	// StateAwaitingWatch has the standing idle request in flight.
	StateAwaitingWatch
	// StateCancellingWatch has written noidle and waits for the idle reply.
	StateCancellingWatch
	// StateClosed is terminal.
	StateClosed
)

// Active is false only once the connection has closed.
func (s State) Active() bool {
	return s != StateClosed
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCommand:
		return "awaiting_command"
	case StateAwaitingWatch:
		return "awaiting_watch"
	case StateCancellingWatch:
		return "cancelling_watch"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
