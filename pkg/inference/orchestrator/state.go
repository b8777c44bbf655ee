package orchestrator

// State is the lifecycle position of one request. Transitions follow
// Created -> Streaming -> (ToolPending -> Streaming)* -> terminal.
type State string

const (
	StateCreated     State = "created"
	StateStreaming   State = "streaming"
	StateToolPending State = "tool-pending"
	StateCompleted   State = "completed"
	StateCancelled   State = "cancelled"
	StateFailed      State = "failed"
)

// IsTerminal reports whether a request in this state is finished. Terminal
// requests are removed from the in-flight registry and never emit again.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}
