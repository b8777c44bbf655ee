package orchestrator

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/events"
)

// ErrCancelled is returned by Wait when the request was cancelled. It is a
// deliberate terminal outcome, not a failure.
var ErrCancelled = errors.New("request cancelled")

// Result is what a completed request produced.
type Result struct {
	// Text is the final assistant text of the turn.
	Text string
	// Thinking is the accumulated reasoning trace, kept apart from Text
	// and never persisted into the conversation.
	Thinking string

	StopReason string
	Usage      *events.Usage
	State      State
}

// stopMode records why the request context was cancelled, so the run loop
// can tell a discard-the-buffer cancel from a keep-the-buffer stop.
type stopMode int

const (
	stopNone stopMode = iota
	stopDiscard
	stopComplete
)

// Handle is one in-flight request. It is cancellable and waitable; the
// underlying work is always aborted through context cancellation.
type Handle struct {
	RequestID uuid.UUID
	ChatID    string

	done chan struct{}

	mu     sync.Mutex
	state  State
	mode   stopMode
	cancel context.CancelFunc
	result *Result
	err    error
}

func newHandle(requestID uuid.UUID, chatID string, cancel context.CancelFunc) *Handle {
	return &Handle{
		RequestID: requestID,
		ChatID:    chatID,
		done:      make(chan struct{}),
		state:     StateCreated,
		cancel:    cancel,
	}
}

func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// IsRunning reports whether the request has not yet reached a terminal state.
func (h *Handle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Cancel aborts the request and discards the unsaved buffer. Safe to call
// multiple times and after completion; cancelling a finished request is a
// no-op.
func (h *Handle) Cancel() {
	h.signal(stopDiscard)
}

// StopAndComplete aborts the network read but keeps the accumulated text,
// persisting it as if the turn completed normally.
func (h *Handle) StopAndComplete() {
	h.signal(stopComplete)
}

func (h *Handle) signal(mode stopMode) {
	if h == nil {
		return
	}
	h.mu.Lock()
	if h.state.IsTerminal() || h.mode != stopNone {
		h.mu.Unlock()
		return
	}
	h.mode = mode
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *Handle) stopRequested() stopMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// Wait blocks until the request is fully resolved: terminal state reached,
// all events delivered, registry entry removed. Cancelled requests return
// ErrCancelled, failed ones the underlying error.
func (h *Handle) Wait() (*Result, error) {
	if h == nil {
		return nil, errors.New("request handle is nil")
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.err
}

// transition moves the request to a non-terminal state. It refuses to move a
// terminal request, so a late network callback cannot resurrect one.
func (h *Handle) transition(state State) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.IsTerminal() {
		return false
	}
	h.state = state
	return true
}

// finish moves the request to a terminal state exactly once. The first call
// wins; later calls return false and change nothing, which is what makes
// terminal delivery exactly-once. The done channel is closed separately by
// markDone once the run loop has drained its events.
func (h *Handle) finish(state State, result *Result, err error) bool {
	h.mu.Lock()
	if h.state.IsTerminal() {
		h.mu.Unlock()
		return false
	}
	h.state = state
	if result != nil {
		result.State = state
	}
	h.result = result
	h.err = err
	h.cancel = nil
	h.mu.Unlock()
	return true
}

func (h *Handle) markDone() {
	close(h.done)
}
