package orchestrator

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks in-flight requests. It is the one piece of orchestrator
// state touched by more than one goroutine: the run loop registers and
// removes, external callers cancel and stop. Requests leave the registry the
// moment they reach a terminal state.
type Registry struct {
	mu       sync.Mutex
	inflight map[uuid.UUID]*Handle
}

func NewRegistry() *Registry {
	return &Registry{
		inflight: make(map[uuid.UUID]*Handle),
	}
}

func (r *Registry) register(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[h.RequestID] = h
}

func (r *Registry) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inflight, id)
}

// Get returns the handle of an in-flight request. Terminal requests are no
// longer present.
func (r *Registry) Get(id uuid.UUID) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.inflight[id]
	return h, ok
}

// Cancel aborts an in-flight request, discarding its unsaved buffer.
// Cancelling an unknown or already finished request is a no-op.
func (r *Registry) Cancel(id uuid.UUID) {
	if h, ok := r.Get(id); ok {
		h.Cancel()
	}
}

// StopAndComplete aborts an in-flight request but persists its accumulated
// text as a normal completion. Unknown ids are a no-op.
func (r *Registry) StopAndComplete(id uuid.UUID) {
	if h, ok := r.Get(id); ok {
		h.StopAndComplete()
	}
}

// CancelAll aborts every in-flight request, used on shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.inflight))
	for _, h := range r.inflight {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.inflight)
}
