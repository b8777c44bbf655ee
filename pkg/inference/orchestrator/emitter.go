package orchestrator

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-go-golems/loom/pkg/events"
)

// emitter decouples the network-reading task from event delivery. Events are
// queued and drained by a dedicated goroutine, so a slow sink can never stall
// the stream read. The queue is unbounded: within one request, events are
// delivered in the order they were emitted, at least once.
type emitter struct {
	sinks  []events.EventSink
	logger zerolog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []events.Event
	closed bool

	drained chan struct{}
}

func newEmitter(sinks []events.EventSink, logger zerolog.Logger) *emitter {
	e := &emitter{
		sinks:   sinks,
		logger:  logger,
		drained: make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	go e.drain()
	return e
}

func (e *emitter) emit(ev events.Event) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.cond.Signal()
	e.mu.Unlock()
}

// close stops accepting events and blocks until everything already queued
// has been delivered. Terminal events emitted just before close are thus
// guaranteed to reach the sinks.
func (e *emitter) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.drained
		return
	}
	e.closed = true
	e.cond.Signal()
	e.mu.Unlock()
	<-e.drained
}

func (e *emitter) drain() {
	defer close(e.drained)
	for {
		e.mu.Lock()
		for len(e.queue) == 0 && !e.closed {
			e.cond.Wait()
		}
		batch := e.queue
		e.queue = nil
		closed := e.closed
		e.mu.Unlock()

		for _, ev := range batch {
			for _, sink := range e.sinks {
				if err := sink.PublishEvent(ev); err != nil {
					e.logger.Warn().Err(err).Str("event_type", string(ev.Type())).Msg("failed to publish event")
				}
			}
		}

		if closed && len(batch) == 0 {
			return
		}
		if closed {
			// one more pass to pick up anything queued before closed
			// was observed, then the loop exits on the empty batch
			continue
		}
	}
}
