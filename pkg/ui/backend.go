package ui

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/events"
	"github.com/go-go-golems/loom/pkg/inference/orchestrator"
)

// Backend dispatches one completion turn at a time on behalf of the chat
// model. The returned command resolves to BackendFinishedMsg once the turn is
// fully over, terminal event delivered included.
type Backend interface {
	Start(ctx context.Context) (tea.Cmd, error)
	// Interrupt stops the stream but keeps the text buffered so far.
	Interrupt()
	// Kill cancels the stream and discards the buffer.
	Kill()
	IsFinished() bool
}

// BackendFinishedMsg is delivered to the program when the in-flight turn has
// resolved, whatever its terminal state.
type BackendFinishedMsg struct{}

// StreamEventMsg wraps a canonical stream event for delivery into the
// program's update loop.
type StreamEventMsg struct {
	Event events.Event
}

// OrchestratorBackend runs turns against one orchestrator. At most one turn
// is in flight at a time; Start while running is an error.
type OrchestratorBackend struct {
	mu           sync.Mutex
	orchestrator *orchestrator.Orchestrator
	handle       *orchestrator.Handle
}

func NewOrchestratorBackend(orch *orchestrator.Orchestrator) *OrchestratorBackend {
	return &OrchestratorBackend{
		orchestrator: orch,
	}
}

func (b *OrchestratorBackend) Start(ctx context.Context) (tea.Cmd, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != nil && b.handle.IsRunning() {
		return nil, errors.New("request is already running")
	}

	h, err := b.orchestrator.Start(ctx)
	if err != nil {
		return nil, err
	}
	b.handle = h

	return func() tea.Msg {
		_, _ = h.Wait()
		return BackendFinishedMsg{}
	}, nil
}

func (b *OrchestratorBackend) Interrupt() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		b.handle.StopAndComplete()
	}
}

func (b *OrchestratorBackend) Kill() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		b.handle.Cancel()
		b.handle = nil
	}
}

func (b *OrchestratorBackend) IsFinished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle == nil || !b.handle.IsRunning()
}

var _ Backend = (*OrchestratorBackend)(nil)

// EventForwardFunc bridges a watermill subscription into the program: each
// serialized stream event is decoded and sent as a StreamEventMsg.
func EventForwardFunc(p *tea.Program) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		msg.Ack()

		e, err := events.NewEventFromJson(msg.Payload)
		if err != nil {
			return err
		}

		p.Send(StreamEventMsg{Event: e})
		return nil
	}
}
