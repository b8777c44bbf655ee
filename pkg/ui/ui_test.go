package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
)

type fakeBackend struct {
	started     int
	interrupted int
	killed      int
	running     bool
}

func (b *fakeBackend) Start(ctx context.Context) (tea.Cmd, error) {
	b.started++
	b.running = true
	return func() tea.Msg { return BackendFinishedMsg{} }, nil
}

func (b *fakeBackend) Interrupt() { b.interrupted++ }

func (b *fakeBackend) Kill() {
	b.killed++
	b.running = false
}

func (b *fakeBackend) IsFinished() bool { return !b.running }

var _ Backend = (*fakeBackend)(nil)

func newTestManager(t *testing.T) conversation.Manager {
	t.Helper()
	return conversation.NewManager(
		conversation.WithChatID("chat-ui-test"),
		conversation.WithMessages(
			conversation.NewChatMessage(conversation.RoleUser, "hello"),
			conversation.NewChatMessage(conversation.RoleAssistant, "hi there"),
		),
	)
}

func keyMsg(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

func metadataForTest() events.EventMetadata {
	return events.EventMetadata{ID: uuid.New(), RequestID: uuid.New(), ChatID: "chat-ui-test"}
}

func TestSubmitStartsTurn(t *testing.T) {
	mgr := newTestManager(t)
	backend := &fakeBackend{}
	m := InitialModel(mgr, backend)

	m.textArea.SetValue("what about cheese?")
	updated, _ := m.Update(keyMsg(tea.KeyTab))
	m = updated.(model)

	assert.Equal(t, StateStreamCompletion, m.state)
	assert.Equal(t, 1, backend.started)

	thread := mgr.Flatten()
	require.Len(t, thread, 3)
	assert.Equal(t, "what about cheese?", thread[2].Content.(*conversation.ChatMessageContent).Text)
}

func TestSubmitEmptyMessageIsNoOp(t *testing.T) {
	mgr := newTestManager(t)
	backend := &fakeBackend{}
	m := InitialModel(mgr, backend)

	m.textArea.SetValue("   ")
	updated, _ := m.Update(keyMsg(tea.KeyTab))
	m = updated.(model)

	assert.Equal(t, StateUserInput, m.state)
	assert.Zero(t, backend.started)
	assert.Len(t, mgr.Flatten(), 2)
}

func TestPartialEventUpdatesResponse(t *testing.T) {
	mgr := newTestManager(t)
	m := InitialModel(mgr, &fakeBackend{})
	m.state = StateStreamCompletion

	updated, _ := m.Update(StreamEventMsg{Event: events.NewPartialEvent(metadataForTest(), "Hel", "Hel")})
	m = updated.(model)
	updated, _ = m.Update(StreamEventMsg{Event: events.NewPartialEvent(metadataForTest(), "lo", "Hello")})
	m = updated.(model)

	assert.Equal(t, "Hello", m.currentResponse)
}

func TestMessagesAddedRefreshesSnapshot(t *testing.T) {
	mgr := newTestManager(t)
	m := InitialModel(mgr, &fakeBackend{})
	m.state = StateStreamCompletion
	m.currentResponse = "partial text"

	msg := conversation.NewChatMessage(conversation.RoleAssistant, "full answer")
	mgr.AppendMessages(msg)

	updated, _ := m.Update(StreamEventMsg{Event: events.NewMessagesAddedEvent(metadataForTest(), []string{msg.ID.String()})})
	m = updated.(model)

	assert.Empty(t, m.currentResponse)
	assert.Len(t, m.path, 3)
}

func TestBackendFinishedReturnsToInput(t *testing.T) {
	mgr := newTestManager(t)
	backend := &fakeBackend{running: true}
	m := InitialModel(mgr, backend)
	m.state = StateStreamCompletion

	backend.running = false
	updated, _ := m.Update(BackendFinishedMsg{})
	m = updated.(model)

	assert.Equal(t, StateUserInput, m.state)
	assert.Empty(t, m.currentResponse)
}

func TestCancelCompletionInterruptsBackend(t *testing.T) {
	mgr := newTestManager(t)
	backend := &fakeBackend{running: true}
	m := InitialModel(mgr, backend)
	m.state = StateStreamCompletion
	m.updateKeyBindings()

	updated, _ := m.Update(keyMsg(tea.KeyEsc))
	m = updated.(model)

	assert.Equal(t, 1, backend.interrupted)
	assert.Equal(t, StateStreamCompletion, m.state)
}

func TestVariantNavigation(t *testing.T) {
	mgr := newTestManager(t)
	thread := mgr.Flatten()
	nodeID, ok := mgr.FindNode(thread[1].ID)
	require.True(t, ok)

	_, err := mgr.CreateBranch(nodeID, conversation.NewChatMessage(conversation.RoleAssistant, "hi again"))
	require.NoError(t, err)

	m := InitialModel(mgr, &fakeBackend{})

	updated, _ := m.Update(keyMsg(tea.KeyEsc))
	m = updated.(model)
	require.Equal(t, StateMovingAround, m.state)
	require.Equal(t, 1, m.selectedIdx)

	updated, _ = m.Update(keyMsg(tea.KeyLeft))
	m = updated.(model)

	info, err := mgr.BranchInfo(nodeID)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentVariantIndex)

	updated, _ = m.Update(keyMsg(tea.KeyRight))
	m = updated.(model)

	info, err = mgr.BranchInfo(nodeID)
	require.NoError(t, err)
	assert.Equal(t, 1, info.CurrentVariantIndex)
}

func TestVariantNavigationAtBoundaryIsNoOp(t *testing.T) {
	mgr := newTestManager(t)
	m := InitialModel(mgr, &fakeBackend{})

	updated, _ := m.Update(keyMsg(tea.KeyEsc))
	m = updated.(model)

	// single-variant node, no direction to move in
	updated, _ = m.Update(keyMsg(tea.KeyLeft))
	m = updated.(model)
	assert.Nil(t, m.err)
}

func TestErrorEventEntersErrorState(t *testing.T) {
	mgr := newTestManager(t)
	m := InitialModel(mgr, &fakeBackend{})
	m.state = StateStreamCompletion

	updated, _ := m.Update(StreamEventMsg{Event: events.NewErrorEvent(metadataForTest(), assert.AnError)})
	m = updated.(model)
	require.Equal(t, StateError, m.state)
	require.Error(t, m.err)

	updated, _ = m.Update(keyMsg(tea.KeyEsc))
	m = updated.(model)
	assert.Equal(t, StateUserInput, m.state)
	assert.Nil(t, m.err)
}
