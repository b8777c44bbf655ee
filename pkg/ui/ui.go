// Package ui is the terminal chat front end. It renders the active path of a
// conversation, streams assistant output as it arrives on the event bus, and
// drives variant navigation over branch points.
package ui

import (
	context2 "context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/errors"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/events"
)

type errMsg error

// states:
// - user input
// - user moving around messages
// - stream completion
// - showing error

type State string

const (
	StateUserInput        State = "user_input"
	StateMovingAround     State = "moving_around"
	StateStreamCompletion State = "stream_completion"
	StateError            State = "error"
)

type model struct {
	manager conversation.Manager
	backend Backend

	// conv and path are the display snapshot, refreshed whenever the
	// conversation changes underneath us.
	conv *conversation.Conversation
	path []conversation.NodeID

	viewport viewport.Model
	textArea textarea.Model
	help     help.Model

	// currently selected message, always a valid index into path when
	// path is non-empty
	selectedIdx int
	err         error
	keyMap      KeyMap

	style    *Style
	width    int
	height   int
	renderer *glamour.TermRenderer

	currentResponse        string
	statusLine             string
	toolEvents             *events.ToolEventAggregator
	previousResponseHeight int

	state        State
	quitReceived bool
}

type refreshMessageMsg struct {
	GoToBottom bool
}

func InitialModel(manager conversation.Manager, backend Backend) model {
	ret := model{
		manager:  manager,
		backend:  backend,
		style:      DefaultStyles(),
		keyMap:     DefaultKeyMap,
		viewport:   viewport.New(0, 0),
		help:       help.New(),
		toolEvents: events.NewToolEventAggregator(),
	}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Say something..."
	ret.textArea.Focus()
	ret.state = StateUserInput

	ret.refresh()
	ret.selectedIdx = len(ret.path) - 1
	if ret.selectedIdx < 0 {
		ret.selectedIdx = 0
	}

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.YPosition = 0
	ret.viewport.GotoBottom()

	ret.updateKeyBindings()

	return ret
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			if !m.quitReceived {
				m.quitReceived = true
				if !m.backend.IsFinished() {
					// quit once the turn resolves, so the
					// conversation is left in a clean state
					m.backend.Kill()
					return m, nil
				}
			}
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.CancelCompletion):
			if m.state == StateStreamCompletion {
				m.backend.Interrupt()
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, m.keyMap.DismissError):
			if m.state == StateError {
				m.err = nil
				m.state = StateUserInput
				m.updateKeyBindings()
			}
			return m, tea.Batch(cmds...)

		case key.Matches(msg, m.keyMap.UnfocusMessage):
			if m.state == StateUserInput {
				m.textArea.Blur()
				m.state = StateMovingAround
				m.updateKeyBindings()
			}

		case key.Matches(msg, m.keyMap.FocusMessage):
			if m.state == StateMovingAround {
				cmd = m.textArea.Focus()
				cmds = append(cmds, cmd)

				m.state = StateUserInput
				m.updateKeyBindings()
			}

		case key.Matches(msg, m.keyMap.SelectNextMessage):
			if m.selectedIdx < len(m.path)-1 {
				m.selectedIdx++
				m.viewport.SetContent(m.messageView())
			}

		case key.Matches(msg, m.keyMap.SelectPrevMessage):
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.viewport.SetContent(m.messageView())
			}

		case key.Matches(msg, m.keyMap.PrevVariant):
			cmds = append(cmds, m.switchVariant(-1))

		case key.Matches(msg, m.keyMap.NextVariant):
			cmds = append(cmds, m.switchVariant(1))

		case key.Matches(msg, m.keyMap.SubmitMessage):
			if m.state == StateUserInput {
				cmd := m.submit()
				cmds = append(cmds, cmd)
			}

		default:
			switch m.state {
			case StateUserInput:
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			case StateMovingAround, StateStreamCompletion, StateError:
				m.viewport, cmd = m.viewport.Update(msg)
				cmds = append(cmds, cmd)
			}
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.recomputeSize()

	case errMsg:
		m.err = msg
		m.state = StateError
		m.updateKeyBindings()
		return m, nil

	case StreamEventMsg:
		cmd = m.handleStreamEvent(msg.Event)
		cmds = append(cmds, cmd)

	case BackendFinishedMsg:
		cmd = m.finishCompletion()
		cmds = append(cmds, cmd)

	case refreshMessageMsg:
		m.viewport.SetContent(m.messageView())
		m.recomputeSize()
		if msg.GoToBottom {
			m.viewport.GotoBottom()
		}

	default:
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleStreamEvent folds one canonical event into the view.
func (m *model) handleStreamEvent(e events.Event) tea.Cmd {
	switch e_ := e.(type) {
	case *events.EventPartial:
		m.currentResponse = e_.Completion
		newHeight := lipgloss.Height(m.textAreaView())
		if newHeight != m.previousResponseHeight {
			m.recomputeSize()
			m.previousResponseHeight = newHeight
		}
		return func() tea.Msg {
			return refreshMessageMsg{}
		}

	case *events.EventStatus:
		m.statusLine = e_.Status

	case *events.EventPartialThinking:
		m.statusLine = "thinking..."

	case *events.EventThinkingDone:
		m.statusLine = e_.Status

	case *events.EventToolCall, *events.EventToolResult:
		m.toolEvents.Handle(e)
		if lines := m.toolEvents.Lines(); len(lines) > 0 {
			m.statusLine = lines[len(lines)-1]
		}

	case *events.EventMessagesAdded:
		m.refresh()
		m.currentResponse = ""
		m.previousResponseHeight = 0
		return func() tea.Msg {
			return refreshMessageMsg{GoToBottom: true}
		}

	case *events.EventFinal:
		m.currentResponse = ""
		m.statusLine = ""
		m.refresh()
		return func() tea.Msg {
			return refreshMessageMsg{GoToBottom: true}
		}

	case *events.EventError:
		m.err = errors.New(e_.ErrorString)
		m.state = StateError
		m.updateKeyBindings()
	}

	return nil
}

// refresh pulls a fresh snapshot of the conversation and reclamps the
// selection onto the new active path.
func (m *model) refresh() {
	m.conv = m.manager.Snapshot()
	m.path = m.conv.ActivePathIDs()
	if m.selectedIdx >= len(m.path) {
		m.selectedIdx = len(m.path) - 1
	}
	if m.selectedIdx < 0 {
		m.selectedIdx = 0
	}
}

// switchVariant moves the selected branch point to its previous or next
// variant. Everything below the branch point follows the new variant's
// subtree.
func (m *model) switchVariant(delta int) tea.Cmd {
	if m.state != StateMovingAround || m.selectedIdx >= len(m.path) {
		return nil
	}

	nodeID := m.path[m.selectedIdx]
	info, err := m.manager.BranchInfo(nodeID)
	if err != nil {
		return func() tea.Msg { return errMsg(err) }
	}

	target := info.CurrentVariantIndex + delta
	if target < 0 || target >= info.Total {
		return nil
	}

	if err := m.manager.SwitchVariant(nodeID, target); err != nil {
		return func() tea.Msg { return errMsg(err) }
	}

	m.refresh()
	return func() tea.Msg {
		return refreshMessageMsg{}
	}
}

func (m *model) updateKeyBindings() {
	m.keyMap.SelectNextMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.SelectPrevMessage.SetEnabled(m.state == StateMovingAround)
	m.keyMap.PrevVariant.SetEnabled(m.state == StateMovingAround)
	m.keyMap.NextVariant.SetEnabled(m.state == StateMovingAround)
	m.keyMap.FocusMessage.SetEnabled(m.state == StateMovingAround)

	m.keyMap.UnfocusMessage.SetEnabled(m.state == StateUserInput)
	m.keyMap.SubmitMessage.SetEnabled(m.state == StateUserInput)

	m.keyMap.DismissError.SetEnabled(m.state == StateError)
	m.keyMap.CancelCompletion.SetEnabled(m.state == StateStreamCompletion)
}

func (m *model) recomputeSize() {
	headerHeight := lipgloss.Height(m.headerView())
	textAreaHeight := lipgloss.Height(m.textAreaView())
	helpViewHeight := lipgloss.Height(m.help.View(m.keyMap))

	m.previousResponseHeight = textAreaHeight
	newHeight := m.height - textAreaHeight - headerHeight - helpViewHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight + 1

	h, _ := m.style.SelectedMessage.GetFrameSize()
	m.textArea.SetWidth(m.width - h)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(m.width-h-m.style.SelectedMessage.GetHorizontalPadding()),
	)
	if err == nil {
		m.renderer = renderer
	}

	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m model) headerView() string {
	title := m.conv.Title
	if title == "" {
		title = m.conv.ID
	}
	return m.style.Header.Render(title)
}

func (m model) messageView() string {
	ret := ""

	w, _ := m.style.SelectedMessage.GetFrameSize()
	width := m.width - w - m.style.SelectedMessage.GetHorizontalPadding()

	for idx, nodeID := range m.path {
		node, ok := m.conv.Nodes[nodeID]
		if !ok {
			continue
		}
		variant := node.Active()
		if variant == nil || variant.Message == nil {
			continue
		}

		v := m.renderMessage(variant.Message)
		if len(node.Variants) > 1 {
			v += "\n" + m.style.Variant.Render(
				fmt.Sprintf("‹ variant %d/%d ›", node.ActiveVariant+1, len(node.Variants)))
		}

		v = wrapWords(v, width)
		style := m.style.UnselectedMessage
		if m.state == StateMovingAround && idx == m.selectedIdx {
			style = m.style.SelectedMessage
		}
		ret += style.Width(m.width - m.style.SelectedMessage.GetHorizontalPadding()).Render(v)
		ret += "\n"
	}

	return ret
}

// renderMessage runs assistant markdown through glamour; every other message
// keeps its plain view.
func (m model) renderMessage(msg *conversation.Message) string {
	if m.renderer != nil {
		if c, ok := msg.Content.(*conversation.ChatMessageContent); ok && c.Role == conversation.RoleAssistant {
			if out, err := m.renderer.Render(c.Text); err == nil {
				return fmt.Sprintf("[%s]:\n%s", c.Role, strings.TrimRight(out, "\n"))
			}
		}
	}
	return msg.Content.View()
}

func (m model) textAreaView() string {
	if m.err != nil {
		w, _ := m.style.SelectedMessage.GetFrameSize()
		v := wrapWords(m.err.Error(), m.width-w)
		return m.style.SelectedMessage.Render(v)
	}

	// we are currently streaming
	if m.state == StateStreamCompletion {
		w, _ := m.style.SelectedMessage.GetFrameSize()
		v := wrapWords(m.currentResponse, m.width-w-m.style.SelectedMessage.GetHorizontalPadding())
		if m.statusLine != "" {
			v += "\n" + m.style.StatusLine.Render(m.statusLine)
		}
		return m.style.SelectedMessage.Width(m.width - m.style.SelectedMessage.GetHorizontalPadding()).Render(v)
	}

	v := m.textArea.View()
	switch m.state {
	case StateUserInput:
		v = m.style.FocusedMessage.Render(v)
	case StateMovingAround, StateStreamCompletion:
		v = m.style.UnselectedMessage.Render(v)
	case StateError:
	}

	return v
}

func (m model) View() string {
	return m.headerView() + "\n" + m.viewport.View() + "\n" + m.textAreaView() + "\n" + m.help.View(m.keyMap)
}

func (m *model) submit() tea.Cmd {
	if !m.backend.IsFinished() {
		return func() tea.Msg {
			return errMsg(errors.New("already streaming"))
		}
	}

	prompt := strings.TrimSpace(m.textArea.Value())
	if prompt == "" {
		return nil
	}

	m.manager.AppendMessages(conversation.NewChatMessage(conversation.RoleUser, prompt))
	m.refresh()

	backendCmd, err := m.backend.Start(context2.Background())
	if err != nil {
		return func() tea.Msg {
			return errMsg(err)
		}
	}

	m.state = StateStreamCompletion
	m.updateKeyBindings()
	m.currentResponse = ""
	m.statusLine = ""
	m.previousResponseHeight = 0
	m.textArea.SetValue("")

	m.viewport.GotoBottom()

	return tea.Batch(func() tea.Msg {
		return refreshMessageMsg{GoToBottom: true}
	},
		backendCmd,
	)
}

func (m *model) finishCompletion() tea.Cmd {
	m.currentResponse = ""
	m.statusLine = ""
	m.toolEvents.Reset()
	m.previousResponseHeight = 0
	m.refresh()

	if m.state == StateStreamCompletion {
		m.state = StateUserInput
		m.textArea.Focus()
		m.textArea.SetValue("")
	}

	m.recomputeSize()
	m.updateKeyBindings()

	if m.quitReceived {
		return tea.Quit
	}

	return func() tea.Msg {
		return refreshMessageMsg{GoToBottom: true}
	}
}

func wrapWords(s string, width int) string {
	if width <= 0 {
		return s
	}
	return wordwrap.String(s, width)
}
