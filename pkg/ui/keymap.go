package ui

import "github.com/charmbracelet/bubbles/key"

type KeyMap struct {
	SelectPrevMessage key.Binding
	SelectNextMessage key.Binding
	PrevVariant       key.Binding
	NextVariant       key.Binding

	UnfocusMessage key.Binding
	FocusMessage   key.Binding
	SubmitMessage  key.Binding

	CancelCompletion key.Binding
	DismissError     key.Binding

	Help key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	SelectPrevMessage: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "prev message")),
	SelectNextMessage: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next message")),
	PrevVariant: key.NewBinding(
		key.WithKeys("left"),
		key.WithHelp("←", "prev variant")),
	NextVariant: key.NewBinding(
		key.WithKeys("right"),
		key.WithHelp("→", "next variant")),
	UnfocusMessage: key.NewBinding(
		key.WithKeys("esc", "ctrl+g"),
		key.WithHelp("esc", "browse messages")),
	FocusMessage: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "back to input")),
	SubmitMessage: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "send")),
	CancelCompletion: key.NewBinding(
		key.WithKeys("esc", "ctrl+g"),
		key.WithHelp("esc", "stop completion")),
	DismissError: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "dismiss error")),
	Help: key.NewBinding(
		key.WithKeys("ctrl+h"),
		key.WithHelp("ctrl+h", "help")),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.SubmitMessage,
		k.UnfocusMessage,
		k.PrevVariant,
		k.NextVariant,
		k.CancelCompletion,
		k.Quit,
	}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.SelectPrevMessage, k.SelectNextMessage, k.PrevVariant, k.NextVariant},
		{k.FocusMessage, k.UnfocusMessage, k.SubmitMessage},
		{k.CancelCompletion, k.DismissError, k.Quit},
	}
}
