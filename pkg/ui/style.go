package ui

import "github.com/charmbracelet/lipgloss"

// Style collects the lipgloss styles the chat view renders with. Message
// borders double as the selection indicator: unselected messages get a thin
// grey border, the selected one a thick pink border, and the message being
// streamed into a yellow one.
type Style struct {
	UnselectedMessage lipgloss.Style
	SelectedMessage   lipgloss.Style
	FocusedMessage    lipgloss.Style

	// Header renders the message role line, Variant the "variant i/n"
	// marker under branch points, StatusLine the streaming status footer.
	Header     lipgloss.Style
	StatusLine lipgloss.Style
	Variant    lipgloss.Style
}

func messageStyle(border lipgloss.Border, light string, dark string) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(border).
		Padding(1, 1).
		BorderForeground(lipgloss.AdaptiveColor{Light: light, Dark: dark})
}

func DefaultStyles() *Style {
	return &Style{
		UnselectedMessage: messageStyle(lipgloss.NormalBorder(), "#CCCCCC", "#444444"),
		SelectedMessage:   messageStyle(lipgloss.ThickBorder(), "#FFB6C1", "#DD7090"),
		FocusedMessage:    messageStyle(lipgloss.NormalBorder(), "#FFFF99", "#DDDD77"),

		Header: lipgloss.NewStyle().Bold(true),
		StatusLine: lipgloss.NewStyle().Faint(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}),
		Variant: lipgloss.NewStyle().Faint(true),
	}
}
