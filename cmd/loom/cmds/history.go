package cmds

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/conversation"
)

func NewHistoryCommand() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "history <chat-id>",
		Short: "Print the active path of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()

			conv, err := st.Get(args[0])
			if err != nil {
				return err
			}

			var renderer *glamour.TermRenderer
			if !raw && isatty.IsTerminal(os.Stdout.Fd()) {
				renderer, _ = glamour.NewTermRenderer(glamour.WithAutoStyle())
			}

			if conv.Title != "" {
				fmt.Printf("# %s\n\n", conv.Title)
			}
			if conv.SystemPrompt != "" {
				fmt.Printf("[system]: %s\n\n", conv.SystemPrompt)
			}

			for _, msg := range conv.Flatten() {
				fmt.Println(renderMessage(renderer, msg))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "plain text output, no markdown rendering")

	return cmd
}

// renderMessage runs assistant markdown through glamour when a renderer is
// available, and falls back to the message's plain view.
func renderMessage(renderer *glamour.TermRenderer, msg *conversation.Message) string {
	if renderer != nil {
		if c, ok := msg.Content.(*conversation.ChatMessageContent); ok && c.Role == conversation.RoleAssistant {
			if out, err := renderer.Render(c.Text); err == nil {
				return fmt.Sprintf("[%s]:\n%s", c.Role, strings.TrimRight(out, "\n"))
			}
		}
	}
	return msg.Content.View()
}
