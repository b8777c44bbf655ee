package cmds

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/conversation"
	"github.com/go-go-golems/loom/pkg/extract"
)

func NewExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <chat-id>",
		Short: "Write code blocks from assistant messages to files",
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

			var blocks []extract.CodeBlock
			for _, msg := range conv.Flatten() {
				c, ok := msg.Content.(*conversation.ChatMessageContent)
				if !ok || c.Role != conversation.RoleAssistant {
					continue
				}
				found, err := extract.CodeBlocks(c.Text)
				if err != nil {
					return err
				}
				blocks = append(blocks, found...)
			}

			if len(blocks) == 0 {
				fmt.Println("no code blocks found")
				return nil
			}

			dir := output
			if dir == "" {
				dir = "export-" + conv.ID
			}

			paths, err := extract.WriteCodeBlocks(dir, blocks)
			if err != nil {
				return err
			}
			for _, path := range paths {
				fmt.Println(path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default export-<chat-id>)")

	return cmd
}
