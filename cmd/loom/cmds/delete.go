package cmds

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func NewDeleteCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			defer func() {
				_ = st.Close()
			}()

			// make sure the conversation exists before asking
			if _, err := st.Get(args[0]); err != nil {
				return err
			}

			if !force {
				asker := &input.UI{
					Reader: os.Stdin,
					Writer: os.Stdout,
				}
				answer, err := asker.Ask(
					fmt.Sprintf("Delete conversation %s? [y/N]", args[0]),
					&input.Options{
						Default:  "n",
						Required: false,
					})
				if err != nil {
					return err
				}
				if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
					fmt.Println("aborted")
					return nil
				}
			}

			if err := st.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "delete without confirmation")

	return cmd
}
