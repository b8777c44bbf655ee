package cmds

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/tokens"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Token counting utilities",
	}

	cmd.AddCommand(newTokensCountCommand())

	return cmd
}

func newTokensCountCommand() *cobra.Command {
	var encoding string

	cmd := &cobra.Command{
		Use:   "count [files...]",
		Short: "Count tokens in files, or stdin when no files are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			counter, err := tokens.NewTextCounter(encoding)
			if err != nil {
				return err
			}

			if len(args) == 0 {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				fmt.Printf("%d\n", counter.Count(string(data)))
				return nil
			}

			total := 0
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				n := counter.Count(string(data))
				total += n
				fmt.Printf("%8d  %s\n", n, path)
			}
			if len(args) > 1 {
				fmt.Printf("%8d  total\n", total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&encoding, "encoding", "cl100k_base", "tiktoken encoding to count with")

	return cmd
}
