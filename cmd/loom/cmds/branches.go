package cmds

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/loom/pkg/conversation"
)

func NewBranchesCommand() *cobra.Command {
	var switchTo string

	cmd := &cobra.Command{
		Use:   "branches <chat-id>",
		Short: "Show branch points of a conversation, or switch a variant",
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

			if switchTo != "" {
				nodeID, variantIndex, err := parseSwitchSpec(switchTo)
				if err != nil {
					return err
				}
				if err := conv.SwitchVariant(nodeID, variantIndex); err != nil {
					return err
				}
				if err := st.Put(conv); err != nil {
					return err
				}
				fmt.Printf("switched node %s to variant %d\n", nodeID, variantIndex)
			}

			printBranches(conv)
			return nil
		},
	}

	cmd.Flags().StringVar(&switchTo, "switch", "", "switch a branch point, format <node-id>:<variant-index>")

	return cmd
}

// parseSwitchSpec splits "<node-id>:<index>" into its parts.
func parseSwitchSpec(spec string) (conversation.NodeID, int, error) {
	idx := strings.LastIndex(spec, ":")
	if idx < 0 {
		return conversation.NullNode, 0, errors.Errorf("invalid switch spec %q, expected <node-id>:<variant-index>", spec)
	}

	nodeID, err := conversation.ParseNodeID(spec[:idx])
	if err != nil {
		return conversation.NullNode, 0, errors.Wrapf(err, "invalid node id in %q", spec)
	}

	variantIndex, err := strconv.Atoi(spec[idx+1:])
	if err != nil {
		return conversation.NullNode, 0, errors.Wrapf(err, "invalid variant index in %q", spec)
	}

	return nodeID, variantIndex, nil
}

func printBranches(conv *conversation.Conversation) {
	for i, nodeID := range conv.ActivePathIDs() {
		node, ok := conv.Nodes[nodeID]
		if !ok {
			continue
		}
		variant := node.Active()
		if variant == nil || variant.Message == nil {
			continue
		}

		marker := " "
		if len(node.Variants) > 1 {
			marker = fmt.Sprintf("[%d/%d]", node.ActiveVariant+1, len(node.Variants))
		}

		fmt.Printf("%3d %s %s %s\n", i, nodeID, marker, excerpt(variant.Message, 60))
	}
}

func excerpt(msg *conversation.Message, max int) string {
	text := strings.ReplaceAll(msg.Content.View(), "\n", " ")
	if len(text) > max {
		text = text[:max] + "…"
	}
	return text
}
