package deletecmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/remote"
	"github.com/papercomputeco/parley/pkg/client"
)

const deleteLongDesc string = `Delete conversations and all of their turns.

Examples:
  parley delete 3f1c2a9e-0b7d-4c55-9a43-2f7e6d1c8b90
  parley delete <id> <id>`

const deleteShortDesc string = "Delete conversations"

type deleteCommander struct {
	remote remote.Flags
}

func NewDeleteCmd() *cobra.Command {
	cmder := &deleteCommander{}

	cmd := &cobra.Command{
		Use:   "delete <conversation-id>...",
		Short: deleteShortDesc,
		Long:  deleteLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE:  cmder.run,
	}

	cmder.remote.Register(cmd)
	return cmd
}

func (c *deleteCommander) run(cmd *cobra.Command, args []string) error {
	remote := c.remote.Client()

	for _, id := range args {
		err := remote.DeleteConversation(cmd.Context(), id)
		switch {
		case client.IsNotFound(err):
			return fmt.Errorf("conversation %s not found", id)
		case err != nil:
			return fmt.Errorf("could not delete conversation %s: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return nil
}
