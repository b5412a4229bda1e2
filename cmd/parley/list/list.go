package listcmder

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/remote"
)

const listLongDesc string = `List your conversations on a parley server, newest first.

Examples:
  parley list
  parley list --server http://192.168.1.42:8080 --owner alice`

const listShortDesc string = "List conversations"

type listCommander struct {
	remote remote.Flags
}

func NewListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE:  cmder.run,
	}

	cmder.remote.Register(cmd)
	return cmd
}

func (c *listCommander) run(cmd *cobra.Command, _ []string) error {
	convs, err := c.remote.Client().Conversations(cmd.Context())
	if err != nil {
		return fmt.Errorf("could not list conversations: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(convs) == 0 {
		fmt.Fprintln(out, "No conversations yet. Start one with `parley new`.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMODEL\tTITLE")
	for _, conv := range convs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			conv.ID,
			conv.CreatedAt.Local().Format(time.DateTime),
			conv.ModelID,
			conv.Title,
		)
	}
	return w.Flush()
}
