package pushcmder

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/remote"
	"github.com/papercomputeco/parley/cmd/parley/sqlitepath"
	"github.com/papercomputeco/parley/pkg/client"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage/sqlite"
)

const pushLongDesc string = `Push local conversations to a remote parley server.

Reads the owner's conversations with their turns from the local SQLite
database and POSTs them to the remote server's /api/import endpoint.
Conversations and turns the server already has are skipped. The server
refuses conversations it holds under another owner.

Examples:
  parley push http://192.168.1.42:8080
  parley push --owner alice --sqlite ~/.parley/parley.db http://localhost:8080`

const pushShortDesc string = "Push conversations to a remote parley server"

type pushCommander struct {
	owner      string
	sqlitePath string
	batchSize  int
}

func NewPushCmd() *cobra.Command {
	cmder := &pushCommander{}

	cmd := &cobra.Command{
		Use:   "push <server-url>",
		Short: pushShortDesc,
		Long:  pushLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&cmder.owner, "owner", remote.DefaultOwner(), "Owner whose conversations are pushed")
	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to local SQLite database")
	cmd.Flags().IntVar(&cmder.batchSize, "batch-size", 50, "Conversations per HTTP request")

	return cmd
}

func (c *pushCommander) run(ctx context.Context, cmd *cobra.Command, serverURL string) error {
	serverURL = strings.TrimRight(serverURL, "/")
	if c.batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.batchSize)
	}

	dbPath, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve local database: %w", err)
	}

	driver, err := sqlite.NewDriver(ctx, dbPath)
	if err != nil {
		return fmt.Errorf("could not open local database %s: %w", dbPath, err)
	}
	defer driver.Close()

	convs, err := driver.List(ctx, c.owner)
	if err != nil {
		return fmt.Errorf("could not list local conversations: %w", err)
	}

	if len(convs) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No local conversations of %s to push.\n", c.owner)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushing %d conversations from %s to %s\n", len(convs), dbPath, serverURL)

	server := client.New(serverURL, c.owner, nil)
	var total llm.ImportResult

	for i := 0; i < len(convs); i += c.batchSize {
		end := min(i+c.batchSize, len(convs))

		batch := make([]llm.ConversationExport, 0, end-i)
		for _, conv := range convs[i:end] {
			records, err := driver.Turns(ctx, conv.ID)
			if err != nil {
				return fmt.Errorf("could not read turns of %s: %w", conv.ID, err)
			}
			batch = append(batch, llm.ConversationExport{Conversation: conv, Records: records})
		}

		resp, err := server.Import(ctx, batch)
		if err != nil {
			return fmt.Errorf("push failed on batch %d-%d: %w", i, end-1, err)
		}

		total.NewConversations += resp.NewConversations
		total.New += resp.New
		total.Duplicate += resp.Duplicate
		total.Errors += resp.Errors
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d new conversations and %d new turns (%d already existed, %d errors)\n",
		total.NewConversations, total.New, total.Duplicate, total.Errors)

	return nil
}
