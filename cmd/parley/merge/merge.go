package mergecmder

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/sqlitepath"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
	"github.com/papercomputeco/parley/pkg/storage/sqlite"
)

const mergeLongDesc string = `Merge one or more source SQLite databases into a target.

Conversations and turns are matched by id, so merging is a union:
anything that already exists in the target is skipped. Turns of a
conversation that exists on both sides are combined.

Examples:
  parley merge laptop.db desktop.db
  parley merge --sqlite /tmp/merged.db ~/alice/parley.db ~/bob/parley.db`

const mergeShortDesc string = "Merge SQLite databases"

type mergeCommander struct {
	sqlitePath string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge [sources...]",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.sqlitePath, "sqlite", "s", "", "Path to target SQLite database")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	targetPath, err := sqlitepath.ResolveSQLitePath(c.sqlitePath)
	if err != nil {
		return fmt.Errorf("could not resolve target database: %w", err)
	}

	// Opening a missing path would create an empty database.
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			return fmt.Errorf("source database %s: %w", src, err)
		}
	}

	target, err := sqlite.NewDriver(ctx, targetPath)
	if err != nil {
		return fmt.Errorf("could not open target database %s: %w", targetPath, err)
	}
	defer target.Close()

	out := cmd.OutOrStdout()
	var total llm.ImportResult
	for _, src := range sources {
		res, err := mergeSource(ctx, target, src)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  %s: %d new conversations, %d new turns, %d already existed\n",
			src, res.NewConversations, res.New, res.Duplicate)

		total.NewConversations += res.NewConversations
		total.New += res.New
		total.Duplicate += res.Duplicate
	}

	fmt.Fprintf(out, "Merged %d new conversations and %d new turns from %d sources (%d already existed) into %s\n",
		total.NewConversations, total.New, len(sources), total.Duplicate, targetPath)
	return nil
}

// mergeSource imports every conversation of the database at srcPath.
func mergeSource(ctx context.Context, target storage.Importer, srcPath string) (llm.ImportResult, error) {
	var res llm.ImportResult

	source, err := sqlite.NewDriver(ctx, srcPath)
	if err != nil {
		return res, fmt.Errorf("could not open source database %s: %w", srcPath, err)
	}
	defer source.Close()

	convs, err := source.ListAll(ctx)
	if err != nil {
		return res, fmt.Errorf("could not list conversations from %s: %w", srcPath, err)
	}

	for _, conv := range convs {
		records, err := source.Turns(ctx, conv.ID)
		if err != nil {
			return res, fmt.Errorf("could not read turns of %s: %w", conv.ID, err)
		}

		isNew, added, err := target.Import(ctx, conv, records)
		if err != nil {
			return res, fmt.Errorf("could not import conversation %s: %w", conv.ID, err)
		}
		if isNew {
			res.NewConversations++
		}
		res.New += added
		res.Duplicate += len(records) - added
	}
	return res, nil
}
