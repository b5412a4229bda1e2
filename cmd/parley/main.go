package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/parley/cmd/parley/chat"
	deletecmder "github.com/papercomputeco/parley/cmd/parley/delete"
	listcmder "github.com/papercomputeco/parley/cmd/parley/list"
	mergecmder "github.com/papercomputeco/parley/cmd/parley/merge"
	newcmder "github.com/papercomputeco/parley/cmd/parley/newconv"
	pushcmder "github.com/papercomputeco/parley/cmd/parley/push"
	servecmder "github.com/papercomputeco/parley/cmd/parley/serve"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const parleyLongDesc string = `parley runs multi-turn conversations with a language model.

Run "parley serve" to start the API server, then start a conversation with
"parley new" and keep talking with "parley chat".`

func newParleyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "parley",
		Short:         "Multi-turn LLM chat server and client",
		Long:          parleyLongDesc,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(
		servecmder.NewServeCmd(),
		newcmder.NewNewCmd(),
		chatcmder.NewChatCmd(),
		listcmder.NewListCmd(),
		deletecmder.NewDeleteCmd(),
		mergecmder.NewMergeCmd(),
		pushcmder.NewPushCmd(),
	)

	return cmd
}

func main() {
	if err := newParleyCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
