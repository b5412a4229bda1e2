package newcmder

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/remote"
	"github.com/papercomputeco/parley/pkg/chatview"
	"github.com/papercomputeco/parley/pkg/trigger"
)

const newLongDesc string = `Start a new conversation and stream the first answer.

The message becomes the conversation's first turn and its title. The
conversation's view then continues it automatically, exactly once, so the
answer streams without sending anything else. Press Ctrl-C to stop the
answer early; the completed parts are kept.

Examples:
  parley new "How do goroutines differ from threads?"
  parley new --model llama3.2 "Explain TCP slow start"`

const newShortDesc string = "Start a conversation"

type newCommander struct {
	remote remote.Flags
	model  string
	style  string
	width  int
}

func NewNewCmd() *cobra.Command {
	cmder := &newCommander{}

	cmd := &cobra.Command{
		Use:   "new <message>",
		Short: newShortDesc,
		Long:  newLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return cmder.run(ctx, cmd, strings.Join(args, " "))
		},
	}

	cmder.remote.Register(cmd)
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to answer with (default: first in the server catalog)")
	cmd.Flags().StringVar(&cmder.style, "style", "", "Markdown style (dark, light, notty; default: detect)")
	cmd.Flags().IntVar(&cmder.width, "width", 0, "Wrap width for rendered answers (default: terminal width, else 80)")

	return cmd
}

func (c *newCommander) run(ctx context.Context, cmd *cobra.Command, content string) error {
	log := c.remote.Logger()
	remote := c.remote.Client()

	conv, err := remote.CreateConversation(ctx, content, c.model)
	if err != nil {
		return fmt.Errorf("could not create conversation: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n\n", conv.Title, conv.ID)

	renderer, err := chatview.NewTerminalRenderer(out, c.width, c.style)
	if err != nil {
		return err
	}

	// Arriving with the auto-trigger intent is what makes the view answer
	// the first turn on its own.
	intent, err := trigger.ParseURLIntent(trigger.ChatTarget(conv.ID, true))
	if err != nil {
		return err
	}
	registry := trigger.NewRegistry()
	defer registry.Close()

	view := chatview.New(conv.ID, chatview.ClientAPI(remote), renderer, chatview.Options{
		Registry: registry,
		Intent:   intent,
	}, log)

	// Ctrl-C stops the answer through the view, not by cancelling its stream.
	if err := view.Load(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	waited := make(chan struct{})
	go func() {
		view.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-ctx.Done():
		if view.Stop() {
			renderer.Close()
			fmt.Fprintln(out, "(stopped)")
		}
		<-waited
	}

	fmt.Fprintf(out, "\nContinue with: parley chat %s\n", conv.ID)
	return nil
}
