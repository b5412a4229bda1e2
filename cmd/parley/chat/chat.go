package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/parley/cmd/parley/remote"
	"github.com/papercomputeco/parley/pkg/chatview"
	"github.com/papercomputeco/parley/pkg/trigger"
)

const chatLongDesc string = `Chat in an existing conversation.

Loads the conversation's history and reads messages from stdin, one per
line. Each answer streams as it is generated. Press Ctrl-C while an answer
streams to stop it; the completed parts are kept.

With --continue the view answers a conversation whose last turn is still
unanswered as soon as it loads, once, the way "parley new" does.

Commands:
  /retry         discard the last answer and generate a new one
  /model <name>  answer with another model from the catalog
  /models        list the model catalog
  /quit          leave the chat

Examples:
  parley chat 3f1c2a9e-0b7d-4c55-9a43-2f7e6d1c8b90
  parley chat --continue 3f1c2a9e-0b7d-4c55-9a43-2f7e6d1c8b90`

const chatShortDesc string = "Chat in a conversation"

const prompt = "> "

type chatCommander struct {
	remote       remote.Flags
	style        string
	width        int
	autoContinue bool
}

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <conversation-id>",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			interrupts := make(chan os.Signal, 1)
			signal.Notify(interrupts, syscall.SIGINT)
			defer signal.Stop(interrupts)
			return cmder.run(cmd.Context(), cmd, args[0], interrupts)
		},
	}

	cmder.remote.Register(cmd)
	cmd.Flags().BoolVar(&cmder.autoContinue, "continue", false, "Answer an unanswered last turn on load")
	cmd.Flags().StringVar(&cmder.style, "style", "", "Markdown style (dark, light, notty; default: detect)")
	cmd.Flags().IntVar(&cmder.width, "width", 0, "Wrap width for rendered answers (default: terminal width, else 80)")

	return cmd
}

// run drives the chat loop. An interrupt stops a streaming answer and
// otherwise ends the chat.
func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command, id string, interrupts <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := cmd.OutOrStdout()

	renderer, err := chatview.NewTerminalRenderer(out, c.width, c.style)
	if err != nil {
		return err
	}

	intent, err := trigger.ParseURLIntent(trigger.ChatTarget(id, c.autoContinue))
	if err != nil {
		return err
	}
	registry := trigger.NewRegistry()
	defer registry.Close()

	view := chatview.New(id, chatview.ClientAPI(c.remote.Client()), renderer, chatview.Options{
		Registry: registry,
		Intent:   intent,
	}, c.remote.Logger())
	if err := view.Load(ctx); err != nil {
		return err
	}
	c.await(out, view, renderer, interrupts)
	fmt.Fprintf(out, "%s [%s]\n", view.Title(), view.Model())

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(out, prompt)

		var line string
		select {
		case <-ctx.Done():
			view.Stop()
			return nil
		case <-interrupts:
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = strings.TrimSpace(l)
		}

		quit, err := c.handle(ctx, out, view, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if quit {
			return nil
		}

		c.await(out, view, renderer, interrupts)
	}
}

// handle executes one input line.
func (c *chatCommander) handle(ctx context.Context, out io.Writer, view *chatview.View, line string) (bool, error) {
	switch {
	case line == "":
		return false, nil
	case line == "/quit" || line == "/exit":
		return true, nil
	case line == "/retry":
		return false, view.Retry(ctx)
	case line == "/models":
		for _, m := range view.Catalog() {
			marker := " "
			if m == view.Model() {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, m)
		}
		return false, nil
	case strings.HasPrefix(line, "/model"):
		name := strings.TrimSpace(strings.TrimPrefix(line, "/model"))
		if name == "" {
			return false, errors.New("usage: /model <name>")
		}
		if err := view.SelectModel(name); err != nil {
			return false, err
		}
		fmt.Fprintf(out, "answering with %s\n", name)
		return false, nil
	case strings.HasPrefix(line, "/"):
		return false, fmt.Errorf("unknown command %s", line)
	default:
		return false, view.Submit(ctx, line)
	}
}

// await blocks until the streaming answer, if any, finishes or is stopped by
// an interrupt.
func (c *chatCommander) await(out io.Writer, view *chatview.View, renderer *chatview.TerminalRenderer, interrupts <-chan os.Signal) {
	if !view.Streaming() {
		return
	}

	done := make(chan struct{})
	go func() {
		view.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-interrupts:
		if view.Stop() {
			renderer.Close()
			fmt.Fprintln(out, "(stopped)")
		}
		<-done
	}
}
