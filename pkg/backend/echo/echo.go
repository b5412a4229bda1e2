// Package echo is an offline model backend that streams the last user
// message back word by word. It is useful for local development and demos.
package echo

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Backend echoes the latest user message.
type Backend struct {
	// Delay is the pause between words.
	Delay time.Duration
}

// New creates an echo backend.
func New(delay time.Duration) *Backend {
	return &Backend{Delay: delay}
}

func (b *Backend) Stream(ctx context.Context, req *llm.ChatRequest) (llm.EventReader, error) {
	var last string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == llm.RoleUser {
			last = req.Messages[i].Text()
			break
		}
	}

	events := []llm.Event{llm.ReasoningDelta("echoing the last user message")}
	for i, word := range strings.Fields(last) {
		if i > 0 {
			word = " " + word
		}
		events = append(events, llm.TextDelta(word))
	}

	return &reader{ctx: ctx, events: events, delay: b.Delay}, nil
}

type reader struct {
	ctx    context.Context
	events []llm.Event
	delay  time.Duration
}

func (r *reader) Recv() (llm.Event, error) {
	if len(r.events) == 0 {
		return llm.Event{}, io.EOF
	}

	if r.delay > 0 {
		t := time.NewTimer(r.delay)
		defer t.Stop()
		select {
		case <-r.ctx.Done():
			return llm.Event{}, r.ctx.Err()
		case <-t.C:
		}
	} else if err := r.ctx.Err(); err != nil {
		return llm.Event{}, err
	}

	ev := r.events[0]
	r.events = r.events[1:]
	return ev, nil
}

func (r *reader) Close() error {
	return nil
}
