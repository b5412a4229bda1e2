// Package backendtest provides a channel-driven model backend for tests.
package backendtest

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Step is one scripted backend emission: an event, or an error to fail the
// stream with.
type Step struct {
	Event llm.Event
	Err   error
}

// Backend hands each opened stream a fresh channel. Tests push steps with
// Emit and end the stream with Finish or Fail. Every request is recorded.
type Backend struct {
	// OpenErr, when set, fails Stream before any event.
	OpenErr error

	mu       sync.Mutex
	requests []*llm.ChatRequest
	streams  []chan Step
	opened   chan struct{}
}

// New creates a Backend.
func New() *Backend {
	return &Backend{opened: make(chan struct{}, 64)}
}

func (b *Backend) Stream(ctx context.Context, req *llm.ChatRequest) (llm.EventReader, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if b.OpenErr != nil {
		return nil, b.OpenErr
	}

	ch := make(chan Step, 64)
	b.mu.Lock()
	b.streams = append(b.streams, ch)
	b.mu.Unlock()

	b.opened <- struct{}{}
	return &reader{ctx: ctx, steps: ch}, nil
}

// Opened signals once per opened stream.
func (b *Backend) Opened() <-chan struct{} {
	return b.opened
}

// Requests returns every request received so far.
func (b *Backend) Requests() []*llm.ChatRequest {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*llm.ChatRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// Emit queues events on the most recently opened stream.
func (b *Backend) Emit(events ...llm.Event) {
	ch := b.last()
	for _, ev := range events {
		ch <- Step{Event: ev}
	}
}

// Finish ends the most recently opened stream normally.
func (b *Backend) Finish() {
	close(b.last())
}

// Fail ends the most recently opened stream with err.
func (b *Backend) Fail(err error) {
	b.last() <- Step{Err: err}
}

func (b *Backend) last() chan Step {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.streams) == 0 {
		panic("backendtest: no stream opened")
	}
	return b.streams[len(b.streams)-1]
}

type reader struct {
	ctx   context.Context
	steps <-chan Step
}

func (r *reader) Recv() (llm.Event, error) {
	select {
	case <-r.ctx.Done():
		return llm.Event{}, r.ctx.Err()
	case step, ok := <-r.steps:
		if !ok {
			return llm.Event{}, io.EOF
		}
		if step.Err != nil {
			return llm.Event{}, step.Err
		}
		return step.Event, nil
	}
}

func (r *reader) Close() error {
	return nil
}

// ErrBackend is a ready-made backend failure for tests.
var ErrBackend = errors.New("backend exploded")
