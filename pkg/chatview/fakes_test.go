package chatview_test

import (
	"context"
	"io"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

type fakeStream struct {
	ctx    context.Context
	events chan llm.Event
}

func (s *fakeStream) Recv() (llm.Event, error) {
	select {
	case <-s.ctx.Done():
		return llm.Event{}, s.ctx.Err()
	case ev, ok := <-s.events:
		if !ok {
			return llm.Event{}, io.EOF
		}
		return ev, nil
	}
}

func (s *fakeStream) Close() error { return nil }

// fakeAPI serves a fixed conversation and hands every opened stream to the
// test through opened.
type fakeAPI struct {
	detail  *llm.ConversationDetail
	catalog llm.ModelCatalog
	loadErr error

	mu          sync.Mutex
	invocations []llm.Invocation
	opened      chan *fakeStream
}

func newFakeAPI(conv *llm.Conversation, turns ...llm.Turn) *fakeAPI {
	return &fakeAPI{
		detail:  &llm.ConversationDetail{Conversation: conv, Turns: turns},
		catalog: llm.ModelCatalog{Models: []string{"llama3", "qwen3"}},
		opened:  make(chan *fakeStream, 16),
	}
}

func (f *fakeAPI) Models(context.Context) (llm.ModelCatalog, error) {
	return f.catalog, nil
}

func (f *fakeAPI) Conversation(context.Context, string) (*llm.ConversationDetail, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.detail, nil
}

func (f *fakeAPI) Stream(ctx context.Context, inv llm.Invocation) (llm.EventReader, error) {
	f.mu.Lock()
	f.invocations = append(f.invocations, inv)
	f.mu.Unlock()

	s := &fakeStream{ctx: ctx, events: make(chan llm.Event, 64)}
	f.opened <- s
	return s, nil
}

func (f *fakeAPI) Invocations() []llm.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]llm.Invocation(nil), f.invocations...)
}

type recordingRenderer struct {
	mu     sync.Mutex
	empty  int
	turns  []llm.Turn
	deltas []llm.Event
}

func (r *recordingRenderer) Empty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.empty++
}

func (r *recordingRenderer) Turn(t llm.Turn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, t)
}

func (r *recordingRenderer) Delta(ev llm.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deltas = append(r.deltas, ev)
}

func (r *recordingRenderer) Deltas() []llm.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Event(nil), r.deltas...)
}

func (r *recordingRenderer) Turns() []llm.Turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]llm.Turn(nil), r.turns...)
}

func (r *recordingRenderer) Empties() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.empty
}
