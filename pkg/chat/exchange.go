package chat

import (
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/recorder"
)

// Exchange is one streaming invocation in progress. Recv must be called from
// a single goroutine; Stop may be called from any.
type Exchange struct {
	service *Service
	stream  *orchestrator.Stream
	acc     *recorder.Accumulator

	persist bool
	outcome recorder.Outcome
	once    sync.Once
}

// ID identifies the underlying stream.
func (e *Exchange) ID() string {
	return e.stream.ID()
}

// Recv returns the next event. It returns io.EOF after the terminal event and
// orchestrator.ErrStopped once Stop has been called.
func (e *Exchange) Recv() (llm.Event, error) {
	ev, err := e.stream.Recv()
	if err != nil {
		return ev, err
	}

	e.acc.Add(ev)
	switch ev.Type {
	case llm.EventDone:
		e.finish(e.acc.Finalize())
	case llm.EventError:
		// Failed exchanges are not recorded.
		e.once.Do(func() {})
	}
	return ev, nil
}

// Stop halts the exchange. The parts that were complete when it stopped are
// recorded; the part still being streamed is discarded. It reports whether
// the exchange was still running.
func (e *Exchange) Stop() bool {
	if !e.stream.Stop() {
		return false
	}
	e.finish(e.acc.Finalized())
	return true
}

// Parts returns the assistant parts streamed so far, including the open one.
func (e *Exchange) Parts() llm.Parts {
	return e.acc.Snapshot()
}

// Done is closed once the stream has released its backend.
func (e *Exchange) Done() <-chan struct{} {
	return e.stream.Done()
}

func (e *Exchange) finish(parts llm.Parts) {
	e.once.Do(func() {
		if !e.persist {
			return
		}
		o := e.outcome
		o.Assistant = parts
		o.FinishedAt = e.service.now()
		e.service.record(o)
	})
}
