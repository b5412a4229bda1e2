package orchestrator

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// ErrStopped is returned by Recv after Stop.
var ErrStopped = errors.New("stream stopped")

// Stream is one invocation's output. Events are delivered in backend order and
// the sequence ends with a done or error event, after which Recv returns
// io.EOF. A Stream cannot be restarted; Recv is not safe for concurrent use,
// Stop is.
type Stream struct {
	id     string
	events chan llm.Event
	cancel context.CancelFunc
	exited chan struct{}

	stopped  atomic.Bool
	finished atomic.Bool
	stopOnce sync.Once
}

func newStream(ctx context.Context, backend Backend, req *llm.ChatRequest, logger *zap.Logger) *Stream {
	ctx, cancel := context.WithCancel(ctx)

	s := &Stream{
		id:     uuid.NewString(),
		events: make(chan llm.Event),
		cancel: cancel,
		exited: make(chan struct{}),
	}

	go s.pump(ctx, backend, req, logger.With(zap.String("stream_id", s.id)))
	return s
}

// ID identifies the stream in logs.
func (s *Stream) ID() string {
	return s.id
}

// Recv returns the next event. It blocks until the backend emits, the stream
// ends or Stop is called.
func (s *Stream) Recv() (llm.Event, error) {
	if s.stopped.Load() {
		return llm.Event{}, ErrStopped
	}
	if s.finished.Load() {
		return llm.Event{}, io.EOF
	}

	ev, ok := <-s.events
	if s.stopped.Load() {
		return llm.Event{}, ErrStopped
	}
	if !ok {
		s.finished.Store(true)
		return llm.Event{}, io.EOF
	}

	if ev.Terminal() {
		s.finished.Store(true)
	}
	return ev, nil
}

// Stop ends the stream early. Events already returned by Recv stay valid; no
// further events are delivered. Stop is idempotent and a no-op after the
// terminal event. It reports whether this call stopped the stream.
func (s *Stream) Stop() bool {
	stopped := false
	s.stopOnce.Do(func() {
		if !s.finished.Load() {
			s.stopped.Store(true)
			stopped = true
		}
		s.cancel()
	})
	return stopped
}

// Stopped reports whether Stop ended the stream before its terminal event.
func (s *Stream) Stopped() bool {
	return s.stopped.Load()
}

// Done is closed once the backend request has been released.
func (s *Stream) Done() <-chan struct{} {
	return s.exited
}

func (s *Stream) pump(ctx context.Context, backend Backend, req *llm.ChatRequest, logger *zap.Logger) {
	defer close(s.exited)
	defer close(s.events)
	defer s.cancel()

	reader, err := backend.Stream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("model request failed", zap.Error(err))
		s.send(ctx, llm.ErrorEvent(err))
		return
	}
	defer reader.Close()

	count := 0
	for {
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			logger.Debug("model stream complete", zap.Int("events", count))
			s.send(ctx, llm.DoneEvent())
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("model stream cancelled", zap.Int("events", count))
				return
			}
			logger.Error("model stream failed", zap.Error(err), zap.Int("events", count))
			s.send(ctx, llm.ErrorEvent(err))
			return
		}

		count++
		if !s.send(ctx, ev) || ev.Terminal() {
			return
		}
	}
}

func (s *Stream) send(ctx context.Context, ev llm.Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
