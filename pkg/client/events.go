package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// EventStream reads the NDJSON events of one invocation.
type EventStream struct {
	id      string
	body    io.ReadCloser
	scanner *bufio.Scanner
	cancel  context.CancelFunc

	closeOnce sync.Once
	finished  bool
}

var _ llm.EventReader = (*EventStream)(nil)

// ID is the server's stream identifier.
func (s *EventStream) ID() string {
	return s.id
}

// Recv returns the next event, or io.EOF after the terminal event.
func (s *EventStream) Recv() (llm.Event, error) {
	if s.finished {
		return llm.Event{}, io.EOF
	}

	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var ev llm.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return llm.Event{}, fmt.Errorf("could not decode event: %w", err)
		}
		if ev.Terminal() {
			s.finished = true
		}
		return ev, nil
	}

	if err := s.scanner.Err(); err != nil {
		return llm.Event{}, err
	}
	// The connection ended before a terminal event.
	return llm.Event{}, io.ErrUnexpectedEOF
}

// Close abandons the stream. The server treats it as a stop.
func (s *EventStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
