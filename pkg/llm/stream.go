package llm

// EventType is the kind of a streamed delta event.
type EventType string

const (
	EventTextDelta      EventType = "text-delta"
	EventReasoningDelta EventType = "reasoning-delta"
	EventStepBoundary   EventType = "step-boundary"
	EventError          EventType = "error"
	EventDone           EventType = "done"
)

// Event is one incremental unit of streamed model output.
type Event struct {
	Type    EventType `json:"type"`
	Payload string    `json:"payload,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

func TextDelta(text string) Event      { return Event{Type: EventTextDelta, Payload: text} }
func ReasoningDelta(text string) Event { return Event{Type: EventReasoningDelta, Payload: text} }
func StepBoundaryEvent() Event         { return Event{Type: EventStepBoundary} }
func DoneEvent() Event                 { return Event{Type: EventDone} }

// ErrorEvent wraps err as a terminal error event.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Payload: err.Error()}
}

// EventReader is a pull-based sequence of events. Recv returns io.EOF once
// the sequence is exhausted.
type EventReader interface {
	Recv() (Event, error)
	Close() error
}
