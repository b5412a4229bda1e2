package recorder

import (
	"strings"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Accumulator folds streamed delta events into content parts.
//
// Consecutive deltas of one kind extend the open part. A change of kind or a
// step boundary closes it, and done closes the last one. Only closed parts
// are finalized: a stop discards whatever part was still open. It is safe for
// concurrent use.
type Accumulator struct {
	mu     sync.Mutex
	closed llm.Parts
	kind   llm.PartType
	buf    strings.Builder
	open   bool
	deltas int
}

// NewAccumulator creates an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add folds one event in. Error and done events are ignored; call Finalize
// on done.
func (a *Accumulator) Add(ev llm.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch ev.Type {
	case llm.EventTextDelta:
		a.extend(llm.PartText, ev.Payload)
	case llm.EventReasoningDelta:
		a.extend(llm.PartReasoning, ev.Payload)
	case llm.EventStepBoundary:
		a.deltas++
		a.closeOpen()
		a.closed = append(a.closed, llm.StepBoundary{})
	case llm.EventError, llm.EventDone:
	}
}

// Finalize closes the open part and returns every part. Use it once the
// stream reached done.
func (a *Accumulator) Finalize() llm.Parts {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closeOpen()
	return a.copyClosed()
}

// Finalized returns only the parts that were closed, without the open one.
// Use it when the stream was stopped early.
func (a *Accumulator) Finalized() llm.Parts {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.copyClosed()
}

// Snapshot returns closed parts followed by the open part, if any. It is what
// a renderer has shown so far.
func (a *Accumulator) Snapshot() llm.Parts {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := a.copyClosed()
	if a.open {
		parts = append(parts, a.openPart())
	}
	return parts
}

// Deltas counts the delta events folded in so far.
func (a *Accumulator) Deltas() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.deltas
}

func (a *Accumulator) extend(kind llm.PartType, text string) {
	a.deltas++
	if a.open && a.kind != kind {
		a.closeOpen()
	}
	a.kind = kind
	a.open = true
	a.buf.WriteString(text)
}

func (a *Accumulator) closeOpen() {
	if !a.open {
		return
	}
	a.closed = append(a.closed, a.openPart())
	a.buf.Reset()
	a.open = false
}

func (a *Accumulator) openPart() llm.ContentPart {
	if a.kind == llm.PartReasoning {
		return llm.ReasoningPart{Text: a.buf.String()}
	}
	return llm.TextPart{Text: a.buf.String()}
}

func (a *Accumulator) copyClosed() llm.Parts {
	out := make(llm.Parts, len(a.closed))
	copy(out, a.closed)
	return out
}
