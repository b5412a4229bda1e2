package llm

import "strings"

// PartType is the wire tag of a content part.
type PartType string

const (
	PartText      PartType = "text"
	PartReasoning PartType = "reasoning"
	PartStepStart PartType = "step-start"
)

// ContentPart is one typed fragment of a turn's content.
//
// The set of implementations is closed: TextPart, ReasoningPart and
// StepBoundary. Code switching over parts should handle all three.
type ContentPart interface {
	Type() PartType
	contentPart()
}

// TextPart is plain text shown to the user.
type TextPart struct {
	Text string
}

// ReasoningPart is model reasoning text, displayed separately from the answer.
type ReasoningPart struct {
	Text string
}

// StepBoundary marks the start of a new generation step.
type StepBoundary struct{}

func (TextPart) Type() PartType      { return PartText }
func (ReasoningPart) Type() PartType { return PartReasoning }
func (StepBoundary) Type() PartType  { return PartStepStart }

func (TextPart) contentPart()      {}
func (ReasoningPart) contentPart() {}
func (StepBoundary) contentPart()  {}

// Parts is an ordered list of content parts. It marshals to the tagged list
// format used for storage and transport.
type Parts []ContentPart

// Text joins all text parts with a newline, ignoring other kinds.
func (p Parts) Text() string {
	texts := make([]string, 0, len(p))
	for _, part := range p {
		if t, ok := part.(TextPart); ok {
			texts = append(texts, t.Text)
		}
	}
	return strings.Join(texts, "\n")
}
