package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotPartList is returned by DecodeParts when the blob is valid JSON but
// not a list.
var ErrNotPartList = errors.New("content is not a part list")

type textWire struct {
	Type PartType `json:"type"`
	Text string   `json:"text"`
}

type tagWire struct {
	Type PartType `json:"type"`
}

func encodePart(p ContentPart) (any, error) {
	switch p := p.(type) {
	case TextPart:
		return textWire{Type: PartText, Text: p.Text}, nil
	case ReasoningPart:
		return textWire{Type: PartReasoning, Text: p.Text}, nil
	case StepBoundary:
		return tagWire{Type: PartStepStart}, nil
	default:
		return nil, fmt.Errorf("unknown content part %T", p)
	}
}

func decodePart(raw json.RawMessage) (ContentPart, bool) {
	// A missing text field decodes as empty text.
	var w textWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, false
	}

	switch w.Type {
	case PartText:
		return TextPart{Text: w.Text}, true
	case PartReasoning:
		return ReasoningPart{Text: w.Text}, true
	case PartStepStart:
		return StepBoundary{}, true
	default:
		return nil, false
	}
}

// MarshalJSON encodes the parts as an ordered tagged list.
func (p Parts) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, len(p))
	for _, part := range p {
		w, err := encodePart(part)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a tagged list, keeping only recognized parts.
func (p *Parts) UnmarshalJSON(data []byte) error {
	parts, err := decodeParts(data)
	if err != nil {
		return err
	}
	*p = parts
	return nil
}

// EncodeParts serializes parts into the blob stored with a turn record.
func EncodeParts(parts Parts) (string, error) {
	data, err := parts.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encoding parts: %w", err)
	}
	return string(data), nil
}

// DecodeParts parses a stored blob. An error means the blob is not a JSON part
// list at all; a nil error with an empty result means it parsed but held no
// recognized parts.
func DecodeParts(blob string) (Parts, error) {
	return decodeParts([]byte(blob))
}

func decodeParts(data []byte) (Parts, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		if json.Valid(trimmed) {
			return nil, ErrNotPartList
		}
		return nil, fmt.Errorf("invalid part list json")
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, fmt.Errorf("decoding part list: %w", err)
	}

	parts := make(Parts, 0, len(raws))
	for _, raw := range raws {
		if part, ok := decodePart(raw); ok {
			parts = append(parts, part)
		}
	}
	return parts, nil
}
