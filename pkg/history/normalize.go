// Package history turns stored turn records into model-ready message lists.
//
// Normalize salvages what it can from each record; Assemble merges the
// normalized history with new turns. Neither function keeps state or touches
// the network or storage.
package history

import (
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Status describes how a record was normalized.
type Status int

const (
	// StatusParsed means the blob was a part list with recognized parts.
	StatusParsed Status = iota
	// StatusSalvaged means the blob could not be parsed and was wrapped
	// verbatim as a single text part.
	StatusSalvaged
	// StatusOmitted means the record yields no turn: its parts were all
	// unrecognized or its role is unknown.
	StatusOmitted
)

func (s Status) String() string {
	switch s {
	case StatusParsed:
		return "parsed"
	case StatusSalvaged:
		return "salvaged"
	case StatusOmitted:
		return "omitted"
	default:
		return "unknown"
	}
}

// Normalize converts a stored record into a turn. The returned turn has at
// least one part unless the status is StatusOmitted.
func Normalize(rec llm.Record) (llm.Turn, Status) {
	role, ok := llm.ParseRole(rec.Role)
	if !ok {
		return llm.Turn{}, StatusOmitted
	}

	turn := llm.Turn{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		Role:           role,
		CreatedAt:      rec.CreatedAt,
	}

	parts, err := llm.DecodeParts(rec.Content)
	if err != nil {
		turn.Parts = llm.Parts{llm.TextPart{Text: rec.Content}}
		return turn, StatusSalvaged
	}

	if len(parts) == 0 {
		return llm.Turn{}, StatusOmitted
	}

	turn.Parts = parts
	return turn, StatusParsed
}

// NormalizeAll normalizes records in order, dropping omitted ones. Records
// are left untouched in storage; only the returned view skips them.
func NormalizeAll(records []llm.Record, logger *zap.Logger) []llm.Turn {
	turns := make([]llm.Turn, 0, len(records))
	for _, rec := range records {
		turn, status := Normalize(rec)
		switch status {
		case StatusOmitted:
			logger.Debug("omitting turn without recognized parts",
				zap.String("turn_id", rec.ID),
				zap.String("role", rec.Role),
			)
			continue
		case StatusSalvaged:
			logger.Debug("salvaged unparseable turn content as text",
				zap.String("turn_id", rec.ID),
				zap.Int("content_length", len(rec.Content)),
			)
		}
		turns = append(turns, turn)
	}
	return turns
}
