// Package recorder persists both sides of a finished model exchange.
package recorder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Appender is the part of the conversation store the recorder writes to.
type Appender interface {
	AppendTurns(ctx context.Context, conversationID string, records []llm.Record) error
}

// Outcome describes one ended stream.
type Outcome struct {
	ConversationID string
	ModelID        string

	// NewTurns are the turns submitted with the invocation. Only the last
	// one is a candidate, and only when it is a user turn.
	NewTurns              llm.TurnList
	SkipPersistingNewTurn bool

	// Assistant holds the finalized parts of the model's reply.
	Assistant llm.Parts

	StartedAt  time.Time
	FinishedAt time.Time
}

// Recorder writes the user and assistant turns of an exchange in one batch.
type Recorder struct {
	store  Appender
	logger *zap.Logger
}

// New creates a Recorder.
func New(store Appender, logger *zap.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Candidates resolves the records to persist for o: the new user turn unless
// skipped, then the assistant turn if it has at least one finalized part.
func Candidates(o Outcome) ([]llm.Record, error) {
	records := make([]llm.Record, 0, 2)

	if !o.SkipPersistingNewTurn && len(o.NewTurns) > 0 {
		last := o.NewTurns[len(o.NewTurns)-1]
		if last.Role == llm.RoleUser && len(last.Parts) > 0 {
			rec, err := toRecord(o, last, o.StartedAt)
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}
	}

	if len(o.Assistant) > 0 {
		rec, err := toRecord(o, llm.Turn{Role: llm.RoleAssistant, Parts: o.Assistant}, o.FinishedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// Persist writes the candidates of o and returns how many records were
// stored.
func (r *Recorder) Persist(ctx context.Context, o Outcome) (int, error) {
	records, err := Candidates(o)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	if o.ConversationID == "" {
		return 0, fmt.Errorf("no conversation to record %d turns into", len(records))
	}

	if err := r.store.AppendTurns(ctx, o.ConversationID, records); err != nil {
		return 0, fmt.Errorf("appending turns: %w", err)
	}
	return len(records), nil
}

// Record persists o and logs the result. A failed write is not retried and
// is not surfaced to the caller, whose view already shows the exchange.
func (r *Recorder) Record(ctx context.Context, o Outcome) {
	n, err := r.Persist(ctx, o)
	if err != nil {
		r.logger.Error("failed to record exchange",
			zap.String("conversation_id", o.ConversationID),
			zap.Error(err),
		)
		return
	}

	r.logger.Info("exchange recorded",
		zap.String("conversation_id", o.ConversationID),
		zap.Int("turns", n),
		zap.Int("assistant_parts", len(o.Assistant)),
	)
}

func toRecord(o Outcome, t llm.Turn, at time.Time) (llm.Record, error) {
	content, err := llm.EncodeParts(t.Parts)
	if err != nil {
		return llm.Record{}, err
	}

	id := t.ID
	if id == "" {
		id = uuid.NewString()
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	return llm.Record{
		ID:             id,
		ConversationID: o.ConversationID,
		Role:           string(t.Role),
		Content:        content,
		ModelID:        o.ModelID,
		CreatedAt:      at,
	}, nil
}
