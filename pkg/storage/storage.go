// Package storage defines the conversation store used by the chat pipeline
// and the drivers that implement it.
package storage

import (
	"context"
	"errors"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Driver persists conversations and their append-only turn records.
// A conversation and its first turn are created as one unit; later turns are
// only ever appended.
type Driver interface {
	// Create stores a new conversation together with its first turn record.
	Create(ctx context.Context, conv *llm.Conversation, first llm.Record) error

	// List returns the owner's conversations, newest first.
	List(ctx context.Context, ownerID string) ([]*llm.Conversation, error)

	// ListAll returns every conversation in the store, newest first.
	ListAll(ctx context.Context) ([]*llm.Conversation, error)

	// Fetch retrieves a conversation by id. Returns ErrNotFound if it doesn't exist.
	Fetch(ctx context.Context, id string) (*llm.Conversation, error)

	// Delete removes a conversation and all of its turns.
	Delete(ctx context.Context, id string) error

	// AppendTurns adds records to a conversation in one batch. Either all
	// records are stored or none are.
	AppendTurns(ctx context.Context, conversationID string, records []llm.Record) error

	// Turns returns the conversation's records ordered by creation time.
	Turns(ctx context.Context, conversationID string) ([]llm.Record, error)

	// Close closes the store and releases any resources.
	Close() error
}

// Importer merges conversations exported from another store. Conversations
// and records that already exist, matched by id, are left untouched.
type Importer interface {
	// Import adds conv if it is missing and then any of its records that are
	// missing. It reports whether conv was new and how many records were added.
	// A conversation stored under another owner is never touched; Import
	// returns ErrOwnerMismatch for it.
	Import(ctx context.Context, conv *llm.Conversation, records []llm.Record) (bool, int, error)
}

// ErrNotFound is returned when a conversation doesn't exist in the store.
type ErrNotFound struct {
	ID string
}

func (e ErrNotFound) Error() string {
	if e.ID == "" {
		return "conversation not found"
	}

	return "conversation not found: " + e.ID
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// ErrOwnerMismatch is returned by Import when the conversation already exists
// under a different owner.
type ErrOwnerMismatch struct {
	ID string
}

func (e ErrOwnerMismatch) Error() string {
	return "conversation belongs to another owner: " + e.ID
}

// IsOwnerMismatch reports whether err is or wraps ErrOwnerMismatch.
func IsOwnerMismatch(err error) bool {
	var om ErrOwnerMismatch
	return errors.As(err, &om)
}
