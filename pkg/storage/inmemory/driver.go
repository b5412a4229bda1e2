// Package inmemory is a storage.Driver backed by process memory.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
)

// Driver keeps conversations and turns in maps guarded by a mutex.
type Driver struct {
	mu            sync.RWMutex
	conversations map[string]*llm.Conversation
	turns         map[string][]llm.Record
}

var _ storage.Driver = (*Driver)(nil)

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		conversations: make(map[string]*llm.Conversation),
		turns:         make(map[string][]llm.Record),
	}
}

func (d *Driver) Create(_ context.Context, conv *llm.Conversation, first llm.Record) error {
	if conv == nil {
		return fmt.Errorf("cannot store nil conversation")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conv.ID]; ok {
		return fmt.Errorf("conversation %s already exists", conv.ID)
	}

	c := *conv
	d.conversations[conv.ID] = &c
	first.ConversationID = conv.ID
	d.turns[conv.ID] = []llm.Record{first}
	return nil
}

func (d *Driver) List(_ context.Context, ownerID string) ([]*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*llm.Conversation, 0)
	for _, c := range d.conversations {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *Driver) ListAll(_ context.Context) ([]*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*llm.Conversation, 0, len(d.conversations))
	for _, c := range d.conversations {
		cp := *c
		out = append(out, &cp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (d *Driver) Fetch(_ context.Context, id string) (*llm.Conversation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.conversations[id]
	if !ok {
		return nil, storage.ErrNotFound{ID: id}
	}
	cp := *c
	return &cp, nil
}

func (d *Driver) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[id]; !ok {
		return storage.ErrNotFound{ID: id}
	}
	delete(d.conversations, id)
	delete(d.turns, id)
	return nil
}

func (d *Driver) AppendTurns(_ context.Context, conversationID string, records []llm.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return storage.ErrNotFound{ID: conversationID}
	}

	for _, r := range records {
		r.ConversationID = conversationID
		d.turns[conversationID] = append(d.turns[conversationID], r)
	}
	return nil
}

func (d *Driver) Import(_ context.Context, conv *llm.Conversation, records []llm.Record) (bool, int, error) {
	if conv == nil {
		return false, 0, fmt.Errorf("cannot import nil conversation")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	isNew := false
	existing, ok := d.conversations[conv.ID]
	switch {
	case !ok:
		c := *conv
		d.conversations[conv.ID] = &c
		isNew = true
	case existing.OwnerID != conv.OwnerID:
		return false, 0, storage.ErrOwnerMismatch{ID: conv.ID}
	}

	seen := make(map[string]struct{}, len(d.turns[conv.ID]))
	for _, r := range d.turns[conv.ID] {
		seen[r.ID] = struct{}{}
	}

	added := 0
	for _, r := range records {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		r.ConversationID = conv.ID
		d.turns[conv.ID] = append(d.turns[conv.ID], r)
		added++
	}
	return isNew, added, nil
}

func (d *Driver) Turns(_ context.Context, conversationID string) ([]llm.Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if _, ok := d.conversations[conversationID]; !ok {
		return nil, storage.ErrNotFound{ID: conversationID}
	}

	out := make([]llm.Record, len(d.turns[conversationID]))
	copy(out, d.turns[conversationID])
	// Stable keeps append order for records sharing a timestamp.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (d *Driver) Close() error {
	return nil
}

func sortNewestFirst(convs []*llm.Conversation) {
	sort.Slice(convs, func(i, j int) bool {
		if convs[i].CreatedAt.Equal(convs[j].CreatedAt) {
			return convs[i].ID < convs[j].ID
		}
		return convs[i].CreatedAt.After(convs[j].CreatedAt)
	})
}
