// Package trigger makes sure a freshly created conversation is continued by
// the model exactly once per client session, however many times its view is
// mounted or its navigation target is observed.
package trigger

import "sync"

// Registry records which conversations have already been auto-continued in
// one client session. Create it when the session starts, share it by
// reference with every view in the session, and Close it when the session
// ends. It is never persisted.
type Registry struct {
	mu        sync.Mutex
	triggered map[string]struct{}
	closed    bool
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{triggered: make(map[string]struct{})}
}

// Triggered reports whether conversationID was marked in this session.
func (r *Registry) Triggered(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.triggered[conversationID]
	return ok
}

// MarkTriggered marks conversationID and reports whether this call made the
// transition. Only one caller per conversation ever gets true. A closed
// registry refuses every mark.
func (r *Registry) MarkTriggered(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	if _, ok := r.triggered[conversationID]; ok {
		return false
	}
	r.triggered[conversationID] = struct{}{}
	return true
}

// Close ends the session. The registry forgets its marks and refuses new ones.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.triggered = make(map[string]struct{})
}
