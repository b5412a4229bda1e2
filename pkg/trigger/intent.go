package trigger

import (
	"fmt"
	"net/url"
	"sync"
)

// AutoTriggerParam is the query parameter carrying the trigger intent.
const AutoTriggerParam = "autoTrigger"

// IntentCarrier holds the one-shot intent to auto-continue a conversation,
// typically attached to the navigation target that led to its view.
type IntentCarrier interface {
	// Present reports whether the intent is still attached.
	Present() bool
	// Clear removes the intent without reloading the view.
	Clear()
}

// ChatTarget is the navigation target for a conversation view.
func ChatTarget(conversationID string, autoTrigger bool) string {
	target := "/chat/" + url.PathEscape(conversationID)
	if autoTrigger {
		target += "?" + AutoTriggerParam + "=true"
	}
	return target
}

// URLIntent carries the intent as autoTrigger=true on a navigation URL.
// Clear replaces the target in place with the parameter removed, the way a
// router replaces history without refetching.
type URLIntent struct {
	mu     sync.Mutex
	target *url.URL
}

var _ IntentCarrier = (*URLIntent)(nil)

// ParseURLIntent reads the intent from a navigation target such as
// "/chat/abc?autoTrigger=true".
func ParseURLIntent(target string) (*URLIntent, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parsing navigation target: %w", err)
	}
	return &URLIntent{target: u}, nil
}

func (i *URLIntent) Present() bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.target.Query().Get(AutoTriggerParam) == "true"
}

func (i *URLIntent) Clear() {
	i.mu.Lock()
	defer i.mu.Unlock()

	q := i.target.Query()
	q.Del(AutoTriggerParam)
	i.target.RawQuery = q.Encode()
}

// String returns the current navigation target.
func (i *URLIntent) String() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.target.String()
}
