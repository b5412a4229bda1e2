package trigger

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// InvokeFunc issues one streaming invocation.
type InvokeFunc func(ctx context.Context, inv llm.Invocation) error

// State is what a view has loaded so far.
type State struct {
	// ModelID is the resolved model selection; empty while unresolved.
	ModelID string
	// HistoryLoaded is set once the turn history fetch has finished.
	HistoryLoaded bool
	// Turns is the loaded, normalized history.
	Turns []llm.Turn
}

// Coordinator is the per-view trigger state machine. Several coordinators for
// the same conversation may share one Registry; at most one of them fires.
type Coordinator struct {
	conversationID string
	registry       *Registry
	intent         IntentCarrier
	invoke         InvokeFunc
	logger         *zap.Logger

	fired atomic.Bool
}

// NewCoordinator creates a coordinator for one view of conversationID.
func NewCoordinator(conversationID string, registry *Registry, intent IntentCarrier, invoke InvokeFunc, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		conversationID: conversationID,
		registry:       registry,
		intent:         intent,
		invoke:         invoke,
		logger:         logger.With(zap.String("conversation_id", conversationID)),
	}
}

// Eligible reports whether s allows an automatic continuation right now.
func (c *Coordinator) Eligible(s State) bool {
	if c.intent == nil || !c.intent.Present() {
		return false
	}
	if c.fired.Load() || c.registry.Triggered(c.conversationID) {
		return false
	}
	if s.ModelID == "" || !s.HistoryLoaded || len(s.Turns) == 0 {
		return false
	}
	return s.Turns[len(s.Turns)-1].Role == llm.RoleUser
}

// Evaluate fires the automatic continuation if s is eligible. The local guard
// and the registry are both set before the invocation is issued, so
// concurrent or repeated evaluations fire at most once. It reports whether
// this call fired; the error is the invocation's.
func (c *Coordinator) Evaluate(ctx context.Context, s State) (bool, error) {
	if !c.Eligible(s) {
		return false, nil
	}

	if !c.fired.CompareAndSwap(false, true) {
		return false, nil
	}
	if !c.registry.MarkTriggered(c.conversationID) {
		return false, nil
	}

	c.logger.Info("auto-continuing new conversation", zap.String("model", s.ModelID))

	err := c.invoke(ctx, llm.Invocation{
		ConversationID:        c.conversationID,
		ModelID:               s.ModelID,
		SkipPersistingNewTurn: true,
	})
	if err != nil {
		c.logger.Error("auto-continuation failed", zap.Error(err))
	}

	c.intent.Clear()
	return true, err
}

// Fired reports whether this coordinator has fired.
func (c *Coordinator) Fired() bool {
	return c.fired.Load()
}
