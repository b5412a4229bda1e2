// Package chatview is the client side of one conversation: it loads the
// history and model catalog, renders streamed deltas in arrival order, and
// lets the Trigger Coordinator continue a freshly created conversation.
package chatview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/parley/pkg/client"
	"github.com/papercomputeco/parley/pkg/history"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/recorder"
	"github.com/papercomputeco/parley/pkg/trigger"
)

// EmptyStateText is shown for a conversation without renderable turns.
const EmptyStateText = "Start a conversation..."

var (
	// ErrStreaming is returned when a submission arrives while a response
	// is still streaming.
	ErrStreaming = errors.New("a response is already streaming")

	// ErrNotLoaded is returned when the view is used before Load.
	ErrNotLoaded = errors.New("conversation view is not loaded")

	// ErrUnknownModel is returned when selecting a model outside the catalog.
	ErrUnknownModel = errors.New("model is not in the catalog")

	// ErrNothingToRetry is returned by Retry without a user turn to answer.
	ErrNothingToRetry = errors.New("nothing to regenerate")
)

// API is the part of the server the view talks to.
type API interface {
	Models(ctx context.Context) (llm.ModelCatalog, error)
	Conversation(ctx context.Context, id string) (*llm.ConversationDetail, error)
	Stream(ctx context.Context, inv llm.Invocation) (llm.EventReader, error)
}

type clientAPI struct {
	*client.Client
}

func (c clientAPI) Stream(ctx context.Context, inv llm.Invocation) (llm.EventReader, error) {
	s, err := c.Client.Stream(ctx, inv)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ClientAPI adapts a client.Client to API.
func ClientAPI(c *client.Client) API {
	return clientAPI{c}
}

// Renderer draws the conversation. Calls for one stream arrive in order from
// a single goroutine.
type Renderer interface {
	// Empty draws the empty state.
	Empty()
	// Turn draws one complete turn.
	Turn(t llm.Turn)
	// Delta draws one streamed event.
	Delta(ev llm.Event)
}

// Options configures automatic continuation. Both fields are optional.
type Options struct {
	Registry *trigger.Registry
	Intent   trigger.IntentCarrier
}

// View is the state of one conversation on the client.
type View struct {
	conversationID string
	api            API
	renderer       Renderer
	coordinator    *trigger.Coordinator
	logger         *zap.Logger

	mu      sync.Mutex
	loaded  bool
	title   string
	turns   []llm.Turn
	catalog []string
	model   string
	active  *activeStream

	// unsent is the last user turn when its exchange failed. The server
	// records nothing for a failed exchange, so Retry has to send it again.
	unsent *llm.Turn
}

type activeStream struct {
	turn   *llm.Turn
	reader llm.EventReader
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

func (a *activeStream) stop() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return false
	}
	a.stopped = true
	a.cancel()
	return true
}

func (a *activeStream) wasStopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.stopped
}

// New creates a View for conversationID.
func New(conversationID string, api API, renderer Renderer, opts Options, logger *zap.Logger) *View {
	v := &View{
		conversationID: conversationID,
		api:            api,
		renderer:       renderer,
		logger:         logger.With(zap.String("conversation_id", conversationID)),
	}
	if opts.Registry != nil {
		v.coordinator = trigger.NewCoordinator(conversationID, opts.Registry, opts.Intent, v.invoke, logger)
	}
	return v
}

// Load fetches the history and the model catalog concurrently, renders the
// history and then gives the Trigger Coordinator its chance to continue.
func (v *View) Load(ctx context.Context) error {
	var (
		detail  *llm.ConversationDetail
		catalog llm.ModelCatalog
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := v.api.Conversation(gctx, v.conversationID)
		if err != nil {
			return fmt.Errorf("loading conversation: %w", err)
		}
		detail = d
		return nil
	})
	g.Go(func() error {
		c, err := v.api.Models(gctx)
		if err != nil {
			return fmt.Errorf("loading model catalog: %w", err)
		}
		catalog = c
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	v.mu.Lock()
	v.loaded = true
	v.turns = slices.Clone(detail.Turns)
	v.catalog = slices.Clone(catalog.Models)
	if detail.Conversation != nil {
		v.title = detail.Conversation.Title
	}
	v.model = resolveModel(detail.Conversation, v.catalog)
	state := trigger.State{ModelID: v.model, HistoryLoaded: true, Turns: slices.Clone(v.turns)}
	turns := state.Turns
	v.mu.Unlock()

	if len(turns) == 0 {
		v.renderer.Empty()
	}
	for _, t := range turns {
		v.renderer.Turn(t)
	}

	if v.coordinator == nil {
		return nil
	}
	_, err := v.coordinator.Evaluate(ctx, state)
	return err
}

// resolveModel picks the conversation's model, else the first catalog entry.
func resolveModel(conv *llm.Conversation, catalog []string) string {
	if conv != nil && conv.ModelID != "" {
		return conv.ModelID
	}
	if len(catalog) > 0 {
		return catalog[0]
	}
	return ""
}

// Title is the conversation title.
func (v *View) Title() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.title
}

// Model is the selected model.
func (v *View) Model() string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.model
}

// Catalog is the loaded model catalog.
func (v *View) Catalog() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.catalog)
}

// SelectModel switches the model used by later submissions.
func (v *View) SelectModel(modelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !slices.Contains(v.catalog, modelID) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, modelID)
	}
	v.model = modelID
	return nil
}

// Turns is the working history, including turns streamed in this session.
func (v *View) Turns() []llm.Turn {
	v.mu.Lock()
	defer v.mu.Unlock()

	return slices.Clone(v.turns)
}

// Streaming reports whether a response is streaming.
func (v *View) Streaming() bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.active != nil
}

// Submit sends text as a new user turn and streams the answer.
func (v *View) Submit(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return errors.New("message is empty")
	}

	turn := llm.NewUserTurn(text)

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ready(); err != nil {
		return err
	}

	// The turn is drawn before any delta of its answer can arrive.
	v.renderer.Turn(turn)

	err := v.startLocked(ctx, llm.Invocation{
		ConversationID: v.conversationID,
		Turns:          llm.TurnList{turn},
		ModelID:        v.model,
	}, &turn)
	if err != nil {
		return err
	}

	// A new message replaces one that never reached storage.
	if v.unsent != nil {
		v.turns = v.turns[:len(v.turns)-1]
		v.unsent = nil
	}
	v.turns = append(v.turns, turn)
	return nil
}

// Retry discards the last answer and streams a new one for the same history.
// After a failed exchange it sends the unanswered user turn again instead.
func (v *View) Retry(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.ready(); err != nil {
		return err
	}

	if turn := v.unsent; turn != nil {
		err := v.startLocked(ctx, llm.Invocation{
			ConversationID: v.conversationID,
			Turns:          llm.TurnList{*turn},
			ModelID:        v.model,
		}, turn)
		if err != nil {
			return err
		}
		v.unsent = nil
		return nil
	}

	kept := history.DropLastAssistant(v.turns)
	if len(kept) == 0 || kept[len(kept)-1].Role != llm.RoleUser {
		return ErrNothingToRetry
	}

	err := v.startLocked(ctx, llm.Invocation{
		ConversationID:        v.conversationID,
		ModelID:               v.model,
		SkipPersistingNewTurn: true,
		Regenerate:            true,
	}, nil)
	if err != nil {
		return err
	}
	v.turns = kept
	return nil
}

// Stop halts the streaming response. Parts completed before the stop are
// kept; the part in progress is discarded. It reports whether a response
// was streaming.
func (v *View) Stop() bool {
	v.mu.Lock()
	active := v.active
	v.mu.Unlock()

	if active == nil {
		return false
	}
	if !active.stop() {
		return false
	}
	<-active.done
	return true
}

// Wait blocks until the streaming response, if any, has finished.
func (v *View) Wait() {
	v.mu.Lock()
	active := v.active
	v.mu.Unlock()

	if active != nil {
		<-active.done
	}
}

// invoke is the coordinator's invocation; the model answers the stored
// history without a new turn.
func (v *View) invoke(ctx context.Context, inv llm.Invocation) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.active != nil {
		return ErrStreaming
	}
	return v.startLocked(ctx, inv, nil)
}

func (v *View) ready() error {
	if !v.loaded {
		return ErrNotLoaded
	}
	if v.active != nil {
		return ErrStreaming
	}
	return nil
}

// startLocked opens the stream and starts consuming it. turn is the new user
// turn the invocation carries, if any. v.mu must be held.
func (v *View) startLocked(ctx context.Context, inv llm.Invocation, turn *llm.Turn) error {
	ctx, cancel := context.WithCancel(ctx)

	reader, err := v.api.Stream(ctx, inv)
	if err != nil {
		cancel()
		return fmt.Errorf("opening stream: %w", err)
	}

	a := &activeStream{turn: turn, reader: reader, cancel: cancel, done: make(chan struct{})}
	v.active = a
	go v.consume(a)
	return nil
}

func (v *View) consume(a *activeStream) {
	defer close(a.done)
	defer a.cancel()
	defer a.reader.Close()

	acc := recorder.NewAccumulator()
	var parts llm.Parts
	completed, failed := false, false

	for {
		ev, err := a.reader.Recv()
		if a.wasStopped() {
			parts = acc.Finalized()
			break
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			v.logger.Warn("stream ended unexpectedly", zap.Error(err))
			v.renderer.Delta(llm.ErrorEvent(err))
			failed = true
			break
		}

		v.renderer.Delta(ev)
		acc.Add(ev)

		if ev.Type == llm.EventError {
			failed = true
		}

		if ev.Type == llm.EventDone {
			parts = acc.Finalize()
			completed = true
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(parts) > 0 {
		v.turns = append(v.turns, llm.Turn{
			ConversationID: v.conversationID,
			Role:           llm.RoleAssistant,
			Parts:          parts,
		})
	}
	v.active = nil
	if failed && !completed && a.turn != nil {
		v.unsent = a.turn
	}

	v.logger.Debug("stream finished",
		zap.Bool("completed", completed),
		zap.Bool("failed", failed),
		zap.Bool("stopped", a.wasStopped()),
		zap.Int("parts", len(parts)),
	)
}
