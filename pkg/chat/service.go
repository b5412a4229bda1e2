// Package chat wires the message normalizer, turn assembler, stream
// orchestrator and persistence recorder into one conversation service.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/history"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/recorder"
	"github.com/papercomputeco/parley/pkg/storage"
)

// TitleLength is the number of characters of the first message kept as the
// conversation title.
const TitleLength = 50

var (
	// ErrEmptyContent is returned when a conversation is started without text.
	ErrEmptyContent = errors.New("content is required")

	// ErrModelRequired is returned when an invocation names no model.
	ErrModelRequired = errors.New("model is required")

	// ErrNothingToAnswer is returned when an invocation assembles no messages.
	ErrNothingToAnswer = errors.New("no messages to send to the model")
)

// Config holds the service settings applied to every invocation.
type Config struct {
	SystemPrompt string
	Options      *llm.Options
}

// Service is the conversation service.
type Service struct {
	store    storage.Driver
	orch     *orchestrator.Orchestrator
	recorder *recorder.Recorder
	logger   *zap.Logger

	pending sync.WaitGroup
	now     func() time.Time
}

// NewService creates a Service persisting into store and streaming from backend.
func NewService(store storage.Driver, backend orchestrator.Backend, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		orch:     orchestrator.New(backend, cfg.SystemPrompt, cfg.Options, logger),
		recorder: recorder.New(store, logger),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Title derives a conversation title from its first message.
func Title(content string) string {
	content = strings.TrimSpace(content)
	if utf8.RuneCountInString(content) <= TitleLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:TitleLength]) + "..."
}

// CreateConversation stores a new conversation for ownerID together with its
// first user turn.
func (s *Service) CreateConversation(ctx context.Context, ownerID, content, modelID string) (*llm.Conversation, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	encoded, err := llm.EncodeParts(llm.Parts{llm.TextPart{Text: content}})
	if err != nil {
		return nil, err
	}

	now := s.now()
	conv := &llm.Conversation{
		ID:        uuid.NewString(),
		Title:     Title(content),
		ModelID:   modelID,
		OwnerID:   ownerID,
		CreatedAt: now,
	}
	first := llm.Record{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           string(llm.RoleUser),
		Content:        encoded,
		ModelID:        modelID,
		CreatedAt:      now,
	}

	if err := s.store.Create(ctx, conv, first); err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Info("conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("model", modelID),
	)
	return conv, nil
}

// Conversations lists the owner's conversations, newest first.
func (s *Service) Conversations(ctx context.Context, ownerID string) ([]*llm.Conversation, error) {
	return s.store.List(ctx, ownerID)
}

// Owned fetches a conversation that belongs to ownerID. A conversation owned
// by anyone else is reported as not found.
func (s *Service) Owned(ctx context.Context, ownerID, id string) (*llm.Conversation, error) {
	conv, err := s.store.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != ownerID {
		return nil, storage.ErrNotFound{ID: id}
	}
	return conv, nil
}

// Conversation returns the owned conversation with its normalized history.
func (s *Service) Conversation(ctx context.Context, ownerID, id string) (*llm.ConversationDetail, error) {
	conv, err := s.Owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	turns, err := s.History(ctx, id)
	if err != nil {
		return nil, err
	}
	return &llm.ConversationDetail{Conversation: conv, Turns: turns}, nil
}

// DeleteConversation removes an owned conversation and its turns.
func (s *Service) DeleteConversation(ctx context.Context, ownerID, id string) error {
	if _, err := s.Owned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("conversation deleted", zap.String("conversation_id", id))
	return nil
}

// History returns the conversation's stored turns, normalized. Records that
// carry no usable content are left out, so the result may be empty.
func (s *Service) History(ctx context.Context, conversationID string) ([]llm.Turn, error) {
	records, err := s.store.Turns(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading turns: %w", err)
	}

	turns := history.NormalizeAll(records, s.logger)
	if turns == nil {
		turns = []llm.Turn{}
	}
	return turns, nil
}

// Stream opens one streaming model invocation. The stored history of
// inv.ConversationID, when set, precedes inv.Turns. The exchange is recorded
// once it completes or is stopped; writes happen in the background, see Wait.
func (s *Service) Stream(ctx context.Context, inv llm.Invocation) (*Exchange, error) {
	if inv.ModelID == "" {
		return nil, ErrModelRequired
	}

	var stored []llm.Turn
	if inv.ConversationID != "" {
		if _, err := s.store.Fetch(ctx, inv.ConversationID); err != nil {
			return nil, err
		}

		turns, err := s.History(ctx, inv.ConversationID)
		if err != nil {
			return nil, err
		}
		stored = turns
	}

	mode := history.ModeSubmit
	if inv.Regenerate {
		mode = history.ModeRegenerate
	}

	messages := history.Assemble(stored, inv.Turns, mode, s.logger)
	if len(messages) == 0 {
		return nil, ErrNothingToAnswer
	}

	ex := &Exchange{
		service: s,
		acc:     recorder.NewAccumulator(),
		persist: inv.ConversationID != "",
		outcome: recorder.Outcome{
			ConversationID:        inv.ConversationID,
			ModelID:               inv.ModelID,
			NewTurns:              inv.Turns,
			SkipPersistingNewTurn: inv.SkipPersistingNewTurn || inv.Regenerate,
			StartedAt:             s.now(),
		},
	}
	ex.stream = s.orch.Open(ctx, inv.ModelID, messages)

	s.logger.Debug("exchange opened",
		zap.String("stream_id", ex.stream.ID()),
		zap.String("conversation_id", inv.ConversationID),
		zap.Bool("regenerate", inv.Regenerate),
	)
	return ex, nil
}

// Wait blocks until every background write has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// record persists o in the background, detached from any request context.
func (s *Service) record(o recorder.Outcome) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		s.recorder.Record(context.Background(), o)
	}()
}
