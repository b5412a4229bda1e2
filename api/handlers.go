package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/storage"
)

func (s *Server) handleModels(c *fiber.Ctx) error {
	return c.JSON(s.config.Models)
}

func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	var req llm.CreateConversationRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	if req.ModelID == "" && len(s.config.Models.Models) > 0 {
		req.ModelID = s.config.Models.Models[0]
	}

	conv, err := s.chat.CreateConversation(c.UserContext(), owner(c), req.Content, req.ModelID)
	if errors.Is(err, chat.ErrEmptyContent) {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		s.logger.Error("failed to create conversation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to create conversation"})
	}

	return c.Status(fiber.StatusCreated).JSON(conv)
}

func (s *Server) handleListConversations(c *fiber.Ctx) error {
	convs, err := s.chat.Conversations(c.UserContext(), owner(c))
	if err != nil {
		s.logger.Error("failed to list conversations", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list conversations"})
	}
	return c.JSON(convs)
}

func (s *Server) handleGetConversation(c *fiber.Ctx) error {
	id := c.Params("id")

	detail, err := s.chat.Conversation(c.UserContext(), owner(c), id)
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
	}
	if err != nil {
		s.logger.Error("failed to load conversation", zap.String("conversation_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to load conversation"})
	}
	return c.JSON(detail)
}

func (s *Server) handleDeleteConversation(c *fiber.Ctx) error {
	id := c.Params("id")

	err := s.chat.DeleteConversation(c.UserContext(), owner(c), id)
	if storage.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
	}
	if err != nil {
		s.logger.Error("failed to delete conversation", zap.String("conversation_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to delete conversation"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleImport merges the caller's pushed conversations into the store.
// Records already present are counted as duplicates. Conversations owned by
// someone else, on either side, count as errors and are left alone.
func (s *Server) handleImport(c *fiber.Ctx) error {
	if s.importer == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(llm.ErrorResponse{Error: "this server does not accept pushes"})
	}

	var exports []llm.ConversationExport
	if err := json.Unmarshal(c.Body(), &exports); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	var result llm.ImportResult
	for _, e := range exports {
		if e.Conversation == nil || e.Conversation.ID == "" {
			result.Errors++
			continue
		}
		if e.Conversation.OwnerID != owner(c) {
			s.logger.Warn("refusing to import a conversation of another owner",
				zap.String("conversation_id", e.Conversation.ID),
				zap.String("owner_id", owner(c)),
			)
			result.Errors++
			continue
		}

		isNew, added, err := s.importer.Import(c.UserContext(), e.Conversation, e.Records)
		if err != nil {
			s.logger.Warn("failed to import conversation",
				zap.String("conversation_id", e.Conversation.ID),
				zap.Error(err),
			)
			result.Errors++
			continue
		}

		if isNew {
			result.NewConversations++
		}
		result.New += added
		result.Duplicate += len(e.Records) - added
	}

	s.logger.Info("import complete",
		zap.Int("conversations", len(exports)),
		zap.Int("new", result.New),
		zap.Int("duplicate", result.Duplicate),
		zap.Int("errors", result.Errors),
	)
	return c.JSON(result)
}
