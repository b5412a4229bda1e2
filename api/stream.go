package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/chat"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/orchestrator"
	"github.com/papercomputeco/parley/pkg/storage"
)

// handleChat streams one invocation back as NDJSON, one event per line.
// A failed write means the client went away and stops the exchange.
func (s *Server) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var inv llm.Invocation
	if err := json.Unmarshal(c.Body(), &inv); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	s.logger.Debug("received chat request",
		zap.String("conversation_id", inv.ConversationID),
		zap.String("model", inv.ModelID),
		zap.Int("new_turns", len(inv.Turns)),
		zap.Bool("skip_persisting_new_turn", inv.SkipPersistingNewTurn),
		zap.Bool("regenerate", inv.Regenerate),
	)

	if inv.ConversationID != "" {
		_, err := s.chat.Owned(c.UserContext(), owner(c), inv.ConversationID)
		if storage.IsNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
		}
		if err != nil {
			s.logger.Error("failed to load conversation", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
		}
	}

	// The body is written after the handler returns, so the exchange cannot
	// live on the request context.
	ctx, cancel := context.WithCancel(context.Background())

	ex, err := s.chat.Stream(ctx, inv)
	switch {
	case errors.Is(err, chat.ErrModelRequired), errors.Is(err, chat.ErrNothingToAnswer):
		cancel()
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	case storage.IsNotFound(err):
		cancel()
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "conversation not found"})
	case err != nil:
		cancel()
		s.logger.Error("failed to open exchange", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
	}

	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Transfer-Encoding", "chunked")
	c.Set("X-Stream-ID", ex.ID())

	logger := s.logger.With(zap.String("stream_id", ex.ID()))
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		enc := json.NewEncoder(w)
		count := 0
		for {
			ev, err := ex.Recv()
			if errors.Is(err, io.EOF) || errors.Is(err, orchestrator.ErrStopped) {
				break
			}
			if err != nil {
				logger.Error("exchange failed", zap.Error(err))
				break
			}

			if err := writeEvent(w, enc, ev); err != nil {
				logger.Info("client disconnected, stopping exchange",
					zap.Int("events_sent", count),
					zap.Error(err),
				)
				ex.Stop()
				return
			}
			count++
		}

		logger.Debug("streaming complete",
			zap.Int("events_sent", count),
			zap.Duration("duration", time.Since(startTime)),
		)
	}))

	return nil
}

func writeEvent(w *bufio.Writer, enc *json.Encoder, ev llm.Event) error {
	if err := enc.Encode(ev); err != nil {
		return err
	}
	return w.Flush()
}
