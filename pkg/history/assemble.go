package history

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// Mode selects how Assemble treats the end of the history.
type Mode int

const (
	// ModeSubmit answers the latest turn.
	ModeSubmit Mode = iota
	// ModeRegenerate discards the most recent assistant turn first, so the
	// model answers the same history again.
	ModeRegenerate
)

var errNoParts = errors.New("turn has no content parts")

// Assemble concatenates history and newTurns and converts them into the
// backend-neutral message list. Turns that fail conversion fall back to
// their text parts; turns left empty are dropped and logged. The result never
// contains a message without parts.
func Assemble(history, newTurns []llm.Turn, mode Mode, logger *zap.Logger) []llm.Message {
	all := make([]llm.Turn, 0, len(history)+len(newTurns))
	all = append(all, history...)
	all = append(all, newTurns...)

	if mode == ModeRegenerate {
		all = DropLastAssistant(all)
	}

	messages := make([]llm.Message, 0, len(all))
	for i, turn := range all {
		msg, err := toMessage(turn)
		if err == nil {
			messages = append(messages, msg)
			continue
		}

		fallback, ok := textOnly(turn)
		if !ok {
			logger.Warn("dropping turn that could not be converted",
				zap.Int("index", i),
				zap.String("turn_id", turn.ID),
				zap.Error(err),
			)
			continue
		}

		logger.Warn("converted turn using text fallback",
			zap.Int("index", i),
			zap.String("turn_id", turn.ID),
			zap.Error(err),
		)
		messages = append(messages, fallback)
	}
	return messages
}

// DropLastAssistant returns turns without its final element when that element
// is an assistant turn.
func DropLastAssistant(turns []llm.Turn) []llm.Turn {
	if n := len(turns); n > 0 && turns[n-1].Role == llm.RoleAssistant {
		return turns[:n-1]
	}
	return turns
}

func toMessage(turn llm.Turn) (llm.Message, error) {
	if turn.Role != llm.RoleUser && turn.Role != llm.RoleAssistant {
		return llm.Message{}, fmt.Errorf("unsupported role %q", turn.Role)
	}
	if len(turn.Parts) == 0 {
		return llm.Message{}, errNoParts
	}

	parts := make(llm.Parts, 0, len(turn.Parts))
	for _, part := range turn.Parts {
		switch part.(type) {
		case llm.TextPart, llm.ReasoningPart, llm.StepBoundary:
			parts = append(parts, part)
		default:
			return llm.Message{}, fmt.Errorf("unsupported content part %T", part)
		}
	}

	return llm.Message{Role: turn.Role, Parts: parts}, nil
}

func textOnly(turn llm.Turn) (llm.Message, bool) {
	role := turn.Role
	if role != llm.RoleAssistant {
		role = llm.RoleUser
	}

	text := turn.Parts.Text()
	if text == "" {
		return llm.Message{}, false
	}
	return llm.Message{Role: role, Parts: llm.Parts{llm.TextPart{Text: text}}}, true
}
