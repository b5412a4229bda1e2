package llm

import (
	"bytes"
	"encoding/json"
	"time"
)

// Turn is one normalized message in a conversation.
type Turn struct {
	ID             string    `json:"id,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Role           Role      `json:"role"`
	Parts          Parts     `json:"parts"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}

// NewUserTurn builds an unsaved user turn holding a single text part.
func NewUserTurn(text string) Turn {
	return Turn{Role: RoleUser, Parts: Parts{TextPart{Text: text}}}
}

// Record is the raw persisted form of a turn. Content holds the serialized
// part list as written; it is never rewritten after creation.
type Record struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	ModelID        string    `json:"model,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// TurnList accepts either a single turn object or a list of turns on decode.
type TurnList []Turn

// UnmarshalJSON decodes a turn or an array of turns.
func (l *TurnList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	if trimmed[0] == '[' {
		var turns []Turn
		if err := json.Unmarshal(trimmed, &turns); err != nil {
			return err
		}
		*l = turns
		return nil
	}

	var t Turn
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return err
	}
	*l = TurnList{t}
	return nil
}
