package llm

import "strings"

// Role identifies who authored a turn or message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ParseRole maps a stored role ("user", "USER", "assistant", ...) onto a turn
// role. Only user and assistant are valid for turns.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAssistant:
		return RoleAssistant, true
	default:
		return "", false
	}
}

// Message is one entry of the backend-neutral message list sent to a model.
type Message struct {
	Role  Role  `json:"role"`
	Parts Parts `json:"parts"`
}

// Text returns the message's text parts joined with a newline.
func (m Message) Text() string {
	return m.Parts.Text()
}
