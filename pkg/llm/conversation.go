package llm

import "time"

// Conversation is a titled thread of turns owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ModelID   string    `json:"model"`
	OwnerID   string    `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationDetail is a conversation together with its normalized turns.
type ConversationDetail struct {
	Conversation *Conversation `json:"conversation"`
	Turns        []Turn        `json:"turns"`
}

// CreateConversationRequest starts a conversation with its first user message.
type CreateConversationRequest struct {
	Content string `json:"content"`
	ModelID string `json:"model"`
}

// ModelCatalog lists the model identifiers a client may select.
type ModelCatalog struct {
	Models []string `json:"models"`
}

// ConversationExport is a conversation with its raw stored records, as moved
// between stores by push.
type ConversationExport struct {
	Conversation *Conversation `json:"conversation"`
	Records      []Record      `json:"records"`
}

// ImportResult counts what an import added.
type ImportResult struct {
	NewConversations int `json:"newConversations"`
	New              int `json:"new"`
	Duplicate        int `json:"duplicate"`
	Errors           int `json:"errors"`
}
