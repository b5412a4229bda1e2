package llm

// ChatRequest is a backend-neutral model request.
type ChatRequest struct {
	Model    string    `json:"model"`            // Model identifier as understood by the backend
	System   string    `json:"system,omitempty"` // Fixed system instruction
	Messages []Message `json:"messages"`         // Assembled conversation history

	// Generation options
	Options *Options `json:"options,omitempty"`
}

// Invocation is one streaming submission to the chat pipeline.
type Invocation struct {
	ConversationID string   `json:"conversationId,omitempty"`
	Turns          TurnList `json:"turns"`
	ModelID        string   `json:"model"`

	// SkipPersistingNewTurn is set when the history already contains the
	// user turn being answered.
	SkipPersistingNewTurn bool `json:"skipPersistingNewTurn,omitempty"`

	// Regenerate discards the most recent assistant turn before invoking.
	Regenerate bool `json:"regenerate,omitempty"`
}
