// Package llm provides the internal representations of conversations, turns,
// content parts and streamed model output shared by every layer of parley.
package llm

// ErrorResponse is the JSON body returned by the API on failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
