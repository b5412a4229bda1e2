package llm

// Options contains model inference parameters. Nil fields are left to the
// backend's defaults.
type Options struct {
	// Sampling parameters
	Temperature *float64 `json:"temperature,omitempty" toml:"temperature"` // Creativity (0.0-2.0)
	TopP        *float64 `json:"top_p,omitempty" toml:"top_p"`             // Nucleus sampling threshold

	// Length parameters
	MaxTokens *int `json:"max_tokens,omitempty" toml:"max_tokens"` // Max tokens to generate

	// Stop sequences
	Stop []string `json:"stop,omitempty" toml:"stop"` // Stop generation at these sequences
}
