// Package openai streams chat completions from any OpenAI compatible
// endpoint through github.com/sashabaranov/go-openai.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Backend talks to the chat completions endpoint.
type Backend struct {
	client *goopenai.Client
	logger *zap.Logger
}

// New creates a Backend. An empty baseURL keeps the library default.
func New(apiKey, baseURL string, logger *zap.Logger) (*Backend, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	config := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Backend{client: goopenai.NewClientWithConfig(config), logger: logger}, nil
}

// Stream opens a streaming chat completion.
func (b *Backend) Stream(ctx context.Context, req *llm.ChatRequest) (llm.EventReader, error) {
	stream, err := b.client.CreateChatCompletionStream(ctx, toRequest(req))
	if err != nil {
		return nil, fmt.Errorf("openai streaming request: %w", err)
	}

	b.logger.Debug("openai stream opened",
		zap.String("model", req.Model),
		zap.Int("message_count", len(req.Messages)),
	)
	return &reader{stream: stream, logger: b.logger}, nil
}

func toRequest(req *llm.ChatRequest) goopenai.ChatCompletionRequest {
	out := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Stream:   true,
		Messages: make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1),
	}

	if req.System != "" {
		out.Messages = append(out.Messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		role := goopenai.ChatMessageRoleUser
		if m.Role == llm.RoleAssistant {
			role = goopenai.ChatMessageRoleAssistant
		}
		out.Messages = append(out.Messages, goopenai.ChatCompletionMessage{
			Role:    role,
			Content: m.Text(),
		})
	}

	if o := req.Options; o != nil {
		if o.Temperature != nil {
			out.Temperature = float32(*o.Temperature)
		}
		if o.TopP != nil {
			out.TopP = float32(*o.TopP)
		}
		if o.MaxTokens != nil {
			out.MaxTokens = *o.MaxTokens
		}
		out.Stop = o.Stop
	}
	return out
}

type reader struct {
	stream *goopenai.ChatCompletionStream
	logger *zap.Logger

	queue  []llm.Event
	chunks int
}

func (r *reader) Recv() (llm.Event, error) {
	for len(r.queue) == 0 {
		resp, err := r.stream.Recv()
		if errors.Is(err, io.EOF) {
			r.logger.Debug("openai stream completed", zap.Int("chunks_received", r.chunks))
			return llm.Event{}, io.EOF
		}
		if err != nil {
			return llm.Event{}, fmt.Errorf("openai stream receive: %w", err)
		}
		r.chunks++

		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta
		if delta.ReasoningContent != "" {
			r.queue = append(r.queue, llm.ReasoningDelta(delta.ReasoningContent))
		}
		if delta.Content != "" {
			r.queue = append(r.queue, llm.TextDelta(delta.Content))
		}
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, nil
}

func (r *reader) Close() error {
	return r.stream.Close()
}
