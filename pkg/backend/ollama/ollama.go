// Package ollama streams chat completions from an Ollama server.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
)

// DefaultURL is the address of a local Ollama server.
const DefaultURL = "http://localhost:11434"

// Backend talks to the Ollama chat endpoint.
type Backend struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a Backend for the Ollama server at baseURL.
func New(baseURL string, logger *zap.Logger) *Backend {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		httpClient: &http.Client{
			// Thinking models can take a long time before the first token.
			Timeout: 5 * time.Minute,
		},
	}
}

// Stream opens a streaming chat request.
func (b *Backend) Stream(ctx context.Context, req *llm.ChatRequest) (llm.EventReader, error) {
	body, err := json.Marshal(toWire(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := b.baseURL + "/api/chat"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	b.logger.Debug("forwarding chat request to ollama",
		zap.String("url", url),
		zap.String("model", req.Model),
		zap.Int("body_size", len(body)),
	)

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return &reader{body: resp.Body, scanner: newScanner(resp.Body), logger: b.logger}, nil
}

func toWire(req *llm.ChatRequest) chatRequest {
	out := chatRequest{
		Model:    req.Model,
		Messages: make([]message, 0, len(req.Messages)+1),
		Stream:   true,
		Options:  options(req.Options),
	}
	if req.System != "" {
		out.Messages = append(out.Messages, message{Role: string(llm.RoleSystem), Content: req.System})
	}

	// Earlier reasoning stays on the client; only text goes back upstream.
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, message{Role: string(m.Role), Content: m.Text()})
	}
	return out
}

func options(o *llm.Options) map[string]any {
	if o == nil {
		return nil
	}

	out := make(map[string]any)
	if o.Temperature != nil {
		out["temperature"] = *o.Temperature
	}
	if o.TopP != nil {
		out["top_p"] = *o.TopP
	}
	if o.MaxTokens != nil {
		out["num_predict"] = *o.MaxTokens
	}
	if len(o.Stop) > 0 {
		out["stop"] = o.Stop
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return s
}

// reader turns NDJSON chunks into events. One chunk may carry both thinking
// and content, so events are queued.
type reader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *zap.Logger

	queue []llm.Event
	done  bool
}

func (r *reader) Recv() (llm.Event, error) {
	for len(r.queue) == 0 {
		if r.done {
			return llm.Event{}, io.EOF
		}
		if err := r.next(); err != nil {
			return llm.Event{}, err
		}
	}

	ev := r.queue[0]
	r.queue = r.queue[1:]
	return ev, nil
}

func (r *reader) next() error {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		return io.ErrUnexpectedEOF
	}

	line := r.scanner.Bytes()
	if len(bytes.TrimSpace(line)) == 0 {
		return nil
	}

	var chunk streamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		r.logger.Warn("failed to parse chunk", zap.Error(err), zap.String("line", string(line)))
		return nil
	}
	if chunk.Error != "" {
		return fmt.Errorf("ollama: %s", chunk.Error)
	}

	if chunk.Message.Thinking != "" {
		r.queue = append(r.queue, llm.ReasoningDelta(chunk.Message.Thinking))
	}
	if chunk.Message.Content != "" {
		r.queue = append(r.queue, llm.TextDelta(chunk.Message.Content))
	}

	if chunk.Done {
		r.done = true
		r.logger.Debug("ollama stream complete",
			zap.String("done_reason", chunk.DoneReason),
			zap.Int("prompt_eval_count", chunk.PromptEvalCount),
			zap.Int("eval_count", chunk.EvalCount),
			zap.Duration("total_duration", time.Duration(chunk.TotalDuration)),
		)
	}
	return nil
}

func (r *reader) Close() error {
	return r.body.Close()
}
