// Package client is a typed HTTP client for the parley API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/parley/pkg/llm"
)

// OwnerHeader identifies the calling user.
const OwnerHeader = "X-Owner-ID"

// StatusError is a non-success API response.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// Client calls one parley server on behalf of one owner.
type Client struct {
	baseURL    string
	owner      string
	httpClient *http.Client
}

// New creates a Client. A nil httpClient uses http.DefaultClient; streaming
// calls should not be given a client with a short Timeout.
func New(baseURL, owner string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		owner:      owner,
		httpClient: httpClient,
	}
}

// Models returns the server's model catalog.
func (c *Client) Models(ctx context.Context) (llm.ModelCatalog, error) {
	var catalog llm.ModelCatalog
	err := c.call(ctx, http.MethodGet, "/api/models", nil, &catalog)
	return catalog, err
}

// CreateConversation starts a conversation with its first message.
func (c *Client) CreateConversation(ctx context.Context, content, modelID string) (*llm.Conversation, error) {
	var conv llm.Conversation
	err := c.call(ctx, http.MethodPost, "/api/conversations",
		llm.CreateConversationRequest{Content: content, ModelID: modelID}, &conv)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// Conversations lists the owner's conversations, newest first.
func (c *Client) Conversations(ctx context.Context) ([]*llm.Conversation, error) {
	var convs []*llm.Conversation
	err := c.call(ctx, http.MethodGet, "/api/conversations", nil, &convs)
	return convs, err
}

// Conversation fetches a conversation with its normalized turns.
func (c *Client) Conversation(ctx context.Context, id string) (*llm.ConversationDetail, error) {
	var detail llm.ConversationDetail
	err := c.call(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &detail)
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

// DeleteConversation removes a conversation.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/api/conversations/"+url.PathEscape(id), nil, nil)
}

// Import pushes exported conversations to the server.
func (c *Client) Import(ctx context.Context, exports []llm.ConversationExport) (llm.ImportResult, error) {
	var result llm.ImportResult
	err := c.call(ctx, http.MethodPost, "/api/import", exports, &result)
	return result, err
}

// Stream issues one streaming invocation. Cancelling ctx or closing the
// returned stream stops it.
func (c *Client) Stream(ctx context.Context, inv llm.Invocation) (*EventStream, error) {
	ctx, cancel := context.WithCancel(ctx)

	resp, err := c.do(ctx, http.MethodPost, "/api/chat", inv)
	if err != nil {
		cancel()
		return nil, err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &EventStream{
		id:      resp.Header.Get("X-Stream-ID"),
		body:    resp.Body,
		scanner: scanner,
		cancel:  cancel,
	}, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}
	return nil
}

// do sends the request and returns the response if it succeeded.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("could not marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.owner != "" {
		req.Header.Set(OwnerHeader, c.owner)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := &StatusError{StatusCode: resp.StatusCode}
		var er llm.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error != "" {
			se.Message = er.Error
		} else {
			se.Message = strings.TrimSpace(string(raw))
		}
		return nil, se
	}
	return resp, nil
}
