// Package agent forwards submitted utterances to an OpenAI-compatible
// chat-completions backend and returns the reply text. It keeps a
// rolling conversation history so follow-up questions have context.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"talkie/log"
)

var (
	// ErrTransient wraps faults worth retrying: network trouble, rate
	// limits, server errors.
	ErrTransient = errors.New("transient agent error")
	// ErrPermanent wraps faults a retry cannot fix: bad credentials,
	// malformed requests.
	ErrPermanent = errors.New("permanent agent error")
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	maxHistory     = 40 // messages, not turns
	systemPrompt   = "You are a concise voice assistant. Replies are read " +
		"aloud, so answer in one or two short sentences without markup."
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client

	mu      sync.Mutex
	history []Message
}

func NewFromEnv() *Client {
	base := os.Getenv("OPENAI_BASE_URL")
	if base == "" {
		base = defaultBaseURL
	}
	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = defaultModel
	}
	return New(base, os.Getenv("OPENAI_API_KEY"), model)
}

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Model() string { return c.model }

// ClearHistory drops the conversation context.
func (c *Client) ClearHistory() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Ask sends one utterance and returns the reply. Cancelling ctx aborts
// the request; the cancelled turn is not recorded in history.
func (c *Client) Ask(ctx context.Context, text string) (string, error) {
	reqID := uuid.NewString()[:8]

	c.mu.Lock()
	messages := make([]Message, 0, len(c.history)+2)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, c.history...)
	messages = append(messages, Message{Role: "user", Content: text})
	c.mu.Unlock()

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}

	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		kind := ErrPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = ErrTransient
		}
		return "", fmt.Errorf("%w: status %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrTransient, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrTransient)
	}
	reply := strings.TrimSpace(out.Choices[0].Message.Content)

	c.mu.Lock()
	c.history = append(c.history,
		Message{Role: "user", Content: text},
		Message{Role: "assistant", Content: reply},
	)
	if len(c.history) > maxHistory {
		c.history = c.history[len(c.history)-maxHistory:]
	}
	c.mu.Unlock()

	log.Infof("agent reply %s in %dms (%d chars)", reqID, time.Since(started).Milliseconds(), len(reply))
	return reply, nil
}
