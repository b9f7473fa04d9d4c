// Package hf is the Hugging Face Router collaborator: a stateless chat
// completion client with bounded timeout, retries, and exponential backoff.
// Retry policy lives entirely here; the task runner only sees success or
// failure.
package hf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/devfedhq/devboard/internal/config"
	"github.com/devfedhq/devboard/pkg/models"
)

// systemPresets maps task kinds to system prompts.
var systemPresets = map[string]string{
	models.TaskKindBrainstorm: "You are DevBot. Assist with strategic planning and brainstorming. " +
		"Think step by step, propose improvements, and generate ideas.",
	models.TaskKindStructure: "You are DevBot. Summarize the repository structure and analyze " +
		"its architecture, highlighting key modules and responsibilities.",
	models.TaskKindFile: "You are DevBot. Review the given file in detail, explain its logic, " +
		"and suggest improvements or refactors where useful.",
}

// Client implements models.CompletionProvider against the HF Router API.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	retries   int
	backoff   time.Duration
	client    *http.Client
}

// NewClient creates a new HF Router client.
func NewClient(cfg config.HFConfig) *Client {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 3
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		retries:   retries,
		backoff:   backoff,
		client:    &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) Name() string { return "huggingface" }

// Complete builds the chat payload for the request's kind and runs it with
// retry and backoff. Memory entries are appended oldest first, before the
// caller-supplied context.
func (c *Client) Complete(ctx context.Context, req models.CompletionRequest) (string, error) {
	preset, ok := systemPresets[req.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPreset, req.Kind)
	}

	messages := []chatMessage{{Role: "system", Content: preset}}
	if req.RepoContext != "" {
		messages = append(messages, chatMessage{Role: "system", Content: "Repo Context:\n" + req.RepoContext})
	}
	for _, m := range req.Memory {
		messages = append(messages, chatMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Context})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	payload := chatRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	result, err := c.post(ctx, payload)
	if err != nil {
		return "", err
	}
	return extractText(result)
}

func (c *Client) post(ctx context.Context, payload chatRequest) (*chatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * (1 << (attempt - 1))
			slog.Debug("completion retry", "attempt", attempt+1, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, classifyError(ctx.Err())
			}
		}

		resp, err := c.doOnce(ctx, body)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) {
			return nil, classifyError(err)
		}
		slog.Warn("completion attempt failed", "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("%w: %d attempts: %v", ErrUnavailable, c.retries, lastErr)
}

func (c *Client) doOnce(ctx context.Context, body []byte) (*chatResponse, error) {
	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, snippet)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &parsed, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// extractText normalizes the completion response shapes the router is known
// to emit into a plain string.
func extractText(r *chatResponse) (string, error) {
	if len(r.Choices) > 0 {
		choice := r.Choices[0]
		if choice.Message != nil && choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
		if choice.Delta != nil && choice.Delta.Content != "" {
			return choice.Delta.Content, nil
		}
		if choice.Text != "" {
			return choice.Text, nil
		}
	}
	if r.GeneratedText != "" {
		return r.GeneratedText, nil
	}
	return "", ErrInvalidResponse
}

// --- wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatChoice struct {
	Message *chatMessage `json:"message,omitempty"`
	Delta   *chatMessage `json:"delta,omitempty"`
	Text    string       `json:"text,omitempty"`
}

type chatResponse struct {
	Choices       []chatChoice `json:"choices"`
	GeneratedText string       `json:"generated_text,omitempty"`
}

var _ models.CompletionProvider = (*Client)(nil)
