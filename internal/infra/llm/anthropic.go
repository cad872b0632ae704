package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 4096
	// thinkingBudgetCap bounds the extended-thinking token budget; the
	// API requires it to stay below max_tokens.
	thinkingBudgetCap = 1024
)

// AnthropicClient calls the Anthropic messages API with a per-user key.
// Like OpenAIClient it is constructed per request and holds only the
// credential.
type AnthropicClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	FirstByteTimeout time.Duration
}

func NewAnthropicClient(baseURL, apiKey string, log *slog.Logger) *AnthropicClient {
	return &AnthropicClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log,
	}
}

// ─── wire types ──────────────────────────────────────────────────────────────

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
	Thinking  map[string]any     `json:"thinking,omitempty"`
}

// anthropicStreamEvent is the union of the stream event fields we use.
// Event kinds arrive both as the SSE event name and as the type field.
type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	ContentBlock *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content_block"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ─── streaming path ─────────────────────────────────────────────────────────

// GenerateStream dispatches a messages-API stream. System messages are
// folded into the request's system field since the messages array only
// accepts user and assistant turns. Thinking deltas are not forwarded;
// only text deltas reach the caller.
func (c *AnthropicClient) GenerateStream(ctx context.Context, req GenerateRequest) (*TokenStream, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	payload := anthropicRequest{
		Model:     req.Model,
		MaxTokens: maxTokens,
		Stream:    true,
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			if payload.System != "" {
				payload.System += "\n\n"
			}
			payload.System += m.Content
		case RoleUser, RoleAssistant:
			payload.Messages = append(payload.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
		}
	}
	if req.Thinking {
		payload.Thinking = map[string]any{
			"type":          "enabled",
			"budget_tokens": thinkingBudget(maxTokens),
		}
	}

	c.log.Info("anthropic: stream begin", "model", req.Model, "thinking", req.Thinking)

	ctx, cancel := context.WithCancel(ctx)
	body, err := c.post(ctx, "/v1/messages", payload)
	if err != nil {
		cancel()
		return nil, err
	}

	tokens := make(chan string)
	ts, fail := newTokenStream(tokens)

	go func() {
		defer close(tokens)
		defer cancel()
		defer body.Close() //nolint:errcheck

		watchdog, timedOut := newWatchdog(c.log, "anthropic", c.firstByteTimeout(), cancel)
		defer watchdog.Stop()

		reader := newSSEReader(body)
		firstByte := false

		emit := func(text string) {
			if text == "" {
				return
			}
			if !firstByte {
				firstByte = true
				watchdog.Stop()
				c.log.Info("anthropic: stream first byte", "model", req.Model)
			}
			select {
			case tokens <- text:
			case <-ctx.Done():
			}
		}

		for {
			rawEv, readErr := reader.next()
			if readErr != nil {
				if readErr != io.EOF {
					fail(streamReadError("anthropic", readErr, timedOut))
					return
				}
				break
			}
			if !firstByte {
				watchdog.Reset(c.firstByteTimeout())
			}

			var ev anthropicStreamEvent
			if err := json.Unmarshal([]byte(rawEv.data), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "error":
				msg := "messages API failure"
				if ev.Error != nil {
					msg = ev.Error.Message
				}
				fail(fmt.Errorf("anthropic: error event: %s", msg))
				return
			case "content_block_start":
				// Text blocks usually open empty, but a non-empty
				// opening still counts as first output.
				if ev.ContentBlock != nil && ev.ContentBlock.Type == "text" {
					emit(ev.ContentBlock.Text)
				}
			case "content_block_delta":
				if ev.Delta != nil && ev.Delta.Type == "text_delta" {
					emit(ev.Delta.Text)
				}
			case "message_stop":
				// Normal end of stream; the connection closes next.
			}
		}

		if !firstByte && *timedOut {
			fail(ErrWatchdog)
			return
		}
		c.log.Info("anthropic: stream closed", "model", req.Model, "firstByte", firstByte)
	}()

	return ts, nil
}

// ListModels returns available claude model ids, in the API's order
// (newest first).
func (c *AnthropicClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("anthropic: build models request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: list models: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("anthropic", resp.StatusCode, string(body))
	}

	var list anthropicModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("anthropic: decode model list: %w", err)
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if strings.HasPrefix(m.ID, "claude-") {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

// thinkingBudget keeps the budget strictly below max_tokens as the API
// requires.
func thinkingBudget(maxTokens int) int {
	if maxTokens-1 < thinkingBudgetCap {
		return maxTokens - 1
	}
	return thinkingBudgetCap
}

func (c *AnthropicClient) firstByteTimeout() time.Duration {
	return firstByteTimeoutOr(c.FirstByteTimeout)
}

func (c *AnthropicClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}

func (c *AnthropicClient) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal %s: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: build request %s: %w", path, err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("anthropic", resp.StatusCode, string(data))
	}
	return resp.Body, nil
}
