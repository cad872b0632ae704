// OpenAI adapters. Three API shapes share the OpenAIClient transport:
//   - POST /v1/chat/completions (buffered, function-calling)  openai.go
//   - POST /v1/responses        (streaming)                   openai_stream.go
//   - POST /v1/chat/completions (streaming fallback)          openai_stream.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/diagrammaton/server/pkg/jsonscan"
)

// ErrNoToolCall is returned when the model neither called the tool nor
// produced any recoverable JSON in its text answer.
var ErrNoToolCall = fmt.Errorf("model did not produce structured output")

// defaultMaxTokens bounds completion length when the request doesn't.
const defaultMaxTokens = 3000

// OpenAIClient calls the OpenAI HTTP API with a per-user key.
// Construct one per request; it holds no state beyond the credential.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger

	// FirstByteTimeout guards the streaming paths: if no event arrives
	// within this window the stream is aborted. Zero disables it.
	FirstByteTimeout time.Duration
}

// NewOpenAIClient creates a client against baseURL (the production API or
// a test server) with the user's API key.
func NewOpenAIClient(baseURL, apiKey string, log *slog.Logger) *OpenAIClient {
	return &OpenAIClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		log:        log,
	}
}

// ─── wire types ──────────────────────────────────────────────────────────────

type openaiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

type openaiChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openaiChatMessage `json:"messages"`
	Tools          []openaiTool        `json:"tools,omitempty"`
	ToolChoice     string              `json:"tool_choice,omitempty"`
	ResponseFormat map[string]any      `json:"response_format,omitempty"`
	Stream         bool                `json:"stream,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
}

type openaiToolCall struct {
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiChatResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Message      struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

type openaiModelList struct {
	Data []struct {
		ID      string `json:"id"`
		Created int64  `json:"created"`
	} `json:"data"`
}

// ─── buffered function-calling path ─────────────────────────────────────────

// Generate performs a non-streaming chat completion with the output schema
// bound as callable tools. If the model called a tool, the arguments string
// is the candidate JSON; if it answered in plain text instead, the first
// balanced JSON object embedded in the text is used. ErrNoToolCall is
// returned only when neither yields anything.
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	tools := make([]openaiTool, len(req.Tools))
	for i, t := range req.Tools {
		tools[i] = openaiTool{Type: "function", Function: t}
	}

	payload := openaiChatRequest{
		Model:      req.Model,
		Messages:   toOpenAIMessages(req.Messages),
		Tools:      tools,
		ToolChoice: "auto",
		MaxTokens:  maxTokensOr(req.MaxTokens),
	}

	c.log.Info("openai: chat completion begin", "model", req.Model, "path", "function_call")

	respBody, err := c.post(ctx, "/v1/chat/completions", payload)
	if err != nil {
		return nil, err
	}
	defer respBody.Close()

	var resp openaiChatResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, fmt.Errorf("openai: decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty choices")
	}

	choice := resp.Choices[0]
	if len(choice.Message.ToolCalls) > 0 {
		c.log.Info("openai: chat completion done", "finishReason", choice.FinishReason, "toolCall", true)
		return &Result{Raw: choice.Message.ToolCalls[0].Function.Arguments, FromToolCall: true}, nil
	}

	// The model answered in prose; salvage any embedded JSON object.
	if slice := jsonscan.FirstObject(choice.Message.Content); slice != "" {
		c.log.Info("openai: chat completion done", "finishReason", choice.FinishReason, "toolCall", false)
		return &Result{Raw: slice, FromToolCall: false}, nil
	}

	return nil, fmt.Errorf("finish_reason %q: %w", choice.FinishReason, ErrNoToolCall)
}

// ListModels returns available model ids, newest first.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("openai: build models request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: list models: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("openai", resp.StatusCode, string(body))
	}

	var list openaiModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("openai: decode model list: %w", err)
	}

	sort.SliceStable(list.Data, func(i, j int) bool {
		return list.Data[i].Created > list.Data[j].Created
	})
	ids := make([]string, len(list.Data))
	for i, m := range list.Data {
		ids[i] = m.ID
	}
	return ids, nil
}

// ─── helpers ─────────────────────────────────────────────────────────────────

func toOpenAIMessages(msgs []Message) []openaiChatMessage {
	out := make([]openaiChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = openaiChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

func maxTokensOr(v int) int {
	if v > 0 {
		return v
	}
	return defaultMaxTokens
}

// post sends a JSON POST and returns the response body. Non-2xx statuses
// are converted to errors (preserving the 401 auth signal). Caller closes
// the returned body.
func (c *OpenAIClient) post(ctx context.Context, path string, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal %s: %w", path, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request %s: %w", path, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close() //nolint:errcheck
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, statusError("openai", resp.StatusCode, string(data))
	}
	return resp.Body, nil
}
