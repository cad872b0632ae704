package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ErrWatchdog marks a stream aborted because no data arrived within the
// first-byte window. Guards against providers that accept the connection
// but never emit a token.
var ErrWatchdog = errors.New("no data from provider within watchdog window")

// ─── Responses API streaming ────────────────────────────────────────────────

type responsesInputText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type responsesInputItem struct {
	Type    string               `json:"type"`
	Role    string               `json:"role"`
	Content []responsesInputText `json:"content"`
}

type responsesRequest struct {
	Model     string               `json:"model"`
	Input     []responsesInputItem `json:"input"`
	Text      map[string]any       `json:"text"`
	Reasoning map[string]any       `json:"reasoning,omitempty"`
	Store     bool                 `json:"store"`
	Stream    bool                 `json:"stream"`
}

// responsesEvent is the union of the stream event fields we care about.
type responsesEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
	Part  *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"part"`
	Item     json.RawMessage `json:"item"`
	Message  string          `json:"message"`
	Response *struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Output json.RawMessage `json:"output"`
	} `json:"response"`
}

// StreamResponses dispatches a Responses API stream. Only text deltas are
// forwarded; if the stream completes without ever emitting text, the final
// response's buffered output text is emitted instead. Error events and
// response.failed raise immediately. A single-shot watchdog, reset on
// every event until first output, aborts silent streams.
func (c *OpenAIClient) StreamResponses(ctx context.Context, req GenerateRequest) (*TokenStream, error) {
	payload := responsesRequest{
		Model: req.Model,
		Input: toResponsesInput(req.Messages),
		Text: map[string]any{
			"format": map[string]any{
				"type":   "json_schema",
				"name":   "diagram_response",
				"schema": req.Schema,
			},
			"verbosity": "low",
		},
		Store:  false,
		Stream: true,
	}
	if strings.HasPrefix(req.Model, "gpt-5") {
		effort := "low"
		if req.Thinking {
			effort = "high"
		}
		payload.Reasoning = map[string]any{"effort": effort}
	}

	c.log.Info("openai: responses stream begin", "model", req.Model, "thinking", req.Thinking)

	ctx, cancel := context.WithCancel(ctx)
	body, err := c.post(ctx, "/v1/responses", payload)
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

		watchdog, timedOut := newWatchdog(c.log, "openai", c.firstByteTimeout(), cancel)
		defer watchdog.Stop()

		reader := newSSEReader(body)
		firstByte := false
		var finalText string

		emit := func(text string) {
			if text == "" {
				return
			}
			if !firstByte {
				firstByte = true
				watchdog.Stop()
				c.log.Info("openai: responses first byte", "model", req.Model)
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
					fail(streamReadError("openai", readErr, timedOut))
					return
				}
				break
			}
			if !firstByte {
				watchdog.Reset(c.firstByteTimeout())
			}

			var ev responsesEvent
			if err := json.Unmarshal([]byte(rawEv.data), &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "error":
				fail(fmt.Errorf("openai: responses error event: %s", ev.Message))
				return
			case "response.failed":
				msg := "Responses API failure"
				if ev.Response != nil && ev.Response.Error != nil {
					msg = ev.Response.Error.Message
				}
				fail(fmt.Errorf("openai: responses failed: %s", msg))
				return
			case "response.output_text.delta":
				emit(ev.Delta)
			case "response.content_part.added":
				if !firstByte && ev.Part != nil && ev.Part.Type == "output_text" {
					emit(ev.Part.Text)
				}
			case "response.output_item.added":
				if !firstByte {
					emit(extractOutputText(ev.Item))
				}
			case "response.completed":
				if ev.Response != nil {
					finalText = extractOutputItems(ev.Response.Output)
				}
			}
		}

		// Stream closed without any text: fall back to the buffered
		// final response rather than re-issuing the call.
		if !firstByte {
			if finalText != "" {
				emit(finalText)
			} else if *timedOut {
				fail(ErrWatchdog)
				return
			}
		}
		c.log.Info("openai: responses stream closed", "model", req.Model, "firstByte", firstByte)
	}()

	return ts, nil
}

// ─── chat-completions streaming (fallback path) ─────────────────────────────

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
}

// StreamChat dispatches a chat-completions stream with the schema attached
// as a structured-output response format. This is the conservative,
// widely-available path used when the Responses stream fails.
func (c *OpenAIClient) StreamChat(ctx context.Context, req GenerateRequest) (*TokenStream, error) {
	payload := openaiChatRequest{
		Model:    req.Model,
		Messages: toOpenAIMessages(req.Messages),
		ResponseFormat: map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "diagram_response",
				"schema": req.Schema,
			},
		},
		Stream: true,
	}

	c.log.Info("openai: chat stream begin", "model", req.Model)

	ctx, cancel := context.WithCancel(ctx)
	body, err := c.post(ctx, "/v1/chat/completions", payload)
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

		watchdog, timedOut := newWatchdog(c.log, "openai", c.firstByteTimeout(), cancel)
		defer watchdog.Stop()

		reader := newSSEReader(body)
		firstByte := false

		for {
			ev, readErr := reader.next()
			if readErr != nil {
				if readErr != io.EOF {
					fail(streamReadError("openai", readErr, timedOut))
					return
				}
				break
			}
			if ev.data == "[DONE]" {
				break
			}
			if !firstByte {
				watchdog.Reset(c.firstByteTimeout())
			}

			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(ev.data), &chunk); err != nil || len(chunk.Choices) == 0 {
				continue
			}
			text := chunk.Choices[0].Delta.Content
			if text == "" {
				text = chunk.Choices[0].Text
			}
			if text == "" {
				continue
			}
			if !firstByte {
				firstByte = true
				watchdog.Stop()
				c.log.Info("openai: chat stream first byte", "model", req.Model)
			}
			select {
			case tokens <- text:
			case <-ctx.Done():
				return
			}
		}
		c.log.Info("openai: chat stream closed", "model", req.Model, "firstByte", firstByte)
	}()

	return ts, nil
}

// ─── shared stream plumbing ─────────────────────────────────────────────────

// newTokenStream builds a TokenStream and its fail hook. The terminal
// error is always set before the tokens channel closes, so readers that
// drain the channel first observe it safely.
func newTokenStream(tokens chan string) (*TokenStream, func(error)) {
	var streamErr error
	ts := &TokenStream{Tokens: tokens, Err: func() error { return streamErr }}
	return ts, func(err error) { streamErr = err }
}

func (c *OpenAIClient) firstByteTimeout() time.Duration {
	return firstByteTimeoutOr(c.FirstByteTimeout)
}

func firstByteTimeoutOr(v time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return 10 * time.Second
}

// newWatchdog arms the first-byte timer. Firing cancels the request
// context, which surfaces as a read error tagged ErrWatchdog.
func newWatchdog(log *slog.Logger, provider string, timeout time.Duration, cancel context.CancelFunc) (*time.Timer, *bool) {
	timedOut := new(bool)
	timer := time.AfterFunc(timeout, func() {
		*timedOut = true
		log.Error("stream watchdog fired", "provider", provider, "timeout", timeout)
		cancel()
	})
	return timer, timedOut
}

func streamReadError(provider string, readErr error, timedOut *bool) error {
	if *timedOut {
		return ErrWatchdog
	}
	return fmt.Errorf("%s: stream read: %w", provider, readErr)
}

func toResponsesInput(msgs []Message) []responsesInputItem {
	items := make([]responsesInputItem, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleSystem && m.Role != RoleUser {
			continue
		}
		items = append(items, responsesInputItem{
			Type:    "message",
			Role:    m.Role,
			Content: []responsesInputText{{Type: "input_text", Text: m.Content}},
		})
	}
	return items
}

// extractOutputText pulls the text out of a single response output item.
func extractOutputText(item json.RawMessage) string {
	if len(item) == 0 {
		return ""
	}
	var parsed struct {
		Type    string `json:"type"`
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(item, &parsed); err != nil || parsed.Type != "message" {
		return ""
	}
	var b strings.Builder
	for _, part := range parsed.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

// extractOutputItems concatenates the text of every message item in a
// final response output array.
func extractOutputItems(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var items []json.RawMessage
	if err := json.Unmarshal(output, &items); err != nil {
		return ""
	}
	var b strings.Builder
	for _, item := range items {
		b.WriteString(extractOutputText(item))
	}
	return b.String()
}
