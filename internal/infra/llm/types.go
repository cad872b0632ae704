// Package llm contains the provider adapter layer: one adapter per
// provider/API shape, normalized behind a single Generate contract that
// returns either a buffered structured result or a token stream.
package llm

import "context"

// Message represents a single turn in a conversation (role + content).
type Message struct {
	Role    string // "system" | "user" | "assistant"
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolDefinition is a function-calling tool the model may invoke.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// GenerateRequest is the adapter-agnostic input for one generation call.
type GenerateRequest struct {
	Model    string
	Messages []Message
	// Schema is the structured-output JSON schema, attached as a
	// response format on adapters that support structured output.
	Schema map[string]any
	// Tools are the function-calling definitions for the buffered
	// function-calling path.
	Tools []ToolDefinition
	// Thinking enables the extended reasoning mode on models that
	// support it. Adapters silently ignore it otherwise.
	Thinking  bool
	MaxTokens int
}

// Result is the outcome of a buffered (non-streaming) call: the candidate
// JSON text and whether it came from a tool call or plain text.
type Result struct {
	// Raw is the candidate structured output: tool-call arguments when
	// FromToolCall, otherwise the assistant's text.
	Raw          string
	FromToolCall bool
}

// TokenStream delivers text deltas in provider order. Err is checked after
// the channel closes; a nil Err means the stream completed normally.
type TokenStream struct {
	Tokens <-chan string
	// Err returns the terminal stream error, if any. Only valid after
	// Tokens is closed.
	Err func() error
}

// Client is a buffered structured-output provider call.
type Client interface {
	// Generate performs a single structured-output completion.
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}

// StreamClient is a streaming provider call. Tokens must be delivered in
// the order received; cancelling ctx aborts the underlying HTTP stream.
type StreamClient interface {
	GenerateStream(ctx context.Context, req GenerateRequest) (*TokenStream, error)
}

// StreamFunc adapts a function to the StreamClient interface.
type StreamFunc func(ctx context.Context, req GenerateRequest) (*TokenStream, error)

func (f StreamFunc) GenerateStream(ctx context.Context, req GenerateRequest) (*TokenStream, error) {
	return f(ctx, req)
}

// ModelLister enumerates the provider's available model ids, newest first.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}
