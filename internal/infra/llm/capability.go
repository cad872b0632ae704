package llm

import "strings"

// Capability is the closed set of API shapes an adapter call can take.
// Selection is a static table keyed on provider+model, never runtime
// feature probing.
type Capability int

const (
	// ResponsesStreaming is the OpenAI Responses API streaming path.
	ResponsesStreaming Capability = iota
	// ChatStreaming is the OpenAI chat-completions streaming path.
	ChatStreaming
	// AnthropicStreaming is the Anthropic messages streaming path.
	AnthropicStreaming
)

func (c Capability) String() string {
	switch c {
	case ResponsesStreaming:
		return "responses"
	case ChatStreaming:
		return "chat"
	case AnthropicStreaming:
		return "anthropic"
	}
	return "unknown"
}

// responsesModels are the OpenAI model families served by the Responses
// API. Anything else on OpenAI goes through chat streaming.
var responsesModels = []string{"gpt-5", "gpt-4.1", "gpt-4o", "o1", "o3", "o4"}

// CapabilityFor resolves the API shape for a provider/model pair.
func CapabilityFor(provider, model string) Capability {
	if provider == "anthropic" {
		return AnthropicStreaming
	}
	for _, prefix := range responsesModels {
		if strings.HasPrefix(model, prefix) {
			return ResponsesStreaming
		}
	}
	return ChatStreaming
}
