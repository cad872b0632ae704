package generation

import (
	"log/slog"
	"time"

	"github.com/diagrammaton/server/internal/domain/models"
	"github.com/diagrammaton/server/internal/infra/llm"
)

// HTTPDialer builds real provider adapters against the configured base
// URLs. One adapter is constructed per request since credentials are
// per-user.
type HTTPDialer struct {
	OpenAIBaseURL    string
	AnthropicBaseURL string
	FirstByteTimeout time.Duration
	Log              *slog.Logger
}

func (d *HTTPDialer) Buffered(apiKey string) llm.Client {
	return d.openai(apiKey)
}

// Stream picks the API shape for the selection. The Responses path is
// wrapped in the degradation composite so a mid-stream failure retries
// once over plain chat streaming.
func (d *HTTPDialer) Stream(sel models.Selection, apiKey string) llm.StreamClient {
	switch llm.CapabilityFor(string(sel.Provider), sel.Model) {
	case llm.AnthropicStreaming:
		c := llm.NewAnthropicClient(d.AnthropicBaseURL, apiKey, d.Log)
		c.FirstByteTimeout = d.FirstByteTimeout
		return c
	case llm.ResponsesStreaming:
		c := d.openai(apiKey)
		return llm.NewFallbackStream(
			llm.StreamFunc(c.StreamResponses),
			llm.StreamFunc(c.StreamChat),
			d.Log,
		)
	default:
		c := d.openai(apiKey)
		return llm.StreamFunc(c.StreamChat)
	}
}

func (d *HTTPDialer) openai(apiKey string) *llm.OpenAIClient {
	c := llm.NewOpenAIClient(d.OpenAIBaseURL, apiKey, d.Log)
	c.FirstByteTimeout = d.FirstByteTimeout
	return c
}
