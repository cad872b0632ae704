// Package generation orchestrates one diagram request end to end: rate
// limit gate, identity resolution, model selection, prompt building,
// provider dispatch, and response validation. Ordering is fixed — the
// gate runs before any credential is read, and credentials are read
// before any provider call.
package generation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/diagrammaton/server/internal/domain/diagram"
	"github.com/diagrammaton/server/internal/domain/fault"
	"github.com/diagrammaton/server/internal/domain/identity"
	"github.com/diagrammaton/server/internal/domain/models"
	"github.com/diagrammaton/server/internal/infra/llm"
	"github.com/diagrammaton/server/internal/infra/ratelimit"
)

// Request is one generation call as received from the plugin.
type Request struct {
	LicenseKey   string
	Action       diagram.Action
	Description  string
	DiagramData  string
	Instructions string
	Model        string
	ClientIP     string
	Stream       bool
}

// Outcome is either a validated buffered response or a live token stream,
// never both.
type Outcome struct {
	Response *diagram.Response
	Stream   *llm.TokenStream
}

// RateGate decides whether an identifier may proceed.
type RateGate interface {
	Check(ctx context.Context, identifier string) error
}

// IdentityResolver maps a license key to the owning account.
type IdentityResolver interface {
	Resolve(ctx context.Context, licenseKey string) (*identity.LicensedIdentity, error)
}

// Dialer constructs provider adapters bound to a per-request credential.
type Dialer interface {
	// Buffered is the OpenAI function-calling path.
	Buffered(apiKey string) llm.Client
	// Stream resolves the API shape for the selection and returns the
	// matching streaming adapter, degradation included.
	Stream(sel models.Selection, apiKey string) llm.StreamClient
}

// DefaultBudget is the end-to-end soft deadline for one request.
const DefaultBudget = 55 * time.Second

// budgetWarning is how close to the deadline the about-to-time-out log
// fires.
const budgetWarning = 5 * time.Second

type Service struct {
	gate   RateGate
	ids    IdentityResolver
	dialer Dialer
	log    *slog.Logger
	budget time.Duration
}

func New(gate RateGate, ids IdentityResolver, dialer Dialer, log *slog.Logger) *Service {
	return &Service{gate: gate, ids: ids, dialer: dialer, log: log, budget: DefaultBudget}
}

// WithBudget overrides the request deadline, for tests and non-default
// deployments.
func (s *Service) WithBudget(d time.Duration) *Service {
	s.budget = d
	return s
}

// Generate runs the pipeline. Every returned error is a *fault.Fault; for
// streaming requests the stream's terminal error is fault-mapped too.
func (s *Service) Generate(ctx context.Context, req Request) (*Outcome, error) {
	messages, err := buildMessages(req)
	if err != nil {
		return nil, err
	}

	if err := s.gate.Check(ctx, rateIdentifier(req)); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			return nil, fault.Wrap(fault.KindRateLimitExceeded, err)
		}
		return nil, fault.Wrap(fault.KindUnexpected, err)
	}

	id, err := s.ids.Resolve(ctx, req.LicenseKey)
	if err != nil {
		return nil, fault.From(err)
	}

	sel := models.Resolve(req.Model)
	apiKey := apiKeyFor(sel.Provider, id)
	if apiKey == "" {
		return nil, fault.New(fault.KindAPIKeyNotFound).With("provider", string(sel.Provider))
	}

	genReq := llm.GenerateRequest{
		Model:    sel.Model,
		Messages: messages,
		Schema:   diagram.ResponseSchema(),
		Tools:    diagram.Tools(),
		Thinking: sel.Variant == models.VariantThinking,
	}

	s.log.Info("generation begin",
		"action", string(req.Action),
		"provider", string(sel.Provider),
		"model", sel.Model,
		"variant", string(sel.Variant),
		"stream", req.Stream,
	)

	if req.Stream {
		return s.streamOutcome(ctx, sel, apiKey, genReq)
	}
	return s.bufferedOutcome(ctx, sel, apiKey, genReq)
}

// bufferedOutcome dispatches a non-streaming call and validates the
// result. On OpenAI this is the function-calling path; Anthropic has no
// buffered shape, so its stream is drained here instead.
func (s *Service) bufferedOutcome(ctx context.Context, sel models.Selection, apiKey string, genReq llm.GenerateRequest) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()
	defer s.warnNearDeadline(sel)()

	var raw string
	switch sel.Provider {
	case models.ProviderAnthropic:
		ts, err := s.dialer.Stream(sel, apiKey).GenerateStream(ctx, genReq)
		if err != nil {
			return nil, mapProviderError(err)
		}
		var b strings.Builder
		for tok := range ts.Tokens {
			b.WriteString(tok)
		}
		if err := ts.Err(); err != nil {
			return nil, mapProviderError(err)
		}
		raw = b.String()
	default:
		result, err := s.dialer.Buffered(apiKey).Generate(ctx, genReq)
		if err != nil {
			return nil, mapProviderError(err)
		}
		raw = result.Raw
	}

	resp, err := diagram.Parse(raw)
	if err != nil {
		return nil, fault.From(err)
	}
	if err := diagram.Validate(resp); err != nil {
		return nil, fault.From(err)
	}

	s.log.Info("generation done", "provider", string(sel.Provider), "steps", len(resp.Steps))
	return &Outcome{Response: resp}, nil
}

// streamOutcome dispatches the streaming path and hands back a stream
// whose terminal error is already fault-mapped. The request budget is
// released when the stream closes.
func (s *Service) streamOutcome(ctx context.Context, sel models.Selection, apiKey string, genReq llm.GenerateRequest) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.budget)

	inner, err := s.dialer.Stream(sel, apiKey).GenerateStream(ctx, genReq)
	if err != nil {
		cancel()
		return nil, mapProviderError(err)
	}

	out := make(chan string)
	var streamErr error
	go func() {
		defer close(out)
		defer cancel()
		for tok := range inner.Tokens {
			select {
			case out <- tok:
			case <-ctx.Done():
			}
		}
		if err := inner.Err(); err != nil {
			streamErr = mapProviderError(err)
		}
	}()

	return &Outcome{Stream: &llm.TokenStream{
		Tokens: out,
		Err:    func() error { return streamErr },
	}}, nil
}

// warnNearDeadline logs shortly before the budget runs out. The returned
// stop function disarms it.
func (s *Service) warnNearDeadline(sel models.Selection) func() {
	if s.budget <= budgetWarning {
		return func() {}
	}
	timer := time.AfterFunc(s.budget-budgetWarning, func() {
		s.log.Warn("generation approaching request budget",
			"provider", string(sel.Provider), "budget", s.budget)
	})
	return func() { timer.Stop() }
}

func buildMessages(req Request) ([]llm.Message, error) {
	switch req.Action {
	case diagram.ActionModify:
		if strings.TrimSpace(req.Instructions) == "" {
			return nil, fault.New(fault.KindNoDescriptionProvided)
		}
		return diagram.ModifyMessages(req.DiagramData, req.Instructions), nil
	default:
		if strings.TrimSpace(req.Description) == "" {
			return nil, fault.New(fault.KindNoDescriptionProvided)
		}
		return diagram.GenerateMessages(req.Description), nil
	}
}

// rateIdentifier keys the limiter window: client IP when known, license
// key otherwise.
func rateIdentifier(req Request) string {
	if req.ClientIP != "" {
		return req.ClientIP
	}
	return req.LicenseKey
}

func apiKeyFor(provider models.Provider, id *identity.LicensedIdentity) string {
	if provider == models.ProviderAnthropic {
		return id.AnthropicAPIKey
	}
	return id.OpenAIAPIKey
}

// mapProviderError collapses adapter errors to the closed taxonomy.
func mapProviderError(err error) error {
	switch {
	case errors.Is(err, llm.ErrAuth):
		return fault.Wrap(fault.KindInvalidAPIKey, err)
	case errors.Is(err, llm.ErrNoToolCall):
		return fault.Wrap(fault.KindNoFunctionCall, err)
	default:
		return fault.Wrap(fault.KindProviderError, err)
	}
}
