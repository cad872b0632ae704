// Package models resolves client-supplied model tokens into concrete
// provider/model/variant selections and serves the per-user model catalog.
package models

import "strings"

// Provider identifies an LLM vendor.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Variant is a model quality/cost mode.
type Variant string

const (
	VariantFast     Variant = "fast"
	VariantThinking Variant = "thinking"
)

// Selection is a resolved model choice. Immutable once created.
type Selection struct {
	Provider Provider
	Model    string
	Variant  Variant
}

// DefaultSelection is the fallback for empty or unparseable tokens.
var DefaultSelection = Selection{
	Provider: ProviderOpenAI,
	Model:    "gpt-5",
	Variant:  VariantFast,
}

// legacyAliases maps historic plugin model tokens to current composite ids.
// Old plugin installs still send these.
var legacyAliases = map[string]string{
	"gpt3":          "openai:gpt-5:fast",
	"gpt-3.5":       "openai:gpt-5:fast",
	"gpt-3.5-turbo": "openai:gpt-5:fast",
	"gpt4":          "openai:gpt-5:fast",
	"gpt-4":         "openai:gpt-5:fast",
	"gpt5":          "openai:gpt-5:fast",
	"gpt-5":         "openai:gpt-5:fast",
}

// Resolve turns a raw client token into a Selection. Total: every string,
// including the empty string, resolves; malformed input falls back to
// DefaultSelection. Accepted forms:
//
//	legacy alias        "gpt4"
//	composite           "provider:model:variant"
//	bare model id       "claude-sonnet-4-0", "gpt-4o"
//
// A thinking variant on a model without reasoning support is silently
// downgraded to fast.
func Resolve(raw string) Selection {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultSelection
	}

	if alias, ok := legacyAliases[trimmed]; ok {
		trimmed = alias
	}

	if strings.Contains(trimmed, ":") {
		return resolveComposite(trimmed)
	}

	// Bare model id: infer provider from the model-family prefix.
	if strings.HasPrefix(trimmed, "claude-") {
		return Selection{Provider: ProviderAnthropic, Model: trimmed, Variant: VariantFast}
	}
	return Selection{Provider: ProviderOpenAI, Model: trimmed, Variant: VariantFast}
}

func resolveComposite(token string) Selection {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return DefaultSelection
	}

	provider := ProviderOpenAI
	if Provider(parts[0]) == ProviderAnthropic {
		provider = ProviderAnthropic
	}

	variant := VariantFast
	if len(parts) == 3 && Variant(parts[2]) == VariantThinking {
		variant = VariantThinking
	}

	sel := Selection{Provider: provider, Model: parts[1], Variant: variant}
	if sel.Variant == VariantThinking && !AllowsThinking(sel.Provider, sel.Model) {
		sel.Variant = VariantFast
	}
	return sel
}

// Format renders a Selection as its composite token.
func Format(sel Selection) string {
	return string(sel.Provider) + ":" + sel.Model + ":" + string(sel.Variant)
}

// AllowsThinking reports whether the provider/model pair supports an
// extended reasoning mode.
func AllowsThinking(provider Provider, model string) bool {
	switch provider {
	case ProviderOpenAI:
		return strings.HasPrefix(model, "gpt-5")
	case ProviderAnthropic:
		return strings.HasPrefix(model, "claude-4") || strings.HasPrefix(model, "claude-3-7")
	}
	return false
}
