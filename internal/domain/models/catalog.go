package models

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/diagrammaton/server/internal/infra/llm"
)

// CatalogTTL is how long a per-user model list stays cached.
const CatalogTTL = 15 * time.Minute

// maxModelsPerProvider caps how many base models each provider contributes.
const maxModelsPerProvider = 6

// Option is one selectable model as shown in the plugin's model picker.
type Option struct {
	ID        string   `json:"id"`
	Label     string   `json:"label"`
	Provider  Provider `json:"provider"`
	BaseModel string   `json:"baseModel"`
	Variant   Variant  `json:"variant"`
}

// List is the full catalog response for one user.
type List struct {
	DefaultModelID *string           `json:"defaultModelId"`
	Models         []Option          `json:"models"`
	Providers      map[Provider]bool `json:"providers"`
}

// CatalogKeys carries the per-user provider credentials the catalog needs.
// Key material is only used to call the provider list endpoints and to
// build the cache fingerprint; it is never stored.
type CatalogKeys struct {
	UserID       string
	OpenAIKey    string
	AnthropicKey string
}

// ListerFactory builds a model lister for a provider with a user's key.
type ListerFactory func(provider Provider, apiKey string) llm.ModelLister

// Catalog serves per-user model lists with a read-through TTL cache.
// Construct once at the composition root; safe for concurrent use.
type Catalog struct {
	newLister ListerFactory
	log       *slog.Logger
	ttl       time.Duration
	now       func() time.Time

	mu    sync.Mutex
	cache map[string]catalogEntry
}

type catalogEntry struct {
	expiresAt time.Time
	list      List
}

// NewCatalog creates a Catalog using the given lister factory.
func NewCatalog(newLister ListerFactory, log *slog.Logger) *Catalog {
	return &Catalog{
		newLister: newLister,
		log:       log,
		ttl:       CatalogTTL,
		now:       time.Now,
		cache:     make(map[string]catalogEntry),
	}
}

// ModelList returns the catalog for one user, querying each provider the
// user holds a key for. Provider list failures degrade that provider to
// absent rather than failing the whole response. The cache key is the user
// id plus a fingerprint of each key, so rotating a key invalidates the
// entry without storing the key itself.
func (c *Catalog) ModelList(ctx context.Context, keys CatalogKeys) (List, error) {
	cacheKey := keys.UserID + ":" + fingerprint(keys.OpenAIKey) + ":" + fingerprint(keys.AnthropicKey)

	c.mu.Lock()
	if entry, ok := c.cache[cacheKey]; ok && entry.expiresAt.After(c.now()) {
		c.mu.Unlock()
		return entry.list, nil
	}
	c.mu.Unlock()

	list := List{
		Models:    []Option{},
		Providers: map[Provider]bool{ProviderOpenAI: false, ProviderAnthropic: false},
	}

	if keys.OpenAIKey != "" {
		c.appendProvider(ctx, &list, ProviderOpenAI, keys.OpenAIKey)
	}
	if keys.AnthropicKey != "" {
		c.appendProvider(ctx, &list, ProviderAnthropic, keys.AnthropicKey)
	}

	if len(list.Models) > 0 {
		preferred := Format(DefaultSelection)
		id := list.Models[0].ID
		for _, opt := range list.Models {
			if opt.ID == preferred {
				id = opt.ID
				break
			}
		}
		list.DefaultModelID = &id
	}

	c.mu.Lock()
	c.cache[cacheKey] = catalogEntry{expiresAt: c.now().Add(c.ttl), list: list}
	c.mu.Unlock()

	return list, nil
}

func (c *Catalog) appendProvider(ctx context.Context, list *List, provider Provider, apiKey string) {
	ids, err := c.newLister(provider, apiKey).ListModels(ctx)
	if err != nil {
		c.log.Error("model catalog: provider list failed",
			"provider", provider, "error", err)
		return
	}

	ids = filterModelIDs(provider, ids)
	if len(ids) > maxModelsPerProvider {
		ids = ids[:maxModelsPerProvider]
	}
	for _, id := range ids {
		list.Models = append(list.Models, buildOptions(provider, id)...)
	}
	if len(ids) > 0 {
		list.Providers[provider] = true
	}
}

// filterModelIDs keeps only chat-capable model families. Listers return
// ids newest first; order is preserved.
func filterModelIDs(provider Provider, ids []string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		switch provider {
		case ProviderOpenAI:
			if strings.HasPrefix(id, "gpt-") || strings.HasPrefix(id, "o") {
				out = append(out, id)
			}
		case ProviderAnthropic:
			if strings.HasPrefix(id, "claude-") {
				out = append(out, id)
			}
		}
	}
	return out
}

// buildOptions expands one base model into its fast (and, when supported,
// thinking) picker entries.
func buildOptions(provider Provider, modelID string) []Option {
	label := formatLabel(provider, modelID)
	opts := []Option{{
		ID:        Format(Selection{provider, modelID, VariantFast}),
		Label:     label + " (fast)",
		Provider:  provider,
		BaseModel: modelID,
		Variant:   VariantFast,
	}}
	if AllowsThinking(provider, modelID) {
		opts = append(opts, Option{
			ID:        Format(Selection{provider, modelID, VariantThinking}),
			Label:     label + " (thinking)",
			Provider:  provider,
			BaseModel: modelID,
			Variant:   VariantThinking,
		})
	}
	return opts
}

func formatLabel(provider Provider, modelID string) string {
	switch provider {
	case ProviderOpenAI:
		if strings.HasPrefix(modelID, "gpt-") {
			return "GPT-" + strings.TrimPrefix(modelID, "gpt-")
		}
		if strings.HasPrefix(modelID, "o") {
			return "O" + modelID[1:]
		}
	case ProviderAnthropic:
		if strings.HasPrefix(modelID, "claude-") {
			return "Claude " + strings.ReplaceAll(strings.TrimPrefix(modelID, "claude-"), "-", " ")
		}
	}
	return modelID
}

// fingerprint reduces a key to its last four characters for cache keying
// and logs. Never expose more.
func fingerprint(key string) string {
	if key == "" {
		return "none"
	}
	if len(key) <= 4 {
		return key
	}
	return key[len(key)-4:]
}
