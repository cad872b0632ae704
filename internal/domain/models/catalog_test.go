package models

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/diagrammaton/server/internal/infra/llm"
)

type listerStub struct {
	ids   []string
	err   error
	calls *int
}

func (s listerStub) ListModels(_ context.Context) ([]string, error) {
	if s.calls != nil {
		*s.calls++
	}
	return s.ids, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCatalog_ModelList(t *testing.T) {
	t.Parallel()

	factory := func(provider Provider, _ string) llm.ModelLister {
		if provider == ProviderOpenAI {
			return listerStub{ids: []string{"gpt-5", "gpt-4o", "dall-e-3"}}
		}
		return listerStub{ids: []string{"claude-sonnet-4-0", "claude-3-5-haiku"}}
	}

	c := NewCatalog(factory, discardLogger())
	list, err := c.ModelList(context.Background(), CatalogKeys{
		UserID: "u1", OpenAIKey: "sk-openai-xyz1", AnthropicKey: "sk-ant-xyz2",
	})
	if err != nil {
		t.Fatalf("ModelList failed: %v", err)
	}

	if !list.Providers[ProviderOpenAI] || !list.Providers[ProviderAnthropic] {
		t.Errorf("expected both providers available, got %v", list.Providers)
	}
	// gpt-5 gets fast+thinking, gpt-4o fast only, dall-e-3 filtered out,
	// claude-sonnet-4-0 fast+thinking, claude-3-5-haiku fast only.
	if len(list.Models) != 7 {
		t.Fatalf("expected 7 options, got %d: %+v", len(list.Models), list.Models)
	}
	if list.DefaultModelID == nil || *list.DefaultModelID != "openai:gpt-5:fast" {
		t.Errorf("expected default openai:gpt-5:fast, got %v", list.DefaultModelID)
	}
	if list.Models[0].Label != "GPT-5 (fast)" {
		t.Errorf("unexpected first label %q", list.Models[0].Label)
	}
}

func TestCatalog_CachesPerIdentity(t *testing.T) {
	t.Parallel()

	calls := 0
	factory := func(Provider, string) llm.ModelLister {
		return listerStub{ids: []string{"gpt-4o"}, calls: &calls}
	}

	c := NewCatalog(factory, discardLogger())
	keys := CatalogKeys{UserID: "u1", OpenAIKey: "sk-aaaa"}
	ctx := context.Background()

	if _, err := c.ModelList(ctx, keys); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if _, err := c.ModelList(ctx, keys); err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 provider call (second served from cache), got %d", calls)
	}

	// Rotating the key changes the fingerprint and misses the cache.
	keys.OpenAIKey = "sk-bbbb"
	if _, err := c.ModelList(ctx, keys); err != nil {
		t.Fatalf("rotated-key call failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected cache miss after key rotation, got %d calls", calls)
	}
}

func TestCatalog_CacheExpires(t *testing.T) {
	t.Parallel()

	calls := 0
	factory := func(Provider, string) llm.ModelLister {
		return listerStub{ids: []string{"gpt-4o"}, calls: &calls}
	}

	c := NewCatalog(factory, discardLogger())
	now := time.Now()
	c.now = func() time.Time { return now }

	keys := CatalogKeys{UserID: "u1", OpenAIKey: "sk-aaaa"}
	ctx := context.Background()
	_, _ = c.ModelList(ctx, keys)

	now = now.Add(CatalogTTL + time.Second)
	_, _ = c.ModelList(ctx, keys)

	if calls != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", calls)
	}
}

func TestCatalog_ProviderFailureDegrades(t *testing.T) {
	t.Parallel()

	factory := func(provider Provider, _ string) llm.ModelLister {
		if provider == ProviderOpenAI {
			return listerStub{err: errors.New("401 unauthorized")}
		}
		return listerStub{ids: []string{"claude-3-5-haiku"}}
	}

	c := NewCatalog(factory, discardLogger())
	list, err := c.ModelList(context.Background(), CatalogKeys{
		UserID: "u1", OpenAIKey: "sk-bad", AnthropicKey: "sk-good",
	})
	if err != nil {
		t.Fatalf("ModelList should not fail when one provider errors: %v", err)
	}
	if list.Providers[ProviderOpenAI] {
		t.Error("failed provider must be reported absent")
	}
	if !list.Providers[ProviderAnthropic] || len(list.Models) != 1 {
		t.Errorf("expected the healthy provider to still contribute, got %+v", list)
	}
}

func TestCatalog_NoKeys(t *testing.T) {
	t.Parallel()

	c := NewCatalog(func(Provider, string) llm.ModelLister {
		t.Fatal("lister must not be constructed without keys")
		return nil
	}, discardLogger())

	list, err := c.ModelList(context.Background(), CatalogKeys{UserID: "u1"})
	if err != nil {
		t.Fatalf("ModelList failed: %v", err)
	}
	if list.DefaultModelID != nil || len(list.Models) != 0 {
		t.Errorf("expected empty catalog, got %+v", list)
	}
}
