package social

import (
	"testing"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers/bluesky"
	"github.com/goliatone/go-social/providers/linkedin"
	"github.com/goliatone/go-social/providers/meta/facebook"
	"github.com/goliatone/go-social/providers/meta/instagram"
	"github.com/goliatone/go-social/providers/x"
)

func TestProviderFactories_BuildAndRegister(t *testing.T) {
	factories := []struct {
		name string
		id   string
		make func() (core.Provider, error)
	}{
		{"x", "x", func() (core.Provider, error) {
			return XProvider(x.Config{ClientID: "cid", ClientSecret: "secret"})
		}},
		{"linkedin", "linkedin", func() (core.Provider, error) {
			return LinkedInProvider(linkedin.Config{ClientID: "cid", ClientSecret: "secret"})
		}},
		{"facebook", "facebook", func() (core.Provider, error) {
			return FacebookProvider(facebook.Config{ClientID: "cid", ClientSecret: "secret"})
		}},
		{"instagram", "instagram", func() (core.Provider, error) {
			return InstagramProvider(instagram.Config{ClientID: "cid", ClientSecret: "secret"})
		}},
		{"bluesky", "bluesky", func() (core.Provider, error) {
			return BlueskyProvider(bluesky.Config{})
		}},
	}

	registry := core.NewProviderRegistry()
	for _, factory := range factories {
		t.Run(factory.name, func(t *testing.T) {
			provider, err := factory.make()
			if err != nil {
				t.Fatalf("build provider: %v", err)
			}
			if provider.ID() != factory.id {
				t.Fatalf("expected provider id %q, got %q", factory.id, provider.ID())
			}
			if err := registry.Register(provider); err != nil {
				t.Fatalf("register provider: %v", err)
			}
		})
	}
	if got := len(registry.List()); got != len(factories) {
		t.Fatalf("expected %d registered providers, got %d", len(factories), got)
	}
}

func TestExtensionHooks_ProviderPacksApplyToRegistry(t *testing.T) {
	provider, err := XProvider(x.Config{ClientID: "cid", ClientSecret: "secret"})
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}

	hooks := NewExtensionHooks()
	if err := hooks.RegisterProviderPack(ProviderPack{Name: "builtin", Providers: []core.Provider{provider}}); err != nil {
		t.Fatalf("register pack: %v", err)
	}
	if err := hooks.RegisterProviderPack(ProviderPack{Name: "builtin", Providers: []core.Provider{provider}}); err == nil {
		t.Fatalf("expected duplicate pack rejection")
	}
	if err := hooks.RegisterProviderPack(ProviderPack{Name: " "}); err == nil {
		t.Fatalf("expected empty pack rejection")
	}

	registry := core.NewProviderRegistry()
	if err := hooks.ApplyProviderPacks(registry); err != nil {
		t.Fatalf("apply packs: %v", err)
	}
	if _, ok := registry.Get("x"); !ok {
		t.Fatalf("expected provider registered through pack")
	}
}

func TestExtensionHooks_CommandQueryBundles(t *testing.T) {
	hooks := NewExtensionHooks()
	svc := &stubFacadeService{}

	if err := hooks.RegisterCommandQueryBundle("reporting", func(service CommandQueryService) (any, error) {
		facade, err := NewFacade(service)
		if err != nil {
			return nil, err
		}
		return facade.Queries(), nil
	}); err != nil {
		t.Fatalf("register bundle: %v", err)
	}
	if err := hooks.RegisterCommandQueryBundle("reporting", nil); err == nil {
		t.Fatalf("expected nil factory rejection")
	}

	bundles, err := hooks.BuildCommandQueryBundles(svc)
	if err != nil {
		t.Fatalf("build bundles: %v", err)
	}
	queries, ok := bundles["reporting"].(Queries)
	if !ok || queries.ListPublishActivity == nil {
		t.Fatalf("unexpected bundle contents: %#v", bundles)
	}
	if names := hooks.BundleNames(); len(names) != 1 || names[0] != "reporting" {
		t.Fatalf("unexpected bundle names: %#v", names)
	}
}
