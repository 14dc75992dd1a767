package social

import (
	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers/bluesky"
	"github.com/goliatone/go-social/providers/linkedin"
	"github.com/goliatone/go-social/providers/meta/facebook"
	"github.com/goliatone/go-social/providers/meta/instagram"
	"github.com/goliatone/go-social/providers/x"
	"github.com/goliatone/go-social/transport"
)

// Factories for the built-in providers. Each defaults the outbound
// transport to the REST adapter when the config leaves it nil.

func XProvider(cfg x.Config) (core.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return x.New(cfg)
}

func LinkedInProvider(cfg linkedin.Config) (core.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return linkedin.New(cfg)
}

func FacebookProvider(cfg facebook.Config) (core.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return facebook.New(cfg)
}

func InstagramProvider(cfg instagram.Config) (core.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return instagram.New(cfg)
}

func BlueskyProvider(cfg bluesky.Config) (core.Provider, error) {
	if cfg.Transport == nil {
		cfg.Transport = transport.NewRESTAdapter(nil)
	}
	return bluesky.New(cfg)
}
