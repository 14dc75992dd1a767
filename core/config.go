package core

import (
	"fmt"
	"strings"
	"time"
)

type OAuthConfig struct {
	StateSecret string        `koanf:"state_secret" mapstructure:"state_secret"`
	StateTTL    time.Duration `koanf:"state_ttl" mapstructure:"state_ttl"`
}

type PublishConfig struct {
	MaxTargets       int           `koanf:"max_targets" mapstructure:"max_targets"`
	MaxContentLength int           `koanf:"max_content_length" mapstructure:"max_content_length"`
	Concurrency      int           `koanf:"concurrency" mapstructure:"concurrency"`
	TargetTimeout    time.Duration `koanf:"target_timeout" mapstructure:"target_timeout"`
}

type Config struct {
	ServiceName string        `koanf:"service_name" mapstructure:"service_name"`
	OAuth       OAuthConfig   `koanf:"oauth" mapstructure:"oauth"`
	Publish     PublishConfig `koanf:"publish" mapstructure:"publish"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "social",
		OAuth: OAuthConfig{
			StateTTL: 15 * time.Minute,
		},
		Publish: PublishConfig{
			MaxTargets:       20,
			MaxContentLength: 10_000,
			Concurrency:      4,
			TargetTimeout:    30 * time.Second,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Publish.MaxTargets <= 0 {
		return fmt.Errorf("core: publish.max_targets must be positive")
	}
	if c.Publish.MaxContentLength <= 0 {
		return fmt.Errorf("core: publish.max_content_length must be positive")
	}
	if c.Publish.Concurrency <= 0 {
		return fmt.Errorf("core: publish.concurrency must be positive")
	}
	if c.OAuth.StateTTL < 0 {
		return fmt.Errorf("core: oauth.state_ttl must not be negative")
	}
	return nil
}
