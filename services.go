// Package social re-exports the core service surface so embedding
// applications can depend on a single import path.
package social

import "github.com/goliatone/go-social/core"

type Config = core.Config

type OAuthConfig = core.OAuthConfig

type PublishConfig = core.PublishConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type Account = core.Account
type Credential = core.Credential
type Provider = core.Provider
type Registry = core.Registry
type StateCodec = core.StateCodec
type Signer = core.Signer
type Authorizer = core.Authorizer
type TransportAdapter = core.TransportAdapter

type ConnectRequest = core.ConnectRequest
type CompleteAuthRequest = core.CompleteAuthRequest
type DirectAuthRequest = core.DirectAuthRequest
type PublishRequest = core.PublishRequest
type PublishOutcome = core.PublishOutcome
type PublishActivityFilter = core.PublishActivityFilter
type PublishActivityPage = core.PublishActivityPage

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithStateCodec        = core.WithStateCodec
	WithSigner            = core.WithSigner
	WithRegistry          = core.WithRegistry
	WithAccountStore      = core.WithAccountStore
	WithCredentialStore   = core.WithCredentialStore
	WithAuditStore        = core.WithAuditStore
	WithAuthorizer        = core.WithAuthorizer
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
