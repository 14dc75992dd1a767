package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrProviderNotRegistered = errors.New("core: provider not registered")

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	stateCodec        StateCodec
	signer            Signer
	registry          Registry
	accountStore      AccountStore
	credentialStore   CredentialStore
	auditStore        AuditStore
	authorizer        Authorizer
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	StateCodec        StateCodec
	Signer            Signer
	Registry          Registry
	AccountStore      AccountStore
	CredentialStore   CredentialStore
	AuditStore        AuditStore
	Authorizer        Authorizer
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("social", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("social"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewProviderRegistry()
	}
	if builder.signer == nil {
		builder.signer = BearerTokenSigner{}
	}
	if builder.authorizer == nil {
		builder.authorizer = AllowAllAuthorizer{}
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.stateCodec == nil {
		secret := strings.TrimSpace(finalConfig.OAuth.StateSecret)
		if secret == "" {
			// Process-local fallback: callbacks must land on the instance
			// that issued the redirect. Configure oauth.state_secret when
			// running more than one.
			generated, genErr := generateStateSecret()
			if genErr != nil {
				return nil, mapBuildError(builder.errorMapper, genErr)
			}
			secret = generated
		}
		codec, codecErr := NewHMACStateCodec(secret, finalConfig.OAuth.StateTTL)
		if codecErr != nil {
			return nil, mapBuildError(builder.errorMapper, codecErr)
		}
		builder.stateCodec = codec
	}

	if (builder.accountStore == nil || builder.credentialStore == nil) && builder.repositoryFactory != nil {
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			storeProvider, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			if storeProvider != nil {
				if builder.accountStore == nil {
					builder.accountStore = storeProvider.AccountStore()
				}
				if builder.credentialStore == nil {
					builder.credentialStore = storeProvider.CredentialStore()
				}
			}
		} else if storeProvider, ok := builder.repositoryFactory.(StoreProvider); ok {
			if builder.accountStore == nil {
				builder.accountStore = storeProvider.AccountStore()
			}
			if builder.credentialStore == nil {
				builder.credentialStore = storeProvider.CredentialStore()
			}
		}
	}
	if builder.auditStore == nil && builder.repositoryFactory != nil {
		if storeProvider, ok := builder.repositoryFactory.(interface{ AuditStore() AuditStore }); ok {
			builder.auditStore = storeProvider.AuditStore()
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		stateCodec:        builder.stateCodec,
		signer:            builder.signer,
		registry:          builder.registry,
		accountStore:      builder.accountStore,
		credentialStore:   builder.credentialStore,
		auditStore:        builder.auditStore,
		authorizer:        builder.authorizer,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		StateCodec:        s.stateCodec,
		Signer:            s.signer,
		Registry:          s.registry,
		AccountStore:      s.accountStore,
		CredentialStore:   s.credentialStore,
		AuditStore:        s.auditStore,
		Authorizer:        s.authorizer,
	}
}

// AllowAllAuthorizer is the default workspace policy.
type AllowAllAuthorizer struct{}

func (AllowAllAuthorizer) CanPublish(context.Context, string, string) (bool, error) {
	return true, nil
}

// Connect starts the authorization flow for an OAuth provider and returns
// the URL the user must be redirected to. The returned state carries the
// signed request context back through the provider's callback.
func (s *Service) Connect(ctx context.Context, req ConnectRequest) (response BeginAuthResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":  strings.TrimSpace(req.ProviderID),
		"workspace_id": strings.TrimSpace(req.WorkspaceID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "connect", err, fields)
	}()

	if s == nil {
		return BeginAuthResponse{}, fmt.Errorf("core: service is nil")
	}
	if err = ValidateIdentifier(req.UserID); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	if err = ValidateIdentifier(req.WorkspaceID); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	if err = validateReturnPath(req.ReturnPath); err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}

	provider, resolveErr := s.resolveProvider(req.ProviderID)
	if resolveErr != nil {
		err = resolveErr
		return BeginAuthResponse{}, err
	}

	state, encodeErr := s.stateCodec.Encode(OAuthState{
		UserID:      strings.TrimSpace(req.UserID),
		WorkspaceID: strings.TrimSpace(req.WorkspaceID),
		ProviderID:  provider.ID(),
		ReturnPath:  strings.TrimSpace(req.ReturnPath),
	})
	if encodeErr != nil {
		err = s.mapError(encodeErr)
		return BeginAuthResponse{}, err
	}

	response, err = provider.BeginAuth(ctx, BeginAuthRequest{
		ProviderID:  provider.ID(),
		RedirectURI: strings.TrimSpace(req.RedirectURI),
		State:       state,
		Metadata:    req.Metadata,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthResponse{}, err
	}
	return response, nil
}

// CompleteCallback finishes an authorization-code flow: verify the signed
// state, exchange the code, resolve the remote identity, and persist the
// account plus its credential in one transaction.
func (s *Service) CompleteCallback(ctx context.Context, req CompleteAuthRequest) (completion CallbackCompletion, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id": strings.TrimSpace(req.ProviderID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if s == nil {
		return CallbackCompletion{}, fmt.Errorf("core: service is nil")
	}
	if s.stateCodec == nil {
		err = s.mapError(fmt.Errorf("core: oauth state codec is not configured"))
		return CallbackCompletion{}, err
	}

	state, decodeErr := s.stateCodec.Decode(req.State)
	if decodeErr != nil {
		err = s.mapError(decodeErr)
		return CallbackCompletion{}, err
	}
	providerID := strings.TrimSpace(req.ProviderID)
	if providerID != "" && providerID != state.ProviderID {
		err = tagReturnPath(s.mapError(fmt.Errorf("core: oauth state provider mismatch: %s != %s", providerID, state.ProviderID)), state.ReturnPath)
		return CallbackCompletion{}, err
	}
	fields["workspace_id"] = state.WorkspaceID

	provider, resolveErr := s.resolveProvider(state.ProviderID)
	if resolveErr != nil {
		err = tagReturnPath(resolveErr, state.ReturnPath)
		return CallbackCompletion{}, err
	}

	authResp, authErr := provider.CompleteAuth(ctx, CompleteAuthRequest{
		ProviderID:  provider.ID(),
		Code:        strings.TrimSpace(req.Code),
		State:       req.State,
		RedirectURI: strings.TrimSpace(req.RedirectURI),
		Metadata:    req.Metadata,
	})
	if authErr != nil {
		err = tagReturnPath(s.mapError(authErr), state.ReturnPath)
		return CallbackCompletion{}, err
	}

	completion, err = s.storeConnectedAccount(ctx, provider, state.WorkspaceID, authResp.Credential)
	if err != nil {
		err = tagReturnPath(err, state.ReturnPath)
		return CallbackCompletion{}, err
	}
	completion.ReturnPath = state.ReturnPath
	fields["account_id"] = completion.Account.ID
	return completion, nil
}

// ConnectDirect authenticates an identifier/app-password pair against a
// provider that does not use OAuth, then persists the account the same way
// the callback path does.
func (s *Service) ConnectDirect(ctx context.Context, req DirectAuthRequest) (completion CallbackCompletion, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"provider_id":  strings.TrimSpace(req.ProviderID),
		"workspace_id": strings.TrimSpace(req.WorkspaceID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "connect_direct", err, fields)
	}()

	if s == nil {
		return CallbackCompletion{}, fmt.Errorf("core: service is nil")
	}
	if err = ValidateIdentifier(req.UserID); err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	if err = ValidateIdentifier(req.WorkspaceID); err != nil {
		err = s.mapError(err)
		return CallbackCompletion{}, err
	}
	if strings.TrimSpace(req.Identifier) == "" || strings.TrimSpace(req.AppPassword) == "" {
		err = s.mapError(fmt.Errorf("core: identifier and app password are required"))
		return CallbackCompletion{}, err
	}

	provider, resolveErr := s.resolveProvider(req.ProviderID)
	if resolveErr != nil {
		err = resolveErr
		return CallbackCompletion{}, err
	}
	direct, ok := provider.(DirectAuthProvider)
	if !ok {
		err = s.mapError(fmt.Errorf("core: provider %q does not support direct credentials", provider.ID()))
		return CallbackCompletion{}, err
	}

	authResp, authErr := direct.CompleteDirectAuth(ctx, req)
	if authErr != nil {
		err = s.mapError(authErr)
		return CallbackCompletion{}, err
	}

	completion, err = s.storeConnectedAccount(ctx, provider, req.WorkspaceID, authResp.Credential)
	if err != nil {
		return CallbackCompletion{}, err
	}
	fields["account_id"] = completion.Account.ID
	return completion, nil
}

// Disconnect revokes the active credential and marks the account
// disconnected. Disconnecting an absent or already disconnected account is
// a no-op.
func (s *Service) Disconnect(ctx context.Context, workspaceID string, accountID string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"workspace_id": strings.TrimSpace(workspaceID),
		"account_id":   strings.TrimSpace(accountID),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is not configured"))
		return err
	}

	account, getErr := s.accountStore.Get(ctx, workspaceID, accountID)
	if getErr != nil {
		if errors.Is(getErr, ErrAccountNotFound) {
			return nil
		}
		err = s.mapError(getErr)
		return err
	}
	if account.Status == AccountStatusDisconnected {
		return nil
	}

	if s.credentialStore != nil {
		if revokeErr := s.credentialStore.RevokeActive(ctx, account.ID, "disconnected"); revokeErr != nil {
			err = s.mapError(revokeErr)
			return err
		}
	}
	if updateErr := s.accountStore.UpdateStatus(ctx, account.ID, AccountStatusDisconnected, "disconnected"); updateErr != nil {
		err = s.mapError(updateErr)
		return err
	}
	return nil
}

// MarkNeedsRefresh flags an account whose token the provider reported stale.
func (s *Service) MarkNeedsRefresh(ctx context.Context, accountID string, reason string) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{"account_id": strings.TrimSpace(accountID)}
	defer func() {
		s.observeOperation(ctx, startedAt, "mark_needs_refresh", err, fields)
	}()

	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if s.accountStore == nil {
		err = s.mapError(fmt.Errorf("core: account store is not configured"))
		return err
	}
	if updateErr := s.accountStore.UpdateStatus(ctx, accountID, AccountStatusNeedsRefresh, reason); updateErr != nil {
		err = s.mapError(updateErr)
		return err
	}
	return nil
}

func (s *Service) GetAccount(ctx context.Context, workspaceID string, accountID string) (Account, error) {
	if s == nil {
		return Account{}, fmt.Errorf("core: service is nil")
	}
	if s.accountStore == nil {
		return Account{}, s.mapError(fmt.Errorf("core: account store is not configured"))
	}
	account, err := s.accountStore.Get(ctx, workspaceID, accountID)
	if err != nil {
		return Account{}, s.mapError(err)
	}
	return account, nil
}

func (s *Service) ListAccounts(ctx context.Context, workspaceID string) ([]Account, error) {
	if s == nil {
		return nil, fmt.Errorf("core: service is nil")
	}
	if s.accountStore == nil {
		return nil, s.mapError(fmt.Errorf("core: account store is not configured"))
	}
	accounts, err := s.accountStore.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, s.mapError(err)
	}
	return accounts, nil
}

func (s *Service) ListPublishActivity(ctx context.Context, filter PublishActivityFilter) (PublishActivityPage, error) {
	if s == nil {
		return PublishActivityPage{}, fmt.Errorf("core: service is nil")
	}
	if s.auditStore == nil {
		return PublishActivityPage{}, s.mapError(fmt.Errorf("core: audit store is not configured"))
	}
	page, err := s.auditStore.List(ctx, filter)
	if err != nil {
		return PublishActivityPage{}, s.mapError(err)
	}
	return page, nil
}

func (s *Service) storeConnectedAccount(
	ctx context.Context,
	provider Provider,
	workspaceID string,
	credential ActiveCredential,
) (CallbackCompletion, error) {
	if s.accountStore == nil {
		return CallbackCompletion{}, s.mapError(fmt.Errorf("core: account store is not configured"))
	}

	identity, identityErr := provider.ResolveIdentity(ctx, credential)
	if identityErr != nil {
		return CallbackCompletion{}, s.mapError(identityErr)
	}
	if strings.TrimSpace(identity.ExternalAccountID) == "" {
		return CallbackCompletion{}, s.mapError(fmt.Errorf("core: provider %q resolved an empty account id", provider.ID()))
	}

	account, stored, connectErr := s.accountStore.ConnectAccount(ctx, ConnectAccountInput{
		WorkspaceID: strings.TrimSpace(workspaceID),
		ProviderID:  provider.ID(),
		Identity:    identity,
		Credential:  credential,
	})
	if connectErr != nil {
		return CallbackCompletion{}, s.mapError(connectErr)
	}
	return CallbackCompletion{Account: account, Credential: stored}, nil
}

func (s *Service) resolveProvider(providerID string) (Provider, error) {
	if s == nil || s.registry == nil {
		return nil, fmt.Errorf("core: provider registry is not configured")
	}
	id := strings.TrimSpace(providerID)
	if id == "" {
		return nil, s.mapError(fmt.Errorf("core: provider id is required"))
	}
	provider, ok := s.registry.Get(id)
	if !ok {
		return nil, s.mapError(fmt.Errorf("%w: %s", ErrProviderNotRegistered, id))
	}
	return provider, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

// tagReturnPath records the verified state's return path on an error so the
// callback handler can send the user back where they started instead of the
// generic fallback page.
func tagReturnPath(err error, returnPath string) error {
	returnPath = strings.TrimSpace(returnPath)
	if err == nil || returnPath == "" {
		return err
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return err
	}
	if rich.Metadata == nil {
		rich.Metadata = map[string]any{}
	}
	rich.Metadata["return_path"] = returnPath
	return err
}

func validateReturnPath(path string) error {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil
	}
	if !strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "//") {
		return fmt.Errorf("core: return path must be a relative path, got %q", path)
	}
	return nil
}

func credentialToActive(cred Credential) ActiveCredential {
	active := ActiveCredential{
		TokenType:    cred.TokenType,
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		Scopes:       append([]string(nil), cred.Scopes...),
		Refreshable:  cred.Refreshable,
	}
	if !cred.ExpiresAt.IsZero() {
		expiresAt := cred.ExpiresAt
		active.ExpiresAt = &expiresAt
	}
	return active
}

var _ SocialService = (*Service)(nil)
