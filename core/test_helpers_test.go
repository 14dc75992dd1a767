package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

func newTestHTTPRequest(t interface{ Fatalf(string, ...any) }, method string, url string) *http.Request {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return req
}

type testProvider struct {
	id          string
	authKind    string
	constraints PublishConstraints

	beginAuthErr    error
	completeAuthErr error
	identity        AccountIdentity
	identityErr     error
	publishFn       func(ctx context.Context, in PublishInstruction) (PublishReceipt, error)
	directFn        func(ctx context.Context, req DirectAuthRequest) (CompleteAuthResponse, error)

	mu           sync.Mutex
	publishCalls []PublishInstruction
}

func (p *testProvider) ID() string { return p.id }

func (p *testProvider) AuthKind() string {
	if p.authKind == "" {
		return "oauth2"
	}
	return p.authKind
}

func (p *testProvider) Constraints() PublishConstraints { return p.constraints }

func (p *testProvider) BeginAuth(_ context.Context, req BeginAuthRequest) (BeginAuthResponse, error) {
	if p.beginAuthErr != nil {
		return BeginAuthResponse{}, p.beginAuthErr
	}
	return BeginAuthResponse{
		URL:   "https://example.com/oauth/authorize?state=" + req.State,
		State: req.State,
	}, nil
}

func (p *testProvider) CompleteAuth(context.Context, CompleteAuthRequest) (CompleteAuthResponse, error) {
	if p.completeAuthErr != nil {
		return CompleteAuthResponse{}, p.completeAuthErr
	}
	expiresAt := time.Now().UTC().Add(time.Hour)
	return CompleteAuthResponse{
		Credential: ActiveCredential{
			TokenType:   "bearer",
			AccessToken: "token-" + p.id,
			Scopes:      []string{"publish"},
			ExpiresAt:   &expiresAt,
			Refreshable: true,
		},
	}, nil
}

func (p *testProvider) ResolveIdentity(context.Context, ActiveCredential) (AccountIdentity, error) {
	if p.identityErr != nil {
		return AccountIdentity{}, p.identityErr
	}
	if strings.TrimSpace(p.identity.ExternalAccountID) != "" {
		return p.identity, nil
	}
	return AccountIdentity{
		ExternalAccountID:  "ext-" + p.id,
		DisplayName:        "Test " + p.id,
		Handle:             "@" + p.id,
		AutopublishCapable: true,
	}, nil
}

func (p *testProvider) Publish(ctx context.Context, in PublishInstruction) (PublishReceipt, error) {
	p.mu.Lock()
	p.publishCalls = append(p.publishCalls, in)
	p.mu.Unlock()
	if p.publishFn != nil {
		return p.publishFn(ctx, in)
	}
	return PublishReceipt{PostID: "post-1", PostURL: "https://example.com/post-1"}, nil
}

func (p *testProvider) CompleteDirectAuth(ctx context.Context, req DirectAuthRequest) (CompleteAuthResponse, error) {
	if p.directFn != nil {
		return p.directFn(ctx, req)
	}
	return CompleteAuthResponse{
		Credential: ActiveCredential{
			TokenType:   "bearer",
			AccessToken: "session-" + req.Identifier,
			Refreshable: true,
		},
	}, nil
}

func (p *testProvider) publishCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.publishCalls)
}

type memoryAccountStore struct {
	mu          sync.Mutex
	byID        map[string]Account
	credentials *memoryCredentialStore
}

func newMemoryAccountStore(credentials *memoryCredentialStore) *memoryAccountStore {
	return &memoryAccountStore{
		byID:        map[string]Account{},
		credentials: credentials,
	}
}

func (s *memoryAccountStore) ConnectAccount(ctx context.Context, in ConnectAccountInput) (Account, Credential, error) {
	s.mu.Lock()
	var existing *Account
	for _, account := range s.byID {
		if account.WorkspaceID == in.WorkspaceID &&
			account.ProviderID == in.ProviderID &&
			account.ExternalAccountID == in.Identity.ExternalAccountID {
			copied := account
			existing = &copied
			break
		}
	}
	now := time.Now().UTC()
	var account Account
	if existing != nil {
		account = *existing
		account.DisplayName = in.Identity.DisplayName
		account.Handle = in.Identity.Handle
		account.AvatarURL = in.Identity.AvatarURL
		account.Status = AccountStatusConnected
		account.LastError = ""
		account.LastConnectedAt = now
		account.UpdatedAt = now
	} else {
		account = Account{
			ID:                 uuid.NewString(),
			WorkspaceID:        in.WorkspaceID,
			ProviderID:         in.ProviderID,
			ExternalAccountID:  in.Identity.ExternalAccountID,
			DisplayName:        in.Identity.DisplayName,
			Handle:             in.Identity.Handle,
			AvatarURL:          in.Identity.AvatarURL,
			AccountType:        in.Identity.AccountType,
			AutopublishCapable: in.Identity.AutopublishCapable,
			Status:             AccountStatusConnected,
			LastConnectedAt:    now,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
	}
	s.byID[account.ID] = account
	s.mu.Unlock()

	credential, err := s.credentials.SaveNewVersion(ctx, SaveCredentialInput{
		AccountID:    account.ID,
		TokenType:    in.Credential.TokenType,
		AccessToken:  in.Credential.AccessToken,
		RefreshToken: in.Credential.RefreshToken,
		Scopes:       in.Credential.Scopes,
		ExpiresAt:    in.Credential.ExpiresAt,
		Refreshable:  in.Credential.Refreshable,
		Status:       CredentialStatusActive,
	})
	if err != nil {
		return Account{}, Credential{}, err
	}
	return account, credential, nil
}

func (s *memoryAccountStore) Get(_ context.Context, workspaceID string, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok || account.WorkspaceID != workspaceID {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (s *memoryAccountStore) ListByWorkspace(_ context.Context, workspaceID string) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Account
	for _, account := range s.byID {
		if account.WorkspaceID == workspaceID {
			out = append(out, account)
		}
	}
	return out, nil
}

func (s *memoryAccountStore) ListForPublish(_ context.Context, workspaceID string, ids []string) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	var out []Account
	for _, account := range s.byID {
		if account.WorkspaceID != workspaceID {
			continue
		}
		if _, ok := wanted[account.ID]; ok {
			out = append(out, account)
		}
	}
	return out, nil
}

func (s *memoryAccountStore) UpdateStatus(_ context.Context, id string, status AccountStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	account, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	if err := account.TransitionTo(status, reason, time.Now().UTC()); err != nil {
		return err
	}
	s.byID[id] = account
	return nil
}

func (s *memoryAccountStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

type memoryCredentialStore struct {
	mu        sync.Mutex
	next      int
	byAccount map[string][]Credential
}

func newMemoryCredentialStore() *memoryCredentialStore {
	return &memoryCredentialStore{byAccount: map[string][]Credential{}}
}

func (s *memoryCredentialStore) SaveNewVersion(_ context.Context, in SaveCredentialInput) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(in.AccountID) == "" {
		return Credential{}, fmt.Errorf("account id is required")
	}
	now := time.Now().UTC()
	versions := s.byAccount[in.AccountID]
	for i := range versions {
		if versions[i].Status == CredentialStatusActive {
			versions[i].Status = CredentialStatusRevoked
			versions[i].RevocationReason = "superseded"
			versions[i].UpdatedAt = now
		}
	}
	s.next++
	credential := Credential{
		ID:           fmt.Sprintf("cred_%d", s.next),
		AccountID:    in.AccountID,
		Version:      len(versions) + 1,
		TokenType:    in.TokenType,
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		Scopes:       append([]string(nil), in.Scopes...),
		Refreshable:  in.Refreshable,
		Status:       CredentialStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.ExpiresAt != nil {
		credential.ExpiresAt = *in.ExpiresAt
	}
	s.byAccount[in.AccountID] = append(versions, credential)
	return credential, nil
}

func (s *memoryCredentialStore) GetActiveByAccount(_ context.Context, accountID string) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, credential := range s.byAccount[accountID] {
		if credential.Status == CredentialStatusActive {
			return credential, nil
		}
	}
	return Credential{}, ErrCredentialNotFound
}

func (s *memoryCredentialStore) RevokeActive(_ context.Context, accountID string, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	versions := s.byAccount[accountID]
	for i := range versions {
		if versions[i].Status == CredentialStatusActive {
			versions[i].Status = CredentialStatusRevoked
			versions[i].RevocationReason = reason
			versions[i].UpdatedAt = time.Now().UTC()
		}
	}
	s.byAccount[accountID] = versions
	return nil
}

func (s *memoryCredentialStore) versionCount(accountID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byAccount[accountID])
}

type memoryAuditStore struct {
	mu        sync.Mutex
	next      int
	entries   []PublishAuditEntry
	recordErr error
}

func newMemoryAuditStore() *memoryAuditStore {
	return &memoryAuditStore{}
}

func (s *memoryAuditStore) Record(_ context.Context, entry PublishAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recordErr != nil {
		return s.recordErr
	}
	s.next++
	entry.ID = fmt.Sprintf("audit_%d", s.next)
	entry.CreatedAt = time.Now().UTC()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *memoryAuditStore) List(_ context.Context, filter PublishActivityFilter) (PublishActivityPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []PublishAuditEntry
	for _, entry := range s.entries {
		if filter.WorkspaceID != "" && entry.WorkspaceID != filter.WorkspaceID {
			continue
		}
		if filter.Status != "" && entry.Status != filter.Status {
			continue
		}
		items = append(items, entry)
	}
	return PublishActivityPage{
		Items:   items,
		Page:    1,
		PerPage: len(items),
		Total:   len(items),
	}, nil
}

func (s *memoryAuditStore) recorded() []PublishAuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PublishAuditEntry(nil), s.entries...)
}

type denyAuthorizer struct{}

func (denyAuthorizer) CanPublish(context.Context, string, string) (bool, error) {
	return false, nil
}

type serviceFixture struct {
	service     *Service
	registry    *ProviderRegistry
	accounts    *memoryAccountStore
	credentials *memoryCredentialStore
	audits      *memoryAuditStore
}

func newServiceFixture(t interface{ Fatalf(string, ...any) }, cfg Config, providers ...Provider) serviceFixture {
	registry := NewProviderRegistry()
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			t.Fatalf("register provider: %v", err)
		}
	}
	credentials := newMemoryCredentialStore()
	accounts := newMemoryAccountStore(credentials)
	audits := newMemoryAuditStore()

	svc, err := NewService(cfg,
		WithRegistry(registry),
		WithAccountStore(accounts),
		WithCredentialStore(credentials),
		WithAuditStore(audits),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return serviceFixture{
		service:     svc,
		registry:    registry,
		accounts:    accounts,
		credentials: credentials,
		audits:      audits,
	}
}

func connectTestAccount(
	t interface{ Fatalf(string, ...any) },
	fixture serviceFixture,
	workspaceID string,
	providerID string,
	externalID string,
	accessToken string,
) Account {
	account, _, err := fixture.accounts.ConnectAccount(context.Background(), ConnectAccountInput{
		WorkspaceID: workspaceID,
		ProviderID:  providerID,
		Identity: AccountIdentity{
			ExternalAccountID:  externalID,
			DisplayName:        "Account " + externalID,
			AutopublishCapable: true,
		},
		Credential: ActiveCredential{
			TokenType:   "bearer",
			AccessToken: accessToken,
		},
	})
	if err != nil {
		t.Fatalf("connect test account: %v", err)
	}
	return account
}
