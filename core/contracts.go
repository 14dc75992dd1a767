package core

import (
	"context"
	"net/http"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// PublishConstraints describes what a platform accepts. The registry owns
// exactly one Provider (and so one constraint set) per provider id.
type PublishConstraints struct {
	MaxContentLength int
	RequiresMedia    bool
	SupportsLinks    bool
	UsesOAuth        bool
}

type ConnectRequest struct {
	ProviderID  string
	UserID      string
	WorkspaceID string
	ReturnPath  string
	RedirectURI string
	Metadata    map[string]any
}

type BeginAuthRequest struct {
	ProviderID  string
	RedirectURI string
	State       string
	Scopes      []string
	Metadata    map[string]any
}

type BeginAuthResponse struct {
	URL      string
	State    string
	Scopes   []string
	Metadata map[string]any
}

type CompleteAuthRequest struct {
	ProviderID  string
	Code        string
	State       string
	RedirectURI string
	Metadata    map[string]any
}

type ActiveCredential struct {
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scopes       []string
	ExpiresAt    *time.Time
	Refreshable  bool
	Metadata     map[string]any
}

type CompleteAuthResponse struct {
	Credential ActiveCredential
	Metadata   map[string]any
}

// DirectAuthRequest carries an identifier/app-password pair for providers
// that authenticate without an OAuth redirect.
type DirectAuthRequest struct {
	ProviderID  string
	UserID      string
	WorkspaceID string
	Identifier  string
	AppPassword string
	Metadata    map[string]any
}

type CallbackCompletion struct {
	Account    Account
	Credential Credential
	ReturnPath string
}

// PublishInstruction is everything a provider adapter needs to place one
// post on behalf of one account.
type PublishInstruction struct {
	Account    Account
	Credential ActiveCredential
	Content    string
	LinkURL    string
	MediaURL   string
	MediaType  string
}

type PublishReceipt struct {
	PostID   string
	PostURL  string
	Metadata map[string]any
}

type Provider interface {
	ID() string
	AuthKind() string
	Constraints() PublishConstraints

	BeginAuth(ctx context.Context, req BeginAuthRequest) (BeginAuthResponse, error)
	CompleteAuth(ctx context.Context, req CompleteAuthRequest) (CompleteAuthResponse, error)
	ResolveIdentity(ctx context.Context, cred ActiveCredential) (AccountIdentity, error)
	Publish(ctx context.Context, in PublishInstruction) (PublishReceipt, error)
}

// DirectAuthProvider is implemented by providers whose accounts connect with
// a credential pair instead of an authorization-code redirect.
type DirectAuthProvider interface {
	CompleteDirectAuth(ctx context.Context, req DirectAuthRequest) (CompleteAuthResponse, error)
}

type Registry interface {
	Register(provider Provider) error
	Get(providerID string) (Provider, bool)
	List() []Provider
}

type ConnectAccountInput struct {
	WorkspaceID string
	ProviderID  string
	Identity    AccountIdentity
	Credential  ActiveCredential
}

type SaveCredentialInput struct {
	AccountID    string
	TokenType    string
	AccessToken  string
	RefreshToken string
	Scopes       []string
	ExpiresAt    *time.Time
	Refreshable  bool
	Status       CredentialStatus
}

type AccountStore interface {
	// ConnectAccount upserts the account keyed by
	// (workspace_id, provider_id, external_account_id) and stores the new
	// credential version in the same transaction.
	ConnectAccount(ctx context.Context, in ConnectAccountInput) (Account, Credential, error)
	Get(ctx context.Context, workspaceID string, id string) (Account, error)
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Account, error)
	ListForPublish(ctx context.Context, workspaceID string, ids []string) ([]Account, error)
	UpdateStatus(ctx context.Context, id string, status AccountStatus, reason string) error
}

type CredentialStore interface {
	SaveNewVersion(ctx context.Context, in SaveCredentialInput) (Credential, error)
	GetActiveByAccount(ctx context.Context, accountID string) (Credential, error)
	RevokeActive(ctx context.Context, accountID string, reason string) error
}

type PublishActivityFilter struct {
	WorkspaceID string
	ActorID     string
	Status      PublishStatus
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}

type PublishActivityPage struct {
	Items   []PublishAuditEntry
	Page    int
	PerPage int
	Total   int
	HasNext bool
}

type AuditStore interface {
	Record(ctx context.Context, entry PublishAuditEntry) error
	List(ctx context.Context, filter PublishActivityFilter) (PublishActivityPage, error)
}

type StoreProvider interface {
	AccountStore() AccountStore
	CredentialStore() CredentialStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Authorizer decides whether an actor may publish into a workspace. The
// default allows everyone; embedding applications supply their own.
type Authorizer interface {
	CanPublish(ctx context.Context, actorID string, workspaceID string) (bool, error)
}

// StateCodec round-trips the OAuth callback state. Implementations must make
// tampering detectable.
type StateCodec interface {
	Encode(state OAuthState) (string, error)
	Decode(token string) (OAuthState, error)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
	Idempotency          string
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type Signer interface {
	Sign(ctx context.Context, req *http.Request, cred ActiveCredential) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// SocialService is the full operation surface of the integration layer.
type SocialService interface {
	Connect(ctx context.Context, req ConnectRequest) (BeginAuthResponse, error)
	CompleteCallback(ctx context.Context, req CompleteAuthRequest) (CallbackCompletion, error)
	ConnectDirect(ctx context.Context, req DirectAuthRequest) (CallbackCompletion, error)
	Disconnect(ctx context.Context, workspaceID string, accountID string) error
	MarkNeedsRefresh(ctx context.Context, accountID string, reason string) error
	Publish(ctx context.Context, req PublishRequest) (PublishOutcome, error)
	GetAccount(ctx context.Context, workspaceID string, accountID string) (Account, error)
	ListAccounts(ctx context.Context, workspaceID string) ([]Account, error)
	ListPublishActivity(ctx context.Context, filter PublishActivityFilter) (PublishActivityPage, error)
	SignRequest(ctx context.Context, accountID string, req *http.Request) error
}
