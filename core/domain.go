package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidAccountStatusTransition    = errors.New("core: invalid account status transition")
	ErrInvalidCredentialStatusTransition = errors.New("core: invalid credential status transition")
	ErrAccountNotFound                   = errors.New("core: account not found")
	ErrCredentialNotFound                = errors.New("core: active credential not found")
)

type AccountStatus string

const (
	AccountStatusConnected    AccountStatus = "connected"
	AccountStatusNeedsRefresh AccountStatus = "needs_refresh"
	AccountStatusDisconnected AccountStatus = "disconnected"
	AccountStatusErrored      AccountStatus = "errored"
)

// Account is a social account connected into a workspace. The triple
// (WorkspaceID, ProviderID, ExternalAccountID) is unique; reconnecting the
// same remote account updates the existing row.
type Account struct {
	ID                 string
	WorkspaceID        string
	ProviderID         string
	ExternalAccountID  string
	DisplayName        string
	Handle             string
	AvatarURL          string
	AccountType        string
	AutopublishCapable bool
	Status             AccountStatus
	LastError          string
	LastConnectedAt    time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a *Account) TransitionTo(status AccountStatus, reason string, now time.Time) error {
	if a == nil {
		return nil
	}
	if a.Status == status {
		a.UpdatedAt = now
		if strings.TrimSpace(reason) != "" {
			a.LastError = strings.TrimSpace(reason)
		}
		return nil
	}
	if !accountTransitionAllowed(a.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidAccountStatusTransition, a.Status, status)
	}
	a.Status = status
	a.UpdatedAt = now
	if strings.TrimSpace(reason) != "" {
		a.LastError = strings.TrimSpace(reason)
	}
	if status == AccountStatusConnected {
		a.LastError = ""
		a.LastConnectedAt = now
	}
	return nil
}

func accountTransitionAllowed(current, next AccountStatus) bool {
	allowed := map[AccountStatus]map[AccountStatus]struct{}{
		AccountStatusConnected: {
			AccountStatusNeedsRefresh: {},
			AccountStatusDisconnected: {},
			AccountStatusErrored:      {},
		},
		AccountStatusNeedsRefresh: {
			AccountStatusConnected:    {},
			AccountStatusDisconnected: {},
			AccountStatusErrored:      {},
		},
		AccountStatusErrored: {
			AccountStatusConnected:    {},
			AccountStatusNeedsRefresh: {},
			AccountStatusDisconnected: {},
		},
		AccountStatusDisconnected: {
			AccountStatusConnected: {},
		},
	}
	_, ok := allowed[current][next]
	return ok
}

type CredentialStatus string

const (
	CredentialStatusActive  CredentialStatus = "active"
	CredentialStatusRevoked CredentialStatus = "revoked"
	CredentialStatusExpired CredentialStatus = "expired"
)

// Credential is a versioned token record owned by an Account. Saving a new
// version revokes the previous active one; history is append only.
//
// Token material is stored as issued. Encryption at rest is the embedding
// application's concern.
type Credential struct {
	ID               string
	AccountID        string
	Version          int
	TokenType        string
	AccessToken      string
	RefreshToken     string
	Scopes           []string
	ExpiresAt        time.Time
	Refreshable      bool
	Status           CredentialStatus
	RevocationReason string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (c *Credential) TransitionTo(status CredentialStatus, now time.Time) error {
	if c == nil {
		return nil
	}
	if c.Status == status {
		c.UpdatedAt = now
		return nil
	}
	if !credentialTransitionAllowed(c.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidCredentialStatusTransition, c.Status, status)
	}
	c.Status = status
	c.UpdatedAt = now
	return nil
}

func credentialTransitionAllowed(current, next CredentialStatus) bool {
	allowed := map[CredentialStatus]map[CredentialStatus]struct{}{
		CredentialStatusActive: {
			CredentialStatusRevoked: {},
			CredentialStatusExpired: {},
		},
		CredentialStatusExpired: {
			CredentialStatusActive:  {},
			CredentialStatusRevoked: {},
		},
		CredentialStatusRevoked: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// AccountIdentity is the normalized "who am I" answer a provider resolves
// after an auth flow completes.
type AccountIdentity struct {
	ExternalAccountID  string
	DisplayName        string
	Handle             string
	AvatarURL          string
	AccountType        string
	AutopublishCapable bool
}

type PublishStatus string

const (
	PublishStatusPublished PublishStatus = "published"
	PublishStatusPartial   PublishStatus = "partial"
	PublishStatusFailed    PublishStatus = "failed"
)

// PublishRequest asks for one piece of content to be delivered to many
// connected accounts. It is transient; only the outcome is persisted.
type PublishRequest struct {
	WorkspaceID      string
	ActorID          string
	Content          string
	LinkURL          string
	MediaURL         string
	MediaType        string
	TargetAccountIDs []string
}

type PublishResult struct {
	AccountID    string
	ProviderID   string
	Success      bool
	PostID       string
	PostURL      string
	ErrorCode    string
	ErrorMessage string
}

type PublishSummary struct {
	Total     int
	Succeeded int
	Failed    int
}

type PublishOutcome struct {
	Status  PublishStatus
	Results []PublishResult
	Summary PublishSummary
}

// ProviderOutcome counts how one provider's targets fared inside a fan-out.
type ProviderOutcome struct {
	Succeeded int
	Failed    int
}

// PublishAuditEntry is the append-only record written after every fan-out.
type PublishAuditEntry struct {
	ID               string
	WorkspaceID      string
	ActorID          string
	Status           PublishStatus
	Total            int
	Succeeded        int
	Failed           int
	Providers        []string
	ProviderOutcomes map[string]ProviderOutcome
	Metadata         map[string]any
	CreatedAt        time.Time
}

// Per-target error codes reported inside PublishResult. Provider adapters
// may add their own codes on top of these.
const (
	PublishErrorNoAccessToken = "no_access_token"
	PublishErrorTooLong       = "too_long"
	PublishErrorMediaRequired = "media_required"
	PublishErrorNotConnected  = "not_connected"
	PublishErrorTimeout       = "timeout"
	PublishErrorPublishFailed = "publish_failed"
)

// ProviderError is the normalized shape every provider adapter reduces its
// platform's error payload to. The raw payload never crosses this boundary.
type ProviderError struct {
	ProviderID string
	Code       string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %s", e.ProviderID, e.Code, e.Message)
}

// TargetValidationError marks a per-target constraint failure; it fails only
// the target that produced it, never the whole fan-out.
type TargetValidationError struct {
	Code    string
	Message string
}

func (e *TargetValidationError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
