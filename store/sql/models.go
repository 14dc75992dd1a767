package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type socialAccountRecord struct {
	bun.BaseModel `bun:"table:social_accounts,alias:sa"`

	ID                 string     `bun:"id,pk"`
	WorkspaceID        string     `bun:"workspace_id,notnull"`
	ProviderID         string     `bun:"provider_id,notnull"`
	ExternalAccountID  string     `bun:"external_account_id,notnull"`
	DisplayName        string     `bun:"display_name"`
	Handle             string     `bun:"handle"`
	AvatarURL          string     `bun:"avatar_url"`
	AccountType        string     `bun:"account_type"`
	AutopublishCapable bool       `bun:"autopublish_capable,notnull"`
	Status             string     `bun:"status,notnull"`
	LastError          string     `bun:"last_error"`
	LastConnectedAt    *time.Time `bun:"last_connected_at,nullzero"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type socialCredentialRecord struct {
	bun.BaseModel `bun:"table:social_credentials,alias:scr"`

	ID               string     `bun:"id,pk"`
	AccountID        string     `bun:"account_id,notnull"`
	Version          int        `bun:"version,notnull"`
	TokenType        string     `bun:"token_type,notnull"`
	AccessToken      string     `bun:"access_token,notnull"`
	RefreshToken     string     `bun:"refresh_token"`
	Scopes           []string   `bun:"scopes,type:jsonb,notnull"`
	ExpiresAt        *time.Time `bun:"expires_at,nullzero"`
	Refreshable      bool       `bun:"refreshable,notnull"`
	Status           string     `bun:"status,notnull"`
	RevocationReason string     `bun:"revocation_reason,notnull"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// providerTally is the stored per-provider split inside an audit row.
type providerTally struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

type publishAuditRecord struct {
	bun.BaseModel `bun:"table:social_publish_audit,alias:spa"`

	ID               string                   `bun:"id,pk"`
	WorkspaceID      string                   `bun:"workspace_id,notnull"`
	ActorID          string                   `bun:"actor_id,notnull"`
	Status           string                   `bun:"status,notnull"`
	Total            int                      `bun:"total,notnull"`
	Succeeded        int                      `bun:"succeeded,notnull"`
	Failed           int                      `bun:"failed,notnull"`
	Providers        []string                 `bun:"providers,type:jsonb,notnull"`
	ProviderOutcomes map[string]providerTally `bun:"provider_outcomes,type:jsonb,notnull"`
	Metadata         map[string]any           `bun:"metadata,type:jsonb,notnull"`
	CreatedAt        time.Time                `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}
