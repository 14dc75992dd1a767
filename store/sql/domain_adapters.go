package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
)

func newAccountRecord(in core.ConnectAccountInput, now time.Time) *socialAccountRecord {
	connectedAt := now
	return &socialAccountRecord{
		WorkspaceID:        strings.TrimSpace(in.WorkspaceID),
		ProviderID:         strings.TrimSpace(in.ProviderID),
		ExternalAccountID:  strings.TrimSpace(in.Identity.ExternalAccountID),
		DisplayName:        strings.TrimSpace(in.Identity.DisplayName),
		Handle:             strings.TrimSpace(in.Identity.Handle),
		AvatarURL:          strings.TrimSpace(in.Identity.AvatarURL),
		AccountType:        strings.TrimSpace(in.Identity.AccountType),
		AutopublishCapable: in.Identity.AutopublishCapable,
		Status:             string(core.AccountStatusConnected),
		LastError:          "",
		LastConnectedAt:    &connectedAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (r *socialAccountRecord) toDomain() core.Account {
	if r == nil {
		return core.Account{}
	}
	account := core.Account{
		ID:                 r.ID,
		WorkspaceID:        r.WorkspaceID,
		ProviderID:         r.ProviderID,
		ExternalAccountID:  r.ExternalAccountID,
		DisplayName:        r.DisplayName,
		Handle:             r.Handle,
		AvatarURL:          r.AvatarURL,
		AccountType:        r.AccountType,
		AutopublishCapable: r.AutopublishCapable,
		Status:             core.AccountStatus(r.Status),
		LastError:          r.LastError,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if r.LastConnectedAt != nil {
		account.LastConnectedAt = *r.LastConnectedAt
	}
	return account
}

func newCredentialRecord(in core.SaveCredentialInput, version int, now time.Time) *socialCredentialRecord {
	record := &socialCredentialRecord{
		AccountID:    strings.TrimSpace(in.AccountID),
		Version:      version,
		TokenType:    strings.TrimSpace(in.TokenType),
		AccessToken:  in.AccessToken,
		RefreshToken: in.RefreshToken,
		Scopes:       append([]string(nil), in.Scopes...),
		Refreshable:  in.Refreshable,
		Status:       string(in.Status),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if record.TokenType == "" {
		record.TokenType = "bearer"
	}
	if record.Scopes == nil {
		record.Scopes = []string{}
	}
	if in.ExpiresAt != nil {
		expiresAt := in.ExpiresAt.UTC()
		record.ExpiresAt = &expiresAt
	}
	return record
}

func (r *socialCredentialRecord) toDomain() core.Credential {
	if r == nil {
		return core.Credential{}
	}
	credential := core.Credential{
		ID:               r.ID,
		AccountID:        r.AccountID,
		Version:          r.Version,
		TokenType:        r.TokenType,
		AccessToken:      r.AccessToken,
		RefreshToken:     r.RefreshToken,
		Scopes:           append([]string(nil), r.Scopes...),
		Refreshable:      r.Refreshable,
		Status:           core.CredentialStatus(r.Status),
		RevocationReason: r.RevocationReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.ExpiresAt != nil {
		credential.ExpiresAt = *r.ExpiresAt
	}
	return credential
}

func newAuditRecord(entry core.PublishAuditEntry, now time.Time) *publishAuditRecord {
	record := &publishAuditRecord{
		ID:               strings.TrimSpace(entry.ID),
		WorkspaceID:      strings.TrimSpace(entry.WorkspaceID),
		ActorID:          strings.TrimSpace(entry.ActorID),
		Status:           string(entry.Status),
		Total:            entry.Total,
		Succeeded:        entry.Succeeded,
		Failed:           entry.Failed,
		Providers:        append([]string(nil), entry.Providers...),
		ProviderOutcomes: make(map[string]providerTally, len(entry.ProviderOutcomes)),
		Metadata:         redactAuditMetadata(entry.Metadata),
		CreatedAt:        entry.CreatedAt.UTC(),
	}
	for id, outcome := range entry.ProviderOutcomes {
		record.ProviderOutcomes[id] = providerTally{
			Succeeded: outcome.Succeeded,
			Failed:    outcome.Failed,
		}
	}
	if record.Providers == nil {
		record.Providers = []string{}
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	return record
}

func (r *publishAuditRecord) toDomain() core.PublishAuditEntry {
	if r == nil {
		return core.PublishAuditEntry{}
	}
	entry := core.PublishAuditEntry{
		ID:               r.ID,
		WorkspaceID:      r.WorkspaceID,
		ActorID:          r.ActorID,
		Status:           core.PublishStatus(r.Status),
		Total:            r.Total,
		Succeeded:        r.Succeeded,
		Failed:           r.Failed,
		Providers:        append([]string(nil), r.Providers...),
		ProviderOutcomes: make(map[string]core.ProviderOutcome, len(r.ProviderOutcomes)),
		Metadata:         copyAnyMap(r.Metadata),
		CreatedAt:        r.CreatedAt,
	}
	for id, tally := range r.ProviderOutcomes {
		entry.ProviderOutcomes[id] = core.ProviderOutcome{
			Succeeded: tally.Succeeded,
			Failed:    tally.Failed,
		}
	}
	return entry
}

func copyAnyMap(source map[string]any) map[string]any {
	target := make(map[string]any, len(source))
	for key, value := range source {
		target[key] = value
	}
	return target
}
