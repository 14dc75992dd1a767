package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/uptrace/bun"
)

type AccountStore struct {
	db          *bun.DB
	repo        repository.Repository[*socialAccountRecord]
	credentials *CredentialStore
}

// ConnectAccount upserts on (workspace_id, provider_id, external_account_id)
// and writes the new credential version inside the same transaction, so a
// failed credential insert never leaves a connected account without a token.
func (s *AccountStore) ConnectAccount(ctx context.Context, in core.ConnectAccountInput) (core.Account, core.Credential, error) {
	if s == nil || s.repo == nil || s.db == nil || s.credentials == nil {
		return core.Account{}, core.Credential{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	workspaceID := strings.TrimSpace(in.WorkspaceID)
	providerID := strings.TrimSpace(in.ProviderID)
	externalAccountID := strings.TrimSpace(in.Identity.ExternalAccountID)
	if workspaceID == "" {
		return core.Account{}, core.Credential{}, fmt.Errorf("sqlstore: workspace id is required")
	}
	if providerID == "" {
		return core.Account{}, core.Credential{}, fmt.Errorf("sqlstore: provider id is required")
	}
	if externalAccountID == "" {
		return core.Account{}, core.Credential{}, fmt.Errorf("sqlstore: external account id is required")
	}

	now := time.Now().UTC()
	var account core.Account
	var credential core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := new(socialAccountRecord)
		findErr := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.workspace_id = ?", workspaceID).
			Where("?TableAlias.provider_id = ?", providerID).
			Where("?TableAlias.external_account_id = ?", externalAccountID).
			Limit(1).
			Scan(ctx)

		switch {
		case findErr == nil:
			existing.DisplayName = strings.TrimSpace(in.Identity.DisplayName)
			existing.Handle = strings.TrimSpace(in.Identity.Handle)
			existing.AvatarURL = strings.TrimSpace(in.Identity.AvatarURL)
			existing.AccountType = strings.TrimSpace(in.Identity.AccountType)
			existing.AutopublishCapable = in.Identity.AutopublishCapable
			existing.Status = string(core.AccountStatusConnected)
			existing.LastError = ""
			connectedAt := now
			existing.LastConnectedAt = &connectedAt
			existing.UpdatedAt = now
			if _, updateErr := tx.NewUpdate().
				Model(existing).
				WherePK().
				Exec(ctx); updateErr != nil {
				return updateErr
			}
			account = existing.toDomain()
		case errors.Is(findErr, sql.ErrNoRows):
			record := newAccountRecord(in, now)
			inserted, createErr := s.repo.CreateTx(ctx, tx, record)
			if createErr != nil {
				return createErr
			}
			account = inserted.toDomain()
		default:
			return findErr
		}

		saved, saveErr := s.credentials.saveNewVersionTx(ctx, tx, core.SaveCredentialInput{
			AccountID:    account.ID,
			TokenType:    in.Credential.TokenType,
			AccessToken:  in.Credential.AccessToken,
			RefreshToken: in.Credential.RefreshToken,
			Scopes:       in.Credential.Scopes,
			ExpiresAt:    in.Credential.ExpiresAt,
			Refreshable:  in.Credential.Refreshable,
			Status:       core.CredentialStatusActive,
		}, now)
		if saveErr != nil {
			return saveErr
		}
		credential = saved
		return nil
	})
	if err != nil {
		return core.Account{}, core.Credential{}, err
	}

	return account, credential, nil
}

func (s *AccountStore) Get(ctx context.Context, workspaceID string, id string) (core.Account, error) {
	if s == nil || s.repo == nil {
		return core.Account{}, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("id", "=", strings.TrimSpace(id)),
		repository.SelectBy("workspace_id", "=", strings.TrimSpace(workspaceID)),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Account{}, err
	}
	if len(records) == 0 {
		return core.Account{}, core.ErrAccountNotFound
	}
	return records[0].toDomain(), nil
}

func (s *AccountStore) ListByWorkspace(ctx context.Context, workspaceID string) ([]core.Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("workspace_id", "=", strings.TrimSpace(workspaceID)),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *AccountStore) ListForPublish(ctx context.Context, workspaceID string, ids []string) ([]core.Account, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: account store is not configured")
	}
	trimmed := make([]string, 0, len(ids))
	for _, id := range ids {
		if value := strings.TrimSpace(id); value != "" {
			trimmed = append(trimmed, value)
		}
	}
	if len(trimmed) == 0 {
		return []core.Account{}, nil
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("workspace_id", "=", strings.TrimSpace(workspaceID)),
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.id IN (?)", bun.In(trimmed))
		}),
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *AccountStore) UpdateStatus(ctx context.Context, id string, status core.AccountStatus, reason string) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: account store is not configured")
	}
	trimmedID := strings.TrimSpace(id)
	if trimmedID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	current, err := s.repo.GetByID(ctx, trimmedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrAccountNotFound
		}
		return err
	}

	now := time.Now().UTC()
	account := current.toDomain()
	if err := account.TransitionTo(status, reason, now); err != nil {
		return err
	}

	current.Status = string(account.Status)
	current.LastError = account.LastError
	current.UpdatedAt = now
	_, err = s.repo.Update(ctx, current, repository.UpdateByID(trimmedID))
	return err
}
