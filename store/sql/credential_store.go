package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/uptrace/bun"
)

type CredentialStore struct {
	db   *bun.DB
	repo repository.Repository[*socialCredentialRecord]
}

// SaveNewVersion revokes the current active credential and inserts the next
// version in one transaction. Credential history is append only.
func (s *CredentialStore) SaveNewVersion(ctx context.Context, in core.SaveCredentialInput) (core.Credential, error) {
	if s == nil || s.repo == nil || s.db == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	var created core.Credential
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		saved, saveErr := s.saveNewVersionTx(ctx, tx, in, time.Now().UTC())
		if saveErr != nil {
			return saveErr
		}
		created = saved
		return nil
	})
	if err != nil {
		return core.Credential{}, err
	}
	return created, nil
}

func (s *CredentialStore) saveNewVersionTx(ctx context.Context, tx bun.Tx, in core.SaveCredentialInput, now time.Time) (core.Credential, error) {
	trimmedAccountID := strings.TrimSpace(in.AccountID)
	if trimmedAccountID == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: account id is required")
	}
	if strings.TrimSpace(in.AccessToken) == "" {
		return core.Credential{}, fmt.Errorf("sqlstore: access token is required")
	}

	status := in.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.CredentialStatusActive
	}
	in.AccountID = trimmedAccountID
	in.Status = status

	nextVersion, err := s.nextVersion(ctx, tx, trimmedAccountID)
	if err != nil {
		return core.Credential{}, err
	}

	if status == core.CredentialStatusActive {
		if _, err := tx.NewUpdate().
			Model((*socialCredentialRecord)(nil)).
			Set("status = ?", string(core.CredentialStatusRevoked)).
			Set("revocation_reason = ?", "superseded").
			Set("updated_at = ?", now).
			Where("account_id = ?", trimmedAccountID).
			Where("status = ?", string(core.CredentialStatusActive)).
			Exec(ctx); err != nil {
			return core.Credential{}, err
		}
	}

	record := newCredentialRecord(in, nextVersion, now)
	inserted, err := s.repo.CreateTx(ctx, tx, record)
	if err != nil {
		return core.Credential{}, err
	}
	return inserted.toDomain(), nil
}

func (s *CredentialStore) GetActiveByAccount(ctx context.Context, accountID string) (core.Credential, error) {
	if s == nil || s.repo == nil {
		return core.Credential{}, fmt.Errorf("sqlstore: credential store is not configured")
	}
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("account_id", "=", strings.TrimSpace(accountID)),
		repository.SelectBy("status", "=", string(core.CredentialStatusActive)),
		repository.OrderBy("version DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.Credential{}, err
	}
	if len(records) == 0 {
		return core.Credential{}, core.ErrCredentialNotFound
	}
	return records[0].toDomain(), nil
}

func (s *CredentialStore) RevokeActive(ctx context.Context, accountID string, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	trimmedAccountID := strings.TrimSpace(accountID)
	if trimmedAccountID == "" {
		return fmt.Errorf("sqlstore: account id is required")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "revoked"
	}

	_, err := s.db.NewUpdate().
		Model((*socialCredentialRecord)(nil)).
		Set("status = ?", string(core.CredentialStatusRevoked)).
		Set("revocation_reason = ?", reason).
		Set("updated_at = ?", time.Now().UTC()).
		Where("account_id = ?", trimmedAccountID).
		Where("status = ?", string(core.CredentialStatusActive)).
		Exec(ctx)
	return err
}

func (s *CredentialStore) nextVersion(ctx context.Context, tx bun.Tx, accountID string) (int, error) {
	var maxVersion int
	if err := tx.NewSelect().
		Model((*socialCredentialRecord)(nil)).
		ColumnExpr("COALESCE(MAX(version), 0)").
		Where("?TableAlias.account_id = ?", accountID).
		Scan(ctx, &maxVersion); err != nil {
		return 0, err
	}
	return maxVersion + 1, nil
}
