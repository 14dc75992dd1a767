package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-social/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AuditStore struct {
	db   *bun.DB
	repo repository.Repository[*publishAuditRecord]
}

func NewAuditStore(db *bun.DB) (*AuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*publishAuditRecord](db, auditHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid audit repository wiring: %w", err)
		}
	}
	return &AuditStore{db: db, repo: repo}, nil
}

func (s *AuditStore) Record(ctx context.Context, entry core.PublishAuditEntry) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: audit store is not configured")
	}
	if strings.TrimSpace(entry.WorkspaceID) == "" {
		return fmt.Errorf("sqlstore: audit entry workspace id is required")
	}
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	record := newAuditRecord(entry, time.Now().UTC())
	_, err := s.repo.Create(ctx, record)
	return err
}

func (s *AuditStore) List(ctx context.Context, filter core.PublishActivityFilter) (core.PublishActivityPage, error) {
	if s == nil || s.repo == nil {
		return core.PublishActivityPage{}, fmt.Errorf("sqlstore: audit store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 25
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if workspaceID := strings.TrimSpace(filter.WorkspaceID); workspaceID != "" {
		selectors = append(selectors, repository.SelectBy("workspace_id", "=", workspaceID))
	}
	if actorID := strings.TrimSpace(filter.ActorID); actorID != "" {
		selectors = append(selectors, repository.SelectBy("actor_id", "=", actorID))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("created_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.PublishActivityPage{}, err
	}
	items := make([]core.PublishAuditEntry, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.PublishActivityPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// Prune trims the audit ledger to a time-to-live and a row cap. Embedding
// applications call it from their own scheduler.
func (s *AuditStore) Prune(ctx context.Context, ttl time.Duration, rowCap int) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: audit store is not configured")
	}
	deleted := 0
	now := time.Now().UTC()

	if ttl > 0 {
		cutoff := now.Add(-ttl)
		res, err := s.db.NewDelete().
			Model((*publishAuditRecord)(nil)).
			Where("created_at < ?", cutoff).
			Exec(ctx)
		if err != nil {
			return deleted, err
		}
		affected, _ := res.RowsAffected()
		deleted += int(affected)
	}

	if rowCap > 0 {
		total, err := s.db.NewSelect().Model((*publishAuditRecord)(nil)).Count(ctx)
		if err != nil {
			return deleted, err
		}
		excess := total - rowCap
		if excess > 0 {
			res, err := s.db.NewRaw(
				"DELETE FROM social_publish_audit WHERE id IN (SELECT id FROM social_publish_audit ORDER BY created_at ASC LIMIT ?)",
				excess,
			).Exec(ctx)
			if err != nil {
				return deleted, err
			}
			affected, _ := res.RowsAffected()
			deleted += int(affected)
		}
	}

	return deleted, nil
}

var _ core.AuditStore = (*AuditStore)(nil)
