package query

import (
	"context"

	"github.com/goliatone/go-social/core"
)

type AccountReader interface {
	GetAccount(ctx context.Context, workspaceID string, accountID string) (core.Account, error)
	ListAccounts(ctx context.Context, workspaceID string) ([]core.Account, error)
}

type PublishActivityReader interface {
	ListPublishActivity(ctx context.Context, filter core.PublishActivityFilter) (core.PublishActivityPage, error)
}

type GetAccountQuery struct {
	reader AccountReader
}

func NewGetAccountQuery(reader AccountReader) *GetAccountQuery {
	return &GetAccountQuery{reader: reader}
}

func (q *GetAccountQuery) Query(ctx context.Context, msg GetAccountMessage) (core.Account, error) {
	if q == nil || q.reader == nil {
		return core.Account{}, queryDependencyError("query: account reader is required")
	}
	return q.reader.GetAccount(ctx, msg.WorkspaceID, msg.AccountID)
}

type ListAccountsQuery struct {
	reader AccountReader
}

func NewListAccountsQuery(reader AccountReader) *ListAccountsQuery {
	return &ListAccountsQuery{reader: reader}
}

func (q *ListAccountsQuery) Query(ctx context.Context, msg ListAccountsMessage) ([]core.Account, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: account reader is required")
	}
	return q.reader.ListAccounts(ctx, msg.WorkspaceID)
}

type ListPublishActivityQuery struct {
	reader PublishActivityReader
}

func NewListPublishActivityQuery(reader PublishActivityReader) *ListPublishActivityQuery {
	return &ListPublishActivityQuery{reader: reader}
}

func (q *ListPublishActivityQuery) Query(
	ctx context.Context,
	msg ListPublishActivityMessage,
) (core.PublishActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.PublishActivityPage{}, queryDependencyError("query: publish activity reader is required")
	}
	return q.reader.ListPublishActivity(ctx, msg.Filter)
}
