package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

var (
	_ gocmd.Querier[GetAccountMessage, core.Account]                      = (*GetAccountQuery)(nil)
	_ gocmd.Querier[ListAccountsMessage, []core.Account]                  = (*ListAccountsQuery)(nil)
	_ gocmd.Querier[ListPublishActivityMessage, core.PublishActivityPage] = (*ListPublishActivityQuery)(nil)
)
