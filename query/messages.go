// Package query wraps the service's read operations in go-command query
// messages.
package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

const (
	TypeGetAccount          = "social.query.account.get"
	TypeListAccounts        = "social.query.account.list"
	TypeListPublishActivity = "social.query.publish_activity.list"
)

type GetAccountMessage struct {
	WorkspaceID string
	AccountID   string
}

func (GetAccountMessage) Type() string { return TypeGetAccount }

func (m GetAccountMessage) Validate() error {
	if strings.TrimSpace(m.WorkspaceID) == "" {
		return fmt.Errorf("query: workspace id is required")
	}
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("query: account id is required")
	}
	return nil
}

type ListAccountsMessage struct {
	WorkspaceID string
}

func (ListAccountsMessage) Type() string { return TypeListAccounts }

func (m ListAccountsMessage) Validate() error {
	if strings.TrimSpace(m.WorkspaceID) == "" {
		return fmt.Errorf("query: workspace id is required")
	}
	return nil
}

type ListPublishActivityMessage struct {
	Filter core.PublishActivityFilter
}

func (ListPublishActivityMessage) Type() string { return TypeListPublishActivity }

func (m ListPublishActivityMessage) Validate() error {
	if strings.TrimSpace(m.Filter.WorkspaceID) == "" {
		return fmt.Errorf("query: workspace id is required")
	}
	if m.Filter.Page < 0 {
		return fmt.Errorf("query: page must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return fmt.Errorf("query: per_page must be >= 0")
	}
	return nil
}
