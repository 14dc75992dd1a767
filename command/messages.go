// Package command wraps the service's mutating operations in go-command
// messages so embedding applications can route them through their own bus.
package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

const (
	TypeConnect          = "social.command.connect"
	TypeCompleteCallback = "social.command.callback.complete"
	TypeConnectDirect    = "social.command.connect.direct"
	TypeDisconnect       = "social.command.disconnect"
	TypePublish          = "social.command.publish"
	TypeMarkNeedsRefresh = "social.command.account.mark_needs_refresh"
)

type ConnectMessage struct {
	Request core.ConnectRequest
}

func (ConnectMessage) Type() string { return TypeConnect }

func (m ConnectMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Request.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	return nil
}

type CompleteCallbackMessage struct {
	Request core.CompleteAuthRequest
}

func (CompleteCallbackMessage) Type() string { return TypeCompleteCallback }

func (m CompleteCallbackMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	if strings.TrimSpace(m.Request.Code) == "" {
		return fmt.Errorf("command: authorization code is required")
	}
	if strings.TrimSpace(m.Request.State) == "" {
		return fmt.Errorf("command: oauth state is required")
	}
	return nil
}

type ConnectDirectMessage struct {
	Request core.DirectAuthRequest
}

func (ConnectDirectMessage) Type() string { return TypeConnectDirect }

func (m ConnectDirectMessage) Validate() error {
	if strings.TrimSpace(m.Request.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	if strings.TrimSpace(m.Request.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.Request.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	if strings.TrimSpace(m.Request.Identifier) == "" {
		return fmt.Errorf("command: identifier is required")
	}
	if strings.TrimSpace(m.Request.AppPassword) == "" {
		return fmt.Errorf("command: app password is required")
	}
	return nil
}

type DisconnectMessage struct {
	WorkspaceID string
	AccountID   string
}

func (DisconnectMessage) Type() string { return TypeDisconnect }

func (m DisconnectMessage) Validate() error {
	if strings.TrimSpace(m.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}

type PublishMessage struct {
	Request core.PublishRequest
}

func (PublishMessage) Type() string { return TypePublish }

func (m PublishMessage) Validate() error {
	if strings.TrimSpace(m.Request.WorkspaceID) == "" {
		return fmt.Errorf("command: workspace id is required")
	}
	if strings.TrimSpace(m.Request.ActorID) == "" {
		return fmt.Errorf("command: actor id is required")
	}
	if strings.TrimSpace(m.Request.Content) == "" {
		return fmt.Errorf("command: content is required")
	}
	if len(m.Request.TargetAccountIDs) == 0 {
		return fmt.Errorf("command: at least one target account is required")
	}
	return nil
}

type MarkNeedsRefreshMessage struct {
	AccountID string
	Reason    string
}

func (MarkNeedsRefreshMessage) Type() string { return TypeMarkNeedsRefresh }

func (m MarkNeedsRefreshMessage) Validate() error {
	if strings.TrimSpace(m.AccountID) == "" {
		return fmt.Errorf("command: account id is required")
	}
	return nil
}
