package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

type MutatingService interface {
	Connect(ctx context.Context, req core.ConnectRequest) (core.BeginAuthResponse, error)
	CompleteCallback(ctx context.Context, req core.CompleteAuthRequest) (core.CallbackCompletion, error)
	ConnectDirect(ctx context.Context, req core.DirectAuthRequest) (core.CallbackCompletion, error)
	Disconnect(ctx context.Context, workspaceID string, accountID string) error
	MarkNeedsRefresh(ctx context.Context, accountID string, reason string) error
	Publish(ctx context.Context, req core.PublishRequest) (core.PublishOutcome, error)
}

type ConnectCommand struct {
	service MutatingService
}

func NewConnectCommand(service MutatingService) *ConnectCommand {
	return &ConnectCommand{service: service}
}

func (c *ConnectCommand) Execute(ctx context.Context, msg ConnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: connect service is required")
	}
	out, err := c.service.Connect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type CompleteCallbackCommand struct {
	service MutatingService
}

func NewCompleteCallbackCommand(service MutatingService) *CompleteCallbackCommand {
	return &CompleteCallbackCommand{service: service}
}

func (c *CompleteCallbackCommand) Execute(ctx context.Context, msg CompleteCallbackMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: callback service is required")
	}
	out, err := c.service.CompleteCallback(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ConnectDirectCommand struct {
	service MutatingService
}

func NewConnectDirectCommand(service MutatingService) *ConnectDirectCommand {
	return &ConnectDirectCommand{service: service}
}

func (c *ConnectDirectCommand) Execute(ctx context.Context, msg ConnectDirectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: direct connect service is required")
	}
	out, err := c.service.ConnectDirect(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type DisconnectCommand struct {
	service MutatingService
}

func NewDisconnectCommand(service MutatingService) *DisconnectCommand {
	return &DisconnectCommand{service: service}
}

func (c *DisconnectCommand) Execute(ctx context.Context, msg DisconnectMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: disconnect service is required")
	}
	return c.service.Disconnect(ctx, msg.WorkspaceID, msg.AccountID)
}

type PublishCommand struct {
	service MutatingService
}

func NewPublishCommand(service MutatingService) *PublishCommand {
	return &PublishCommand{service: service}
}

func (c *PublishCommand) Execute(ctx context.Context, msg PublishMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: publish service is required")
	}
	out, err := c.service.Publish(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type MarkNeedsRefreshCommand struct {
	service MutatingService
}

func NewMarkNeedsRefreshCommand(service MutatingService) *MarkNeedsRefreshCommand {
	return &MarkNeedsRefreshCommand{service: service}
}

func (c *MarkNeedsRefreshCommand) Execute(ctx context.Context, msg MarkNeedsRefreshMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: account service is required")
	}
	return c.service.MarkNeedsRefresh(ctx, msg.AccountID, msg.Reason)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
