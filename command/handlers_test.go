package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-social/core"
)

type stubMutatingService struct {
	connectFn          func(context.Context, core.ConnectRequest) (core.BeginAuthResponse, error)
	completeCallbackFn func(context.Context, core.CompleteAuthRequest) (core.CallbackCompletion, error)
	connectDirectFn    func(context.Context, core.DirectAuthRequest) (core.CallbackCompletion, error)
	disconnectFn       func(context.Context, string, string) error
	markNeedsRefreshFn func(context.Context, string, string) error
	publishFn          func(context.Context, core.PublishRequest) (core.PublishOutcome, error)
}

func (s stubMutatingService) Connect(ctx context.Context, req core.ConnectRequest) (core.BeginAuthResponse, error) {
	return s.connectFn(ctx, req)
}

func (s stubMutatingService) CompleteCallback(ctx context.Context, req core.CompleteAuthRequest) (core.CallbackCompletion, error) {
	return s.completeCallbackFn(ctx, req)
}

func (s stubMutatingService) ConnectDirect(ctx context.Context, req core.DirectAuthRequest) (core.CallbackCompletion, error) {
	return s.connectDirectFn(ctx, req)
}

func (s stubMutatingService) Disconnect(ctx context.Context, workspaceID string, accountID string) error {
	return s.disconnectFn(ctx, workspaceID, accountID)
}

func (s stubMutatingService) MarkNeedsRefresh(ctx context.Context, accountID string, reason string) error {
	return s.markNeedsRefreshFn(ctx, accountID, reason)
}

func (s stubMutatingService) Publish(ctx context.Context, req core.PublishRequest) (core.PublishOutcome, error) {
	return s.publishFn(ctx, req)
}

func TestConnectCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.BeginAuthResponse{URL: "https://example.com/auth", State: "st"}
	called := false

	svc := stubMutatingService{
		connectFn: func(_ context.Context, req core.ConnectRequest) (core.BeginAuthResponse, error) {
			called = true
			if req.ProviderID != "x" {
				t.Fatalf("expected provider x, got %q", req.ProviderID)
			}
			return expected, nil
		},
	}

	cmd := NewConnectCommand(svc)
	collector := gocmd.NewResult[core.BeginAuthResponse]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, ConnectMessage{Request: core.ConnectRequest{
		ProviderID:  "x",
		UserID:      "u1",
		WorkspaceID: "w1",
	}})
	if err != nil {
		t.Fatalf("execute connect: %v", err)
	}
	if !called {
		t.Fatalf("expected connect service invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.URL != expected.URL || result.State != expected.State {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestPublishCommand_StoresOutcome(t *testing.T) {
	expected := core.PublishOutcome{
		Status:  core.PublishStatusPartial,
		Summary: core.PublishSummary{Total: 2, Succeeded: 1, Failed: 1},
	}
	svc := stubMutatingService{
		publishFn: func(_ context.Context, req core.PublishRequest) (core.PublishOutcome, error) {
			if len(req.TargetAccountIDs) != 2 {
				t.Fatalf("unexpected targets: %#v", req.TargetAccountIDs)
			}
			return expected, nil
		},
	}

	cmd := NewPublishCommand(svc)
	collector := gocmd.NewResult[core.PublishOutcome]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, PublishMessage{Request: core.PublishRequest{
		WorkspaceID:      "w1",
		ActorID:          "a1",
		Content:          "hello",
		TargetAccountIDs: []string{"acct-1", "acct-2"},
	}})
	if err != nil {
		t.Fatalf("execute publish: %v", err)
	}
	stored, ok := collector.Load()
	if !ok {
		t.Fatalf("expected publish outcome stored")
	}
	if stored.Status != core.PublishStatusPartial {
		t.Fatalf("unexpected outcome: %#v", stored)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("disconnect", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			disconnectFn: func(_ context.Context, workspaceID string, accountID string) error {
				called = true
				if workspaceID != "w1" || accountID != "acct-1" {
					t.Fatalf("unexpected disconnect payload: %q %q", workspaceID, accountID)
				}
				return nil
			},
		}
		cmd := NewDisconnectCommand(svc)
		if err := cmd.Execute(context.Background(), DisconnectMessage{WorkspaceID: "w1", AccountID: "acct-1"}); err != nil {
			t.Fatalf("execute disconnect: %v", err)
		}
		if !called {
			t.Fatalf("expected disconnect invocation")
		}
	})

	t.Run("mark needs refresh", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			markNeedsRefreshFn: func(_ context.Context, accountID string, reason string) error {
				called = true
				if accountID != "acct-1" || reason != "token expired" {
					t.Fatalf("unexpected payload: %q %q", accountID, reason)
				}
				return nil
			},
		}
		cmd := NewMarkNeedsRefreshCommand(svc)
		if err := cmd.Execute(context.Background(), MarkNeedsRefreshMessage{AccountID: "acct-1", Reason: "token expired"}); err != nil {
			t.Fatalf("execute mark needs refresh: %v", err)
		}
		if !called {
			t.Fatalf("expected mark needs refresh invocation")
		}
	})

	t.Run("connect direct", func(t *testing.T) {
		completion := core.CallbackCompletion{Account: core.Account{ID: "acct-1"}}
		svc := stubMutatingService{
			connectDirectFn: func(_ context.Context, req core.DirectAuthRequest) (core.CallbackCompletion, error) {
				if req.Identifier != "someone.bsky.social" {
					t.Fatalf("unexpected identifier: %q", req.Identifier)
				}
				return completion, nil
			},
		}
		cmd := NewConnectDirectCommand(svc)
		collector := gocmd.NewResult[core.CallbackCompletion]()
		ctx := gocmd.ContextWithResult(context.Background(), collector)
		err := cmd.Execute(ctx, ConnectDirectMessage{Request: core.DirectAuthRequest{
			ProviderID:  "bluesky",
			UserID:      "u1",
			WorkspaceID: "w1",
			Identifier:  "someone.bsky.social",
			AppPassword: "app-pass",
		}})
		if err != nil {
			t.Fatalf("execute connect direct: %v", err)
		}
		stored, ok := collector.Load()
		if !ok || stored.Account.ID != "acct-1" {
			t.Fatalf("expected completion stored, got %#v ok=%v", stored, ok)
		}
	})
}

func TestCommands_PropagateServiceErrors(t *testing.T) {
	wantErr := errors.New("boom")
	svc := stubMutatingService{
		completeCallbackFn: func(context.Context, core.CompleteAuthRequest) (core.CallbackCompletion, error) {
			return core.CallbackCompletion{}, wantErr
		},
	}
	cmd := NewCompleteCallbackCommand(svc)
	err := cmd.Execute(context.Background(), CompleteCallbackMessage{Request: core.CompleteAuthRequest{
		ProviderID: "x",
		Code:       "code",
		State:      "state",
	}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected service error passthrough, got %v", err)
	}
}

func TestMessages_Validate(t *testing.T) {
	cases := []struct {
		name    string
		msg     interface{ Validate() error }
		wantErr bool
	}{
		{"valid connect", ConnectMessage{Request: core.ConnectRequest{ProviderID: "x", UserID: "u", WorkspaceID: "w"}}, false},
		{"connect missing provider", ConnectMessage{Request: core.ConnectRequest{UserID: "u", WorkspaceID: "w"}}, true},
		{"callback missing code", CompleteCallbackMessage{Request: core.CompleteAuthRequest{ProviderID: "x", State: "s"}}, true},
		{"direct missing password", ConnectDirectMessage{Request: core.DirectAuthRequest{ProviderID: "bluesky", UserID: "u", WorkspaceID: "w", Identifier: "id"}}, true},
		{"disconnect missing account", DisconnectMessage{WorkspaceID: "w"}, true},
		{"publish without targets", PublishMessage{Request: core.PublishRequest{WorkspaceID: "w", ActorID: "a", Content: "hi"}}, true},
		{"valid publish", PublishMessage{Request: core.PublishRequest{WorkspaceID: "w", ActorID: "a", Content: "hi", TargetAccountIDs: []string{"t"}}}, false},
		{"mark needs refresh missing account", MarkNeedsRefreshMessage{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.wantErr && err == nil {
				t.Fatalf("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}
