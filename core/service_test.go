package core

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

const (
	testUserID      = "9b2d7a14-3c43-4f0a-8f91-2f6f6f1c0001"
	testWorkspaceID = "9b2d7a14-3c43-4f0a-8f91-2f6f6f1c0002"
	testActorID     = "9b2d7a14-3c43-4f0a-8f91-2f6f6f1c0003"
)

func TestConnect_ReturnsAuthorizationURLWithSignedState(t *testing.T) {
	ctx := context.Background()
	provider := &testProvider{id: "x"}
	fixture := newServiceFixture(t, Config{}, provider)

	resp, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		ReturnPath:  "/settings/connections",
		RedirectURI: "https://app.example/callback",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if !strings.HasPrefix(resp.URL, "https://example.com/oauth/authorize") {
		t.Fatalf("unexpected auth url %q", resp.URL)
	}
	if strings.TrimSpace(resp.State) == "" {
		t.Fatalf("expected state token")
	}

	codec := fixture.service.Dependencies().StateCodec
	state, err := codec.Decode(resp.State)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.UserID != testUserID || state.WorkspaceID != testWorkspaceID {
		t.Fatalf("state identity mismatch: %+v", state)
	}
	if state.ProviderID != "x" || state.ReturnPath != "/settings/connections" {
		t.Fatalf("state context mismatch: %+v", state)
	}
}

func TestConnect_RejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"})

	if _, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      "not-a-uuid",
		WorkspaceID: testWorkspaceID,
	}); err == nil {
		t.Fatalf("expected invalid user id to fail")
	}

	if _, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		ReturnPath:  "https://evil.example/phish",
	}); err == nil {
		t.Fatalf("expected absolute return path to fail")
	}

	if _, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "unknown",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
	}); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestCompleteCallback_ConnectsAccount(t *testing.T) {
	ctx := context.Background()
	provider := &testProvider{id: "x"}
	fixture := newServiceFixture(t, Config{}, provider)

	connectResp, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		ReturnPath:  "/dashboard",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	completion, err := fixture.service.CompleteCallback(ctx, CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      connectResp.State,
	})
	if err != nil {
		t.Fatalf("complete callback: %v", err)
	}
	if completion.Account.Status != AccountStatusConnected {
		t.Fatalf("expected connected account, got %s", completion.Account.Status)
	}
	if completion.Account.WorkspaceID != testWorkspaceID {
		t.Fatalf("workspace mismatch: %q", completion.Account.WorkspaceID)
	}
	if completion.Account.ExternalAccountID != "ext-x" {
		t.Fatalf("external id mismatch: %q", completion.Account.ExternalAccountID)
	}
	if completion.ReturnPath != "/dashboard" {
		t.Fatalf("return path mismatch: %q", completion.ReturnPath)
	}
	if completion.Credential.Status != CredentialStatusActive {
		t.Fatalf("expected active credential, got %s", completion.Credential.Status)
	}
}

func TestCompleteCallback_RejectsTamperedState(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"})

	connectResp, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	payload, signature, _ := strings.Cut(connectResp.State, ".")
	flipped := []byte(payload)
	flipped[len(flipped)-1] ^= 0x01
	tampered := string(flipped) + "." + signature

	if _, err := fixture.service.CompleteCallback(ctx, CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      tampered,
	}); err == nil {
		t.Fatalf("expected tampered state to be rejected")
	}
	if fixture.accounts.count() != 0 {
		t.Fatalf("expected no account to be created")
	}
}

func TestCompleteCallback_RejectsProviderMismatch(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"}, &testProvider{id: "linkedin"})

	connectResp, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	if _, err := fixture.service.CompleteCallback(ctx, CompleteAuthRequest{
		ProviderID: "linkedin",
		Code:       "auth-code",
		State:      connectResp.State,
	}); err == nil || !strings.Contains(err.Error(), "mismatch") {
		t.Fatalf("expected provider mismatch error, got %v", err)
	}
}

func TestCompleteCallback_FailureCarriesReturnPath(t *testing.T) {
	ctx := context.Background()
	provider := &testProvider{
		id:              "x",
		completeAuthErr: &ProviderError{ProviderID: "x", Code: "invalid_grant", Message: "code expired", StatusCode: 400},
	}
	fixture := newServiceFixture(t, Config{}, provider)

	connectResp, err := fixture.service.Connect(ctx, ConnectRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		ReturnPath:  "/settings/connections",
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	_, err = fixture.service.CompleteCallback(ctx, CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      connectResp.State,
	})
	if err == nil {
		t.Fatalf("expected exchange failure")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error, got %v", err)
	}
	if got, _ := rich.Metadata["return_path"].(string); got != "/settings/connections" {
		t.Fatalf("expected return path on error metadata, got %q", got)
	}
}

func TestCompleteCallback_UpsertsInsteadOfDuplicating(t *testing.T) {
	ctx := context.Background()
	provider := &testProvider{id: "x"}
	fixture := newServiceFixture(t, Config{}, provider)

	var accountID string
	for round := 0; round < 2; round++ {
		connectResp, err := fixture.service.Connect(ctx, ConnectRequest{
			ProviderID:  "x",
			UserID:      testUserID,
			WorkspaceID: testWorkspaceID,
		})
		if err != nil {
			t.Fatalf("connect round %d: %v", round, err)
		}
		completion, err := fixture.service.CompleteCallback(ctx, CompleteAuthRequest{
			ProviderID: "x",
			Code:       "auth-code",
			State:      connectResp.State,
		})
		if err != nil {
			t.Fatalf("complete callback round %d: %v", round, err)
		}
		if accountID == "" {
			accountID = completion.Account.ID
		} else if completion.Account.ID != accountID {
			t.Fatalf("expected same account id, got %q then %q", accountID, completion.Account.ID)
		}
	}

	if fixture.accounts.count() != 1 {
		t.Fatalf("expected one account row, got %d", fixture.accounts.count())
	}
	if fixture.credentials.versionCount(accountID) != 2 {
		t.Fatalf("expected two credential versions, got %d", fixture.credentials.versionCount(accountID))
	}
	active, err := fixture.credentials.GetActiveByAccount(ctx, accountID)
	if err != nil {
		t.Fatalf("get active credential: %v", err)
	}
	if active.Version != 2 {
		t.Fatalf("expected latest version active, got %d", active.Version)
	}
}

func TestConnectDirect_ConnectsWithoutRedirect(t *testing.T) {
	ctx := context.Background()
	provider := &testProvider{id: "bluesky", authKind: "app_password"}
	fixture := newServiceFixture(t, Config{}, provider)

	completion, err := fixture.service.ConnectDirect(ctx, DirectAuthRequest{
		ProviderID:  "bluesky",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		Identifier:  "handle.example.com",
		AppPassword: "app-password",
	})
	if err != nil {
		t.Fatalf("connect direct: %v", err)
	}
	if completion.Account.Status != AccountStatusConnected {
		t.Fatalf("expected connected account, got %s", completion.Account.Status)
	}

	if _, err := fixture.service.ConnectDirect(ctx, DirectAuthRequest{
		ProviderID:  "bluesky",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		Identifier:  "handle.example.com",
	}); err == nil {
		t.Fatalf("expected missing app password to fail")
	}
}

func TestConnectDirect_RequiresDirectCapableProvider(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{})

	oauthOnly := struct{ Provider }{Provider: &testProvider{id: "x"}}
	if err := fixture.registry.Register(oauthOnly); err != nil {
		t.Fatalf("register provider: %v", err)
	}

	if _, err := fixture.service.ConnectDirect(ctx, DirectAuthRequest{
		ProviderID:  "x",
		UserID:      testUserID,
		WorkspaceID: testWorkspaceID,
		Identifier:  "someone",
		AppPassword: "secret",
	}); err == nil || !strings.Contains(err.Error(), "direct credentials") {
		t.Fatalf("expected direct-auth capability error, got %v", err)
	}
}

func TestDisconnect_RevokesCredentialAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"})
	account := connectTestAccount(t, fixture, testWorkspaceID, "x", "ext-1", "tok-1")

	if err := fixture.service.Disconnect(ctx, testWorkspaceID, account.ID); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	got, err := fixture.accounts.Get(ctx, testWorkspaceID, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Status != AccountStatusDisconnected {
		t.Fatalf("expected disconnected, got %s", got.Status)
	}
	if _, err := fixture.credentials.GetActiveByAccount(ctx, account.ID); err == nil {
		t.Fatalf("expected no active credential after disconnect")
	}

	// A second call and a call for an unknown account are both no-ops.
	if err := fixture.service.Disconnect(ctx, testWorkspaceID, account.ID); err != nil {
		t.Fatalf("repeat disconnect: %v", err)
	}
	if err := fixture.service.Disconnect(ctx, testWorkspaceID, "9b2d7a14-3c43-4f0a-8f91-2f6f6f1cffff"); err != nil {
		t.Fatalf("disconnect unknown account: %v", err)
	}
}

func TestMarkNeedsRefresh(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"})
	account := connectTestAccount(t, fixture, testWorkspaceID, "x", "ext-1", "tok-1")

	if err := fixture.service.MarkNeedsRefresh(ctx, account.ID, "token rejected"); err != nil {
		t.Fatalf("mark needs refresh: %v", err)
	}
	got, err := fixture.accounts.Get(ctx, testWorkspaceID, account.ID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if got.Status != AccountStatusNeedsRefresh {
		t.Fatalf("expected needs_refresh, got %s", got.Status)
	}
	if got.LastError != "token rejected" {
		t.Fatalf("expected reason recorded, got %q", got.LastError)
	}
}

func TestSignRequest_AttachesBearerToken(t *testing.T) {
	ctx := context.Background()
	fixture := newServiceFixture(t, Config{}, &testProvider{id: "x"})
	account := connectTestAccount(t, fixture, testWorkspaceID, "x", "ext-1", "signing-token")

	req := newTestHTTPRequest(t, "GET", "https://api.example.com/me")
	if err := fixture.service.SignRequest(ctx, account.ID, req); err != nil {
		t.Fatalf("sign request: %v", err)
	}
	if got := req.Header.Get("Authorization"); got != "bearer signing-token" {
		t.Fatalf("unexpected authorization header %q", got)
	}
}
