package bluesky

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers/devkit"
)

func newTestProvider(t *testing.T, transport core.TransportAdapter) *Provider {
	t.Helper()
	provider, err := New(Config{Transport: transport})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestCompleteDirectAuth_CreatesSession(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.BlueskySession("createSession", "did:plc:abc", "someone.bsky.social"),
	)
	provider := newTestProvider(t, transport)

	resp, err := provider.CompleteDirectAuth(context.Background(), core.DirectAuthRequest{
		ProviderID:  ProviderID,
		Identifier:  "someone.bsky.social",
		AppPassword: "app-pass",
	})
	if err != nil {
		t.Fatalf("complete direct auth: %v", err)
	}
	if resp.Credential.AccessToken != "access-did:plc:abc" {
		t.Fatalf("access token mismatch: %+v", resp.Credential)
	}
	if !resp.Credential.Refreshable {
		t.Fatalf("expected refreshable session")
	}

	bodies := transport.RequestBodies()
	if bodies[0]["identifier"] != "someone.bsky.social" || bodies[0]["password"] != "app-pass" {
		t.Fatalf("session body mismatch: %+v", bodies[0])
	}
}

func TestCompleteDirectAuth_RejectsBadCredentials(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.BlueskyError("createSession", 401, "AuthenticationRequired", "Invalid identifier or password"),
	)
	provider := newTestProvider(t, transport)

	_, err := provider.CompleteDirectAuth(context.Background(), core.DirectAuthRequest{
		Identifier:  "someone.bsky.social",
		AppPassword: "wrong",
	})
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}
}

func TestPublish_CreatesPostRecord(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.BlueskyRecordCreated("at://did:plc:abc/app.bsky.feed.post/3kabc", "bafy-1"),
	)
	provider := newTestProvider(t, transport)

	receipt, err := provider.Publish(context.Background(), core.PublishInstruction{
		Account:    core.Account{ExternalAccountID: "did:plc:abc", Handle: "@someone.bsky.social"},
		Credential: devkit.TestCredential("jwt"),
		Content:    "hello sky",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if receipt.PostID != "at://did:plc:abc/app.bsky.feed.post/3kabc" {
		t.Fatalf("post id mismatch: %q", receipt.PostID)
	}
	if receipt.PostURL != "https://bsky.app/profile/someone.bsky.social/post/3kabc" {
		t.Fatalf("post url mismatch: %q", receipt.PostURL)
	}

	bodies := transport.RequestBodies()
	if bodies[0]["repo"] != "did:plc:abc" || bodies[0]["collection"] != postCollection {
		t.Fatalf("record body mismatch: %+v", bodies[0])
	}
	record, _ := bodies[0]["record"].(map[string]any)
	if record["text"] != "hello sky" || record["createdAt"] == "" {
		t.Fatalf("record payload mismatch: %+v", record)
	}
}

func TestPublish_NormalizesXRPCErrors(t *testing.T) {
	transport := devkit.NewFakeTransport(
		devkit.BlueskyError("createRecord", 400, "InvalidRequest", "record too large"),
	)
	provider := newTestProvider(t, transport)

	_, err := provider.Publish(context.Background(), core.PublishInstruction{
		Account:    core.Account{ExternalAccountID: "did:plc:abc"},
		Credential: devkit.TestCredential("jwt"),
		Content:    "post",
	})
	var providerErr *core.ProviderError
	if !errors.As(err, &providerErr) || providerErr.Code != "invalidrequest" {
		t.Fatalf("expected normalized xrpc error, got %v", err)
	}
}

func TestOAuthEntryPointsAreRejected(t *testing.T) {
	provider := newTestProvider(t, devkit.NewFakeTransport())

	if _, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{}); err == nil {
		t.Fatalf("expected begin auth to be rejected")
	}
	if _, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{}); err == nil {
		t.Fatalf("expected complete auth to be rejected")
	}
	if provider.AuthKind() == "" || provider.Constraints().UsesOAuth {
		t.Fatalf("expected direct-credential auth kind")
	}
}
