package providers

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/goliatone/go-social/core"
)

type scriptedHTTPDoer struct {
	status      string
	statusCode  int
	contentType string
	body        string
	requests    []*http.Request
	bodies      []string
}

func (d *scriptedHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	d.requests = append(d.requests, req)
	if req.Body != nil {
		raw, _ := io.ReadAll(req.Body)
		d.bodies = append(d.bodies, string(raw))
	}
	header := http.Header{}
	header.Set("Content-Type", d.contentType)
	return &http.Response{
		Status:     d.status,
		StatusCode: d.statusCode,
		Header:     header,
		Body:       io.NopCloser(bytes.NewBufferString(d.body)),
	}, nil
}

func newTestOAuth2Provider(t *testing.T, doer HTTPDoer, clientID string) *OAuth2Provider {
	t.Helper()
	provider, err := NewOAuth2Provider(OAuth2Config{
		ID:            "x",
		AuthURL:       "https://example.com/oauth/authorize",
		TokenURL:      "https://example.com/oauth/token",
		ClientID:      clientID,
		ClientSecret:  "secret",
		DefaultScopes: []string{"tweet.write", "tweet.read"},
		Constraints:   core.PublishConstraints{MaxContentLength: 280, SupportsLinks: true},
		HTTPClient:    doer,
	})
	if err != nil {
		t.Fatalf("new oauth2 provider: %v", err)
	}
	return provider
}

func TestOAuth2Provider_BeginAuthBuildsAuthorizationURL(t *testing.T) {
	provider := newTestOAuth2Provider(t, &scriptedHTTPDoer{}, "client-1")

	resp, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		ProviderID:  "x",
		RedirectURI: "https://app.example/callback",
		State:       "signed-state",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}

	parsed, err := url.Parse(resp.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()
	if query.Get("response_type") != "code" {
		t.Fatalf("expected code response type, got %q", query.Get("response_type"))
	}
	if query.Get("client_id") != "client-1" {
		t.Fatalf("client id mismatch: %q", query.Get("client_id"))
	}
	if query.Get("state") != "signed-state" {
		t.Fatalf("state mismatch: %q", query.Get("state"))
	}
	if query.Get("redirect_uri") != "https://app.example/callback" {
		t.Fatalf("redirect uri mismatch: %q", query.Get("redirect_uri"))
	}
	if !strings.Contains(query.Get("scope"), "tweet.write") {
		t.Fatalf("expected default scopes, got %q", query.Get("scope"))
	}
	if !provider.Constraints().UsesOAuth {
		t.Fatalf("expected oauth constraint flag")
	}
}

func TestOAuth2Provider_BeginAuthRequiresConfiguration(t *testing.T) {
	provider := newTestOAuth2Provider(t, &scriptedHTTPDoer{}, "")

	_, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{State: "signed-state"})
	if err == nil || !strings.Contains(err.Error(), "not configured") {
		t.Fatalf("expected not configured error, got %v", err)
	}

	configured := newTestOAuth2Provider(t, &scriptedHTTPDoer{}, "client-1")
	if _, err := configured.BeginAuth(context.Background(), core.BeginAuthRequest{}); err == nil {
		t.Fatalf("expected missing state to fail")
	}
}

func TestOAuth2Provider_CompleteAuthExchangesCode(t *testing.T) {
	doer := &scriptedHTTPDoer{
		statusCode:  200,
		contentType: "application/json",
		body:        `{"access_token":"tok","token_type":"Bearer","refresh_token":"ref","scope":"tweet.read tweet.write","expires_in":3600}`,
	}
	provider := newTestOAuth2Provider(t, doer, "client-1")

	resp, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		ProviderID:  "x",
		Code:        "auth-code",
		RedirectURI: "https://app.example/callback",
	})
	if err != nil {
		t.Fatalf("complete auth: %v", err)
	}
	if resp.Credential.AccessToken != "tok" || resp.Credential.RefreshToken != "ref" {
		t.Fatalf("token mismatch: %+v", resp.Credential)
	}
	if !resp.Credential.Refreshable {
		t.Fatalf("expected refreshable credential")
	}
	if resp.Credential.ExpiresAt == nil {
		t.Fatalf("expected expiry timestamp")
	}
	if len(resp.Credential.Scopes) != 2 {
		t.Fatalf("expected granted scopes, got %v", resp.Credential.Scopes)
	}

	if len(doer.bodies) != 1 {
		t.Fatalf("expected one token request, got %d", len(doer.bodies))
	}
	form, err := url.ParseQuery(doer.bodies[0])
	if err != nil {
		t.Fatalf("parse token form: %v", err)
	}
	if form.Get("grant_type") != "authorization_code" || form.Get("code") != "auth-code" {
		t.Fatalf("token form mismatch: %v", form)
	}
	if user, _, ok := doer.requests[0].BasicAuth(); !ok || user != "client-1" {
		t.Fatalf("expected basic auth with client id")
	}
}

func TestOAuth2Provider_PKCEBindsVerifierToState(t *testing.T) {
	doer := &scriptedHTTPDoer{
		statusCode:  200,
		contentType: "application/json",
		body:        `{"access_token":"tok","token_type":"bearer","expires_in":3600}`,
	}
	provider, err := NewOAuth2Provider(OAuth2Config{
		ID:            "x",
		AuthURL:       "https://example.com/oauth/authorize",
		TokenURL:      "https://example.com/oauth/token",
		ClientID:      "client-1",
		ClientSecret:  "secret",
		DefaultScopes: []string{"tweet.write"},
		HTTPClient:    doer,
		UsePKCE:       true,
	})
	if err != nil {
		t.Fatalf("new oauth2 provider: %v", err)
	}

	begin, err := provider.BeginAuth(context.Background(), core.BeginAuthRequest{
		ProviderID:  "x",
		RedirectURI: "https://app.example/callback",
		State:       "signed-state",
	})
	if err != nil {
		t.Fatalf("begin auth: %v", err)
	}
	parsed, err := url.Parse(begin.URL)
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	query := parsed.Query()
	challenge := query.Get("code_challenge")
	if challenge == "" {
		t.Fatalf("expected code challenge in authorization url")
	}
	if query.Get("code_challenge_method") != "S256" {
		t.Fatalf("expected S256 challenge method, got %q", query.Get("code_challenge_method"))
	}

	if _, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      "signed-state",
	}); err != nil {
		t.Fatalf("complete auth: %v", err)
	}
	if len(doer.bodies) != 1 {
		t.Fatalf("expected one token request, got %d", len(doer.bodies))
	}
	form, err := url.ParseQuery(doer.bodies[0])
	if err != nil {
		t.Fatalf("parse token form: %v", err)
	}
	verifier := form.Get("code_verifier")
	if verifier == "" {
		t.Fatalf("expected code verifier in token exchange")
	}
	digest := sha256.Sum256([]byte(verifier))
	if got := base64.RawURLEncoding.EncodeToString(digest[:]); got != challenge {
		t.Fatalf("verifier does not match issued challenge: %q != %q", got, challenge)
	}

	// Verifiers are single use; replaying the state must fail.
	if _, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      "signed-state",
	}); err == nil || !strings.Contains(err.Error(), "verifier") {
		t.Fatalf("expected replayed state to be rejected, got %v", err)
	}

	if _, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{
		ProviderID: "x",
		Code:       "auth-code",
		State:      "unknown-state",
	}); err == nil {
		t.Fatalf("expected unknown state to be rejected")
	}
}

func TestOAuth2Provider_CompleteAuthSurfacesEndpointErrors(t *testing.T) {
	doer := &scriptedHTTPDoer{
		statusCode:  400,
		contentType: "application/json",
		body:        `{"error":"invalid_grant","error_description":"code expired"}`,
	}
	provider := newTestOAuth2Provider(t, doer, "client-1")

	_, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{Code: "stale"})
	if err == nil || !strings.Contains(err.Error(), "token endpoint error") {
		t.Fatalf("expected token endpoint error, got %v", err)
	}
	if !strings.Contains(err.Error(), "code expired") {
		t.Fatalf("expected error description surfaced, got %v", err)
	}
}

func TestOAuth2Provider_ParsesFormEncodedTokenResponses(t *testing.T) {
	doer := &scriptedHTTPDoer{
		statusCode:  200,
		contentType: "application/x-www-form-urlencoded",
		body:        "access_token=tok&token_type=bearer&expires_in=7200",
	}
	provider := newTestOAuth2Provider(t, doer, "client-1")

	resp, err := provider.CompleteAuth(context.Background(), core.CompleteAuthRequest{Code: "auth-code"})
	if err != nil {
		t.Fatalf("complete auth: %v", err)
	}
	if resp.Credential.AccessToken != "tok" {
		t.Fatalf("token mismatch: %+v", resp.Credential)
	}
	if resp.Credential.Refreshable {
		t.Fatalf("expected non-refreshable credential without refresh token")
	}
}

func TestOAuth2Provider_RefreshTokenRotates(t *testing.T) {
	doer := &scriptedHTTPDoer{
		statusCode:  200,
		contentType: "application/json",
		body:        `{"access_token":"tok2","token_type":"bearer","refresh_token":"ref2","expires_in":3600}`,
	}
	provider := newTestOAuth2Provider(t, doer, "client-1")

	refreshed, err := provider.RefreshToken(context.Background(), core.ActiveCredential{
		TokenType:    "bearer",
		AccessToken:  "tok1",
		RefreshToken: "ref1",
	})
	if err != nil {
		t.Fatalf("refresh token: %v", err)
	}
	if refreshed.AccessToken != "tok2" || refreshed.RefreshToken != "ref2" {
		t.Fatalf("rotation mismatch: %+v", refreshed)
	}

	if _, err := provider.RefreshToken(context.Background(), core.ActiveCredential{}); err == nil {
		t.Fatalf("expected missing refresh token to fail")
	}
}
