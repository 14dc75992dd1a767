// Package bluesky publishes to Bluesky over the AT Protocol XRPC API.
// Bluesky accounts connect with a handle and app password instead of an
// OAuth redirect; the session tokens we store behave like any other
// credential.
package bluesky

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

const ProviderID = "bluesky"

const MaxContentLength = 300

const (
	DefaultServiceURL = "https://bsky.social"

	createSessionPath = "/xrpc/com.atproto.server.createSession"
	getSessionPath    = "/xrpc/com.atproto.server.getSession"
	createRecordPath  = "/xrpc/com.atproto.repo.createRecord"

	postCollection = "app.bsky.feed.post"
)

type Config struct {
	ServiceURL string
	Transport  core.TransportAdapter
	Now        func() time.Time
}

type Provider struct {
	serviceURL string
	transport  core.TransportAdapter
	now        func() time.Time
}

func Constraints() core.PublishConstraints {
	return core.PublishConstraints{
		MaxContentLength: MaxContentLength,
		SupportsLinks:    true,
		UsesOAuth:        false,
	}
}

func New(cfg Config) (*Provider, error) {
	serviceURL := strings.TrimRight(strings.TrimSpace(cfg.ServiceURL), "/")
	if serviceURL == "" {
		serviceURL = DefaultServiceURL
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time {
			return time.Now().UTC()
		}
	}
	return &Provider{
		serviceURL: serviceURL,
		transport:  cfg.Transport,
		now:        now,
	}, nil
}

func (*Provider) ID() string { return ProviderID }

func (*Provider) AuthKind() string { return providers.AuthKindAppPassword }

func (*Provider) Constraints() core.PublishConstraints { return Constraints() }

func (*Provider) BeginAuth(context.Context, core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	return core.BeginAuthResponse{}, fmt.Errorf("providers/bluesky: provider uses direct credentials, not an authorization redirect")
}

func (*Provider) CompleteAuth(context.Context, core.CompleteAuthRequest) (core.CompleteAuthResponse, error) {
	return core.CompleteAuthResponse{}, fmt.Errorf("providers/bluesky: provider uses direct credentials, not an authorization redirect")
}

// CompleteDirectAuth trades a handle/app-password pair for a session. The
// access token is the session's accessJwt; the refresh token its refreshJwt.
func (p *Provider) CompleteDirectAuth(ctx context.Context, req core.DirectAuthRequest) (core.CompleteAuthResponse, error) {
	if p == nil {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers/bluesky: provider is nil")
	}
	identifier := strings.TrimSpace(req.Identifier)
	password := strings.TrimSpace(req.AppPassword)
	if identifier == "" || password == "" {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers/bluesky: identifier and app password are required")
	}

	body, err := providers.MarshalJSONBody(map[string]any{
		"identifier": identifier,
		"password":   password,
	})
	if err != nil {
		return core.CompleteAuthResponse{}, err
	}

	var session struct {
		DID        string `json:"did"`
		Handle     string `json:"handle"`
		AccessJWT  string `json:"accessJwt"`
		RefreshJWT string `json:"refreshJwt"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method: http.MethodPost,
		URL:    p.serviceURL + createSessionPath,
		Body:   body,
	}, &session)
	if err != nil {
		return core.CompleteAuthResponse{}, err
	}
	if response.StatusCode == http.StatusUnauthorized {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers/bluesky: invalid credentials")
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.CompleteAuthResponse{}, decodeXRPCError(response)
	}
	if strings.TrimSpace(session.AccessJWT) == "" || strings.TrimSpace(session.DID) == "" {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers/bluesky: session response missing tokens")
	}

	return core.CompleteAuthResponse{
		Credential: core.ActiveCredential{
			TokenType:    "bearer",
			AccessToken:  session.AccessJWT,
			RefreshToken: session.RefreshJWT,
			Refreshable:  strings.TrimSpace(session.RefreshJWT) != "",
			Metadata: map[string]any{
				"provider_id": ProviderID,
				"did":         session.DID,
				"handle":      session.Handle,
			},
		},
		Metadata: map[string]any{"provider_id": ProviderID},
	}, nil
}

func (p *Provider) ResolveIdentity(ctx context.Context, cred core.ActiveCredential) (core.AccountIdentity, error) {
	if p == nil {
		return core.AccountIdentity{}, fmt.Errorf("providers/bluesky: provider is nil")
	}

	var session struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     p.serviceURL + getSessionPath,
		Headers: providers.BearerHeaders(cred),
	}, &session)
	if err != nil {
		return core.AccountIdentity{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.AccountIdentity{}, decodeXRPCError(response)
	}
	if strings.TrimSpace(session.DID) == "" {
		return core.AccountIdentity{}, fmt.Errorf("providers/bluesky: session response missing did")
	}

	return core.AccountIdentity{
		ExternalAccountID:  session.DID,
		DisplayName:        session.Handle,
		Handle:             "@" + session.Handle,
		AccountType:        "user",
		AutopublishCapable: true,
	}, nil
}

func (p *Provider) Publish(ctx context.Context, in core.PublishInstruction) (core.PublishReceipt, error) {
	if p == nil {
		return core.PublishReceipt{}, fmt.Errorf("providers/bluesky: provider is nil")
	}
	did := strings.TrimSpace(in.Account.ExternalAccountID)
	if did == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/bluesky: account has no did")
	}

	text := in.Content
	if in.LinkURL != "" {
		text = text + " " + in.LinkURL
	}
	body, err := providers.MarshalJSONBody(map[string]any{
		"repo":       did,
		"collection": postCollection,
		"record": map[string]any{
			"$type":     postCollection,
			"text":      text,
			"createdAt": p.now().Format(time.RFC3339),
		},
	})
	if err != nil {
		return core.PublishReceipt{}, err
	}

	var result struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     p.serviceURL + createRecordPath,
		Headers: providers.BearerHeaders(in.Credential),
		Body:    body,
	}, &result)
	if err != nil {
		return core.PublishReceipt{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.PublishReceipt{}, decodeXRPCError(response)
	}
	uri := strings.TrimSpace(result.URI)
	if uri == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/bluesky: create record response missing uri")
	}

	return core.PublishReceipt{
		PostID:  uri,
		PostURL: postURLFromRecordURI(strings.TrimPrefix(strings.TrimSpace(in.Account.Handle), "@"), uri),
	}, nil
}

// postURLFromRecordURI turns an at:// record uri into the public web URL.
// The record key is the final path segment of the uri.
func postURLFromRecordURI(handle string, uri string) string {
	if handle == "" {
		return ""
	}
	segments := strings.Split(uri, "/")
	recordKey := strings.TrimSpace(segments[len(segments)-1])
	if recordKey == "" {
		return ""
	}
	return "https://bsky.app/profile/" + handle + "/post/" + recordKey
}

type xrpcErrorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeXRPCError(response core.TransportResponse) *core.ProviderError {
	providerErr := &core.ProviderError{
		ProviderID: ProviderID,
		Code:       "xrpc_error",
		Message:    fmt.Sprintf("bluesky api returned status %d", response.StatusCode),
		StatusCode: response.StatusCode,
	}
	var envelope xrpcErrorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && strings.TrimSpace(envelope.Error) != "" {
		providerErr.Code = strings.ToLower(strings.TrimSpace(envelope.Error))
		if strings.TrimSpace(envelope.Message) != "" {
			providerErr.Message = strings.TrimSpace(envelope.Message)
		}
	}
	if response.StatusCode == http.StatusUnauthorized {
		providerErr.Code = core.PublishErrorNoAccessToken
	}
	return providerErr
}

var _ core.Provider = (*Provider)(nil)
var _ core.DirectAuthProvider = (*Provider)(nil)
