// Package x publishes to X (Twitter) through the v2 API.
package x

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

const ProviderID = "x"

const MaxContentLength = 280

const (
	AuthURL  = "https://x.com/i/oauth2/authorize"
	TokenURL = "https://api.x.com/2/oauth2/token"
	APIBase  = "https://api.x.com/2"
)

const (
	ScopeTweetRead   = "tweet.read"
	ScopeTweetWrite  = "tweet.write"
	ScopeUsersRead   = "users.read"
	ScopeOfflineAuth = "offline.access"
)

type Config struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	Transport    core.TransportAdapter
	HTTPClient   providers.HTTPDoer
}

type Provider struct {
	*providers.OAuth2Provider
	transport core.TransportAdapter
}

func Constraints() core.PublishConstraints {
	return core.PublishConstraints{
		MaxContentLength: MaxContentLength,
		SupportsLinks:    true,
		UsesOAuth:        true,
	}
}

func New(cfg Config) (*Provider, error) {
	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		authURL = AuthURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = TokenURL
	}

	oauthProvider, err := providers.NewOAuth2Provider(providers.OAuth2Config{
		ID:           ProviderID,
		AuthURL:      authURL,
		TokenURL:     tokenURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		DefaultScopes: []string{
			ScopeTweetRead,
			ScopeTweetWrite,
			ScopeUsersRead,
			ScopeOfflineAuth,
		},
		Constraints: Constraints(),
		HTTPClient:  cfg.HTTPClient,
		UsePKCE:     true,
	})
	if err != nil {
		return nil, err
	}

	return &Provider{
		OAuth2Provider: oauthProvider,
		transport:      cfg.Transport,
	}, nil
}

func (p *Provider) ResolveIdentity(ctx context.Context, cred core.ActiveCredential) (core.AccountIdentity, error) {
	if p == nil {
		return core.AccountIdentity{}, fmt.Errorf("providers/x: provider is nil")
	}

	var payload struct {
		Data struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Username string `json:"username"`
		} `json:"data"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     APIBase + "/users/me",
		Headers: providers.BearerHeaders(cred),
	}, &payload)
	if err != nil {
		return core.AccountIdentity{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.AccountIdentity{}, decodeAPIError(response)
	}
	if strings.TrimSpace(payload.Data.ID) == "" {
		return core.AccountIdentity{}, fmt.Errorf("providers/x: identity response missing user id")
	}

	return core.AccountIdentity{
		ExternalAccountID:  payload.Data.ID,
		DisplayName:        payload.Data.Name,
		Handle:             "@" + payload.Data.Username,
		AccountType:        "user",
		AutopublishCapable: true,
	}, nil
}

func (p *Provider) Publish(ctx context.Context, in core.PublishInstruction) (core.PublishReceipt, error) {
	if p == nil {
		return core.PublishReceipt{}, fmt.Errorf("providers/x: provider is nil")
	}

	text := in.Content
	if in.LinkURL != "" {
		text = text + " " + in.LinkURL
	}
	body, err := providers.MarshalJSONBody(map[string]any{"text": text})
	if err != nil {
		return core.PublishReceipt{}, err
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     APIBase + "/tweets",
		Headers: providers.BearerHeaders(in.Credential),
		Body:    body,
	}, &result)
	if err != nil {
		return core.PublishReceipt{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.PublishReceipt{}, decodeAPIError(response)
	}
	if strings.TrimSpace(result.Data.ID) == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/x: tweet response missing id")
	}

	handle := strings.TrimPrefix(strings.TrimSpace(in.Account.Handle), "@")
	postURL := "https://x.com/i/status/" + result.Data.ID
	if handle != "" {
		postURL = "https://x.com/" + handle + "/status/" + result.Data.ID
	}
	return core.PublishReceipt{PostID: result.Data.ID, PostURL: postURL}, nil
}

type apiErrorEnvelope struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func decodeAPIError(response core.TransportResponse) *core.ProviderError {
	providerErr := &core.ProviderError{
		ProviderID: ProviderID,
		Code:       "api_error",
		Message:    fmt.Sprintf("x api returned status %d", response.StatusCode),
		StatusCode: response.StatusCode,
	}
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && strings.TrimSpace(envelope.Title) != "" {
		providerErr.Code = normalizeErrorCode(envelope.Title)
		if strings.TrimSpace(envelope.Detail) != "" {
			providerErr.Message = strings.TrimSpace(envelope.Detail)
		} else {
			providerErr.Message = strings.TrimSpace(envelope.Title)
		}
	}
	if response.StatusCode == http.StatusUnauthorized {
		providerErr.Code = core.PublishErrorNoAccessToken
	}
	return providerErr
}

func normalizeErrorCode(title string) string {
	code := strings.ToLower(strings.TrimSpace(title))
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.ReplaceAll(code, "-", "_")
	if code == "" {
		return "api_error"
	}
	return code
}

var _ core.Provider = (*Provider)(nil)
