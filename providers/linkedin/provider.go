// Package linkedin publishes member posts through the LinkedIn REST API.
package linkedin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
)

const ProviderID = "linkedin"

const MaxContentLength = 3_000

const (
	AuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	TokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	APIBase  = "https://api.linkedin.com/v2"

	restliProtocolHeader  = "X-Restli-Protocol-Version"
	restliProtocolVersion = "2.0.0"
)

const (
	ScopeOpenID        = "openid"
	ScopeProfile       = "profile"
	ScopeMemberSocial  = "w_member_social"
	memberURNPrefix    = "urn:li:person:"
	shareLifecycleLive = "PUBLISHED"
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
		ID:                 ProviderID,
		AuthURL:            authURL,
		TokenURL:           tokenURL,
		ClientID:           cfg.ClientID,
		ClientSecret:       cfg.ClientSecret,
		ClientSecretInBody: true,
		DefaultScopes: []string{
			ScopeOpenID,
			ScopeProfile,
			ScopeMemberSocial,
		},
		Constraints: Constraints(),
		HTTPClient:  cfg.HTTPClient,
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
		return core.AccountIdentity{}, fmt.Errorf("providers/linkedin: provider is nil")
	}

	var payload struct {
		Sub     string `json:"sub"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     APIBase + "/userinfo",
		Headers: providers.BearerHeaders(cred),
	}, &payload)
	if err != nil {
		return core.AccountIdentity{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.AccountIdentity{}, decodeAPIError(response)
	}
	if strings.TrimSpace(payload.Sub) == "" {
		return core.AccountIdentity{}, fmt.Errorf("providers/linkedin: userinfo response missing sub")
	}

	return core.AccountIdentity{
		ExternalAccountID:  payload.Sub,
		DisplayName:        payload.Name,
		AvatarURL:          payload.Picture,
		AccountType:        "member",
		AutopublishCapable: true,
	}, nil
}

func (p *Provider) Publish(ctx context.Context, in core.PublishInstruction) (core.PublishReceipt, error) {
	if p == nil {
		return core.PublishReceipt{}, fmt.Errorf("providers/linkedin: provider is nil")
	}
	memberID := strings.TrimSpace(in.Account.ExternalAccountID)
	if memberID == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/linkedin: account has no member id")
	}

	shareContent := map[string]any{
		"shareCommentary":    map[string]any{"text": in.Content},
		"shareMediaCategory": "NONE",
	}
	if in.LinkURL != "" {
		shareContent["shareMediaCategory"] = "ARTICLE"
		shareContent["media"] = []map[string]any{
			{"status": "READY", "originalUrl": in.LinkURL},
		}
	}
	body, err := providers.MarshalJSONBody(map[string]any{
		"author":         memberURNPrefix + memberID,
		"lifecycleState": shareLifecycleLive,
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": shareContent,
		},
		"visibility": map[string]any{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	})
	if err != nil {
		return core.PublishReceipt{}, err
	}

	headers := providers.BearerHeaders(in.Credential)
	headers[restliProtocolHeader] = restliProtocolVersion

	var result struct {
		ID string `json:"id"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     APIBase + "/ugcPosts",
		Headers: headers,
		Body:    body,
	}, &result)
	if err != nil {
		return core.PublishReceipt{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.PublishReceipt{}, decodeAPIError(response)
	}
	postID := strings.TrimSpace(result.ID)
	if postID == "" {
		postID = strings.TrimSpace(response.Headers["X-Restli-Id"])
	}
	if postID == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/linkedin: share response missing post id")
	}

	return core.PublishReceipt{
		PostID:  postID,
		PostURL: "https://www.linkedin.com/feed/update/" + postID,
	}, nil
}

type apiErrorEnvelope struct {
	Message       string `json:"message"`
	ServiceErrCode int   `json:"serviceErrorCode"`
	Status        int    `json:"status"`
}

func decodeAPIError(response core.TransportResponse) *core.ProviderError {
	providerErr := &core.ProviderError{
		ProviderID: ProviderID,
		Code:       "api_error",
		Message:    fmt.Sprintf("linkedin api returned status %d", response.StatusCode),
		StatusCode: response.StatusCode,
	}
	var envelope apiErrorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && strings.TrimSpace(envelope.Message) != "" {
		providerErr.Message = strings.TrimSpace(envelope.Message)
		if envelope.ServiceErrCode != 0 {
			providerErr.Code = fmt.Sprintf("service_error_%d", envelope.ServiceErrCode)
		}
	}
	if response.StatusCode == http.StatusUnauthorized {
		providerErr.Code = core.PublishErrorNoAccessToken
	}
	return providerErr
}

var _ core.Provider = (*Provider)(nil)
