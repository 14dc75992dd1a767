// Package facebook publishes to Facebook Pages through the Graph API.
package facebook

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const ProviderID = "facebook"

// Page posts accept essay-length content.
const MaxContentLength = 63_206

const (
	ScopePagesShowList     = "pages_show_list"
	ScopePagesManagePosts  = "pages_manage_posts"
	ScopePagesReadEngage   = "pages_read_engagement"
	ScopeBusinessManage    = "business_management"
	defaultAccountTypeName = "page"
)

type Config = meta.AuthConfig

type Provider struct {
	*providers.OAuth2Provider
	transport core.TransportAdapter
}

func DefaultConfig() Config {
	return Config{
		AuthURL:  meta.MetaOAuthAuthURL,
		TokenURL: meta.MetaOAuthTokenURL,
		DefaultScopes: []string{
			ScopePagesShowList,
			ScopePagesManagePosts,
			ScopePagesReadEngage,
			ScopeBusinessManage,
		},
	}
}

func Constraints() core.PublishConstraints {
	return core.PublishConstraints{
		MaxContentLength: MaxContentLength,
		SupportsLinks:    true,
		UsesOAuth:        true,
	}
}

func New(cfg Config) (*Provider, error) {
	defaults := DefaultConfig()
	if len(cfg.DefaultScopes) == 0 {
		cfg.DefaultScopes = defaults.DefaultScopes
	}

	oauthCfg, err := meta.ResolveOAuth2Config(ProviderID, cfg, defaults.DefaultScopes, Constraints())
	if err != nil {
		return nil, err
	}
	oauthProvider, err := providers.NewOAuth2Provider(oauthCfg)
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
		return core.AccountIdentity{}, fmt.Errorf("providers/meta/facebook: provider is nil")
	}
	return meta.FetchIdentity(ctx, p.transport, ProviderID, defaultAccountTypeName, cred)
}

func (p *Provider) Publish(ctx context.Context, in core.PublishInstruction) (core.PublishReceipt, error) {
	if p == nil {
		return core.PublishReceipt{}, fmt.Errorf("providers/meta/facebook: provider is nil")
	}
	pageID := strings.TrimSpace(in.Account.ExternalAccountID)
	if pageID == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/meta/facebook: account has no page id")
	}

	payload := map[string]any{"message": in.Content}
	if in.LinkURL != "" {
		payload["link"] = in.LinkURL
	}
	body, err := providers.MarshalJSONBody(payload)
	if err != nil {
		return core.PublishReceipt{}, err
	}

	var result struct {
		ID string `json:"id"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     meta.GraphURL(pageID, "feed"),
		Headers: providers.BearerHeaders(in.Credential),
		Body:    body,
	}, &result)
	if err != nil {
		return core.PublishReceipt{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.PublishReceipt{}, meta.DecodeGraphError(ProviderID, response)
	}
	if strings.TrimSpace(result.ID) == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/meta/facebook: feed response missing post id")
	}

	return core.PublishReceipt{
		PostID:  result.ID,
		PostURL: "https://www.facebook.com/" + result.ID,
	}, nil
}

var _ core.Provider = (*Provider)(nil)
