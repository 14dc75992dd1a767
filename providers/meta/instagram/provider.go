// Package instagram publishes to Instagram professional accounts through
// the Graph API's two-step container flow: create a media container, then
// publish it. The container id is an implementation detail of this package
// and never appears in a receipt.
package instagram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-social/core"
	"github.com/goliatone/go-social/providers"
	meta "github.com/goliatone/go-social/providers/meta/common"
)

const ProviderID = "instagram"

const MaxContentLength = 2_200

const (
	ScopeInstagramBasic          = "instagram_basic"
	ScopeInstagramContentPublish = "instagram_content_publish"
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
			ScopeInstagramBasic,
			ScopeInstagramContentPublish,
		},
	}
}

func Constraints() core.PublishConstraints {
	return core.PublishConstraints{
		MaxContentLength: MaxContentLength,
		RequiresMedia:    true,
		SupportsLinks:    false,
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
		return core.AccountIdentity{}, fmt.Errorf("providers/meta/instagram: provider is nil")
	}
	return meta.FetchIdentity(ctx, p.transport, ProviderID, "professional", cred)
}

func (p *Provider) Publish(ctx context.Context, in core.PublishInstruction) (core.PublishReceipt, error) {
	if p == nil {
		return core.PublishReceipt{}, fmt.Errorf("providers/meta/instagram: provider is nil")
	}
	igUserID := strings.TrimSpace(in.Account.ExternalAccountID)
	if igUserID == "" {
		return core.PublishReceipt{}, fmt.Errorf("providers/meta/instagram: account has no user id")
	}
	if strings.TrimSpace(in.MediaURL) == "" {
		return core.PublishReceipt{}, &core.ProviderError{
			ProviderID: ProviderID,
			Code:       core.PublishErrorMediaRequired,
			Message:    "instagram posts require a media attachment",
		}
	}

	containerID, err := p.createContainer(ctx, igUserID, in)
	if err != nil {
		return core.PublishReceipt{}, err
	}
	mediaID, err := p.publishContainer(ctx, igUserID, in.Credential, containerID)
	if err != nil {
		return core.PublishReceipt{}, err
	}

	return core.PublishReceipt{PostID: mediaID}, nil
}

func (p *Provider) createContainer(ctx context.Context, igUserID string, in core.PublishInstruction) (string, error) {
	payload := map[string]any{"caption": in.Content}
	if strings.EqualFold(in.MediaType, "video") {
		payload["video_url"] = in.MediaURL
		payload["media_type"] = "REELS"
	} else {
		payload["image_url"] = in.MediaURL
	}
	body, err := providers.MarshalJSONBody(payload)
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     meta.GraphURL(igUserID, "media"),
		Headers: providers.BearerHeaders(in.Credential),
		Body:    body,
	}, &result)
	if err != nil {
		return "", err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return "", meta.DecodeGraphError(ProviderID, response)
	}
	if strings.TrimSpace(result.ID) == "" {
		return "", fmt.Errorf("providers/meta/instagram: container response missing id")
	}
	return result.ID, nil
}

func (p *Provider) publishContainer(
	ctx context.Context,
	igUserID string,
	cred core.ActiveCredential,
	containerID string,
) (string, error) {
	body, err := providers.MarshalJSONBody(map[string]any{"creation_id": containerID})
	if err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	response, err := providers.ExecJSON(ctx, p.transport, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     meta.GraphURL(igUserID, "media_publish"),
		Headers: providers.BearerHeaders(cred),
		Body:    body,
	}, &result)
	if err != nil {
		return "", err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return "", meta.DecodeGraphError(ProviderID, response)
	}
	if strings.TrimSpace(result.ID) == "" {
		return "", fmt.Errorf("providers/meta/instagram: publish response missing media id")
	}
	return result.ID, nil
}

var _ core.Provider = (*Provider)(nil)
