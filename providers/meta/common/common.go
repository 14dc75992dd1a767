// Package common carries the Meta Graph API wiring shared by the facebook
// and instagram providers: OAuth endpoints, config resolution, and the
// Graph error envelope.
package common

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

const (
	MetaOAuthAuthURL  = "https://www.facebook.com/v23.0/dialog/oauth"
	MetaOAuthTokenURL = "https://graph.facebook.com/v23.0/oauth/access_token"
	GraphAPIBaseURL   = "https://graph.facebook.com/v23.0"
)

type AuthConfig struct {
	ClientID      string
	ClientSecret  string
	AuthURL       string
	TokenURL      string
	DefaultScopes []string
	TokenTTL      time.Duration
	Transport     core.TransportAdapter
	HTTPClient    providers.HTTPDoer
}

func ResolveOAuth2Config(
	providerID string,
	cfg AuthConfig,
	fallbackScopes []string,
	constraints core.PublishConstraints,
) (providers.OAuth2Config, error) {
	providerID = strings.TrimSpace(strings.ToLower(providerID))
	if providerID == "" {
		return providers.OAuth2Config{}, fmt.Errorf("providers/meta/common: provider id is required")
	}

	authURL := strings.TrimSpace(cfg.AuthURL)
	if authURL == "" {
		authURL = MetaOAuthAuthURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = MetaOAuthTokenURL
	}
	scopes := cfg.DefaultScopes
	if len(scopes) == 0 {
		scopes = fallbackScopes
	}

	return providers.OAuth2Config{
		ID:                 providerID,
		AuthURL:            authURL,
		TokenURL:           tokenURL,
		ClientID:           strings.TrimSpace(cfg.ClientID),
		ClientSecret:       strings.TrimSpace(cfg.ClientSecret),
		ClientSecretInBody: true,
		DefaultScopes:      scopes,
		Constraints:        constraints,
		TokenTTL:           cfg.TokenTTL,
		HTTPClient:         cfg.HTTPClient,
	}, nil
}

func GraphURL(parts ...string) string {
	segments := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.Trim(strings.TrimSpace(part), "/"); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return GraphAPIBaseURL + "/" + strings.Join(segments, "/")
}

type graphErrorEnvelope struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		Subcode   int    `json:"error_subcode"`
		TraceID   string `json:"fbtrace_id"`
		UserTitle string `json:"error_user_title"`
	} `json:"error"`
}

// DecodeGraphError reduces a non-2xx Graph API response to a ProviderError.
// Code 190 is the Graph "invalid or expired token" family.
func DecodeGraphError(providerID string, response core.TransportResponse) *core.ProviderError {
	providerErr := &core.ProviderError{
		ProviderID: providerID,
		Code:       "graph_error",
		Message:    fmt.Sprintf("graph api returned status %d", response.StatusCode),
		StatusCode: response.StatusCode,
	}

	var envelope graphErrorEnvelope
	if err := json.Unmarshal(response.Body, &envelope); err == nil && strings.TrimSpace(envelope.Error.Message) != "" {
		providerErr.Message = strings.TrimSpace(envelope.Error.Message)
		switch envelope.Error.Code {
		case 190:
			providerErr.Code = core.PublishErrorNoAccessToken
		case 0:
		default:
			providerErr.Code = fmt.Sprintf("graph_error_%d", envelope.Error.Code)
		}
	}
	return providerErr
}

type graphIdentityPayload struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Picture struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	} `json:"picture"`
}

// FetchIdentity resolves the Graph node the credential acts as.
func FetchIdentity(
	ctx context.Context,
	transport core.TransportAdapter,
	providerID string,
	accountType string,
	cred core.ActiveCredential,
) (core.AccountIdentity, error) {
	var payload graphIdentityPayload
	response, err := providers.ExecJSON(ctx, transport, core.TransportRequest{
		Method:  http.MethodGet,
		URL:     GraphURL("me"),
		Headers: providers.BearerHeaders(cred),
		Query:   map[string]string{"fields": "id,name,picture"},
	}, &payload)
	if err != nil {
		return core.AccountIdentity{}, err
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return core.AccountIdentity{}, DecodeGraphError(providerID, response)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return core.AccountIdentity{}, fmt.Errorf("providers/meta/common: graph identity response missing id")
	}
	return core.AccountIdentity{
		ExternalAccountID:  payload.ID,
		DisplayName:        payload.Name,
		AvatarURL:          payload.Picture.Data.URL,
		AccountType:        accountType,
		AutopublishCapable: true,
	}, nil
}
