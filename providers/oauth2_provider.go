package providers

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-social/core"
)

const (
	AuthKindOAuth2      = "oauth2_auth_code"
	AuthKindAppPassword = "app_password"

	defaultTokenRequestTimeout = 30 * time.Second
	maxTokenResponseBodyBytes  = 1 << 20 // 1 MiB

	// pkceGrantTTL bounds how long an issued verifier waits for its
	// callback; it mirrors the lifetime of the signed state token.
	pkceGrantTTL = 15 * time.Minute
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// OAuth2Config is the shared wiring for authorization-code providers.
// ClientID and ClientSecret come from the embedding application; a provider
// with no client id registers fine but refuses to start auth flows.
type OAuth2Config struct {
	ID                  string
	AuthURL             string
	TokenURL            string
	ClientID            string
	ClientSecret        string
	ClientSecretInBody  bool
	UsePKCE             bool
	DefaultScopes       []string
	ExtraAuthParams     map[string]string
	Constraints         core.PublishConstraints
	TokenTTL            time.Duration
	TokenRequestTimeout time.Duration
	Now                 func() time.Time
	HTTPClient          HTTPDoer
}

// OAuth2Provider implements the auth half of core.Provider. Concrete
// providers embed it and add ResolveIdentity and Publish for their platform.
type OAuth2Provider struct {
	cfg        OAuth2Config
	httpClient HTTPDoer
	pkce       *pkceGrantStore
}

// pkceGrantStore keeps the code verifier issued at BeginAuth alive until
// the matching callback exchanges it. Grants are keyed by the opaque state
// token, consumed exactly once, and dropped after pkceGrantTTL.
type pkceGrantStore struct {
	mu     sync.Mutex
	now    func() time.Time
	grants map[string]pkceGrant
}

type pkceGrant struct {
	verifier  string
	expiresAt time.Time
}

func newPKCEGrantStore(now func() time.Time) *pkceGrantStore {
	return &pkceGrantStore{
		now:    now,
		grants: make(map[string]pkceGrant),
	}
}

// issue generates a fresh verifier for the given state and returns the
// S256 challenge that goes into the authorization URL.
func (s *pkceGrantStore) issue(state string) (challenge string, err error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("providers: generate pkce verifier: %w", err)
	}
	verifier := base64.RawURLEncoding.EncodeToString(raw)
	digest := sha256.Sum256([]byte(verifier))

	now := s.now()
	s.mu.Lock()
	for key, grant := range s.grants {
		if now.After(grant.expiresAt) {
			delete(s.grants, key)
		}
	}
	s.grants[state] = pkceGrant{verifier: verifier, expiresAt: now.Add(pkceGrantTTL)}
	s.mu.Unlock()

	return base64.RawURLEncoding.EncodeToString(digest[:]), nil
}

// consume returns the verifier for a state token exactly once.
func (s *pkceGrantStore) consume(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[state]
	if !ok {
		return "", false
	}
	delete(s.grants, state)
	if s.now().After(grant.expiresAt) {
		return "", false
	}
	return grant.verifier, true
}

type tokenEndpointPayload struct {
	AccessToken      string
	TokenType        string
	RefreshToken     string
	Scope            string
	ExpiresIn        int64
	ErrorCode        string
	ErrorDescription string
}

func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	cfg.ID = strings.TrimSpace(strings.ToLower(cfg.ID))
	if cfg.ID == "" {
		return nil, fmt.Errorf("providers: provider id is required")
	}
	if strings.TrimSpace(cfg.AuthURL) == "" {
		return nil, fmt.Errorf("providers: auth url is required for provider %q", cfg.ID)
	}
	if strings.TrimSpace(cfg.TokenURL) == "" {
		return nil, fmt.Errorf("providers: token url is required for provider %q", cfg.ID)
	}

	cfg.AuthURL = strings.TrimSpace(cfg.AuthURL)
	cfg.TokenURL = strings.TrimSpace(cfg.TokenURL)
	cfg.ClientID = strings.TrimSpace(cfg.ClientID)
	cfg.ClientSecret = strings.TrimSpace(cfg.ClientSecret)
	cfg.DefaultScopes = normalizeScopes(cfg.DefaultScopes)
	cfg.Constraints.UsesOAuth = true
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.TokenRequestTimeout <= 0 {
		cfg.TokenRequestTimeout = defaultTokenRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time {
			return time.Now().UTC()
		}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TokenRequestTimeout}
	}

	provider := &OAuth2Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}
	if cfg.UsePKCE {
		provider.pkce = newPKCEGrantStore(cfg.Now)
	}
	return provider, nil
}

func (p *OAuth2Provider) ID() string {
	if p == nil {
		return ""
	}
	return p.cfg.ID
}

func (*OAuth2Provider) AuthKind() string {
	return AuthKindOAuth2
}

func (p *OAuth2Provider) Constraints() core.PublishConstraints {
	if p == nil {
		return core.PublishConstraints{}
	}
	return p.cfg.Constraints
}

func (p *OAuth2Provider) Configured() bool {
	return p != nil && p.cfg.ClientID != ""
}

func (p *OAuth2Provider) BeginAuth(_ context.Context, req core.BeginAuthRequest) (core.BeginAuthResponse, error) {
	if p == nil {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if !p.Configured() {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: %s is not configured", p.cfg.ID)
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.BeginAuthResponse{}, fmt.Errorf("providers: oauth state is required")
	}
	scopes := normalizeScopes(req.Scopes)
	if len(scopes) == 0 {
		scopes = append([]string(nil), p.cfg.DefaultScopes...)
	}

	values := url.Values{}
	values.Set("response_type", "code")
	values.Set("client_id", p.cfg.ClientID)
	if strings.TrimSpace(req.RedirectURI) != "" {
		values.Set("redirect_uri", strings.TrimSpace(req.RedirectURI))
	}
	values.Set("scope", strings.Join(scopes, " "))
	values.Set("state", state)
	for key, value := range p.cfg.ExtraAuthParams {
		if strings.TrimSpace(key) != "" {
			values.Set(key, value)
		}
	}
	if p.pkce != nil {
		challenge, challengeErr := p.pkce.issue(state)
		if challengeErr != nil {
			return core.BeginAuthResponse{}, challengeErr
		}
		values.Set("code_challenge", challenge)
		values.Set("code_challenge_method", "S256")
	}

	authURL := p.cfg.AuthURL
	if strings.Contains(authURL, "?") {
		authURL += "&" + values.Encode()
	} else {
		authURL += "?" + values.Encode()
	}

	metadata := cloneMetadata(req.Metadata)
	metadata["provider_id"] = p.cfg.ID

	return core.BeginAuthResponse{
		URL:      authURL,
		State:    state,
		Scopes:   scopes,
		Metadata: metadata,
	}, nil
}

func (p *OAuth2Provider) CompleteAuth(ctx context.Context, req core.CompleteAuthRequest) (core.CompleteAuthResponse, error) {
	if p == nil {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if !p.Configured() {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers: %s is not configured", p.cfg.ID)
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.CompleteAuthResponse{}, fmt.Errorf("providers: auth code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	if redirectURI := strings.TrimSpace(req.RedirectURI); redirectURI != "" {
		form.Set("redirect_uri", redirectURI)
	}
	if p.pkce != nil {
		verifier, ok := p.pkce.consume(strings.TrimSpace(req.State))
		if !ok {
			return core.CompleteAuthResponse{}, fmt.Errorf(
				"providers: no pending pkce verifier for this oauth state",
			)
		}
		form.Set("code_verifier", verifier)
	}

	token, err := p.fetchToken(ctx, form)
	if err != nil {
		return core.CompleteAuthResponse{}, err
	}

	scopes := normalizeScopes(parseScopeList(token.Scope))
	if len(scopes) == 0 {
		scopes = append([]string(nil), p.cfg.DefaultScopes...)
	}

	now := p.cfg.Now().UTC()
	refreshToken := strings.TrimSpace(token.RefreshToken)
	credential := core.ActiveCredential{
		TokenType:    normalizeTokenType(token.TokenType),
		AccessToken:  strings.TrimSpace(token.AccessToken),
		RefreshToken: refreshToken,
		Scopes:       scopes,
		ExpiresAt:    p.resolveExpiresAt(now, token.ExpiresIn),
		Refreshable:  refreshToken != "",
		Metadata: map[string]any{
			"provider_id": p.cfg.ID,
		},
	}

	return core.CompleteAuthResponse{
		Credential: credential,
		Metadata: map[string]any{
			"provider_id": p.cfg.ID,
		},
	}, nil
}

// RefreshToken trades a refresh token for a new access token, keeping the
// previous refresh token when the endpoint does not rotate it.
func (p *OAuth2Provider) RefreshToken(ctx context.Context, cred core.ActiveCredential) (core.ActiveCredential, error) {
	if p == nil {
		return core.ActiveCredential{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if !p.Configured() {
		return core.ActiveCredential{}, fmt.Errorf("providers: %s is not configured", p.cfg.ID)
	}
	refreshToken := strings.TrimSpace(cred.RefreshToken)
	if refreshToken == "" {
		return core.ActiveCredential{}, fmt.Errorf("providers: refresh token is required")
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if scopes := normalizeScopes(cred.Scopes); len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	token, err := p.fetchToken(ctx, form)
	if err != nil {
		return core.ActiveCredential{}, err
	}

	refreshed := cred
	refreshed.TokenType = normalizeTokenType(token.TokenType)
	refreshed.AccessToken = strings.TrimSpace(token.AccessToken)
	if nextRefresh := strings.TrimSpace(token.RefreshToken); nextRefresh != "" {
		refreshed.RefreshToken = nextRefresh
	}
	if scopes := normalizeScopes(parseScopeList(token.Scope)); len(scopes) > 0 {
		refreshed.Scopes = scopes
	}
	refreshed.ExpiresAt = p.resolveExpiresAt(p.cfg.Now().UTC(), token.ExpiresIn)
	refreshed.Refreshable = strings.TrimSpace(refreshed.RefreshToken) != ""
	refreshed.Metadata = cloneMetadata(refreshed.Metadata)
	refreshed.Metadata["provider_id"] = p.cfg.ID
	return refreshed, nil
}

func (p *OAuth2Provider) fetchToken(ctx context.Context, form url.Values) (tokenEndpointPayload, error) {
	if p == nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: oauth2 provider is nil")
	}
	if p.httpClient == nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: oauth2 http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	values := url.Values{}
	for key, items := range form {
		if strings.TrimSpace(key) == "" {
			continue
		}
		for _, item := range items {
			values.Add(key, strings.TrimSpace(item))
		}
	}
	values.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		values.Set("client_secret", p.cfg.ClientSecret)
	}

	requestCtx := ctx
	cancel := func() {}
	if p.cfg.TokenRequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, p.cfg.TokenRequestTimeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(
		requestCtx,
		http.MethodPost,
		p.cfg.TokenURL,
		strings.NewReader(values.Encode()),
	)
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if !p.cfg.ClientSecretInBody && p.cfg.ClientSecret != "" {
		httpReq.SetBasicAuth(p.cfg.ClientID, p.cfg.ClientSecret)
	}

	response, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token request failed: %w", err)
	}
	defer response.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(response.Body, maxTokenResponseBodyBytes+1))
	if readErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: read token response: %w", readErr)
	}
	if int64(len(body)) > maxTokenResponseBodyBytes {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token response exceeds %d bytes", maxTokenResponseBodyBytes)
	}

	payload, parseErr := parseTokenPayload(body, response.Header.Get("Content-Type"))
	if parseErr != nil {
		return tokenEndpointPayload{}, fmt.Errorf("providers: decode token response: %w", parseErr)
	}
	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return tokenEndpointPayload{}, fmt.Errorf(
			"providers: token endpoint error (%d): %s",
			response.StatusCode,
			describeTokenError(payload),
		)
	}
	if payload.ErrorCode != "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint error: %s", describeTokenError(payload))
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return tokenEndpointPayload{}, fmt.Errorf("providers: token endpoint response missing access token")
	}
	return payload, nil
}

func describeTokenError(payload tokenEndpointPayload) string {
	if strings.TrimSpace(payload.ErrorDescription) != "" {
		return strings.TrimSpace(payload.ErrorDescription)
	}
	if strings.TrimSpace(payload.ErrorCode) != "" {
		return strings.TrimSpace(payload.ErrorCode)
	}
	return "unknown error"
}

func parseTokenPayload(body []byte, contentType string) (tokenEndpointPayload, error) {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if strings.Contains(contentType, "json") {
		return parseTokenPayloadJSON(body)
	}
	if strings.Contains(contentType, "x-www-form-urlencoded") || strings.Contains(contentType, "text/plain") {
		return parseTokenPayloadForm(body)
	}
	if payload, err := parseTokenPayloadJSON(body); err == nil {
		return payload, nil
	}
	return parseTokenPayloadForm(body)
}

func parseTokenPayloadJSON(body []byte) (tokenEndpointPayload, error) {
	if len(bytesTrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return tokenEndpointPayload{}, err
	}
	return tokenEndpointPayload{
		AccessToken:      readAnyString(decoded["access_token"]),
		TokenType:        readAnyString(decoded["token_type"]),
		RefreshToken:     readAnyString(decoded["refresh_token"]),
		Scope:            readAnyString(decoded["scope"]),
		ExpiresIn:        readAnyInt64(decoded["expires_in"]),
		ErrorCode:        readAnyString(decoded["error"]),
		ErrorDescription: readAnyString(decoded["error_description"]),
	}, nil
}

func parseTokenPayloadForm(body []byte) (tokenEndpointPayload, error) {
	if len(bytesTrimSpace(body)) == 0 {
		return tokenEndpointPayload{}, fmt.Errorf("empty payload")
	}
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return tokenEndpointPayload{}, err
	}
	expiresIn, _ := strconv.ParseInt(strings.TrimSpace(values.Get("expires_in")), 10, 64)
	return tokenEndpointPayload{
		AccessToken:      strings.TrimSpace(values.Get("access_token")),
		TokenType:        strings.TrimSpace(values.Get("token_type")),
		RefreshToken:     strings.TrimSpace(values.Get("refresh_token")),
		Scope:            strings.TrimSpace(values.Get("scope")),
		ExpiresIn:        expiresIn,
		ErrorCode:        strings.TrimSpace(values.Get("error")),
		ErrorDescription: strings.TrimSpace(values.Get("error_description")),
	}, nil
}

func (p *OAuth2Provider) resolveExpiresAt(now time.Time, expiresIn int64) *time.Time {
	ttl := p.cfg.TokenTTL
	if expiresIn > 0 {
		ttl = time.Duration(expiresIn) * time.Second
	}
	if ttl <= 0 {
		return nil
	}
	expiresAt := now.Add(ttl)
	return &expiresAt
}

func normalizeTokenType(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "bearer"
	}
	return normalized
}

func parseScopeList(value string) []string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return []string{}
	}
	return strings.Fields(strings.ReplaceAll(trimmed, ",", " "))
}

func bytesTrimSpace(value []byte) []byte {
	return []byte(strings.TrimSpace(string(value)))
}

func readAnyString(value any) string {
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case json.Number:
		return strings.TrimSpace(typed.String())
	case fmt.Stringer:
		return strings.TrimSpace(typed.String())
	default:
		if value == nil {
			return ""
		}
		return strings.TrimSpace(fmt.Sprint(value))
	}
}

func readAnyInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int64:
		return typed
	case float64:
		return int64(typed)
	case json.Number:
		parsed, err := typed.Int64()
		if err == nil {
			return parsed
		}
		floatParsed, floatErr := typed.Float64()
		if floatErr == nil {
			return int64(floatParsed)
		}
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		if err == nil {
			return parsed
		}
	}
	return 0
}

func cloneMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

func normalizeScopes(input []string) []string {
	if len(input) == 0 {
		return []string{}
	}
	values := make([]string, 0, len(input))
	seen := map[string]struct{}{}
	for _, value := range input {
		normalized := strings.TrimSpace(value)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		values = append(values, normalized)
	}
	sort.Strings(values)
	return values
}
