package core

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const defaultOAuthStateTTL = 15 * time.Minute

// OAuthState is the context carried through a provider's authorization
// redirect: who asked, into which workspace, and where to land afterwards.
type OAuthState struct {
	UserID      string    `json:"uid"`
	WorkspaceID string    `json:"wid"`
	ProviderID  string    `json:"pid"`
	ReturnPath  string    `json:"ret,omitempty"`
	Nonce       string    `json:"non"`
	IssuedAt    time.Time `json:"iat"`
}

func (s OAuthState) Validate() error {
	if strings.TrimSpace(s.UserID) == "" {
		return fmt.Errorf("core: oauth state user id is required")
	}
	if strings.TrimSpace(s.WorkspaceID) == "" {
		return fmt.Errorf("core: oauth state workspace id is required")
	}
	if strings.TrimSpace(s.ProviderID) == "" {
		return fmt.Errorf("core: oauth state provider id is required")
	}
	return nil
}

// HMACStateCodec encodes OAuthState as base64url(JSON) + "." +
// base64url(HMAC-SHA256 over the payload). Decode rejects any token whose
// signature does not verify, so a tampered workspace or user id surfaces as
// an invalid state instead of a silent cross-tenant write.
type HMACStateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewHMACStateCodec(secret string, ttl time.Duration) (*HMACStateCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("core: oauth state secret is required")
	}
	if ttl <= 0 {
		ttl = defaultOAuthStateTTL
	}
	return &HMACStateCodec{
		secret: []byte(secret),
		ttl:    ttl,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

func (c *HMACStateCodec) Encode(state OAuthState) (string, error) {
	if c == nil {
		return "", fmt.Errorf("core: oauth state codec is not configured")
	}
	if err := state.Validate(); err != nil {
		return "", err
	}
	if strings.TrimSpace(state.Nonce) == "" {
		nonce, err := generateStateNonce()
		if err != nil {
			return "", err
		}
		state.Nonce = nonce
	}
	if state.IssuedAt.IsZero() {
		state.IssuedAt = c.now()
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("core: encode oauth state: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.signature(encoded), nil
}

func (c *HMACStateCodec) Decode(token string) (OAuthState, error) {
	if c == nil {
		return OAuthState{}, fmt.Errorf("core: oauth state codec is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return OAuthState{}, fmt.Errorf("core: oauth state is required")
	}
	encoded, signature, found := strings.Cut(token, ".")
	if !found || encoded == "" || signature == "" {
		return OAuthState{}, fmt.Errorf("core: oauth state is malformed")
	}
	if !hmac.Equal([]byte(c.signature(encoded)), []byte(signature)) {
		return OAuthState{}, fmt.Errorf("core: oauth state signature mismatch")
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return OAuthState{}, fmt.Errorf("core: oauth state is malformed: %w", err)
	}
	var state OAuthState
	if err := json.Unmarshal(payload, &state); err != nil {
		return OAuthState{}, fmt.Errorf("core: oauth state is malformed: %w", err)
	}
	if err := state.Validate(); err != nil {
		return OAuthState{}, err
	}
	if state.IssuedAt.IsZero() || c.now().After(state.IssuedAt.Add(c.ttl)) {
		return OAuthState{}, fmt.Errorf("core: oauth state expired")
	}
	return state, nil
}

func (c *HMACStateCodec) signature(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func generateStateNonce() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state nonce: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func generateStateSecret() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate oauth state secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ StateCodec = (*HMACStateCodec)(nil)
