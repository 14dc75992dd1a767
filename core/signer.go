package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// BearerTokenSigner attaches the credential's access token as an
// Authorization header. Providers that need a different scheme install
// their own Signer through WithSigner.
type BearerTokenSigner struct{}

func (BearerTokenSigner) Sign(_ context.Context, req *http.Request, credential ActiveCredential) error {
	if req == nil {
		return fmt.Errorf("core: request is required")
	}
	token := strings.TrimSpace(credential.AccessToken)
	if token == "" {
		return fmt.Errorf("core: credential has no access token")
	}
	scheme := strings.TrimSpace(credential.TokenType)
	if scheme == "" {
		scheme = "Bearer"
	}
	req.Header.Set("Authorization", scheme+" "+token)
	return nil
}

// SignRequest signs an outbound request with the active credential of the
// given account. The token never leaves the service boundary: callers hand
// in the request and get it back signed.
func (s *Service) SignRequest(ctx context.Context, accountID string, req *http.Request) error {
	if s == nil {
		return fmt.Errorf("core: service is nil")
	}
	if s.signer == nil {
		return s.mapError(fmt.Errorf("core: request signer is not configured"))
	}
	credential, err := s.activeCredential(ctx, strings.TrimSpace(accountID))
	if err != nil {
		return s.mapError(err)
	}
	if err := s.signer.Sign(ctx, req, credential); err != nil {
		return s.mapError(err)
	}
	return nil
}

var _ Signer = BearerTokenSigner{}
