package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

// ExecJSON sends one request through the transport adapter and decodes the
// JSON response body into out when out is non-nil. It does not interpret the
// status code; platform adapters own that, since each platform shapes its
// error payloads differently.
func ExecJSON(
	ctx context.Context,
	transport core.TransportAdapter,
	req core.TransportRequest,
	out any,
) (core.TransportResponse, error) {
	if transport == nil {
		return core.TransportResponse{}, fmt.Errorf("providers: transport adapter is not configured")
	}
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	if _, ok := req.Headers["Accept"]; !ok {
		req.Headers["Accept"] = "application/json"
	}
	if len(req.Body) > 0 {
		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = "application/json"
		}
	}

	response, err := transport.Do(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if out != nil && len(response.Body) > 0 {
		if err := json.Unmarshal(response.Body, out); err != nil {
			return response, fmt.Errorf("providers: decode response body: %w", err)
		}
	}
	return response, nil
}

// BearerHeaders builds the Authorization header for a credential.
func BearerHeaders(cred core.ActiveCredential) map[string]string {
	scheme := strings.TrimSpace(cred.TokenType)
	if scheme == "" || strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return map[string]string{
		"Authorization": scheme + " " + strings.TrimSpace(cred.AccessToken),
	}
}

// MarshalJSONBody encodes a request payload, treating failure as a
// programming error surfaced to the caller.
func MarshalJSONBody(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("providers: encode request body: %w", err)
	}
	return body, nil
}
