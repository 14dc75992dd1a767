package core

import (
	"strings"
	"testing"
	"time"
)

func TestHMACStateCodec_RoundTrip(t *testing.T) {
	codec, err := NewHMACStateCodec("unit-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	original := OAuthState{
		UserID:      "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a001",
		WorkspaceID: "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a002",
		ProviderID:  "x",
		ReturnPath:  "/settings/connections",
	}
	token, err := codec.Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.TrimSpace(token) == "" {
		t.Fatalf("expected non-empty token")
	}

	decoded, err := codec.Decode(token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.UserID != original.UserID {
		t.Fatalf("user id mismatch: %q", decoded.UserID)
	}
	if decoded.WorkspaceID != original.WorkspaceID {
		t.Fatalf("workspace id mismatch: %q", decoded.WorkspaceID)
	}
	if decoded.ProviderID != original.ProviderID {
		t.Fatalf("provider id mismatch: %q", decoded.ProviderID)
	}
	if decoded.ReturnPath != original.ReturnPath {
		t.Fatalf("return path mismatch: %q", decoded.ReturnPath)
	}
	if decoded.Nonce == "" || decoded.IssuedAt.IsZero() {
		t.Fatalf("expected nonce and issued timestamp, got %+v", decoded)
	}
}

func TestHMACStateCodec_UniqueTokensPerEncode(t *testing.T) {
	codec, err := NewHMACStateCodec("unit-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	state := OAuthState{
		UserID:      "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a001",
		WorkspaceID: "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a002",
		ProviderID:  "x",
	}
	first, err := codec.Encode(state)
	if err != nil {
		t.Fatalf("encode first: %v", err)
	}
	second, err := codec.Encode(state)
	if err != nil {
		t.Fatalf("encode second: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens for repeated encodes")
	}
}

func TestHMACStateCodec_RejectsTamperedPayload(t *testing.T) {
	codec, err := NewHMACStateCodec("unit-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, err := codec.Encode(OAuthState{
		UserID:      "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a001",
		WorkspaceID: "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a002",
		ProviderID:  "x",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	payload, signature, _ := strings.Cut(token, ".")
	flipped := []byte(payload)
	flipped[0] ^= 0x01
	tampered := string(flipped) + "." + signature

	if _, err := codec.Decode(tampered); err == nil || !strings.Contains(err.Error(), "signature mismatch") {
		t.Fatalf("expected signature mismatch, got %v", err)
	}
}

func TestHMACStateCodec_RejectsForeignSecret(t *testing.T) {
	issuer, err := NewHMACStateCodec("secret-a", time.Minute)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	verifier, err := NewHMACStateCodec("secret-b", time.Minute)
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	token, err := issuer.Encode(OAuthState{
		UserID:      "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a001",
		WorkspaceID: "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a002",
		ProviderID:  "x",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := verifier.Decode(token); err == nil {
		t.Fatalf("expected decode with wrong secret to fail")
	}
}

func TestHMACStateCodec_RejectsExpiredState(t *testing.T) {
	codec, err := NewHMACStateCodec("unit-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	token, err := codec.Encode(OAuthState{
		UserID:      "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a001",
		WorkspaceID: "5f0c3a08-5c51-4f4b-9b3e-0d83b3f0a002",
		ProviderID:  "x",
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	codec.now = func() time.Time {
		return time.Now().UTC().Add(2 * time.Minute)
	}
	if _, err := codec.Decode(token); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
}

func TestHMACStateCodec_RejectsMalformedTokens(t *testing.T) {
	codec, err := NewHMACStateCodec("unit-test-secret", time.Minute)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	for _, token := range []string{"", "just-one-part", "a.", ".b", "not-base64!.sig"} {
		if _, err := codec.Decode(token); err == nil {
			t.Fatalf("expected decode %q to fail", token)
		}
	}
}

func TestNewHMACStateCodec_RequiresSecret(t *testing.T) {
	if _, err := NewHMACStateCodec("  ", time.Minute); err == nil {
		t.Fatalf("expected blank secret to be rejected")
	}
}
