package sqlstore

import (
	"strings"
)

const redactedValue = "[REDACTED]"

// secretMarkers flags metadata keys that may carry credential material.
// Matching is substring based: "bluesky_app_password" and
// "refresh_token_hint" both trip it.
var secretMarkers = []string{
	"token",
	"password",
	"app_password",
	"secret",
	"authorization",
	"bearer",
	"api_key",
	"apikey",
	"access_key",
	"refresh",
	"credential",
	"signature",
}

// redactAuditMetadata scrubs a metadata blob before it lands in an audit
// row. Audit rows outlive the credentials they describe, so token material
// must never be written into them. Nested maps and slices are walked; the
// input is never mutated.
func redactAuditMetadata(metadata map[string]any) map[string]any {
	scrubbed := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if keyCarriesSecret(key) {
			scrubbed[key] = redactedValue
			continue
		}
		switch nested := value.(type) {
		case map[string]any:
			scrubbed[key] = redactAuditMetadata(nested)
		case []any:
			items := make([]any, len(nested))
			for i, item := range nested {
				if child, ok := item.(map[string]any); ok {
					items[i] = redactAuditMetadata(child)
				} else {
					items[i] = item
				}
			}
			scrubbed[key] = items
		default:
			scrubbed[key] = value
		}
	}
	return scrubbed
}

func keyCarriesSecret(key string) bool {
	normalized := strings.ToLower(strings.TrimSpace(key))
	if normalized == "" {
		return false
	}
	for _, marker := range secretMarkers {
		if strings.Contains(normalized, marker) {
			return true
		}
	}
	return false
}
