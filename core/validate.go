package core

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation helpers are pure: no I/O, no clock, no store access. The
// dispatcher calls the request-level ones before any adapter work, and the
// per-target ones inside the fan-out so one bad target never fails its
// siblings.

func ValidateIdentifier(value string) error {
	if _, err := uuid.Parse(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("core: invalid identifier %q", value)
	}
	return nil
}

func ValidateContent(content string, maxLength int) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("core: content is required")
	}
	if maxLength > 0 && utf8.RuneCountInString(content) > maxLength {
		return fmt.Errorf("core: content exceeds %d characters", maxLength)
	}
	return nil
}

func ValidateTargets(ids []string, maxTargets int) error {
	if len(ids) == 0 {
		return fmt.Errorf("core: at least one target account is required")
	}
	if maxTargets > 0 && len(ids) > maxTargets {
		return fmt.Errorf("core: target count exceeds limit of %d", maxTargets)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		trimmed := strings.TrimSpace(id)
		if err := ValidateIdentifier(trimmed); err != nil {
			return err
		}
		if _, dup := seen[trimmed]; dup {
			return fmt.Errorf("core: duplicate target account %q", trimmed)
		}
		seen[trimmed] = struct{}{}
	}
	return nil
}

// lookupHostIPs resolves hostnames during URL validation; tests swap it out
// to keep validation hermetic.
var lookupHostIPs = net.LookupIP

// ValidateExternalURL accepts absolute http/https URLs that cannot point the
// service at itself or at internal infrastructure. IP literals in every
// spelling (dotted, bare integer, hex) are checked directly; hostnames are
// resolved and every resulting address checked, so a DNS name fronting a
// loopback or private address is rejected too. The returned value is the
// parsed URL re-serialized.
func ValidateExternalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("core: url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("core: invalid url %q", raw)
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("core: invalid url scheme %q", parsed.Scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("core: url host is required")
	}
	if hostnameIsInternal(host) {
		return "", fmt.Errorf("core: url host %q is not allowed", host)
	}
	if ip := net.ParseIP(host); ip != nil {
		if ipIsInternal(ip) {
			return "", fmt.Errorf("core: url host %q is not allowed", host)
		}
		return parsed.String(), nil
	}
	if ip, ok := parseNumericIPv4(host); ok {
		if ipIsInternal(ip) {
			return "", fmt.Errorf("core: url host %q is not allowed", host)
		}
		return parsed.String(), nil
	}
	addrs, lookupErr := lookupHostIPs(host)
	if lookupErr != nil || len(addrs) == 0 {
		return "", fmt.Errorf("core: url host %q does not resolve", host)
	}
	for _, addr := range addrs {
		if ipIsInternal(addr) {
			return "", fmt.Errorf("core: url host %q is not allowed", host)
		}
	}
	return parsed.String(), nil
}

// parseNumericIPv4 handles the single-integer IPv4 spellings net.ParseIP
// rejects: "2130706433" and "0x7f000001" both name 127.0.0.1.
func parseNumericIPv4(host string) (net.IP, bool) {
	normalized := strings.ToLower(strings.TrimSpace(host))
	base := 10
	digits := normalized
	switch {
	case strings.HasPrefix(normalized, "0x"):
		base = 16
		digits = normalized[2:]
	case len(normalized) > 1 && strings.HasPrefix(normalized, "0"):
		base = 8
		digits = normalized[1:]
	}
	if digits == "" {
		return nil, false
	}
	value, err := strconv.ParseUint(digits, base, 64)
	if err != nil || value > 0xFFFFFFFF {
		return nil, false
	}
	return net.IPv4(byte(value>>24), byte(value>>16), byte(value>>8), byte(value)), true
}

func hostnameIsInternal(host string) bool {
	normalized := strings.ToLower(strings.TrimSuffix(host, "."))
	if normalized == "localhost" || strings.HasSuffix(normalized, ".localhost") {
		return true
	}
	if strings.HasSuffix(normalized, ".local") || strings.HasSuffix(normalized, ".internal") {
		return true
	}
	return false
}

func ipIsInternal(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast()
}

// ValidateForConstraints runs the per-platform checks for one target. A
// failure is a TargetValidationError carrying the per-target code.
func ValidateForConstraints(content string, linkURL string, mediaURL string, constraints PublishConstraints) error {
	if constraints.MaxContentLength > 0 && utf8.RuneCountInString(content) > constraints.MaxContentLength {
		return &TargetValidationError{
			Code: PublishErrorTooLong,
			Message: fmt.Sprintf(
				"content is %d characters; limit is %d",
				utf8.RuneCountInString(content),
				constraints.MaxContentLength,
			),
		}
	}
	if constraints.RequiresMedia && strings.TrimSpace(mediaURL) == "" {
		return &TargetValidationError{
			Code:    PublishErrorMediaRequired,
			Message: "platform requires a media attachment",
		}
	}
	if !constraints.SupportsLinks && strings.TrimSpace(linkURL) != "" {
		return &TargetValidationError{
			Code:    "links_not_supported",
			Message: "platform does not accept link attachments",
		}
	}
	return nil
}
