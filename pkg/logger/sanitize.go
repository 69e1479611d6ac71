package logger

import (
	"strings"
)

// MaskToken reduces a session or signed token to a short prefix safe for
// logs and audit records. Full tokens must never reach any external sink.
func MaskToken(token string) string {
	const prefixLen = 8
	if token == "" {
		return ""
	}
	if len(token) <= prefixLen {
		return token[:1] + "..."
	}
	return token[:prefixLen] + "..."
}

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}
