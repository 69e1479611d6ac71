package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// SessionTokenBytes is the entropy of an opaque session token, 256 bits.
const SessionTokenBytes = 32

// GenerateSessionToken returns a URL-safe opaque token. Uniqueness is
// enforced by the session store's unique constraint; on a collision the
// caller regenerates.
func GenerateSessionToken() (string, error) {
	buf := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
