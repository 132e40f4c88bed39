package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

const tokenBytes = 32

var tokenEncoding = base64.RawURLEncoding

// RandomToken mints the secret handed to a client as a refresh token or
// inside a password reset link.
func RandomToken() (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return tokenEncoding.EncodeToString(raw), nil
}

// TokenDigest is the form stored in refresh_sessions and
// password_reset_tokens. Lookups hash the presented token and match on it.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return tokenEncoding.EncodeToString(sum[:])
}
