// Package csrf implements signed double-submit tokens: the same token is set
// as a cookie and echoed by the client in a header on unsafe requests.
package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
)

const (
	CookieName = "csrf_token"
	HeaderName = "X-CSRF-Token"
)

var (
	ErrMissingToken = errors.New("missing_csrf_token")
	ErrInvalidToken = errors.New("invalid_csrf_token")
)

type Manager struct {
	secret []byte
	secure bool
}

func NewManager(secret string, secure bool) *Manager {
	return &Manager{secret: []byte(secret), secure: secure}
}

// NewToken returns "<nonce>.<hmac(nonce)>".
func (m *Manager) NewToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := base64.RawURLEncoding.EncodeToString(buf)
	return nonce + "." + m.sign(nonce), nil
}

func (m *Manager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: false,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400,
	}
}

func (m *Manager) Valid(token string) bool {
	nonce, sig, ok := strings.Cut(token, ".")
	if !ok || nonce == "" || sig == "" {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(m.sign(nonce)))
}

// Verify checks that the header token matches the cookie and carries a valid
// signature.
func (m *Manager) Verify(r *http.Request) error {
	header := strings.TrimSpace(r.Header.Get(HeaderName))
	cookie, err := r.Cookie(CookieName)
	if header == "" || err != nil || cookie.Value == "" {
		return ErrMissingToken
	}
	if !hmac.Equal([]byte(header), []byte(cookie.Value)) {
		return ErrInvalidToken
	}
	if !m.Valid(header) {
		return ErrInvalidToken
	}
	return nil
}

func (m *Manager) sign(nonce string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(nonce))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}
