package csrf

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenSignature(t *testing.T) {
	m := NewManager("secret", false)
	token, err := m.NewToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if !m.Valid(token) {
		t.Fatalf("expected token to be valid")
	}
	if NewManager("other", false).Valid(token) {
		t.Fatalf("expected token signed with another secret to be invalid")
	}
	if m.Valid("no-dot") || m.Valid(".sig") || m.Valid("nonce.") {
		t.Fatalf("expected malformed tokens to be invalid")
	}
}

func TestVerify(t *testing.T) {
	m := NewManager("secret", false)
	token, _ := m.NewToken()
	other, _ := m.NewToken()

	cases := []struct {
		name   string
		cookie string
		header string
		want   error
	}{
		{"match", token, token, nil},
		{"missing header", token, "", ErrMissingToken},
		{"missing cookie", "", token, ErrMissingToken},
		{"mismatch", token, other, ErrInvalidToken},
		{"forged", "abc.def", "abc.def", ErrInvalidToken},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/courses", nil)
			if tc.cookie != "" {
				req.AddCookie(m.Cookie(tc.cookie))
			}
			if tc.header != "" {
				req.Header.Set(HeaderName, tc.header)
			}
			if got := m.Verify(req); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestIsSafeMethod(t *testing.T) {
	if !IsSafeMethod(http.MethodGet) || IsSafeMethod(http.MethodPost) || IsSafeMethod(http.MethodDelete) {
		t.Fatalf("unexpected safe method classification")
	}
}
