package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"schoolhub/internal/auth"
	"schoolhub/internal/csrf"
	"schoolhub/internal/logger"
	"schoolhub/internal/ratelimit"
)

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"
)

type claimsKey struct{}

type cookieAuthKey struct{}

func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return claims
}

func authenticatedByCookie(ctx context.Context) bool {
	viaCookie, _ := ctx.Value(cookieAuthKey{}).(bool)
	return viaCookie
}

// guard is the chain every authenticated route runs: token, role, per-user
// rate limit, then CSRF for cookie sessions.
func (s *Server) guard(roles ...string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		s.authenticate,
		requireRoles(roles...),
		s.limitUser,
		s.verifyCSRF,
	}
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viaCookie := false
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			if cookie, err := r.Cookie(accessCookieName); err == nil && cookie.Value != "" {
				token = cookie.Value
				viaCookie = true
			}
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		ctx = context.WithValue(ctx, cookieAuthKey{}, viaCookie)
		ctx = logger.WithIdentity(ctx, claims.Role+":"+claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRoles admits any authenticated caller when roles is empty.
func requireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := claimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			if len(roles) > 0 && !contains(roles, claims.Role) {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) limitUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())
		if !s.allow(w, r, "api", "api:"+claims.UserID, s.cfg.APIRateLimit) {
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allow consumes one unit of key's budget, sets the X-RateLimit headers and
// writes a 429 when the budget is spent.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, scope, key string, limit int) bool {
	d := s.limiter.Allow(r.Context(), key, limit)
	setRateLimitHeaders(w, d)
	if d.Allowed {
		return true
	}
	s.metrics.RateLimited(scope)
	w.Header().Set("Retry-After", strconv.Itoa(d.RetryAfter(s.now())))
	writeError(w, http.StatusTooManyRequests, "rate_limited")
	return false
}

// allowAttempt charges a credential attempt to the client+email bucket and
// then to the email alone, so rotating addresses still runs into a limit.
func (s *Server) allowAttempt(w http.ResponseWriter, r *http.Request, scope, email string, perClient, perEmail int) bool {
	if !s.allow(w, r, scope, scope+":"+clientIP(r)+":"+email, perClient) {
		return false
	}
	return s.allow(w, r, scope, scope+":email:"+email, perEmail)
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func (s *Server) verifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authenticatedByCookie(r.Context()) && !csrf.IsSafeMethod(r.Method) {
			if err := s.csrf.Verify(r); err != nil {
				writeError(w, http.StatusForbidden, "invalid_csrf_token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// cors answers preflights and reflects allowed origins with credentials,
// since browser clients authenticate with cookies.
func cors(allowedOrigins string) func(http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, part := range strings.Split(allowedOrigins, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			allowed[origin] = true
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
			if origin == "" || !allowed[origin] {
				if preflight && origin != "" {
					writeError(w, http.StatusForbidden, "origin_not_allowed")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			h := w.Header()
			h.Add("Vary", "Origin")
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization,Content-Type,"+csrf.HeaderName)
			h.Set("Access-Control-Expose-Headers", "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset,Retry-After")
			h.Set("Access-Control-Max-Age", "600")
			if preflight {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
