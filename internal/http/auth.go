package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"schoolhub/internal/auth"
	"schoolhub/internal/cache"
	"schoolhub/internal/crypto"
	"schoolhub/internal/db"
	"schoolhub/internal/logger"
	"schoolhub/internal/mailer"
	"schoolhub/internal/model"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=72"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type authResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int64        `json:"expiresIn"`
	User         userResponse `json:"user"`
}

func (s *Server) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := s.csrf.NewToken()
	if err != nil {
		serverError(w, r, err)
		return
	}
	http.SetCookie(w, s.csrf.Cookie(token))
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if !s.allowAttempt(w, r, "login", req.Email, s.cfg.LoginRateLimit, s.cfg.LoginEmailRateLimit) {
		return
	}
	if !s.validate(w, r, &req) {
		return
	}

	user, err := s.store.Queries.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if db.IsNotFound(err) {
			_ = crypto.RejectUnknownAccount(req.Password)
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		serverError(w, r, err)
		return
	}
	if err := crypto.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	resp, err := s.issueTokens(r.Context(), s.store.Queries, user, r)
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.setSessionCookies(w, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	token := req.RefreshToken
	if token == "" {
		cookie, err := r.Cookie(refreshCookieName)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusUnauthorized, "missing_refresh_token")
			return
		}
		// The browser attaches this cookie on its own.
		if err := s.csrf.Verify(r); err != nil {
			writeError(w, http.StatusForbidden, "invalid_csrf_token")
			return
		}
		token = cookie.Value
	}

	now := s.now()
	session, err := s.store.Queries.GetRefreshSession(r.Context(), crypto.TokenDigest(token))
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		serverError(w, r, err)
		return
	}
	if session.RevokedAt != nil {
		// A rotated token came back: treat the family as compromised.
		if _, err := s.store.Queries.RevokeUserSessions(r.Context(), session.UserID, now); err != nil {
			serverError(w, r, err)
			return
		}
		logger.FromContext(r.Context()).WithField("userID", session.UserID).Warn("refresh token reuse")
		writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
		return
	}
	if now.After(session.ExpiresAt) {
		writeError(w, http.StatusUnauthorized, "refresh_token_expired")
		return
	}

	var resp authResponse
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.RevokeRefreshSession(r.Context(), session.ID, now); err != nil {
			return err
		}
		user, err := q.GetUserByID(r.Context(), session.UserID)
		if err != nil {
			return err
		}
		resp, err = s.issueTokens(r.Context(), q, user, r)
		return err
	})
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "invalid_refresh_token")
			return
		}
		serverError(w, r, err)
		return
	}
	s.setSessionCookies(w, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if _, err := s.store.Queries.RevokeUserSessions(r.Context(), claims.UserID, s.now()); err != nil {
		serverError(w, r, err)
		return
	}
	s.clearSessionCookies(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	user, err := s.store.Queries.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	profileID, err := s.store.Queries.ProfileID(r.Context(), user.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := mapUser(user)
	resp.ProfileID = profileID
	writeJSON(w, http.StatusOK, resp)
}

// handleForgotPassword answers 202 whether or not the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = normalizeEmail(req.Email)
	if !s.allowAttempt(w, r, "password_reset", req.Email, s.cfg.PasswordResetRateLimit, s.cfg.ResetEmailRateLimit) {
		return
	}
	if !s.validate(w, r, &req) {
		return
	}

	accepted := map[string]string{"status": "accepted"}
	user, err := s.store.Queries.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if db.IsNotFound(err) {
			writeJSON(w, http.StatusAccepted, accepted)
			return
		}
		serverError(w, r, err)
		return
	}

	token, err := crypto.RandomToken()
	if err != nil {
		serverError(w, r, err)
		return
	}
	now := s.now()
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if _, err := q.InvalidatePasswordResetTokens(r.Context(), user.ID, now); err != nil {
			return err
		}
		return q.CreatePasswordResetToken(r.Context(), model.PasswordResetToken{
			ID:        uuid.NewString(),
			UserID:    user.ID,
			TokenHash: crypto.TokenDigest(token),
			ExpiresAt: now.Add(s.cfg.PasswordResetTTL),
			CreatedAt: now,
		})
	})
	if err != nil {
		serverError(w, r, err)
		return
	}

	link, err := mailer.ResetLink(s.cfg.PasswordResetURL, token)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if err := s.mailer.SendPasswordReset(r.Context(), mailer.PasswordReset{
		Email:     user.Email,
		FirstName: user.FirstName,
		Link:      link,
	}); err != nil {
		logger.FromContext(r.Context()).WithError(err).Error("send password reset")
	}
	writeJSON(w, http.StatusAccepted, accepted)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	reset, err := s.store.Queries.GetPasswordResetToken(r.Context(), crypto.TokenDigest(req.Token))
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "invalid_reset_token")
			return
		}
		serverError(w, r, err)
		return
	}
	now := s.now()
	if reset.UsedAt != nil {
		writeError(w, http.StatusBadRequest, "invalid_reset_token")
		return
	}
	if now.After(reset.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "reset_token_expired")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		serverError(w, r, err)
		return
	}
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.UsePasswordResetToken(r.Context(), reset.ID, now); err != nil {
			return err
		}
		if err := q.UpdateUserPassword(r.Context(), reset.UserID, hash, now); err != nil {
			return err
		}
		_, err := q.RevokeUserSessions(r.Context(), reset.UserID, now)
		return err
	})
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusBadRequest, "invalid_reset_token")
			return
		}
		serverError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).WithFields(logrus.Fields{"userID": reset.UserID}).Info("password reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req changePasswordRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	user, err := s.store.Queries.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	if err := crypto.VerifyPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_current_password")
		return
	}
	hash, err := crypto.HashPassword(req.NewPassword)
	if err != nil {
		serverError(w, r, err)
		return
	}
	now := s.now()
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.UpdateUserPassword(r.Context(), user.ID, hash, now); err != nil {
			return err
		}
		_, err := q.RevokeUserSessions(r.Context(), user.ID, now)
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// issueTokens mints an access token and stores a new refresh session on q.
func (s *Server) issueTokens(ctx context.Context, q *db.Queries, user model.User, r *http.Request) (authResponse, error) {
	claims := auth.Claims{UserID: user.ID, Role: user.Role}
	if user.SchoolID != nil {
		claims.SchoolID = *user.SchoolID
	}
	accessToken, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, claims)
	if err != nil {
		return authResponse{}, err
	}
	refreshToken, err := crypto.RandomToken()
	if err != nil {
		return authResponse{}, err
	}
	now := s.now()
	if err := q.CreateRefreshSession(ctx, model.RefreshSession{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: crypto.TokenDigest(refreshToken),
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
		UserAgent: optionalString(r.UserAgent()),
		IPAddress: optionalString(clientIP(r)),
	}); err != nil {
		return authResponse{}, err
	}
	return authResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.cfg.AccessTokenTTL / time.Second),
		User:         mapUser(user),
	}, nil
}

func (s *Server) setSessionCookies(w http.ResponseWriter, resp authResponse) {
	http.SetCookie(w, &http.Cookie{
		Name:     accessCookieName,
		Value:    resp.AccessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.cfg.AccessTokenTTL / time.Second),
	})
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    resp.RefreshToken,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(s.cfg.RefreshTokenTTL / time.Second),
	})
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{{accessCookieName, "/"}, {refreshCookieName, "/auth"}} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			HttpOnly: true,
			Secure:   s.cfg.CookieSecure,
			MaxAge:   -1,
		})
	}
}

// invalidateStats drops the cached stats of schoolID after a write that
// changes them.
func (s *Server) invalidateStats(ctx context.Context, schoolID string) {
	cache.Invalidate(ctx, s.cache, cache.SchoolStatsKey(schoolID))
}

func (s *Server) invalidateUnread(ctx context.Context, userIDs ...string) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UnreadCountKey(id))
	}
	cache.Invalidate(ctx, s.cache, keys...)
}
