package db

import (
	"context"
	"time"

	"schoolhub/internal/model"
)

func (q *Queries) CreatePasswordResetToken(ctx context.Context, t model.PasswordResetToken) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.ID, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	return err
}

func (q *Queries) GetPasswordResetToken(ctx context.Context, tokenHash string) (model.PasswordResetToken, error) {
	var t model.PasswordResetToken
	err := q.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`, tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.UsedAt, &t.CreatedAt)
	return t, err
}

// InvalidatePasswordResetTokens marks every outstanding token of the user as
// used so that only the newest link works.
func (q *Queries) InvalidatePasswordResetTokens(ctx context.Context, userID string, at time.Time) (int64, error) {
	return q.exec(ctx, `
		UPDATE password_reset_tokens SET used_at = $2
		WHERE user_id = $1 AND used_at IS NULL
	`, userID, at)
}

// UsePasswordResetToken returns pgx.ErrNoRows when the token was already
// consumed by a concurrent request.
func (q *Queries) UsePasswordResetToken(ctx context.Context, id string, at time.Time) error {
	return q.execOne(ctx, `UPDATE password_reset_tokens SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
}

func (q *Queries) CreateRefreshSession(ctx context.Context, s model.RefreshSession) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO refresh_token_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.UserID, s.TokenHash, s.CreatedAt, s.ExpiresAt, s.RevokedAt, s.UserAgent, s.IPAddress)
	return err
}

func (q *Queries) GetRefreshSession(ctx context.Context, tokenHash string) (model.RefreshSession, error) {
	var s model.RefreshSession
	err := q.db.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at, user_agent, ip_address
		FROM refresh_token_sessions
		WHERE token_hash = $1
	`, tokenHash).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt, &s.UserAgent, &s.IPAddress)
	return s, err
}

// RevokeRefreshSession returns pgx.ErrNoRows when the session was already
// revoked, which makes refresh-token reuse detectable.
func (q *Queries) RevokeRefreshSession(ctx context.Context, sessionID string, at time.Time) error {
	return q.execOne(ctx, `
		UPDATE refresh_token_sessions SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, sessionID, at)
}

func (q *Queries) RevokeUserSessions(ctx context.Context, userID string, at time.Time) (int64, error) {
	return q.exec(ctx, `
		UPDATE refresh_token_sessions SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`, userID, at)
}

// DeleteStalePasswordResetTokens removes expired tokens and tokens used
// before usedBefore.
func (q *Queries) DeleteStalePasswordResetTokens(ctx context.Context, now, usedBefore time.Time) (int64, error) {
	return q.exec(ctx, `
		DELETE FROM password_reset_tokens
		WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $2)
	`, now, usedBefore)
}

func (q *Queries) DeleteStaleRefreshSessions(ctx context.Context, now time.Time) (int64, error) {
	return q.exec(ctx, `
		DELETE FROM refresh_token_sessions
		WHERE expires_at < $1 OR revoked_at IS NOT NULL
	`, now)
}
