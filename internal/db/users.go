package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

const userColumns = `u.id, u.school_id, u.email, u.password_hash, u.first_name, u.last_name, u.role, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.SchoolID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (q *Queries) CreateUser(ctx context.Context, u model.User) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO users (id, school_id, email, password_hash, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.SchoolID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.CreatedAt, u.UpdatedAt)
	return err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.email = $1`, email))
}

func (q *Queries) GetUserByID(ctx context.Context, id string) (model.User, error) {
	return scanUser(q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id))
}

func (q *Queries) UpdateUserProfile(ctx context.Context, u model.User) error {
	return q.execOne(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, updated_at = $5
		WHERE id = $1
	`, u.ID, u.Email, u.FirstName, u.LastName, u.UpdatedAt)
}

func (q *Queries) UpdateUserPassword(ctx context.Context, userID, hash string, updatedAt time.Time) error {
	return q.execOne(ctx, `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, userID, hash, updatedAt)
}

// ProfileID returns the teacher or student row id of a user, empty for
// administrators.
func (q *Queries) ProfileID(ctx context.Context, userID string) (string, error) {
	var id string
	err := q.db.QueryRow(ctx, `
		SELECT id FROM teachers WHERE user_id = $1
		UNION ALL
		SELECT id FROM students WHERE user_id = $1
		LIMIT 1
	`, userID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

func (q *Queries) DeleteUserNotificationReads(ctx context.Context, userID string) (int64, error) {
	return q.exec(ctx, `
		DELETE FROM notification_reads
		WHERE user_id = $1
		   OR notification_id IN (SELECT id FROM notifications WHERE recipient_id = $1)
	`, userID)
}

func (q *Queries) DeleteUserNotifications(ctx context.Context, userID string) (int64, error) {
	if _, err := q.exec(ctx, `UPDATE notifications SET created_by = NULL WHERE created_by = $1`, userID); err != nil {
		return 0, err
	}
	return q.exec(ctx, `DELETE FROM notifications WHERE recipient_id = $1`, userID)
}

func (q *Queries) DeleteUserLeaveRequests(ctx context.Context, userID string) (int64, error) {
	if _, err := q.exec(ctx, `UPDATE leave_requests SET reviewed_by = NULL WHERE reviewed_by = $1`, userID); err != nil {
		return 0, err
	}
	return q.exec(ctx, `DELETE FROM leave_requests WHERE requester_id = $1`, userID)
}

func (q *Queries) ClearAttendanceMarker(ctx context.Context, userID string) (int64, error) {
	return q.exec(ctx, `UPDATE attendance_records SET marked_by = NULL WHERE marked_by = $1`, userID)
}

func (q *Queries) DeleteUserTokens(ctx context.Context, userID string) (int64, error) {
	resets, err := q.exec(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	sessions, err := q.exec(ctx, `DELETE FROM refresh_token_sessions WHERE user_id = $1`, userID)
	return resets + sessions, err
}

func (q *Queries) DeleteUser(ctx context.Context, userID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
}
