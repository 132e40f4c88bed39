package db

import (
	"context"
	"time"

	"schoolhub/internal/model"
)

// Viewer identifies whose notification feed is being read.
type Viewer struct {
	UserID   string
	SchoolID *string
	Role     string
}

// visibleTo is the feed predicate: notifications addressed to the user, or
// broadcasts to their school (or the whole platform) whose audience matches
// the role. $1 user id, $2 school id, $3 role.
const visibleTo = `(
	n.recipient_id = $1
	OR (n.recipient_id IS NULL
		AND (n.school_id IS NULL OR n.school_id = $2)
		AND (n.audience = 'all'
			OR (n.audience = 'teachers' AND $3::text = 'teacher')
			OR (n.audience = 'students' AND $3::text = 'student')
			OR (n.audience = 'admins' AND $3::text IN ('school_admin', 'super_admin'))))
)`

func (v Viewer) args() []interface{} {
	return []interface{}{v.UserID, v.SchoolID, v.Role}
}

func (q *Queries) CreateNotification(ctx context.Context, n model.Notification) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO notifications (id, school_id, recipient_id, audience, title, body, link, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, n.ID, n.SchoolID, n.RecipientID, n.Audience, n.Title, n.Body, n.Link, n.CreatedBy, n.CreatedAt)
	return err
}

func (q *Queries) ListNotifications(ctx context.Context, v Viewer, page Page) ([]model.Notification, error) {
	limit, offset := page.args()
	rows, err := q.db.Query(ctx, `
		SELECT n.id, n.school_id, n.recipient_id, n.audience, n.title, n.body, n.link, n.created_by, n.created_at,
		       EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = n.id AND r.user_id = $1)
		FROM notifications n
		WHERE `+visibleTo+`
		ORDER BY n.created_at DESC, n.id
		LIMIT $4 OFFSET $5
	`, append(v.args(), limit, offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notifications := []model.Notification{}
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.SchoolID, &n.RecipientID, &n.Audience, &n.Title, &n.Body, &n.Link, &n.CreatedBy, &n.CreatedAt, &n.Read); err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (q *Queries) CountUnreadNotifications(ctx context.Context, v Viewer) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM notifications n
		WHERE `+visibleTo+`
		  AND NOT EXISTS (SELECT 1 FROM notification_reads r WHERE r.notification_id = n.id AND r.user_id = $1)
	`, v.args()...).Scan(&n)
	return n, err
}

func (q *Queries) NotificationVisible(ctx context.Context, v Viewer, notificationID string) (bool, error) {
	return q.exists(ctx, `SELECT 1 FROM notifications n WHERE n.id = $4 AND `+visibleTo, append(v.args(), notificationID)...)
}

func (q *Queries) MarkNotificationRead(ctx context.Context, notificationID, userID string, at time.Time) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`, notificationID, userID, at)
	return err
}

func (q *Queries) MarkAllNotificationsRead(ctx context.Context, v Viewer, at time.Time) (int64, error) {
	return q.exec(ctx, `
		INSERT INTO notification_reads (notification_id, user_id, read_at)
		SELECT n.id, $1::uuid, $4::timestamptz
		FROM notifications n
		WHERE `+visibleTo+`
		ON CONFLICT (notification_id, user_id) DO NOTHING
	`, append(v.args(), at)...)
}
