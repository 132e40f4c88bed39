package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

const schoolColumns = `id, name, address, contact_email, phone, logo_key, created_at, updated_at`

func scanSchool(row pgx.Row) (model.School, error) {
	var s model.School
	err := row.Scan(&s.ID, &s.Name, &s.Address, &s.ContactEmail, &s.Phone, &s.LogoKey, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (q *Queries) CreateSchool(ctx context.Context, s model.School) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO schools (id, name, address, contact_email, phone, logo_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.ID, s.Name, s.Address, s.ContactEmail, s.Phone, s.LogoKey, s.CreatedAt, s.UpdatedAt)
	return err
}

func (q *Queries) GetSchool(ctx context.Context, id string) (model.School, error) {
	return scanSchool(q.db.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id))
}

func (q *Queries) ListSchools(ctx context.Context, page Page) ([]model.School, error) {
	limit, offset := page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+schoolColumns+`
		FROM schools
		ORDER BY name, id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schools := []model.School{}
	for rows.Next() {
		s, err := scanSchool(rows)
		if err != nil {
			return nil, err
		}
		schools = append(schools, s)
	}
	return schools, rows.Err()
}

func (q *Queries) UpdateSchool(ctx context.Context, s model.School) error {
	return q.execOne(ctx, `
		UPDATE schools
		SET name = $2, address = $3, contact_email = $4, phone = $5, logo_key = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.Name, s.Address, s.ContactEmail, s.Phone, s.LogoKey, s.UpdatedAt)
}

func (q *Queries) SchoolStats(ctx context.Context, schoolID string, today time.Time) (model.SchoolStats, error) {
	stats := model.SchoolStats{AttendanceToday: map[string]int{}}
	row := q.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM teachers WHERE school_id = $1),
			(SELECT COUNT(*) FROM students WHERE school_id = $1),
			(SELECT COUNT(*) FROM courses WHERE school_id = $1),
			(SELECT COUNT(*) FROM leave_requests WHERE school_id = $1 AND status = 'pending')
	`, schoolID)
	if err := row.Scan(&stats.Teachers, &stats.Students, &stats.Courses, &stats.PendingLeaveRequests); err != nil {
		return stats, err
	}

	rows, err := q.db.Query(ctx, `
		SELECT status, COUNT(*)
		FROM attendance_records
		WHERE school_id = $1 AND date = $2
		GROUP BY status
	`, schoolID, today)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.AttendanceToday[status] = count
	}
	return stats, rows.Err()
}

func (q *Queries) ListCourseIDsBySchool(ctx context.Context, schoolID string) ([]string, error) {
	return q.ids(ctx, `SELECT id FROM courses WHERE school_id = $1 ORDER BY created_at`, schoolID)
}

func (q *Queries) DeleteSchoolAttendance(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM attendance_records WHERE school_id = $1`, schoolID)
}

func (q *Queries) DeleteSchoolLeaveRequests(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM leave_requests WHERE school_id = $1`, schoolID)
}

func (q *Queries) DeleteSchoolNotificationReads(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `
		DELETE FROM notification_reads
		WHERE notification_id IN (SELECT id FROM notifications WHERE school_id = $1)
		   OR user_id IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID)
}

// DeleteSchoolNotifications also removes notifications addressed to or
// created by the school's users outside the school scope.
func (q *Queries) DeleteSchoolNotifications(ctx context.Context, schoolID string) (int64, error) {
	if _, err := q.exec(ctx, `
		DELETE FROM notification_reads
		WHERE notification_id IN (
			SELECT id FROM notifications
			WHERE recipient_id IN (SELECT id FROM users WHERE school_id = $1)
		)
	`, schoolID); err != nil {
		return 0, err
	}
	if _, err := q.exec(ctx, `
		UPDATE notifications SET created_by = NULL
		WHERE created_by IN (SELECT id FROM users WHERE school_id = $1)
		  AND (school_id IS NULL OR school_id <> $1)
	`, schoolID); err != nil {
		return 0, err
	}
	return q.exec(ctx, `
		DELETE FROM notifications
		WHERE school_id = $1
		   OR recipient_id IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID)
}

func (q *Queries) DeleteSchoolUserTokens(ctx context.Context, schoolID string) (int64, error) {
	resets, err := q.exec(ctx, `
		DELETE FROM password_reset_tokens
		WHERE user_id IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID)
	if err != nil {
		return 0, err
	}
	sessions, err := q.exec(ctx, `
		DELETE FROM refresh_token_sessions
		WHERE user_id IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID)
	return resets + sessions, err
}

func (q *Queries) DeleteSchoolStudents(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM students WHERE school_id = $1`, schoolID)
}

func (q *Queries) DeleteSchoolTeachers(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM teachers WHERE school_id = $1`, schoolID)
}

func (q *Queries) DeleteSchoolUsers(ctx context.Context, schoolID string) (int64, error) {
	if _, err := q.exec(ctx, `
		UPDATE leave_requests SET reviewed_by = NULL
		WHERE reviewed_by IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID); err != nil {
		return 0, err
	}
	if _, err := q.exec(ctx, `
		UPDATE attendance_records SET marked_by = NULL
		WHERE marked_by IN (SELECT id FROM users WHERE school_id = $1)
	`, schoolID); err != nil {
		return 0, err
	}
	return q.exec(ctx, `DELETE FROM users WHERE school_id = $1`, schoolID)
}

func (q *Queries) DeleteSchool(ctx context.Context, schoolID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM schools WHERE id = $1`, schoolID)
}

func (q *Queries) ids(ctx context.Context, sql string, args ...interface{}) ([]string, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
