package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

type AttendanceFilter struct {
	SchoolID  string
	CourseID  string
	StudentID string
	Date      *time.Time
	From      *time.Time
	To        *time.Time
	Page      Page
}

const attendanceColumns = `id, school_id, course_id, student_id, date, status, note, marked_by, created_at, updated_at`

func scanAttendance(row pgx.Row) (model.AttendanceRecord, error) {
	var r model.AttendanceRecord
	err := row.Scan(&r.ID, &r.SchoolID, &r.CourseID, &r.StudentID, &r.Date, &r.Status, &r.Note, &r.MarkedBy, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// UpsertAttendance writes one mark per (student, course, date); a course-less
// mark is a school-day mark.
func (q *Queries) UpsertAttendance(ctx context.Context, r model.AttendanceRecord) (model.AttendanceRecord, error) {
	return scanAttendance(q.db.QueryRow(ctx, `
		INSERT INTO attendance_records (id, school_id, course_id, student_id, date, status, note, marked_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (student_id, (COALESCE(course_id, '00000000-0000-0000-0000-000000000000'::uuid)), date) DO UPDATE
		SET status = EXCLUDED.status,
		    note = EXCLUDED.note,
		    marked_by = EXCLUDED.marked_by,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+attendanceColumns+`
	`, r.ID, r.SchoolID, r.CourseID, r.StudentID, r.Date, r.Status, r.Note, r.MarkedBy, r.UpdatedAt))
}

func (q *Queries) ListAttendance(ctx context.Context, f AttendanceFilter) ([]model.AttendanceRecord, error) {
	limit, offset := f.Page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance_records
		WHERE school_id = $1
		  AND ($2 = '' OR course_id::text = $2)
		  AND ($3 = '' OR student_id::text = $3)
		  AND ($4::date IS NULL OR date = $4::date)
		  AND ($5::date IS NULL OR date >= $5::date)
		  AND ($6::date IS NULL OR date <= $6::date)
		ORDER BY date DESC, student_id
		LIMIT $7 OFFSET $8
	`, f.SchoolID, f.CourseID, f.StudentID, f.Date, f.From, f.To, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []model.AttendanceRecord{}
	for rows.Next() {
		r, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (q *Queries) AttendanceSummary(ctx context.Context, studentID, courseID string) (model.AttendanceSummary, error) {
	var s model.AttendanceSummary
	err := q.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'present'),
			COUNT(*) FILTER (WHERE status = 'absent'),
			COUNT(*) FILTER (WHERE status = 'late'),
			COUNT(*) FILTER (WHERE status = 'excused'),
			COUNT(*)
		FROM attendance_records
		WHERE student_id = $1 AND ($2 = '' OR course_id::text = $2)
	`, studentID, courseID).Scan(&s.Present, &s.Absent, &s.Late, &s.Excused, &s.Total)
	return s, err
}
