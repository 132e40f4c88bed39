package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

// CourseFilter selects courses of a school. TeacherID and StudentID further
// restrict to owned or enrolled courses.
type CourseFilter struct {
	SchoolID  string
	TeacherID string
	StudentID string
	Status    string
	Page      Page
}

const courseColumns = `c.id, c.school_id, c.teacher_id, c.title, c.description, c.status, c.created_at, c.updated_at`

func scanCourse(row pgx.Row) (model.Course, error) {
	var c model.Course
	err := row.Scan(&c.ID, &c.SchoolID, &c.TeacherID, &c.Title, &c.Description, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (q *Queries) CreateCourse(ctx context.Context, c model.Course) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO courses (id, school_id, teacher_id, title, description, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.SchoolID, c.TeacherID, c.Title, c.Description, c.Status, c.CreatedAt, c.UpdatedAt)
	return err
}

func (q *Queries) GetCourse(ctx context.Context, id string) (model.Course, error) {
	return scanCourse(q.db.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses c WHERE c.id = $1`, id))
}

func (q *Queries) ListCourses(ctx context.Context, f CourseFilter) ([]model.Course, error) {
	limit, offset := f.Page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+courseColumns+`
		FROM courses c
		WHERE c.school_id = $1
		  AND ($2 = '' OR c.teacher_id::text = $2)
		  AND ($3 = '' OR EXISTS (
				SELECT 1 FROM course_enrollments e WHERE e.course_id = c.id AND e.student_id::text = $3))
		  AND ($4 = '' OR c.status = $4)
		ORDER BY c.created_at DESC, c.id
		LIMIT $5 OFFSET $6
	`, f.SchoolID, f.TeacherID, f.StudentID, f.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	courses := []model.Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, c)
	}
	return courses, rows.Err()
}

func (q *Queries) UpdateCourse(ctx context.Context, c model.Course) error {
	return q.execOne(ctx, `
		UPDATE courses
		SET teacher_id = $2, title = $3, description = $4, status = $5, updated_at = $6
		WHERE id = $1
	`, c.ID, c.TeacherID, c.Title, c.Description, c.Status, c.UpdatedAt)
}

func (q *Queries) DeleteCourseSubmissions(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `
		DELETE FROM assignment_submissions
		WHERE assignment_id IN (SELECT id FROM assignments WHERE course_id = $1)
	`, courseID)
}

func (q *Queries) DeleteCourseAssignments(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM assignments WHERE course_id = $1`, courseID)
}

func (q *Queries) DeleteCourseChapters(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM chapters WHERE course_id = $1`, courseID)
}

func (q *Queries) DeleteCourseEnrollments(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM course_enrollments WHERE course_id = $1`, courseID)
}

func (q *Queries) DeleteCourseAttendance(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM attendance_records WHERE course_id = $1`, courseID)
}

func (q *Queries) DeleteCourse(ctx context.Context, courseID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM courses WHERE id = $1`, courseID)
}

func (q *Queries) Enroll(ctx context.Context, courseID, studentID string) (bool, error) {
	n, err := q.exec(ctx, `
		INSERT INTO course_enrollments (course_id, student_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, courseID, studentID)
	return n > 0, err
}

func (q *Queries) Unenroll(ctx context.Context, courseID, studentID string) error {
	return q.execOne(ctx, `DELETE FROM course_enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
}

func (q *Queries) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return q.exists(ctx, `SELECT 1 FROM course_enrollments WHERE course_id = $1 AND student_id = $2`, courseID, studentID)
}

func (q *Queries) ListEnrolledStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	return q.ids(ctx, `SELECT student_id FROM course_enrollments WHERE course_id = $1 ORDER BY enrolled_at`, courseID)
}
