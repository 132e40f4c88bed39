package db

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

// PeopleFilter narrows teacher and student listings. Search matches a
// case-insensitive substring of first name, last name or email.
type PeopleFilter struct {
	SchoolID string
	Search   string
	Page     Page
}

func (f PeopleFilter) pattern() string {
	s := strings.TrimSpace(f.Search)
	if s == "" {
		return ""
	}
	s = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
	return "%" + s + "%"
}

const teacherColumns = `t.id, t.user_id, t.school_id, t.subject, t.phone, t.created_at, ` + userColumns

func scanTeacher(row pgx.Row) (model.Teacher, error) {
	var t model.Teacher
	u := &t.User
	err := row.Scan(
		&t.ID, &t.UserID, &t.SchoolID, &t.Subject, &t.Phone, &t.CreatedAt,
		&u.ID, &u.SchoolID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	return t, err
}

func (q *Queries) CreateTeacher(ctx context.Context, t model.Teacher) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO teachers (id, user_id, school_id, subject, phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.UserID, t.SchoolID, t.Subject, t.Phone, t.CreatedAt)
	return err
}

func (q *Queries) GetTeacher(ctx context.Context, id string) (model.Teacher, error) {
	return scanTeacher(q.db.QueryRow(ctx, `
		SELECT `+teacherColumns+`
		FROM teachers t JOIN users u ON u.id = t.user_id
		WHERE t.id = $1
	`, id))
}

func (q *Queries) GetTeacherByUserID(ctx context.Context, userID string) (model.Teacher, error) {
	return scanTeacher(q.db.QueryRow(ctx, `
		SELECT `+teacherColumns+`
		FROM teachers t JOIN users u ON u.id = t.user_id
		WHERE t.user_id = $1
	`, userID))
}

func (q *Queries) ListTeachers(ctx context.Context, f PeopleFilter) ([]model.Teacher, error) {
	limit, offset := f.Page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+teacherColumns+`
		FROM teachers t JOIN users u ON u.id = t.user_id
		WHERE t.school_id = $1
		  AND ($2 = '' OR u.first_name ILIKE $2 OR u.last_name ILIKE $2 OR u.email ILIKE $2)
		ORDER BY u.last_name, u.first_name, t.id
		LIMIT $3 OFFSET $4
	`, f.SchoolID, f.pattern(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	teachers := []model.Teacher{}
	for rows.Next() {
		t, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

func (q *Queries) UpdateTeacher(ctx context.Context, t model.Teacher) error {
	return q.execOne(ctx, `UPDATE teachers SET subject = $2, phone = $3 WHERE id = $1`, t.ID, t.Subject, t.Phone)
}

func (q *Queries) DetachTeacherCourses(ctx context.Context, teacherID string) (int64, error) {
	return q.exec(ctx, `UPDATE courses SET teacher_id = NULL, updated_at = now() WHERE teacher_id = $1`, teacherID)
}

func (q *Queries) DeleteTeacher(ctx context.Context, teacherID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM teachers WHERE id = $1`, teacherID)
}

const studentColumns = `s.id, s.user_id, s.school_id, s.grade, s.guardian_name, s.guardian_phone, s.created_at, ` + userColumns

func scanStudent(row pgx.Row) (model.Student, error) {
	var s model.Student
	u := &s.User
	err := row.Scan(
		&s.ID, &s.UserID, &s.SchoolID, &s.Grade, &s.GuardianName, &s.GuardianPhone, &s.CreatedAt,
		&u.ID, &u.SchoolID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	return s, err
}

func (q *Queries) CreateStudent(ctx context.Context, s model.Student) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO students (id, user_id, school_id, grade, guardian_name, guardian_phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.ID, s.UserID, s.SchoolID, s.Grade, s.GuardianName, s.GuardianPhone, s.CreatedAt)
	return err
}

func (q *Queries) GetStudent(ctx context.Context, id string) (model.Student, error) {
	return scanStudent(q.db.QueryRow(ctx, `
		SELECT `+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`, id))
}

func (q *Queries) GetStudentByUserID(ctx context.Context, userID string) (model.Student, error) {
	return scanStudent(q.db.QueryRow(ctx, `
		SELECT `+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.user_id = $1
	`, userID))
}

func (q *Queries) ListStudents(ctx context.Context, f PeopleFilter) ([]model.Student, error) {
	limit, offset := f.Page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+studentColumns+`
		FROM students s JOIN users u ON u.id = s.user_id
		WHERE s.school_id = $1
		  AND ($2 = '' OR u.first_name ILIKE $2 OR u.last_name ILIKE $2 OR u.email ILIKE $2)
		ORDER BY u.last_name, u.first_name, s.id
		LIMIT $3 OFFSET $4
	`, f.SchoolID, f.pattern(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	students := []model.Student{}
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

func (q *Queries) UpdateStudent(ctx context.Context, s model.Student) error {
	return q.execOne(ctx, `
		UPDATE students SET grade = $2, guardian_name = $3, guardian_phone = $4 WHERE id = $1
	`, s.ID, s.Grade, s.GuardianName, s.GuardianPhone)
}

// CountStudentsInSchool counts how many of ids are students of schoolID.
func (q *Queries) CountStudentsInSchool(ctx context.Context, schoolID string, ids []string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT COUNT(DISTINCT id) FROM students WHERE school_id = $1 AND id = ANY($2::uuid[])
	`, schoolID, ids).Scan(&n)
	return n, err
}

func (q *Queries) DeleteStudentSubmissions(ctx context.Context, studentID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM assignment_submissions WHERE student_id = $1`, studentID)
}

func (q *Queries) DeleteStudentEnrollments(ctx context.Context, studentID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM course_enrollments WHERE student_id = $1`, studentID)
}

func (q *Queries) DeleteStudentAttendance(ctx context.Context, studentID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM attendance_records WHERE student_id = $1`, studentID)
}

func (q *Queries) DeleteStudent(ctx context.Context, studentID string) (int64, error) {
	return q.exec(ctx, `DELETE FROM students WHERE id = $1`, studentID)
}
