package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

const submissionColumns = `id, assignment_id, student_id, content, attachment_key, score, feedback, submitted_at, graded_at`

func scanSubmission(row pgx.Row) (model.Submission, error) {
	var s model.Submission
	err := row.Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Content, &s.AttachmentKey, &s.Score, &s.Feedback, &s.SubmittedAt, &s.GradedAt)
	return s, err
}

// UpsertSubmission stores a student's work. Resubmitting replaces the
// content and clears any previous grade.
func (q *Queries) UpsertSubmission(ctx context.Context, s model.Submission) (model.Submission, error) {
	return scanSubmission(q.db.QueryRow(ctx, `
		INSERT INTO assignment_submissions (id, assignment_id, student_id, content, attachment_key, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
		SET content = EXCLUDED.content,
		    attachment_key = EXCLUDED.attachment_key,
		    submitted_at = EXCLUDED.submitted_at,
		    score = NULL,
		    feedback = NULL,
		    graded_at = NULL
		RETURNING `+submissionColumns+`
	`, s.ID, s.AssignmentID, s.StudentID, s.Content, s.AttachmentKey, s.SubmittedAt))
}

func (q *Queries) GetSubmission(ctx context.Context, id string) (model.Submission, error) {
	return scanSubmission(q.db.QueryRow(ctx, `SELECT `+submissionColumns+` FROM assignment_submissions WHERE id = $1`, id))
}

func (q *Queries) ListSubmissions(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM assignment_submissions
		WHERE assignment_id = $1
		ORDER BY submitted_at, id
	`, assignmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	submissions := []model.Submission{}
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

func (q *Queries) GradeSubmission(ctx context.Context, id string, score int, feedback *string, gradedAt time.Time) (model.Submission, error) {
	return scanSubmission(q.db.QueryRow(ctx, `
		UPDATE assignment_submissions
		SET score = $2, feedback = $3, graded_at = $4
		WHERE id = $1
		RETURNING `+submissionColumns+`
	`, id, score, feedback, gradedAt))
}
