package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

const chapterColumns = `id, course_id, title, description, position, created_at, updated_at`

func (q *Queries) ListChapters(ctx context.Context, courseID string) ([]model.Chapter, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+chapterColumns+`
		FROM chapters
		WHERE course_id = $1
		ORDER BY position, created_at, id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	chapters := []model.Chapter{}
	for rows.Next() {
		var c model.Chapter
		if err := rows.Scan(&c.ID, &c.CourseID, &c.Title, &c.Description, &c.Position, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		chapters = append(chapters, c)
	}
	return chapters, rows.Err()
}

func (q *Queries) InsertChapter(ctx context.Context, c model.Chapter) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO chapters (id, course_id, title, description, position, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, c.CourseID, c.Title, c.Description, c.Position, c.CreatedAt, c.UpdatedAt)
	return err
}

func (q *Queries) UpdateChapter(ctx context.Context, c model.Chapter) error {
	return q.execOne(ctx, `
		UPDATE chapters
		SET title = $3, description = $4, position = $5, updated_at = $6
		WHERE id = $1 AND course_id = $2
	`, c.ID, c.CourseID, c.Title, c.Description, c.Position, c.UpdatedAt)
}

func (q *Queries) DeleteChapters(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return q.exec(ctx, `DELETE FROM chapters WHERE id = ANY($1::uuid[])`, ids)
}

// DetachAssignmentsFromChapters clears chapter_id on assignments that still
// reference any of the given chapters.
func (q *Queries) DetachAssignmentsFromChapters(ctx context.Context, chapterIDs []string) (int64, error) {
	if len(chapterIDs) == 0 {
		return 0, nil
	}
	return q.exec(ctx, `
		UPDATE assignments SET chapter_id = NULL, updated_at = now()
		WHERE chapter_id = ANY($1::uuid[])
	`, chapterIDs)
}

const assignmentColumns = `a.id, a.course_id, a.chapter_id, a.title, a.description, a.due_at, a.max_score, a.position, a.attachment_key, a.created_at, a.updated_at`

func scanAssignment(row pgx.Row) (model.Assignment, error) {
	var a model.Assignment
	err := row.Scan(&a.ID, &a.CourseID, &a.ChapterID, &a.Title, &a.Description, &a.DueAt, &a.MaxScore, &a.Position, &a.AttachmentKey, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (q *Queries) ListAssignments(ctx context.Context, courseID string) ([]model.Assignment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM assignments a
		WHERE a.course_id = $1
		ORDER BY a.position, a.created_at, a.id
	`, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	assignments := []model.Assignment{}
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

func (q *Queries) GetAssignment(ctx context.Context, id string) (model.Assignment, error) {
	return scanAssignment(q.db.QueryRow(ctx, `SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = $1`, id))
}

func (q *Queries) InsertAssignment(ctx context.Context, a model.Assignment) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO assignments (id, course_id, chapter_id, title, description, due_at, max_score, position, attachment_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.CourseID, a.ChapterID, a.Title, a.Description, a.DueAt, a.MaxScore, a.Position, a.AttachmentKey, a.CreatedAt, a.UpdatedAt)
	return err
}

// UpdateAssignment leaves attachment_key untouched; it is only written by
// SetAssignmentAttachment.
func (q *Queries) UpdateAssignment(ctx context.Context, a model.Assignment) error {
	return q.execOne(ctx, `
		UPDATE assignments
		SET chapter_id = $3, title = $4, description = $5, due_at = $6, max_score = $7, position = $8, updated_at = $9
		WHERE id = $1 AND course_id = $2
	`, a.ID, a.CourseID, a.ChapterID, a.Title, a.Description, a.DueAt, a.MaxScore, a.Position, a.UpdatedAt)
}

func (q *Queries) SetAssignmentAttachment(ctx context.Context, assignmentID, key string) error {
	return q.execOne(ctx, `UPDATE assignments SET attachment_key = $2, updated_at = now() WHERE id = $1`, assignmentID, key)
}

func (q *Queries) DeleteAssignments(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return q.exec(ctx, `DELETE FROM assignments WHERE id = ANY($1::uuid[])`, ids)
}

func (q *Queries) DeleteSubmissionsForAssignments(ctx context.Context, assignmentIDs []string) (int64, error) {
	if len(assignmentIDs) == 0 {
		return 0, nil
	}
	return q.exec(ctx, `DELETE FROM assignment_submissions WHERE assignment_id = ANY($1::uuid[])`, assignmentIDs)
}
