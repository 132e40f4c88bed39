package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"schoolhub/internal/model"
)

type LeaveFilter struct {
	SchoolID    string
	RequesterID string
	Status      string
	Page        Page
}

const leaveColumns = `id, school_id, requester_id, start_date, end_date, reason, status, reviewed_by, reviewed_at, review_note, created_at`

func scanLeave(row pgx.Row) (model.LeaveRequest, error) {
	var l model.LeaveRequest
	err := row.Scan(&l.ID, &l.SchoolID, &l.RequesterID, &l.StartDate, &l.EndDate, &l.Reason, &l.Status, &l.ReviewedBy, &l.ReviewedAt, &l.ReviewNote, &l.CreatedAt)
	return l, err
}

func (q *Queries) CreateLeaveRequest(ctx context.Context, l model.LeaveRequest) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO leave_requests (id, school_id, requester_id, start_date, end_date, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, l.ID, l.SchoolID, l.RequesterID, l.StartDate, l.EndDate, l.Reason, l.Status, l.CreatedAt)
	return err
}

func (q *Queries) GetLeaveRequest(ctx context.Context, id string) (model.LeaveRequest, error) {
	return scanLeave(q.db.QueryRow(ctx, `SELECT `+leaveColumns+` FROM leave_requests WHERE id = $1`, id))
}

func (q *Queries) ListLeaveRequests(ctx context.Context, f LeaveFilter) ([]model.LeaveRequest, error) {
	limit, offset := f.Page.args()
	rows, err := q.db.Query(ctx, `
		SELECT `+leaveColumns+`
		FROM leave_requests
		WHERE school_id = $1
		  AND ($2 = '' OR requester_id::text = $2)
		  AND ($3 = '' OR status = $3)
		ORDER BY created_at DESC, id
		LIMIT $4 OFFSET $5
	`, f.SchoolID, f.RequesterID, f.Status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	requests := []model.LeaveRequest{}
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, l)
	}
	return requests, rows.Err()
}

// ReviewLeaveRequest moves a pending request to status. It returns
// pgx.ErrNoRows when the request is no longer pending.
func (q *Queries) ReviewLeaveRequest(ctx context.Context, id, status, reviewerID string, note *string, at time.Time) (model.LeaveRequest, error) {
	return scanLeave(q.db.QueryRow(ctx, `
		UPDATE leave_requests
		SET status = $2, reviewed_by = $3, review_note = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING `+leaveColumns+`
	`, id, status, reviewerID, note, at))
}

func (q *Queries) CancelLeaveRequest(ctx context.Context, id string) (model.LeaveRequest, error) {
	return scanLeave(q.db.QueryRow(ctx, `
		UPDATE leave_requests
		SET status = 'cancelled'
		WHERE id = $1 AND status = 'pending'
		RETURNING `+leaveColumns+`
	`, id))
}
