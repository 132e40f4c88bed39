package http

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/db"
	"schoolhub/internal/model"
)

var errLeaveNotPending = errors.New("leave request not pending")

type createLeaveRequest struct {
	StartDate string `json:"startDate" validate:"required,date"`
	EndDate   string `json:"endDate" validate:"required,date"`
	Reason    string `json:"reason" validate:"required,max=2000"`
}

type reviewLeaveRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Note   string `json:"note" validate:"max=2000"`
}

func (s *Server) handleCreateLeaveRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createLeaveRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	end, _ := time.Parse(time.DateOnly, req.EndDate)
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "invalid_date_range")
		return
	}
	if claims.SchoolID == "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	leave := model.LeaveRequest{
		ID:          uuid.NewString(),
		SchoolID:    claims.SchoolID,
		RequesterID: claims.UserID,
		StartDate:   start,
		EndDate:     end,
		Reason:      req.Reason,
		Status:      model.LeavePending,
		CreatedAt:   s.now(),
	}
	if err := s.store.Queries.CreateLeaveRequest(r.Context(), leave); err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), leave.SchoolID)
	writeJSON(w, http.StatusCreated, mapLeave(leave))
}

func (s *Server) handleListLeaveRequests(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.LeavePending, model.LeaveApproved, model.LeaveRejected, model.LeaveCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	schoolID, ok := resolveSchool(w, claims, r.URL.Query().Get("schoolId"))
	if !ok {
		return
	}
	filter := db.LeaveFilter{
		SchoolID: schoolID,
		Status:   status,
		Page:     db.Page{Limit: p.Limit, Offset: p.Offset},
	}
	if !claims.IsAdmin() {
		filter.RequesterID = claims.UserID
	}

	requests, err := s.store.Queries.ListLeaveRequests(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]leaveResponse, 0, len(requests))
	for _, l := range requests {
		resp = append(resp, mapLeave(l))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loadLeaveRequest(w http.ResponseWriter, r *http.Request) (model.LeaveRequest, bool) {
	id := chi.URLParam(r, "leaveRequestId")
	if !validID(w, id, "leave_request_not_found") {
		return model.LeaveRequest{}, false
	}
	leave, err := s.store.Queries.GetLeaveRequest(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "leave_request_not_found")
			return model.LeaveRequest{}, false
		}
		serverError(w, r, err)
		return model.LeaveRequest{}, false
	}
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), leave.SchoolID) {
		return model.LeaveRequest{}, false
	}
	return leave, true
}

// handleReviewLeaveRequest decides a pending request and notifies the
// requester in the same transaction.
func (s *Server) handleReviewLeaveRequest(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req reviewLeaveRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	leave, ok := s.loadLeaveRequest(w, r)
	if !ok {
		return
	}

	now := s.now()
	var reviewed model.LeaveRequest
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		var err error
		reviewed, err = q.ReviewLeaveRequest(r.Context(), leave.ID, req.Status, claims.UserID, optionalString(req.Note), now)
		if err != nil {
			if db.IsNotFound(err) {
				return errLeaveNotPending
			}
			return err
		}
		return q.CreateNotification(r.Context(), model.Notification{
			ID:          uuid.NewString(),
			SchoolID:    &reviewed.SchoolID,
			RecipientID: &reviewed.RequesterID,
			Audience:    model.AudienceUser,
			Title:       "Leave request " + reviewed.Status,
			Body:        fmt.Sprintf("Your leave request from %s to %s was %s.", dateString(reviewed.StartDate), dateString(reviewed.EndDate), reviewed.Status),
			CreatedBy:   &claims.UserID,
			CreatedAt:   now,
		})
	})
	if err != nil {
		if errors.Is(err, errLeaveNotPending) {
			writeError(w, http.StatusConflict, "leave_request_not_pending")
			return
		}
		serverError(w, r, err)
		return
	}
	s.invalidateUnread(r.Context(), reviewed.RequesterID)
	s.invalidateStats(r.Context(), reviewed.SchoolID)
	writeJSON(w, http.StatusOK, mapLeave(reviewed))
}

func (s *Server) handleCancelLeaveRequest(w http.ResponseWriter, r *http.Request) {
	leave, ok := s.loadLeaveRequest(w, r)
	if !ok {
		return
	}
	if leave.RequesterID != claimsFromContext(r.Context()).UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	cancelled, err := s.store.Queries.CancelLeaveRequest(r.Context(), leave.ID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusConflict, "leave_request_not_pending")
			return
		}
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), cancelled.SchoolID)
	writeJSON(w, http.StatusOK, mapLeave(cancelled))
}
