package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/cache"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
)

type createNotificationRequest struct {
	Audience    string `json:"audience" validate:"required,oneof=all teachers students admins user"`
	RecipientID string `json:"recipientId" validate:"required_if=Audience user,omitempty,uuid"`
	SchoolID    string `json:"schoolId" validate:"omitempty,uuid"`
	Title       string `json:"title" validate:"required,max=200"`
	Body        string `json:"body" validate:"required,max=5000"`
	Link        string `json:"link" validate:"omitempty,url,max=500"`
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

func viewer(claims *auth.Claims) db.Viewer {
	v := db.Viewer{UserID: claims.UserID, Role: claims.Role}
	if claims.SchoolID != "" {
		v.SchoolID = &claims.SchoolID
	}
	return v
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return
	}
	notifications, err := s.store.Queries.ListNotifications(r.Context(), viewer(claimsFromContext(r.Context())), db.Page{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		resp = append(resp, mapNotification(n))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	v := viewer(claimsFromContext(r.Context()))
	count, err := cache.GetOrSet(r.Context(), s.cache, cache.UnreadCountKey(v.UserID), s.cfg.CacheTTL,
		func(ctx context.Context) (int, error) {
			return s.store.Queries.CountUnreadNotifications(ctx, v)
		})
	if err != nil {
		serverError(w, r, err)
		return
	}
	cache.SetCacheControl(w, s.cfg.CacheTTL)
	writeJSON(w, http.StatusOK, unreadCountResponse{Count: count})
}

// handleCreateNotification sends a broadcast or a direct notification.
// Teachers may only reach students of their own school.
func (s *Server) handleCreateNotification(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createNotificationRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	if req.Audience != model.AudienceUser && req.RecipientID != "" {
		writeError(w, http.StatusBadRequest, "invalid_recipient_id")
		return
	}
	if claims.Role == auth.RoleTeacher && req.Audience != model.AudienceStudents && req.Audience != model.AudienceUser {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var schoolID *string
	switch {
	case !claims.IsSuperAdmin():
		if req.SchoolID != "" && req.SchoolID != claims.SchoolID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		schoolID = &claims.SchoolID
	case req.SchoolID != "":
		schoolID = &req.SchoolID
	}

	var recipientID *string
	if req.Audience == model.AudienceUser {
		recipient, err := s.store.Queries.GetUserByID(r.Context(), req.RecipientID)
		if err != nil {
			if db.IsNotFound(err) {
				writeError(w, http.StatusBadRequest, "invalid_recipient_id")
				return
			}
			serverError(w, r, err)
			return
		}
		if schoolID != nil && (recipient.SchoolID == nil || *recipient.SchoolID != *schoolID) {
			writeError(w, http.StatusBadRequest, "invalid_recipient_id")
			return
		}
		if claims.Role == auth.RoleTeacher && recipient.Role != auth.RoleStudent {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if schoolID == nil {
			schoolID = recipient.SchoolID
		}
		recipientID = &recipient.ID
	}

	notification := model.Notification{
		ID:          uuid.NewString(),
		SchoolID:    schoolID,
		RecipientID: recipientID,
		Audience:    req.Audience,
		Title:       req.Title,
		Body:        req.Body,
		Link:        optionalString(req.Link),
		CreatedBy:   &claims.UserID,
		CreatedAt:   s.now(),
	}
	if err := s.store.Queries.CreateNotification(r.Context(), notification); err != nil {
		serverError(w, r, err)
		return
	}
	if recipientID != nil {
		s.invalidateUnread(r.Context(), *recipientID)
	}
	writeJSON(w, http.StatusCreated, mapNotification(notification))
}

func (s *Server) handleReadNotification(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	id := chi.URLParam(r, "notificationId")
	if !validID(w, id, "notification_not_found") {
		return
	}
	visible, err := s.store.Queries.NotificationVisible(r.Context(), viewer(claims), id)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if !visible {
		writeError(w, http.StatusNotFound, "notification_not_found")
		return
	}
	if err := s.store.Queries.MarkNotificationRead(r.Context(), id, claims.UserID, s.now()); err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateUnread(r.Context(), claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReadAllNotifications(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	marked, err := s.store.Queries.MarkAllNotificationsRead(r.Context(), viewer(claims), s.now())
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateUnread(r.Context(), claims.UserID)
	writeJSON(w, http.StatusOK, map[string]int64{"marked": marked})
}
