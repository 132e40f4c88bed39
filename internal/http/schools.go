package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"schoolhub/internal/auth"
	"schoolhub/internal/cache"
	"schoolhub/internal/crypto"
	"schoolhub/internal/db"
	"schoolhub/internal/logger"
	"schoolhub/internal/model"
	"schoolhub/internal/operations"
)

type newAccount struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

type createSchoolRequest struct {
	Name         string      `json:"name" validate:"required,max=200"`
	Address      string      `json:"address" validate:"max=500"`
	ContactEmail string      `json:"contactEmail" validate:"omitempty,email,max=254"`
	Phone        string      `json:"phone" validate:"max=50"`
	Admin        *newAccount `json:"admin,omitempty"`
}

type patchSchoolRequest struct {
	Name         *string `json:"name" validate:"omitempty,min=1,max=200"`
	Address      *string `json:"address" validate:"omitempty,max=500"`
	ContactEmail *string `json:"contactEmail" validate:"omitempty,email,max=254"`
	Phone        *string `json:"phone" validate:"omitempty,max=50"`
}

type createSchoolResponse struct {
	schoolResponse
	AdminID *string `json:"adminId,omitempty"`
}

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return
	}
	schools, err := s.store.Queries.ListSchools(r.Context(), db.Page{Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]schoolResponse, 0, len(schools))
	for _, school := range schools {
		resp = append(resp, mapSchool(school))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	var req createSchoolRequest
	if !s.decodeValid(w, r, &req) {
		return
	}

	now := s.now()
	school := model.School{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Address:      optionalString(req.Address),
		ContactEmail: optionalString(normalizeEmail(req.ContactEmail)),
		Phone:        optionalString(req.Phone),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var admin *model.User
	if req.Admin != nil {
		hash, err := crypto.HashPassword(req.Admin.Password)
		if err != nil {
			serverError(w, r, err)
			return
		}
		admin = &model.User{
			ID:           uuid.NewString(),
			SchoolID:     &school.ID,
			Email:        normalizeEmail(req.Admin.Email),
			PasswordHash: hash,
			FirstName:    req.Admin.FirstName,
			LastName:     req.Admin.LastName,
			Role:         auth.RoleSchoolAdmin,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.CreateSchool(r.Context(), school); err != nil {
			return err
		}
		if admin != nil {
			return q.CreateUser(r.Context(), *admin)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email_taken")
			return
		}
		serverError(w, r, err)
		return
	}

	resp := createSchoolResponse{schoolResponse: mapSchool(school)}
	if admin != nil {
		resp.AdminID = &admin.ID
	}
	writeJSON(w, http.StatusCreated, resp)
}

// loadSchool fetches the school named in the path and checks tenancy.
func (s *Server) loadSchool(w http.ResponseWriter, r *http.Request) (model.School, bool) {
	schoolID := chi.URLParam(r, "schoolId")
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), schoolID) {
		return model.School{}, false
	}
	if !validID(w, schoolID, "school_not_found") {
		return model.School{}, false
	}
	school, err := s.store.Queries.GetSchool(r.Context(), schoolID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return model.School{}, false
		}
		serverError(w, r, err)
		return model.School{}, false
	}
	return school, true
}

func (s *Server) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	school, ok := s.loadSchool(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapSchool(school))
}

func (s *Server) handlePatchSchool(w http.ResponseWriter, r *http.Request) {
	var req patchSchoolRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	school, ok := s.loadSchool(w, r)
	if !ok {
		return
	}
	if req.Name != nil {
		school.Name = *req.Name
	}
	if req.Address != nil {
		school.Address = optionalString(*req.Address)
	}
	if req.ContactEmail != nil {
		school.ContactEmail = optionalString(normalizeEmail(*req.ContactEmail))
	}
	if req.Phone != nil {
		school.Phone = optionalString(*req.Phone)
	}
	school.UpdatedAt = s.now()
	if err := s.store.Queries.UpdateSchool(r.Context(), school); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSchool(school))
}

func (s *Server) handleDeleteSchool(w http.ResponseWriter, r *http.Request) {
	school, ok := s.loadSchool(w, r)
	if !ok {
		return
	}
	var steps []operations.StepResult
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		var err error
		steps, err = operations.DeleteSchool(r.Context(), q, school.ID)
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), school.ID)
	logCascade(r.Context(), "school", school.ID, steps)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSchoolStats(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "schoolId")
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), schoolID) {
		return
	}
	if !validID(w, schoolID, "school_not_found") {
		return
	}
	stats, err := cache.GetOrSet(r.Context(), s.cache, cache.SchoolStatsKey(schoolID), s.cfg.CacheTTL,
		func(ctx context.Context) (model.SchoolStats, error) {
			if _, err := s.store.Queries.GetSchool(ctx, schoolID); err != nil {
				return model.SchoolStats{}, err
			}
			return s.store.Queries.SchoolStats(ctx, schoolID, today(s.now()))
		})
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	cache.SetCacheControl(w, s.cfg.CacheTTL)
	writeJSON(w, http.StatusOK, stats)
}

func logCascade(ctx context.Context, kind, id string, steps []operations.StepResult) {
	logger.FromContext(ctx).WithFields(cascadeFields(kind, id, steps)).Info(kind + " deleted")
}

// cascadeFields totals rows per step. A school delete repeats the course
// steps once per course.
func cascadeFields(kind, id string, steps []operations.StepResult) logrus.Fields {
	fields := logrus.Fields{kind + "ID": id}
	totals := map[string]int64{}
	for _, step := range steps {
		if step.Rows > 0 {
			totals[step.Step] += step.Rows
		}
	}
	for step, rows := range totals {
		fields[step] = rows
	}
	return fields
}
