package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
)

type attendanceEntry struct {
	StudentID string `json:"studentId" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,oneof=present absent late excused"`
	Note      string `json:"note" validate:"max=500"`
}

type markAttendanceRequest struct {
	Date     string            `json:"date" validate:"required,date"`
	CourseID string            `json:"courseId" validate:"omitempty,uuid"`
	SchoolID string            `json:"schoolId" validate:"omitempty,uuid"`
	Records  []attendanceEntry `json:"records" validate:"required,min=1,max=500,dive"`
}

type attendanceSummaryResponse struct {
	model.AttendanceSummary
	StudentID string  `json:"studentId"`
	CourseID  *string `json:"courseId"`
	Rate      float64 `json:"rate"`
}

func (s *Server) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req markAttendanceRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	date, _ := time.Parse(time.DateOnly, req.Date)

	var schoolID string
	var courseID *string
	switch {
	case req.CourseID != "":
		course, ok := s.manageableCourse(w, r, req.CourseID)
		if !ok {
			return
		}
		if req.SchoolID != "" && req.SchoolID != course.SchoolID {
			writeError(w, http.StatusBadRequest, "invalid_school_id")
			return
		}
		schoolID, courseID = course.SchoolID, &course.ID
	case claims.Role == auth.RoleTeacher:
		writeError(w, http.StatusBadRequest, "missing_course_id")
		return
	default:
		var ok bool
		if schoolID, ok = resolveSchool(w, claims, req.SchoolID); !ok {
			return
		}
	}

	studentIDs := make([]string, 0, len(req.Records))
	seen := make(map[string]bool, len(req.Records))
	for _, rec := range req.Records {
		if seen[rec.StudentID] {
			writeError(w, http.StatusBadRequest, "duplicate_student_id")
			return
		}
		seen[rec.StudentID] = true
		studentIDs = append(studentIDs, rec.StudentID)
	}
	count, err := s.store.Queries.CountStudentsInSchool(r.Context(), schoolID, studentIDs)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if count != len(studentIDs) {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}

	now := s.now()
	resp := make([]attendanceResponse, 0, len(req.Records))
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		for _, rec := range req.Records {
			saved, err := q.UpsertAttendance(r.Context(), model.AttendanceRecord{
				ID:        uuid.NewString(),
				SchoolID:  schoolID,
				CourseID:  courseID,
				StudentID: rec.StudentID,
				Date:      date,
				Status:    rec.Status,
				Note:      optionalString(rec.Note),
				MarkedBy:  &claims.UserID,
				UpdatedAt: now,
			})
			if err != nil {
				return err
			}
			resp = append(resp, mapAttendance(saved))
		}
		return nil
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), schoolID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAttendance(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	query := r.URL.Query()
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return
	}
	filter := db.AttendanceFilter{
		CourseID:  query.Get("courseId"),
		StudentID: query.Get("studentId"),
		Page:      db.Page{Limit: p.Limit, Offset: p.Offset},
	}
	if filter.CourseID != "" {
		if _, err := uuid.Parse(filter.CourseID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_course_id")
			return
		}
	}
	if filter.StudentID != "" {
		if _, err := uuid.Parse(filter.StudentID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_student_id")
			return
		}
	}
	for name, dst := range map[string]**time.Time{"date": &filter.Date, "from": &filter.From, "to": &filter.To} {
		parsed, ok := parseDateParam(r, name)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_"+name)
			return
		}
		*dst = parsed
	}
	if filter.SchoolID, ok = resolveSchool(w, claims, query.Get("schoolId")); !ok {
		return
	}
	if claims.Role == auth.RoleStudent {
		student, err := s.currentStudent(r.Context(), claims)
		if err != nil {
			s.writeProfileError(w, r, err)
			return
		}
		filter.StudentID = student.ID
	}

	records, err := s.store.Queries.ListAttendance(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]attendanceResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, mapAttendance(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAttendanceSummary(w http.ResponseWriter, r *http.Request) {
	student, ok := s.loadStudent(w, r, chi.URLParam(r, "studentId"))
	if !ok {
		return
	}
	courseID := r.URL.Query().Get("courseId")
	if courseID != "" {
		if _, err := uuid.Parse(courseID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_course_id")
			return
		}
	}
	summary, err := s.store.Queries.AttendanceSummary(r.Context(), student.ID, courseID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attendanceSummaryResponse{
		AttendanceSummary: summary,
		StudentID:         student.ID,
		CourseID:          optionalString(courseID),
		Rate:              summary.Rate(),
	})
}
