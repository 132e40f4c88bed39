package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
	"schoolhub/internal/operations"
	"schoolhub/internal/storage"
)

type courseRequest struct {
	Title       string                       `json:"title" validate:"required,max=200"`
	Description string                       `json:"description" validate:"max=5000"`
	Status      string                       `json:"status" validate:"omitempty,oneof=draft published archived"`
	TeacherID   string                       `json:"teacherId" validate:"omitempty,uuid"`
	SchoolID    string                       `json:"schoolId" validate:"omitempty,uuid"`
	Chapters    []operations.ChapterInput    `json:"chapters" validate:"max=200,dive"`
	Assignments []operations.AssignmentInput `json:"assignments" validate:"max=500,dive"`
}

type courseWriteResponse struct {
	courseDetailResponse
	IDMap operations.IDMap `json:"idMap"`
}

type attachmentURLRequest struct {
	FileName    string `json:"fileName" validate:"required,max=255"`
	ContentType string `json:"contentType" validate:"omitempty,max=100"`
}

type enrollRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,max=500,dive,uuid"`
}

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return
	}
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.CourseDraft, model.CoursePublished, model.CourseArchived:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status")
		return
	}
	schoolID, ok := resolveSchool(w, claims, r.URL.Query().Get("schoolId"))
	if !ok {
		return
	}
	filter := db.CourseFilter{
		SchoolID: schoolID,
		Status:   status,
		Page:     db.Page{Limit: p.Limit, Offset: p.Offset},
	}

	switch claims.Role {
	case auth.RoleTeacher:
		teacher, err := s.currentTeacher(r.Context(), claims)
		if err != nil {
			s.writeProfileError(w, r, err)
			return
		}
		filter.TeacherID = teacher.ID
	case auth.RoleStudent:
		student, err := s.currentStudent(r.Context(), claims)
		if err != nil {
			s.writeProfileError(w, r, err)
			return
		}
		filter.StudentID = student.ID
	}

	courses, err := s.store.Queries.ListCourses(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]courseResponse, 0, len(courses))
	for _, c := range courses {
		resp = append(resp, mapCourse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	if db.IsNotFound(err) {
		writeError(w, http.StatusForbidden, "profile_not_found")
		return
	}
	serverError(w, r, err)
}

// courseOwner decides the teacher_id a write may set. Teachers always own
// what they write; admins may assign any teacher of the school or none.
func (s *Server) courseOwner(ctx context.Context, claims *auth.Claims, schoolID, requested string) (*string, string, error) {
	if claims.Role == auth.RoleTeacher {
		teacher, err := s.currentTeacher(ctx, claims)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, "profile_not_found", nil
			}
			return nil, "", err
		}
		if requested != "" && requested != teacher.ID {
			return nil, "forbidden", nil
		}
		return &teacher.ID, "", nil
	}
	if requested == "" {
		return nil, "", nil
	}
	teacher, err := s.store.Queries.GetTeacher(ctx, requested)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, "invalid_teacher_id", nil
		}
		return nil, "", err
	}
	if teacher.SchoolID != schoolID {
		return nil, "invalid_teacher_id", nil
	}
	return &teacher.ID, "", nil
}

func ownerErrorStatus(code string) int {
	if code == "forbidden" || code == "profile_not_found" {
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req courseRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	schoolID, ok := resolveSchool(w, claims, req.SchoolID)
	if !ok {
		return
	}
	teacherID, code, err := s.courseOwner(r.Context(), claims, schoolID, req.TeacherID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if code != "" {
		writeError(w, ownerErrorStatus(code), code)
		return
	}

	now := s.now()
	course := model.Course{
		ID:          uuid.NewString(),
		SchoolID:    schoolID,
		TeacherID:   teacherID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      statusOr(req.Status, model.CourseDraft),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	plan, err := operations.PlanCurriculum(course.ID, operations.Existing{}, req.Chapters, req.Assignments, now, uuid.NewString)
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	var resp courseWriteResponse
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.CreateCourse(r.Context(), course); err != nil {
			return err
		}
		if err := operations.ApplyCurriculum(r.Context(), q, plan); err != nil {
			return err
		}
		detail, err := courseDetail(r.Context(), q, course)
		resp = courseWriteResponse{courseDetailResponse: detail, IDMap: plan.IDMap}
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), schoolID)
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := s.loadCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	allowed, err := s.canViewCourse(r.Context(), claimsFromContext(r.Context()), course)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	detail, err := courseDetail(r.Context(), s.store.Queries, course)
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleReplaceCourse rewrites the course and its whole curriculum. The
// stored curriculum is read inside the transaction so the diff matches what
// gets written.
func (s *Server) handleReplaceCourse(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req courseRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	course, ok := s.manageableCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	if req.SchoolID != "" && req.SchoolID != course.SchoolID {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}
	teacherID := course.TeacherID
	if claims.IsAdmin() {
		owner, code, err := s.courseOwner(r.Context(), claims, course.SchoolID, req.TeacherID)
		if err != nil {
			serverError(w, r, err)
			return
		}
		if code != "" {
			writeError(w, ownerErrorStatus(code), code)
			return
		}
		teacherID = owner
	} else if req.TeacherID != "" && (teacherID == nil || req.TeacherID != *teacherID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	now := s.now()
	course.TeacherID = teacherID
	course.Title = strings.TrimSpace(req.Title)
	course.Description = req.Description
	course.Status = statusOr(req.Status, course.Status)
	course.UpdatedAt = now

	var resp courseWriteResponse
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		existing, err := existingCurriculum(r.Context(), q, course.ID)
		if err != nil {
			return err
		}
		plan, err := operations.PlanCurriculum(course.ID, existing, req.Chapters, req.Assignments, now, uuid.NewString)
		if err != nil {
			return err
		}
		if err := q.UpdateCourse(r.Context(), course); err != nil {
			return err
		}
		if err := operations.ApplyCurriculum(r.Context(), q, plan); err != nil {
			return err
		}
		detail, err := courseDetail(r.Context(), q, course)
		resp = courseWriteResponse{courseDetailResponse: detail, IDMap: plan.IDMap}
		return err
	})
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	course, ok := s.manageableCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	var steps []operations.StepResult
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		var err error
		steps, err = operations.DeleteCourse(r.Context(), q, course.ID)
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), course.SchoolID)
	logCascade(r.Context(), "course", course.ID, steps)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	course, ok := s.manageableCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	studentIDs := unique(req.StudentIDs)
	count, err := s.store.Queries.CountStudentsInSchool(r.Context(), course.SchoolID, studentIDs)
	if err != nil {
		serverError(w, r, err)
		return
	}
	if count != len(studentIDs) {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}

	enrolled := 0
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		for _, studentID := range studentIDs {
			added, err := q.Enroll(r.Context(), course.ID, studentID)
			if err != nil {
				return err
			}
			if added {
				enrolled++
			}
		}
		return nil
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"enrolled": enrolled, "requested": len(studentIDs)})
}

func (s *Server) handleUnenroll(w http.ResponseWriter, r *http.Request) {
	course, ok := s.manageableCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	studentID := chi.URLParam(r, "studentId")
	if !validID(w, studentID, "enrollment_not_found") {
		return
	}
	if err := s.store.Queries.Unenroll(r.Context(), course.ID, studentID); err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "enrollment_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachmentURL(w http.ResponseWriter, r *http.Request) {
	var req attachmentURLRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	course, ok := s.manageableCourse(w, r, chi.URLParam(r, "courseId"))
	if !ok {
		return
	}
	assignmentID := chi.URLParam(r, "assignmentId")
	if !validID(w, assignmentID, "assignment_not_found") {
		return
	}
	assignment, err := s.store.Queries.GetAssignment(r.Context(), assignmentID)
	if err != nil && !db.IsNotFound(err) {
		serverError(w, r, err)
		return
	}
	if err != nil || assignment.CourseID != course.ID {
		writeError(w, http.StatusNotFound, "assignment_not_found")
		return
	}

	key := storage.AssignmentAttachmentKey(course.SchoolID, course.ID, assignment.ID, req.FileName)
	upload, err := s.storage.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "storage_not_configured")
			return
		}
		serverError(w, r, err)
		return
	}
	if err := s.store.Queries.SetAssignmentAttachment(r.Context(), assignment.ID, key); err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

// writeOperationError maps curriculum planning failures to 400 and anything
// else to 500.
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	if opErr, ok := operations.AsError(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": opErr.Code, "ref": opErr.Ref})
		return
	}
	serverError(w, r, err)
}

func courseDetail(ctx context.Context, q *db.Queries, course model.Course) (courseDetailResponse, error) {
	chapters, err := q.ListChapters(ctx, course.ID)
	if err != nil {
		return courseDetailResponse{}, err
	}
	assignments, err := q.ListAssignments(ctx, course.ID)
	if err != nil {
		return courseDetailResponse{}, err
	}
	return mapCourseDetail(course, chapters, assignments), nil
}

func existingCurriculum(ctx context.Context, q *db.Queries, courseID string) (operations.Existing, error) {
	var existing operations.Existing
	chapters, err := q.ListChapters(ctx, courseID)
	if err != nil {
		return existing, err
	}
	assignments, err := q.ListAssignments(ctx, courseID)
	if err != nil {
		return existing, err
	}
	for _, c := range chapters {
		existing.ChapterIDs = append(existing.ChapterIDs, c.ID)
	}
	for _, a := range assignments {
		existing.AssignmentIDs = append(existing.AssignmentIDs, a.ID)
	}
	return existing, nil
}

func statusOr(status, fallback string) string {
	if status == "" {
		return fallback
	}
	return status
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
