package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/db"
	"schoolhub/internal/model"
	"schoolhub/internal/storage"
)

type submitRequest struct {
	Content       string `json:"content" validate:"required_without=AttachmentKey,max=20000"`
	AttachmentKey string `json:"attachmentKey" validate:"omitempty,max=512"`
}

type gradeRequest struct {
	Score    *int   `json:"score" validate:"required"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

func (s *Server) loadAssignment(w http.ResponseWriter, r *http.Request, id string) (model.Assignment, bool) {
	if !validID(w, id, "assignment_not_found") {
		return model.Assignment{}, false
	}
	assignment, err := s.store.Queries.GetAssignment(r.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "assignment_not_found")
			return model.Assignment{}, false
		}
		serverError(w, r, err)
		return model.Assignment{}, false
	}
	return assignment, true
}

// submissionTarget is the assignment a student is working on, resolved only
// when the caller is enrolled in its course.
type submissionTarget struct {
	assignment model.Assignment
	course     model.Course
	student    model.Student
}

func (t submissionTarget) attachmentPrefix() string {
	return storage.SubmissionAttachmentPrefix(t.course.SchoolID, t.course.ID, t.assignment.ID, t.student.ID)
}

func (s *Server) enrolledTarget(w http.ResponseWriter, r *http.Request) (submissionTarget, bool) {
	var target submissionTarget
	assignment, ok := s.loadAssignment(w, r, chi.URLParam(r, "assignmentId"))
	if !ok {
		return target, false
	}
	course, ok := s.loadCourse(w, r, assignment.CourseID)
	if !ok {
		return target, false
	}
	student, err := s.currentStudent(r.Context(), claimsFromContext(r.Context()))
	if err != nil {
		s.writeProfileError(w, r, err)
		return target, false
	}
	enrolled, err := s.store.Queries.IsEnrolled(r.Context(), course.ID, student.ID)
	if err != nil {
		serverError(w, r, err)
		return target, false
	}
	if !enrolled {
		writeError(w, http.StatusForbidden, "not_enrolled")
		return target, false
	}
	return submissionTarget{assignment: assignment, course: course, student: student}, true
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	target, ok := s.enrolledTarget(w, r)
	if !ok {
		return
	}
	if req.AttachmentKey != "" && !storage.OwnsKey(target.attachmentPrefix(), req.AttachmentKey) {
		writeError(w, http.StatusBadRequest, "invalid_attachment_key")
		return
	}

	submission, err := s.store.Queries.UpsertSubmission(r.Context(), model.Submission{
		ID:            uuid.NewString(),
		AssignmentID:  target.assignment.ID,
		StudentID:     target.student.ID,
		Content:       req.Content,
		AttachmentKey: optionalString(req.AttachmentKey),
		SubmittedAt:   s.now(),
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, mapSubmission(submission))
}

// handleSubmissionAttachmentURL presigns an upload under the caller's own
// submission folder. The returned key is what handleSubmit accepts.
func (s *Server) handleSubmissionAttachmentURL(w http.ResponseWriter, r *http.Request) {
	var req attachmentURLRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	target, ok := s.enrolledTarget(w, r)
	if !ok {
		return
	}
	key := storage.SubmissionAttachmentKey(target.course.SchoolID, target.course.ID, target.assignment.ID, target.student.ID, req.FileName)
	upload, err := s.storage.PresignUpload(r.Context(), key, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "storage_not_configured")
			return
		}
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, upload)
}

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	assignment, ok := s.loadAssignment(w, r, chi.URLParam(r, "assignmentId"))
	if !ok {
		return
	}
	if _, ok := s.manageableCourse(w, r, assignment.CourseID); !ok {
		return
	}
	submissions, err := s.store.Queries.ListSubmissions(r.Context(), assignment.ID)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]submissionResponse, 0, len(submissions))
	for _, sub := range submissions {
		resp = append(resp, mapSubmission(sub))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGradeSubmission(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	submissionID := chi.URLParam(r, "submissionId")
	if !validID(w, submissionID, "submission_not_found") {
		return
	}
	submission, err := s.store.Queries.GetSubmission(r.Context(), submissionID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "submission_not_found")
			return
		}
		serverError(w, r, err)
		return
	}
	assignment, ok := s.loadAssignment(w, r, submission.AssignmentID)
	if !ok {
		return
	}
	if _, ok := s.manageableCourse(w, r, assignment.CourseID); !ok {
		return
	}
	if *req.Score < 0 || *req.Score > assignment.MaxScore {
		writeError(w, http.StatusBadRequest, "invalid_score")
		return
	}

	graded, err := s.store.Queries.GradeSubmission(r.Context(), submission.ID, *req.Score, optionalString(req.Feedback), s.now())
	if err != nil {
		serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSubmission(graded))
}
