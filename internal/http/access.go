package http

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
)

// resolveSchool picks the school a request acts on. Super admins must name
// one; everybody else acts on their own and may only name that one.
func resolveSchool(w http.ResponseWriter, claims *auth.Claims, requested string) (string, bool) {
	if claims.IsSuperAdmin() {
		if requested == "" {
			writeError(w, http.StatusBadRequest, "missing_school_id")
			return "", false
		}
		if _, err := uuid.Parse(requested); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_school_id")
			return "", false
		}
		return requested, true
	}
	if requested != "" && requested != claims.SchoolID {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	if claims.SchoolID == "" {
		writeError(w, http.StatusForbidden, "forbidden")
		return "", false
	}
	return claims.SchoolID, true
}

// ensureSchoolAccess writes 403 when the caller is outside schoolID.
func ensureSchoolAccess(w http.ResponseWriter, claims *auth.Claims, schoolID string) bool {
	if !claims.CanAccessSchool(schoolID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// validID writes 404 for path ids that are not UUIDs so they never reach
// Postgres as a cast error.
func validID(w http.ResponseWriter, id, notFound string) bool {
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, notFound)
		return false
	}
	return true
}

func (s *Server) currentTeacher(ctx context.Context, claims *auth.Claims) (model.Teacher, error) {
	return s.store.Queries.GetTeacherByUserID(ctx, claims.UserID)
}

func (s *Server) currentStudent(ctx context.Context, claims *auth.Claims) (model.Student, error) {
	return s.store.Queries.GetStudentByUserID(ctx, claims.UserID)
}

// loadCourse fetches the course and checks tenancy, writing the response on
// failure.
func (s *Server) loadCourse(w http.ResponseWriter, r *http.Request, courseID string) (model.Course, bool) {
	if !validID(w, courseID, "course_not_found") {
		return model.Course{}, false
	}
	course, err := s.store.Queries.GetCourse(r.Context(), courseID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "course_not_found")
			return model.Course{}, false
		}
		serverError(w, r, err)
		return model.Course{}, false
	}
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), course.SchoolID) {
		return model.Course{}, false
	}
	return course, true
}

// canManageCourse is true for admins of the course's school and for the
// teacher who owns it.
func (s *Server) canManageCourse(ctx context.Context, claims *auth.Claims, course model.Course) (bool, error) {
	if claims.IsAdmin() {
		return claims.CanAccessSchool(course.SchoolID), nil
	}
	if claims.Role != auth.RoleTeacher || course.TeacherID == nil {
		return false, nil
	}
	teacher, err := s.currentTeacher(ctx, claims)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return teacher.ID == *course.TeacherID, nil
}

// canViewCourse adds enrolled students to the managers.
func (s *Server) canViewCourse(ctx context.Context, claims *auth.Claims, course model.Course) (bool, error) {
	if claims.Role != auth.RoleStudent {
		return s.canManageCourse(ctx, claims, course)
	}
	student, err := s.currentStudent(ctx, claims)
	if err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return s.store.Queries.IsEnrolled(ctx, course.ID, student.ID)
}

// manageableCourse combines loadCourse and canManageCourse.
func (s *Server) manageableCourse(w http.ResponseWriter, r *http.Request, courseID string) (model.Course, bool) {
	course, ok := s.loadCourse(w, r, courseID)
	if !ok {
		return model.Course{}, false
	}
	allowed, err := s.canManageCourse(r.Context(), claimsFromContext(r.Context()), course)
	if err != nil {
		serverError(w, r, err)
		return model.Course{}, false
	}
	if !allowed {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Course{}, false
	}
	return course, true
}
