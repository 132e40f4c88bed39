package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"schoolhub/internal/auth"
	"schoolhub/internal/crypto"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
	"schoolhub/internal/operations"
)

type createTeacherRequest struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	SchoolID  string `json:"schoolId" validate:"omitempty,uuid"`
	Subject   string `json:"subject" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=50"`
}

type patchTeacherRequest struct {
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Subject   *string `json:"subject" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=50"`
}

type createStudentRequest struct {
	Email         string `json:"email" validate:"required,email,max=254"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	FirstName     string `json:"firstName" validate:"required,max=100"`
	LastName      string `json:"lastName" validate:"required,max=100"`
	SchoolID      string `json:"schoolId" validate:"omitempty,uuid"`
	Grade         string `json:"grade" validate:"max=50"`
	GuardianName  string `json:"guardianName" validate:"max=200"`
	GuardianPhone string `json:"guardianPhone" validate:"max=50"`
}

type patchStudentRequest struct {
	Email         *string `json:"email" validate:"omitempty,email,max=254"`
	FirstName     *string `json:"firstName" validate:"omitempty,min=1,max=100"`
	LastName      *string `json:"lastName" validate:"omitempty,min=1,max=100"`
	Grade         *string `json:"grade" validate:"omitempty,max=50"`
	GuardianName  *string `json:"guardianName" validate:"omitempty,max=200"`
	GuardianPhone *string `json:"guardianPhone" validate:"omitempty,max=50"`
}

func (s *Server) peopleFilter(w http.ResponseWriter, r *http.Request) (db.PeopleFilter, bool) {
	schoolID := chi.URLParam(r, "schoolId")
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), schoolID) {
		return db.PeopleFilter{}, false
	}
	if !validID(w, schoolID, "school_not_found") {
		return db.PeopleFilter{}, false
	}
	p, ok := parsePage(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_pagination")
		return db.PeopleFilter{}, false
	}
	return db.PeopleFilter{
		SchoolID: schoolID,
		Search:   r.URL.Query().Get("q"),
		Page:     db.Page{Limit: p.Limit, Offset: p.Offset},
	}, true
}

func (s *Server) handleListTeachers(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.peopleFilter(w, r)
	if !ok {
		return
	}
	teachers, err := s.store.Queries.ListTeachers(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]teacherResponse, 0, len(teachers))
	for _, t := range teachers {
		resp = append(resp, mapTeacher(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.peopleFilter(w, r)
	if !ok {
		return
	}
	students, err := s.store.Queries.ListStudents(r.Context(), filter)
	if err != nil {
		serverError(w, r, err)
		return
	}
	resp := make([]studentResponse, 0, len(students))
	for _, st := range students {
		resp = append(resp, mapStudent(st))
	}
	writeJSON(w, http.StatusOK, resp)
}

// newSchoolUser builds the user row shared by teacher and student creation.
func (s *Server) newSchoolUser(account newAccount, schoolID, role string) (model.User, error) {
	hash, err := crypto.HashPassword(account.Password)
	if err != nil {
		return model.User{}, err
	}
	now := s.now()
	return model.User{
		ID:           uuid.NewString(),
		SchoolID:     &schoolID,
		Email:        normalizeEmail(account.Email),
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(account.FirstName),
		LastName:     strings.TrimSpace(account.LastName),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Server) handleCreateTeacher(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createTeacherRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	schoolID, ok := resolveSchool(w, claims, req.SchoolID)
	if !ok {
		return
	}
	user, err := s.newSchoolUser(newAccount{Email: req.Email, Password: req.Password, FirstName: req.FirstName, LastName: req.LastName}, schoolID, auth.RoleTeacher)
	if err != nil {
		serverError(w, r, err)
		return
	}
	teacher := model.Teacher{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		SchoolID:  schoolID,
		Subject:   optionalString(req.Subject),
		Phone:     optionalString(req.Phone),
		CreatedAt: user.CreatedAt,
		User:      user,
	}
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.CreateUser(r.Context(), user); err != nil {
			return err
		}
		return q.CreateTeacher(r.Context(), teacher)
	})
	if err != nil {
		s.writeCreateError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), schoolID)
	writeJSON(w, http.StatusCreated, mapTeacher(teacher))
}

func (s *Server) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	var req createStudentRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	schoolID, ok := resolveSchool(w, claims, req.SchoolID)
	if !ok {
		return
	}
	user, err := s.newSchoolUser(newAccount{Email: req.Email, Password: req.Password, FirstName: req.FirstName, LastName: req.LastName}, schoolID, auth.RoleStudent)
	if err != nil {
		serverError(w, r, err)
		return
	}
	student := model.Student{
		ID:            uuid.NewString(),
		UserID:        user.ID,
		SchoolID:      schoolID,
		Grade:         optionalString(req.Grade),
		GuardianName:  optionalString(req.GuardianName),
		GuardianPhone: optionalString(req.GuardianPhone),
		CreatedAt:     user.CreatedAt,
		User:          user,
	}
	err = s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.CreateUser(r.Context(), user); err != nil {
			return err
		}
		return q.CreateStudent(r.Context(), student)
	})
	if err != nil {
		s.writeCreateError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), schoolID)
	writeJSON(w, http.StatusCreated, mapStudent(student))
}

func (s *Server) writeCreateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case db.IsUniqueViolation(err):
		writeError(w, http.StatusConflict, "email_taken")
	case db.IsForeignKeyViolation(err):
		writeError(w, http.StatusBadRequest, "invalid_school_id")
	default:
		serverError(w, r, err)
	}
}

func (s *Server) loadTeacher(w http.ResponseWriter, r *http.Request) (model.Teacher, bool) {
	teacherID := chi.URLParam(r, "teacherId")
	if !validID(w, teacherID, "teacher_not_found") {
		return model.Teacher{}, false
	}
	teacher, err := s.store.Queries.GetTeacher(r.Context(), teacherID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "teacher_not_found")
			return model.Teacher{}, false
		}
		serverError(w, r, err)
		return model.Teacher{}, false
	}
	if !ensureSchoolAccess(w, claimsFromContext(r.Context()), teacher.SchoolID) {
		return model.Teacher{}, false
	}
	return teacher, true
}

func (s *Server) loadStudent(w http.ResponseWriter, r *http.Request, studentID string) (model.Student, bool) {
	if !validID(w, studentID, "student_not_found") {
		return model.Student{}, false
	}
	student, err := s.store.Queries.GetStudent(r.Context(), studentID)
	if err != nil {
		if db.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "student_not_found")
			return model.Student{}, false
		}
		serverError(w, r, err)
		return model.Student{}, false
	}
	claims := claimsFromContext(r.Context())
	if !ensureSchoolAccess(w, claims, student.SchoolID) {
		return model.Student{}, false
	}
	if claims.Role == auth.RoleStudent && student.UserID != claims.UserID {
		writeError(w, http.StatusForbidden, "forbidden")
		return model.Student{}, false
	}
	return student, true
}

func (s *Server) handleGetTeacher(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.loadTeacher(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapTeacher(teacher))
}

func (s *Server) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := s.loadStudent(w, r, chi.URLParam(r, "studentId"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(student))
}

// applyUserPatch merges the optional identity fields into u.
func applyUserPatch(u *model.User, email, firstName, lastName *string) {
	if email != nil {
		u.Email = normalizeEmail(*email)
	}
	if firstName != nil {
		u.FirstName = strings.TrimSpace(*firstName)
	}
	if lastName != nil {
		u.LastName = strings.TrimSpace(*lastName)
	}
}

func (s *Server) handlePatchTeacher(w http.ResponseWriter, r *http.Request) {
	var req patchTeacherRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	teacher, ok := s.loadTeacher(w, r)
	if !ok {
		return
	}
	applyUserPatch(&teacher.User, req.Email, req.FirstName, req.LastName)
	teacher.User.UpdatedAt = s.now()
	if req.Subject != nil {
		teacher.Subject = optionalString(*req.Subject)
	}
	if req.Phone != nil {
		teacher.Phone = optionalString(*req.Phone)
	}
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.UpdateUserProfile(r.Context(), teacher.User); err != nil {
			return err
		}
		return q.UpdateTeacher(r.Context(), teacher)
	})
	if err != nil {
		s.writeUpdateError(w, r, err, "teacher_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapTeacher(teacher))
}

func (s *Server) handlePatchStudent(w http.ResponseWriter, r *http.Request) {
	var req patchStudentRequest
	if !s.decodeValid(w, r, &req) {
		return
	}
	student, ok := s.loadStudent(w, r, chi.URLParam(r, "studentId"))
	if !ok {
		return
	}
	applyUserPatch(&student.User, req.Email, req.FirstName, req.LastName)
	student.User.UpdatedAt = s.now()
	if req.Grade != nil {
		student.Grade = optionalString(*req.Grade)
	}
	if req.GuardianName != nil {
		student.GuardianName = optionalString(*req.GuardianName)
	}
	if req.GuardianPhone != nil {
		student.GuardianPhone = optionalString(*req.GuardianPhone)
	}
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		if err := q.UpdateUserProfile(r.Context(), student.User); err != nil {
			return err
		}
		return q.UpdateStudent(r.Context(), student)
	})
	if err != nil {
		s.writeUpdateError(w, r, err, "student_not_found")
		return
	}
	writeJSON(w, http.StatusOK, mapStudent(student))
}

func (s *Server) writeUpdateError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case db.IsUniqueViolation(err):
		writeError(w, http.StatusConflict, "email_taken")
	case db.IsNotFound(err):
		writeError(w, http.StatusNotFound, notFound)
	default:
		serverError(w, r, err)
	}
}

func (s *Server) handleDeleteTeacher(w http.ResponseWriter, r *http.Request) {
	teacher, ok := s.loadTeacher(w, r)
	if !ok {
		return
	}
	var steps []operations.StepResult
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		var err error
		steps, err = operations.DeleteTeacher(r.Context(), q, teacher)
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), teacher.SchoolID)
	logCascade(r.Context(), "teacher", teacher.ID, steps)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	student, ok := s.loadStudent(w, r, chi.URLParam(r, "studentId"))
	if !ok {
		return
	}
	var steps []operations.StepResult
	err := s.store.WithTx(r.Context(), func(q *db.Queries) error {
		var err error
		steps, err = operations.DeleteStudent(r.Context(), q, student)
		return err
	})
	if err != nil {
		serverError(w, r, err)
		return
	}
	s.invalidateStats(r.Context(), student.SchoolID)
	s.invalidateUnread(r.Context(), student.UserID)
	logCascade(r.Context(), "student", student.ID, steps)
	w.WriteHeader(http.StatusNoContent)
}
