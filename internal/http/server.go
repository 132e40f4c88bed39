package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"schoolhub/internal/auth"
	"schoolhub/internal/cache"
	"schoolhub/internal/config"
	"schoolhub/internal/csrf"
	"schoolhub/internal/db"
	"schoolhub/internal/logger"
	"schoolhub/internal/mailer"
	"schoolhub/internal/metrics"
	"schoolhub/internal/ratelimit"
	"schoolhub/internal/storage"
	"schoolhub/internal/validation"
)

// Dependencies are the optional collaborators of a Server. Zero values fall
// back to in-process implementations.
type Dependencies struct {
	Cache   cache.Cache
	Limiter ratelimit.Limiter
	Metrics *metrics.Metrics
	Storage storage.Presigner
	Mailer  mailer.Mailer
}

type Server struct {
	cfg       config.Config
	store     *db.Store
	cache     cache.Cache
	limiter   ratelimit.Limiter
	csrf      *csrf.Manager
	validator *validation.Validator
	metrics   *metrics.Metrics
	storage   storage.Presigner
	mailer    mailer.Mailer
	now       func() time.Time
}

func NewServer(cfg config.Config, store *db.Store, deps Dependencies) *Server {
	s := &Server{
		cfg:       cfg,
		store:     store,
		cache:     deps.Cache,
		limiter:   deps.Limiter,
		csrf:      csrf.NewManager(cfg.CSRFSecret, cfg.CookieSecure),
		validator: validation.New(),
		metrics:   deps.Metrics,
		storage:   deps.Storage,
		mailer:    deps.Mailer,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.limiter == nil {
		s.limiter = ratelimit.NewInMemory(cfg.RateLimitWindow)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	if s.storage == nil {
		s.storage = (*storage.S3)(nil)
	}
	if s.mailer == nil {
		s.mailer = mailer.LogMailer{}
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(logger.Middleware)
	r.Use(s.metrics.Middleware)
	r.Use(securityHeaders)
	r.Use(cors(s.cfg.CORSAllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	admins := []string{auth.RoleSuperAdmin, auth.RoleSchoolAdmin}
	staff := []string{auth.RoleSuperAdmin, auth.RoleSchoolAdmin, auth.RoleTeacher}
	members := []string{auth.RoleTeacher, auth.RoleStudent}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/csrf", s.handleCSRF)
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/password/forgot", s.handleForgotPassword)
		r.Post("/password/reset", s.handleResetPassword)
		r.With(s.guard()...).Post("/logout", s.handleLogout)
		r.With(s.guard()...).Get("/me", s.handleMe)
		r.With(s.guard()...).Post("/password/change", s.handleChangePassword)
	})

	r.Route("/schools", func(r chi.Router) {
		r.With(s.guard(auth.RoleSuperAdmin)...).Get("/", s.handleListSchools)
		r.With(s.guard(auth.RoleSuperAdmin)...).Post("/", s.handleCreateSchool)
		r.Route("/{schoolId}", func(r chi.Router) {
			r.With(s.guard(admins...)...).Get("/", s.handleGetSchool)
			r.With(s.guard(admins...)...).Patch("/", s.handlePatchSchool)
			r.With(s.guard(auth.RoleSuperAdmin)...).Delete("/", s.handleDeleteSchool)
			r.With(s.guard(admins...)...).Get("/stats", s.handleSchoolStats)
			r.With(s.guard(admins...)...).Get("/teachers", s.handleListTeachers)
			r.With(s.guard(staff...)...).Get("/students", s.handleListStudents)
		})
	})

	r.Route("/teachers", func(r chi.Router) {
		r.With(s.guard(admins...)...).Post("/", s.handleCreateTeacher)
		r.With(s.guard()...).Get("/{teacherId}", s.handleGetTeacher)
		r.With(s.guard(admins...)...).Patch("/{teacherId}", s.handlePatchTeacher)
		r.With(s.guard(admins...)...).Delete("/{teacherId}", s.handleDeleteTeacher)
	})

	r.Route("/students", func(r chi.Router) {
		r.With(s.guard(admins...)...).Post("/", s.handleCreateStudent)
		r.With(s.guard()...).Get("/{studentId}", s.handleGetStudent)
		r.With(s.guard(admins...)...).Patch("/{studentId}", s.handlePatchStudent)
		r.With(s.guard(admins...)...).Delete("/{studentId}", s.handleDeleteStudent)
		r.With(s.guard()...).Get("/{studentId}/attendance/summary", s.handleAttendanceSummary)
	})

	r.Route("/courses", func(r chi.Router) {
		r.With(s.guard()...).Get("/", s.handleListCourses)
		r.With(s.guard(staff...)...).Post("/", s.handleCreateCourse)
		r.Route("/{courseId}", func(r chi.Router) {
			r.With(s.guard()...).Get("/", s.handleGetCourse)
			r.With(s.guard(staff...)...).Put("/", s.handleReplaceCourse)
			r.With(s.guard(staff...)...).Delete("/", s.handleDeleteCourse)
			r.With(s.guard(staff...)...).Post("/enrollments", s.handleEnroll)
			r.With(s.guard(staff...)...).Delete("/enrollments/{studentId}", s.handleUnenroll)
			r.With(s.guard(staff...)...).Post("/assignments/{assignmentId}/attachment-url", s.handleAttachmentURL)
		})
	})

	r.With(s.guard(auth.RoleStudent)...).Post("/assignments/{assignmentId}/submissions", s.handleSubmit)
	r.With(s.guard(auth.RoleStudent)...).Post("/assignments/{assignmentId}/submissions/attachment-url", s.handleSubmissionAttachmentURL)
	r.With(s.guard(staff...)...).Get("/assignments/{assignmentId}/submissions", s.handleListSubmissions)
	r.With(s.guard(staff...)...).Patch("/submissions/{submissionId}/grade", s.handleGradeSubmission)

	r.Route("/attendance", func(r chi.Router) {
		r.With(s.guard(staff...)...).Post("/", s.handleMarkAttendance)
		r.With(s.guard()...).Get("/", s.handleListAttendance)
	})

	r.Route("/leave-requests", func(r chi.Router) {
		r.With(s.guard(members...)...).Post("/", s.handleCreateLeaveRequest)
		r.With(s.guard()...).Get("/", s.handleListLeaveRequests)
		r.With(s.guard(admins...)...).Patch("/{leaveRequestId}/review", s.handleReviewLeaveRequest)
		r.With(s.guard(members...)...).Delete("/{leaveRequestId}", s.handleCancelLeaveRequest)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.With(s.guard()...).Get("/", s.handleListNotifications)
		r.With(s.guard(staff...)...).Post("/", s.handleCreateNotification)
		r.With(s.guard()...).Get("/unread-count", s.handleUnreadCount)
		r.With(s.guard()...).Post("/read-all", s.handleReadAllNotifications)
		r.With(s.guard()...).Post("/{notificationId}/read", s.handleReadNotification)
	})

	return r
}
