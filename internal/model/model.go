package model

import "time"

type School struct {
	ID           string
	Name         string
	Address      *string
	ContactEmail *string
	Phone        *string
	LogoKey      *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type User struct {
	ID           string
	SchoolID     *string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Teacher struct {
	ID        string
	UserID    string
	SchoolID  string
	Subject   *string
	Phone     *string
	CreatedAt time.Time
	User      User
}

type Student struct {
	ID            string
	UserID        string
	SchoolID      string
	Grade         *string
	GuardianName  *string
	GuardianPhone *string
	CreatedAt     time.Time
	User          User
}

type Course struct {
	ID          string
	SchoolID    string
	TeacherID   *string
	Title       string
	Description string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Chapter struct {
	ID          string
	CourseID    string
	Title       string
	Description string
	Position    int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Assignment struct {
	ID            string
	CourseID      string
	ChapterID     *string
	Title         string
	Description   string
	DueAt         *time.Time
	MaxScore      int
	Position      int
	AttachmentKey *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Submission struct {
	ID            string
	AssignmentID  string
	StudentID     string
	Content       string
	AttachmentKey *string
	Score         *int
	Feedback      *string
	SubmittedAt   time.Time
	GradedAt      *time.Time
}

type AttendanceRecord struct {
	ID        string
	SchoolID  string
	CourseID  *string
	StudentID string
	Date      time.Time
	Status    string
	Note      *string
	MarkedBy  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AttendanceSummary struct {
	Present int `json:"present"`
	Absent  int `json:"absent"`
	Late    int `json:"late"`
	Excused int `json:"excused"`
	Total   int `json:"total"`
}

// Rate is the share of sessions the student attended, late counting as
// attended. Zero when nothing was recorded.
func (s AttendanceSummary) Rate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Present+s.Late) / float64(s.Total)
}

type LeaveRequest struct {
	ID          string
	SchoolID    string
	RequesterID string
	StartDate   time.Time
	EndDate     time.Time
	Reason      string
	Status      string
	ReviewedBy  *string
	ReviewedAt  *time.Time
	ReviewNote  *string
	CreatedAt   time.Time
}

type Notification struct {
	ID          string
	SchoolID    *string
	RecipientID *string
	Audience    string
	Title       string
	Body        string
	Link        *string
	CreatedBy   *string
	CreatedAt   time.Time
	Read        bool
}

type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
	UserAgent *string
	IPAddress *string
}

type SchoolStats struct {
	Teachers             int            `json:"teachers"`
	Students             int            `json:"students"`
	Courses              int            `json:"courses"`
	PendingLeaveRequests int            `json:"pendingLeaveRequests"`
	AttendanceToday      map[string]int `json:"attendanceToday"`
}

const (
	CourseDraft     = "draft"
	CoursePublished = "published"
	CourseArchived  = "archived"

	LeavePending   = "pending"
	LeaveApproved  = "approved"
	LeaveRejected  = "rejected"
	LeaveCancelled = "cancelled"

	AudienceAll      = "all"
	AudienceTeachers = "teachers"
	AudienceStudents = "students"
	AudienceAdmins   = "admins"
	AudienceUser     = "user"
)
