package http

import (
	"time"

	"schoolhub/internal/model"
)

type schoolResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Address      *string   `json:"address"`
	ContactEmail *string   `json:"contactEmail"`
	Phone        *string   `json:"phone"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func mapSchool(s model.School) schoolResponse {
	return schoolResponse{
		ID:           s.ID,
		Name:         s.Name,
		Address:      s.Address,
		ContactEmail: s.ContactEmail,
		Phone:        s.Phone,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

type userResponse struct {
	ID        string  `json:"id"`
	SchoolID  *string `json:"schoolId"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Role      string  `json:"role"`
	ProfileID string  `json:"profileId,omitempty"`
}

func mapUser(u model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		SchoolID:  u.SchoolID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

type teacherResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SchoolID  string    `json:"schoolId"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Subject   *string   `json:"subject"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"createdAt"`
}

func mapTeacher(t model.Teacher) teacherResponse {
	return teacherResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		SchoolID:  t.SchoolID,
		Email:     t.User.Email,
		FirstName: t.User.FirstName,
		LastName:  t.User.LastName,
		Subject:   t.Subject,
		Phone:     t.Phone,
		CreatedAt: t.CreatedAt,
	}
}

type studentResponse struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	SchoolID      string    `json:"schoolId"`
	Email         string    `json:"email"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	Grade         *string   `json:"grade"`
	GuardianName  *string   `json:"guardianName"`
	GuardianPhone *string   `json:"guardianPhone"`
	CreatedAt     time.Time `json:"createdAt"`
}

func mapStudent(s model.Student) studentResponse {
	return studentResponse{
		ID:            s.ID,
		UserID:        s.UserID,
		SchoolID:      s.SchoolID,
		Email:         s.User.Email,
		FirstName:     s.User.FirstName,
		LastName:      s.User.LastName,
		Grade:         s.Grade,
		GuardianName:  s.GuardianName,
		GuardianPhone: s.GuardianPhone,
		CreatedAt:     s.CreatedAt,
	}
}

type courseResponse struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"schoolId"`
	TeacherID   *string   `json:"teacherId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func mapCourse(c model.Course) courseResponse {
	return courseResponse{
		ID:          c.ID,
		SchoolID:    c.SchoolID,
		TeacherID:   c.TeacherID,
		Title:       c.Title,
		Description: c.Description,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type chapterResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position"`
}

type assignmentResponse struct {
	ID            string     `json:"id"`
	ChapterID     *string    `json:"chapterId"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	DueAt         *time.Time `json:"dueAt"`
	MaxScore      int        `json:"maxScore"`
	Position      int        `json:"position"`
	AttachmentKey *string    `json:"attachmentKey"`
}

func mapAssignment(a model.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:            a.ID,
		ChapterID:     a.ChapterID,
		Title:         a.Title,
		Description:   a.Description,
		DueAt:         a.DueAt,
		MaxScore:      a.MaxScore,
		Position:      a.Position,
		AttachmentKey: a.AttachmentKey,
	}
}

type courseDetailResponse struct {
	courseResponse
	Chapters    []chapterResponse    `json:"chapters"`
	Assignments []assignmentResponse `json:"assignments"`
}

func mapCourseDetail(c model.Course, chapters []model.Chapter, assignments []model.Assignment) courseDetailResponse {
	resp := courseDetailResponse{
		courseResponse: mapCourse(c),
		Chapters:       make([]chapterResponse, 0, len(chapters)),
		Assignments:    make([]assignmentResponse, 0, len(assignments)),
	}
	for _, ch := range chapters {
		resp.Chapters = append(resp.Chapters, chapterResponse{
			ID:          ch.ID,
			Title:       ch.Title,
			Description: ch.Description,
			Position:    ch.Position,
		})
	}
	for _, a := range assignments {
		resp.Assignments = append(resp.Assignments, mapAssignment(a))
	}
	return resp
}

type submissionResponse struct {
	ID            string     `json:"id"`
	AssignmentID  string     `json:"assignmentId"`
	StudentID     string     `json:"studentId"`
	Content       string     `json:"content"`
	AttachmentKey *string    `json:"attachmentKey"`
	Score         *int       `json:"score"`
	Feedback      *string    `json:"feedback"`
	SubmittedAt   time.Time  `json:"submittedAt"`
	GradedAt      *time.Time `json:"gradedAt"`
}

func mapSubmission(s model.Submission) submissionResponse {
	return submissionResponse{
		ID:            s.ID,
		AssignmentID:  s.AssignmentID,
		StudentID:     s.StudentID,
		Content:       s.Content,
		AttachmentKey: s.AttachmentKey,
		Score:         s.Score,
		Feedback:      s.Feedback,
		SubmittedAt:   s.SubmittedAt,
		GradedAt:      s.GradedAt,
	}
}

type attendanceResponse struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"schoolId"`
	CourseID  *string   `json:"courseId"`
	StudentID string    `json:"studentId"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Note      *string   `json:"note"`
	MarkedBy  *string   `json:"markedBy"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func mapAttendance(r model.AttendanceRecord) attendanceResponse {
	return attendanceResponse{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		CourseID:  r.CourseID,
		StudentID: r.StudentID,
		Date:      dateString(r.Date),
		Status:    r.Status,
		Note:      r.Note,
		MarkedBy:  r.MarkedBy,
		UpdatedAt: r.UpdatedAt,
	}
}

type leaveResponse struct {
	ID          string     `json:"id"`
	SchoolID    string     `json:"schoolId"`
	RequesterID string     `json:"requesterId"`
	StartDate   string     `json:"startDate"`
	EndDate     string     `json:"endDate"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	ReviewedBy  *string    `json:"reviewedBy"`
	ReviewedAt  *time.Time `json:"reviewedAt"`
	ReviewNote  *string    `json:"reviewNote"`
	CreatedAt   time.Time  `json:"createdAt"`
}

func mapLeave(l model.LeaveRequest) leaveResponse {
	return leaveResponse{
		ID:          l.ID,
		SchoolID:    l.SchoolID,
		RequesterID: l.RequesterID,
		StartDate:   dateString(l.StartDate),
		EndDate:     dateString(l.EndDate),
		Reason:      l.Reason,
		Status:      l.Status,
		ReviewedBy:  l.ReviewedBy,
		ReviewedAt:  l.ReviewedAt,
		ReviewNote:  l.ReviewNote,
		CreatedAt:   l.CreatedAt,
	}
}

type notificationResponse struct {
	ID          string    `json:"id"`
	SchoolID    *string   `json:"schoolId"`
	RecipientID *string   `json:"recipientId"`
	Audience    string    `json:"audience"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        *string   `json:"link"`
	CreatedBy   *string   `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	Read        bool      `json:"read"`
}

func mapNotification(n model.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		SchoolID:    n.SchoolID,
		RecipientID: n.RecipientID,
		Audience:    n.Audience,
		Title:       n.Title,
		Body:        n.Body,
		Link:        n.Link,
		CreatedBy:   n.CreatedBy,
		CreatedAt:   n.CreatedAt,
		Read:        n.Read,
	}
}
