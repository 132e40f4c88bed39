package operations

import (
	"context"
	"fmt"

	"schoolhub/internal/model"
)

// StepResult is the number of rows one cascade step removed or detached.
type StepResult struct {
	Step string
	Rows int64
}

type step struct {
	name string
	run  func(context.Context) (int64, error)
}

func runSteps(ctx context.Context, steps []step) ([]StepResult, error) {
	results := make([]StepResult, 0, len(steps))
	for _, s := range steps {
		n, err := s.run(ctx)
		if err != nil {
			return results, fmt.Errorf("delete %s: %w", s.name, err)
		}
		results = append(results, StepResult{Step: s.name, Rows: n})
	}
	return results, nil
}

type CourseCascadeStore interface {
	DeleteCourseSubmissions(ctx context.Context, courseID string) (int64, error)
	DeleteCourseAssignments(ctx context.Context, courseID string) (int64, error)
	DeleteCourseChapters(ctx context.Context, courseID string) (int64, error)
	DeleteCourseEnrollments(ctx context.Context, courseID string) (int64, error)
	DeleteCourseAttendance(ctx context.Context, courseID string) (int64, error)
	DeleteCourse(ctx context.Context, courseID string) (int64, error)
}

func courseSteps(q CourseCascadeStore, courseID string) []step {
	bind := func(name string, fn func(context.Context, string) (int64, error)) step {
		return step{name: name, run: func(ctx context.Context) (int64, error) { return fn(ctx, courseID) }}
	}
	return []step{
		bind("submissions", q.DeleteCourseSubmissions),
		bind("assignments", q.DeleteCourseAssignments),
		bind("chapters", q.DeleteCourseChapters),
		bind("enrollments", q.DeleteCourseEnrollments),
		bind("course attendance", q.DeleteCourseAttendance),
		bind("course", q.DeleteCourse),
	}
}

// DeleteCourse removes a course and everything hanging off it, children
// first. q is expected to be bound to a transaction.
func DeleteCourse(ctx context.Context, q CourseCascadeStore, courseID string) ([]StepResult, error) {
	return runSteps(ctx, courseSteps(q, courseID))
}

type SchoolCascadeStore interface {
	CourseCascadeStore
	ListCourseIDsBySchool(ctx context.Context, schoolID string) ([]string, error)
	DeleteSchoolAttendance(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolLeaveRequests(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolNotificationReads(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolNotifications(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolUserTokens(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolStudents(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolTeachers(ctx context.Context, schoolID string) (int64, error)
	DeleteSchoolUsers(ctx context.Context, schoolID string) (int64, error)
	DeleteSchool(ctx context.Context, schoolID string) (int64, error)
}

// DeleteSchool cascades every course of the school, then the school-wide
// rows, then the school itself.
func DeleteSchool(ctx context.Context, q SchoolCascadeStore, schoolID string) ([]StepResult, error) {
	courseIDs, err := q.ListCourseIDsBySchool(ctx, schoolID)
	if err != nil {
		return nil, fmt.Errorf("delete courses: %w", err)
	}
	var results []StepResult
	for _, courseID := range courseIDs {
		courseResults, err := DeleteCourse(ctx, q, courseID)
		results = append(results, courseResults...)
		if err != nil {
			return results, err
		}
	}

	bind := func(name string, fn func(context.Context, string) (int64, error)) step {
		return step{name: name, run: func(ctx context.Context) (int64, error) { return fn(ctx, schoolID) }}
	}
	schoolResults, err := runSteps(ctx, []step{
		bind("attendance", q.DeleteSchoolAttendance),
		bind("leave requests", q.DeleteSchoolLeaveRequests),
		bind("notification reads", q.DeleteSchoolNotificationReads),
		bind("notifications", q.DeleteSchoolNotifications),
		bind("user tokens", q.DeleteSchoolUserTokens),
		bind("students", q.DeleteSchoolStudents),
		bind("teachers", q.DeleteSchoolTeachers),
		bind("users", q.DeleteSchoolUsers),
		bind("school", q.DeleteSchool),
	})
	return append(results, schoolResults...), err
}

// UserCascadeStore covers the rows any user leaves behind.
type UserCascadeStore interface {
	ClearAttendanceMarker(ctx context.Context, userID string) (int64, error)
	DeleteUserLeaveRequests(ctx context.Context, userID string) (int64, error)
	DeleteUserNotificationReads(ctx context.Context, userID string) (int64, error)
	DeleteUserNotifications(ctx context.Context, userID string) (int64, error)
	DeleteUserTokens(ctx context.Context, userID string) (int64, error)
	DeleteUser(ctx context.Context, userID string) (int64, error)
}

func userSteps(q UserCascadeStore, userID string) (before []step, last step) {
	bind := func(name string, fn func(context.Context, string) (int64, error)) step {
		return step{name: name, run: func(ctx context.Context) (int64, error) { return fn(ctx, userID) }}
	}
	return []step{
		bind("attendance markers", q.ClearAttendanceMarker),
		bind("leave requests", q.DeleteUserLeaveRequests),
		bind("notification reads", q.DeleteUserNotificationReads),
		bind("notifications", q.DeleteUserNotifications),
		bind("tokens", q.DeleteUserTokens),
	}, bind("user", q.DeleteUser)
}

type TeacherCascadeStore interface {
	UserCascadeStore
	DetachTeacherCourses(ctx context.Context, teacherID string) (int64, error)
	DeleteTeacher(ctx context.Context, teacherID string) (int64, error)
}

// DeleteTeacher detaches the teacher's courses instead of deleting them.
func DeleteTeacher(ctx context.Context, q TeacherCascadeStore, teacher model.Teacher) ([]StepResult, error) {
	userBefore, userLast := userSteps(q, teacher.UserID)
	steps := []step{{name: "course ownership", run: func(ctx context.Context) (int64, error) {
		return q.DetachTeacherCourses(ctx, teacher.ID)
	}}}
	steps = append(steps, userBefore...)
	steps = append(steps,
		step{name: "teacher", run: func(ctx context.Context) (int64, error) { return q.DeleteTeacher(ctx, teacher.ID) }},
		userLast,
	)
	return runSteps(ctx, steps)
}

type StudentCascadeStore interface {
	UserCascadeStore
	DeleteStudentSubmissions(ctx context.Context, studentID string) (int64, error)
	DeleteStudentEnrollments(ctx context.Context, studentID string) (int64, error)
	DeleteStudentAttendance(ctx context.Context, studentID string) (int64, error)
	DeleteStudent(ctx context.Context, studentID string) (int64, error)
}

func DeleteStudent(ctx context.Context, q StudentCascadeStore, student model.Student) ([]StepResult, error) {
	bind := func(name string, fn func(context.Context, string) (int64, error)) step {
		return step{name: name, run: func(ctx context.Context) (int64, error) { return fn(ctx, student.ID) }}
	}
	userBefore, userLast := userSteps(q, student.UserID)
	steps := []step{
		bind("submissions", q.DeleteStudentSubmissions),
		bind("enrollments", q.DeleteStudentEnrollments),
		bind("attendance", q.DeleteStudentAttendance),
	}
	steps = append(steps, userBefore...)
	steps = append(steps, bind("student", q.DeleteStudent), userLast)
	return runSteps(ctx, steps)
}
