package operations

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"schoolhub/internal/model"
)

// recorder implements every store interface of this package and logs each
// call as "Method(arg)" in call order.
type recorder struct {
	calls   []string
	courses map[string][]string
	failOn  string
}

func (r *recorder) record(method string, arg interface{}) (int64, error) {
	call := fmt.Sprintf("%s(%v)", method, arg)
	r.calls = append(r.calls, call)
	if r.failOn != "" && strings.HasPrefix(call, r.failOn) {
		return 0, errors.New("boom")
	}
	return 1, nil
}

func (r *recorder) recordErr(method string, arg interface{}) error {
	_, err := r.record(method, arg)
	return err
}

func (r *recorder) DeleteCourseSubmissions(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourseSubmissions", id)
}
func (r *recorder) DeleteCourseAssignments(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourseAssignments", id)
}
func (r *recorder) DeleteCourseChapters(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourseChapters", id)
}
func (r *recorder) DeleteCourseEnrollments(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourseEnrollments", id)
}
func (r *recorder) DeleteCourseAttendance(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourseAttendance", id)
}
func (r *recorder) DeleteCourse(_ context.Context, id string) (int64, error) {
	return r.record("DeleteCourse", id)
}

func (r *recorder) ListCourseIDsBySchool(_ context.Context, id string) ([]string, error) {
	_, err := r.record("ListCourseIDsBySchool", id)
	return r.courses[id], err
}
func (r *recorder) DeleteSchoolAttendance(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolAttendance", id)
}
func (r *recorder) DeleteSchoolLeaveRequests(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolLeaveRequests", id)
}
func (r *recorder) DeleteSchoolNotificationReads(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolNotificationReads", id)
}
func (r *recorder) DeleteSchoolNotifications(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolNotifications", id)
}
func (r *recorder) DeleteSchoolUserTokens(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolUserTokens", id)
}
func (r *recorder) DeleteSchoolStudents(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolStudents", id)
}
func (r *recorder) DeleteSchoolTeachers(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolTeachers", id)
}
func (r *recorder) DeleteSchoolUsers(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchoolUsers", id)
}
func (r *recorder) DeleteSchool(_ context.Context, id string) (int64, error) {
	return r.record("DeleteSchool", id)
}

func (r *recorder) ClearAttendanceMarker(_ context.Context, id string) (int64, error) {
	return r.record("ClearAttendanceMarker", id)
}
func (r *recorder) DeleteUserLeaveRequests(_ context.Context, id string) (int64, error) {
	return r.record("DeleteUserLeaveRequests", id)
}
func (r *recorder) DeleteUserNotificationReads(_ context.Context, id string) (int64, error) {
	return r.record("DeleteUserNotificationReads", id)
}
func (r *recorder) DeleteUserNotifications(_ context.Context, id string) (int64, error) {
	return r.record("DeleteUserNotifications", id)
}
func (r *recorder) DeleteUserTokens(_ context.Context, id string) (int64, error) {
	return r.record("DeleteUserTokens", id)
}
func (r *recorder) DeleteUser(_ context.Context, id string) (int64, error) {
	return r.record("DeleteUser", id)
}
func (r *recorder) DetachTeacherCourses(_ context.Context, id string) (int64, error) {
	return r.record("DetachTeacherCourses", id)
}
func (r *recorder) DeleteTeacher(_ context.Context, id string) (int64, error) {
	return r.record("DeleteTeacher", id)
}
func (r *recorder) DeleteStudentSubmissions(_ context.Context, id string) (int64, error) {
	return r.record("DeleteStudentSubmissions", id)
}
func (r *recorder) DeleteStudentEnrollments(_ context.Context, id string) (int64, error) {
	return r.record("DeleteStudentEnrollments", id)
}
func (r *recorder) DeleteStudentAttendance(_ context.Context, id string) (int64, error) {
	return r.record("DeleteStudentAttendance", id)
}
func (r *recorder) DeleteStudent(_ context.Context, id string) (int64, error) {
	return r.record("DeleteStudent", id)
}

func (r *recorder) InsertChapter(_ context.Context, c model.Chapter) error {
	return r.recordErr("InsertChapter", c.ID)
}
func (r *recorder) UpdateChapter(_ context.Context, c model.Chapter) error {
	return r.recordErr("UpdateChapter", c.ID)
}
func (r *recorder) DeleteSubmissionsForAssignments(_ context.Context, ids []string) (int64, error) {
	return r.record("DeleteSubmissionsForAssignments", ids)
}
func (r *recorder) DeleteAssignments(_ context.Context, ids []string) (int64, error) {
	return r.record("DeleteAssignments", ids)
}
func (r *recorder) DetachAssignmentsFromChapters(_ context.Context, ids []string) (int64, error) {
	return r.record("DetachAssignmentsFromChapters", ids)
}
func (r *recorder) DeleteChapters(_ context.Context, ids []string) (int64, error) {
	return r.record("DeleteChapters", ids)
}
func (r *recorder) InsertAssignment(_ context.Context, a model.Assignment) error {
	return r.recordErr("InsertAssignment", a.ID)
}
func (r *recorder) UpdateAssignment(_ context.Context, a model.Assignment) error {
	return r.recordErr("UpdateAssignment", a.ID)
}
