package db_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"schoolhub/internal/auth"
	"schoolhub/internal/db"
	"schoolhub/internal/model"
)

func openTestDB(t *testing.T) *pgxpool.Pool {
	url := os.Getenv("SCHOOLHUB_TEST_DB")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		t.Skip("SCHOOLHUB_TEST_DB or DATABASE_URL not set")
		return nil
	}
	pool, err := db.NewPool(context.Background(), url)
	if err != nil {
		t.Skipf("db unavailable: %v", err)
		return nil
	}
	t.Cleanup(pool.Close)
	if err := db.Migrate(context.Background(), pool, logrus.NewEntry(logrus.New())); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func seedSchool(t *testing.T, q *db.Queries) model.School {
	t.Helper()
	now := time.Now().UTC()
	school := model.School{ID: uuid.NewString(), Name: "Test School " + uuid.NewString()[:8], CreatedAt: now, UpdatedAt: now}
	require.NoError(t, q.CreateSchool(context.Background(), school))
	return school
}

func seedUser(t *testing.T, q *db.Queries, schoolID, role string) model.User {
	t.Helper()
	now := time.Now().UTC()
	user := model.User{
		ID:           uuid.NewString(),
		SchoolID:     &schoolID,
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "x",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, q.CreateUser(context.Background(), user))
	return user
}

func TestMigrateIsIdempotent(t *testing.T) {
	pool := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background(), pool, logrus.NewEntry(logrus.New())))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := db.NewStore(openTestDB(t))
	ctx := context.Background()
	boom := errors.New("boom")

	var school model.School
	err := store.WithTx(ctx, func(q *db.Queries) error {
		school = seedSchool(t, q)
		return boom
	})
	require.ErrorIs(t, err, boom)
	_, err = store.Queries.GetSchool(ctx, school.ID)
	require.True(t, db.IsNotFound(err))

	require.NoError(t, store.WithTx(ctx, func(q *db.Queries) error {
		school = seedSchool(t, q)
		return nil
	}))
	_, err = store.Queries.GetSchool(ctx, school.ID)
	require.NoError(t, err)
}

func TestAttendanceUpsertKeepsOneRow(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)

	school := seedSchool(t, q)
	admin := seedUser(t, q, school.ID, auth.RoleSchoolAdmin)
	studentUser := seedUser(t, q, school.ID, auth.RoleStudent)
	student := model.Student{ID: uuid.NewString(), UserID: studentUser.ID, SchoolID: school.ID, CreatedAt: time.Now().UTC()}
	require.NoError(t, q.CreateStudent(ctx, student))

	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, status := range []string{"absent", "late"} {
		_, err := q.UpsertAttendance(ctx, model.AttendanceRecord{
			ID:        uuid.NewString(),
			SchoolID:  school.ID,
			StudentID: student.ID,
			Date:      day,
			Status:    status,
			MarkedBy:  &admin.ID,
			UpdatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
	}

	records, err := q.ListAttendance(ctx, db.AttendanceFilter{SchoolID: school.ID, StudentID: student.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "late", records[0].Status)

	summary, err := q.AttendanceSummary(ctx, student.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.AttendanceSummary{Late: 1, Total: 1}, summary)
}

func TestNotificationFeedVisibility(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)

	school := seedSchool(t, q)
	teacher := seedUser(t, q, school.ID, auth.RoleTeacher)
	student := seedUser(t, q, school.ID, auth.RoleStudent)
	now := time.Now().UTC()

	for _, n := range []model.Notification{
		{ID: uuid.NewString(), SchoolID: &school.ID, Audience: model.AudienceStudents, Title: "students", Body: "b", CreatedAt: now},
		{ID: uuid.NewString(), SchoolID: &school.ID, Audience: model.AudienceTeachers, Title: "teachers", Body: "b", CreatedAt: now},
		{ID: uuid.NewString(), SchoolID: &school.ID, RecipientID: &student.ID, Audience: model.AudienceUser, Title: "direct", Body: "b", CreatedAt: now},
	} {
		require.NoError(t, q.CreateNotification(ctx, n))
	}

	viewer := db.Viewer{UserID: student.ID, SchoolID: &school.ID, Role: auth.RoleStudent}
	feed, err := q.ListNotifications(ctx, viewer, db.Page{})
	require.NoError(t, err)
	require.Len(t, feed, 2)

	unread, err := q.CountUnreadNotifications(ctx, viewer)
	require.NoError(t, err)
	require.Equal(t, 2, unread)

	marked, err := q.MarkAllNotificationsRead(ctx, viewer, now)
	require.NoError(t, err)
	require.EqualValues(t, 2, marked)

	unread, err = q.CountUnreadNotifications(ctx, viewer)
	require.NoError(t, err)
	require.Zero(t, unread)

	teacherFeed, err := q.ListNotifications(ctx, db.Viewer{UserID: teacher.ID, SchoolID: &school.ID, Role: auth.RoleTeacher}, db.Page{})
	require.NoError(t, err)
	require.Len(t, teacherFeed, 1)
	require.Equal(t, "teachers", teacherFeed[0].Title)
}

func TestReviewLeaveRequestOnlyOnce(t *testing.T) {
	pool := openTestDB(t)
	ctx := context.Background()
	q := db.New(pool)

	school := seedSchool(t, q)
	admin := seedUser(t, q, school.ID, auth.RoleSchoolAdmin)
	teacher := seedUser(t, q, school.ID, auth.RoleTeacher)
	leave := model.LeaveRequest{
		ID:          uuid.NewString(),
		SchoolID:    school.ID,
		RequesterID: teacher.ID,
		StartDate:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC),
		Reason:      "conference",
		Status:      model.LeavePending,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, q.CreateLeaveRequest(ctx, leave))

	reviewed, err := q.ReviewLeaveRequest(ctx, leave.ID, model.LeaveApproved, admin.ID, nil, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, model.LeaveApproved, reviewed.Status)

	_, err = q.ReviewLeaveRequest(ctx, leave.ID, model.LeaveRejected, admin.ID, nil, time.Now().UTC())
	require.True(t, db.IsNotFound(err))
}
