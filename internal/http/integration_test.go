package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"schoolhub/internal/auth"
	"schoolhub/internal/crypto"
	"schoolhub/internal/db"
	"schoolhub/internal/mailer"
	"schoolhub/internal/model"
	"schoolhub/internal/storage"
)

const testPassword = "correct-horse-battery"

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
	require.NoError(t, db.Migrate(context.Background(), pool, logrus.NewEntry(logrus.New())))
	return pool
}

func seedSuperAdmin(t *testing.T, store *db.Store) string {
	t.Helper()
	hash, err := crypto.HashPassword(testPassword)
	require.NoError(t, err)
	now := time.Now().UTC()
	email := "root." + uuid.NewString()[:8] + "@example.com"
	require.NoError(t, store.Queries.CreateUser(context.Background(), model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Root",
		LastName:     "Admin",
		Role:         auth.RoleSuperAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
	return email
}

func decodeInto(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func login(t *testing.T, baseURL, email string) authResponse {
	t.Helper()
	resp := doReq(t, http.MethodPost, baseURL+"/auth/login", "", map[string]string{"email": email, "password": testPassword})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out authResponse
	decodeInto(t, resp, &out)
	require.NotEmpty(t, out.AccessToken)
	return out
}

func TestSchoolLifecycle(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	cfg := testConfig()
	store := db.NewStore(pool)
	app := serve(t, NewServer(cfg, store, Dependencies{})).URL
	suffix := uuid.NewString()[:8]

	root := login(t, app, seedSuperAdmin(t, store)).AccessToken

	// School with its first admin.
	resp := doReq(t, http.MethodPost, app+"/schools", root, map[string]interface{}{
		"name": "Lycée " + suffix,
		"admin": map[string]string{
			"email":     "admin." + suffix + "@example.com",
			"password":  testPassword,
			"firstName": "Grace",
			"lastName":  "Hopper",
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var school createSchoolResponse
	decodeInto(t, resp, &school)
	require.NotNil(t, school.AdminID)
	admin := login(t, app, "admin."+suffix+"@example.com").AccessToken

	resp = doReq(t, http.MethodPost, app+"/teachers", admin, map[string]string{
		"email": "teacher." + suffix + "@example.com", "password": testPassword,
		"firstName": "Alan", "lastName": "Turing", "subject": "Maths",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var teacherProfile teacherResponse
	decodeInto(t, resp, &teacherProfile)

	resp = doReq(t, http.MethodPost, app+"/students", admin, map[string]string{
		"email": "student." + suffix + "@example.com", "password": testPassword,
		"firstName": "Ada", "lastName": "Byron",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var studentProfile studentResponse
	decodeInto(t, resp, &studentProfile)

	requireError(t, doReq(t, http.MethodPost, app+"/students", admin, map[string]string{
		"email": "student." + suffix + "@example.com", "password": testPassword,
		"firstName": "Ada", "lastName": "Again",
	}), http.StatusConflict, "email_taken")

	teacher := login(t, app, "teacher."+suffix+"@example.com").AccessToken
	studentSession := login(t, app, "student."+suffix+"@example.com")
	student := studentSession.AccessToken
	resp = doReq(t, http.MethodGet, app+"/auth/me", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, studentProfile.ID, decodeBody(t, resp)["profileId"])

	// Course with nested curriculum; temp ids resolve to real ids.
	resp = doReq(t, http.MethodPost, app+"/courses", teacher, map[string]interface{}{
		"title":    "Algebra",
		"status":   "published",
		"chapters": []map[string]string{{"tempId": "ch-1", "title": "Equations"}},
		"assignments": []map[string]interface{}{
			{"tempId": "as-1", "chapterId": "ch-1", "title": "Worksheet", "maxScore": 20},
			{"tempId": "as-2", "title": "Quiz"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var course courseWriteResponse
	decodeInto(t, resp, &course)
	require.Equal(t, teacherProfile.ID, *course.TeacherID)
	require.Len(t, course.Chapters, 1)
	require.Len(t, course.Assignments, 2)
	chapterID := course.IDMap.Chapters["ch-1"]
	worksheetID := course.IDMap.Assignments["as-1"]
	require.Equal(t, chapterID, course.Chapters[0].ID)
	require.Equal(t, chapterID, *course.Assignments[0].ChapterID)
	require.Equal(t, 100, course.Assignments[1].MaxScore)

	// Students see only what they are enrolled in.
	requireError(t, doReq(t, http.MethodGet, app+"/courses/"+course.ID, student, nil), http.StatusForbidden, "forbidden")
	resp = doReq(t, http.MethodPost, app+"/courses/"+course.ID+"/enrollments", teacher, map[string][]string{
		"studentIds": {studentProfile.ID, studentProfile.ID},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, decodeBody(t, resp)["enrolled"])
	requireError(t, doReq(t, http.MethodPost, app+"/courses/"+course.ID+"/enrollments", teacher, map[string][]string{
		"studentIds": {uuid.NewString()},
	}), http.StatusBadRequest, "invalid_student_id")
	var listed []courseResponse
	resp = doReq(t, http.MethodGet, app+"/courses", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &listed)
	require.Len(t, listed, 1)

	requireError(t, doReq(t, http.MethodPost, app+"/courses/"+course.ID+"/assignments/"+worksheetID+"/attachment-url", teacher, map[string]string{
		"fileName": "sheet.pdf",
	}), http.StatusServiceUnavailable, "storage_not_configured")

	// Students upload under their own folder and may only submit keys from it.
	requireError(t, doReq(t, http.MethodPost, app+"/assignments/"+worksheetID+"/submissions/attachment-url", student, map[string]string{
		"fileName": "answer.pdf",
	}), http.StatusServiceUnavailable, "storage_not_configured")
	uploads := serve(t, NewServer(cfg, store, Dependencies{Storage: keyPresigner{}})).URL
	resp = doReq(t, http.MethodPost, uploads+"/assignments/"+worksheetID+"/submissions/attachment-url", student, map[string]string{
		"fileName": "answer.pdf",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var upload storage.Upload
	decodeInto(t, resp, &upload)
	folder := "schools/" + school.ID + "/courses/" + course.ID + "/assignments/" + worksheetID + "/submissions/"
	require.True(t, strings.HasPrefix(upload.Key, folder), upload.Key)
	requireError(t, doReq(t, http.MethodPost, app+"/assignments/"+worksheetID+"/submissions", student, map[string]string{
		"content": "see attached", "attachmentKey": folder + uuid.NewString() + "/answer.pdf",
	}), http.StatusBadRequest, "invalid_attachment_key")
	requireError(t, doReq(t, http.MethodPost, app+"/assignments/"+worksheetID+"/submissions", student, map[string]string{
		"content": "see attached", "attachmentKey": "schools/" + school.ID + "/logo.png",
	}), http.StatusBadRequest, "invalid_attachment_key")
	resp = doReq(t, http.MethodPost, app+"/assignments/"+worksheetID+"/submissions", student, map[string]string{
		"content": "see attached", "attachmentKey": upload.Key,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var attached submissionResponse
	decodeInto(t, resp, &attached)
	require.Equal(t, upload.Key, *attached.AttachmentKey)

	// Submission and grading.
	resp = doReq(t, http.MethodPost, app+"/assignments/"+worksheetID+"/submissions", student, map[string]string{"content": "x = 4"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var submission submissionResponse
	decodeInto(t, resp, &submission)
	requireError(t, doReq(t, http.MethodPatch, app+"/submissions/"+submission.ID+"/grade", teacher, map[string]interface{}{"score": 21}), http.StatusBadRequest, "invalid_score")
	resp = doReq(t, http.MethodPatch, app+"/submissions/"+submission.ID+"/grade", teacher, map[string]interface{}{"score": 18, "feedback": "Good"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &submission)
	require.Equal(t, 18, *submission.Score)

	// Attendance: marking twice keeps one record per day.
	for _, status := range []string{"absent", "late"} {
		resp = doReq(t, http.MethodPost, app+"/attendance", teacher, map[string]interface{}{
			"date":     "2026-03-10",
			"courseId": course.ID,
			"records":  []map[string]string{{"studentId": studentProfile.ID, "status": status}},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp = doReq(t, http.MethodGet, app+"/students/"+studentProfile.ID+"/attendance/summary", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary attendanceSummaryResponse
	decodeInto(t, resp, &summary)
	require.Equal(t, 1, summary.Total)
	require.Equal(t, 1, summary.Late)
	require.Equal(t, 1.0, summary.Rate)

	// Leave review notifies the requester.
	resp = doReq(t, http.MethodPost, app+"/leave-requests", student, map[string]string{
		"startDate": "2026-04-01", "endDate": "2026-04-03", "reason": "Family event",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var leave leaveResponse
	decodeInto(t, resp, &leave)

	resp = doReq(t, http.MethodGet, app+"/notifications/unread-count", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 0, decodeBody(t, resp)["count"])

	resp = doReq(t, http.MethodPatch, app+"/leave-requests/"+leave.ID+"/review", admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requireError(t, doReq(t, http.MethodPatch, app+"/leave-requests/"+leave.ID+"/review", admin, map[string]string{"status": "rejected"}),
		http.StatusConflict, "leave_request_not_pending")
	requireError(t, doReq(t, http.MethodDelete, app+"/leave-requests/"+leave.ID, student, nil), http.StatusConflict, "leave_request_not_pending")

	resp = doReq(t, http.MethodGet, app+"/notifications/unread-count", student, nil)
	require.EqualValues(t, 1, decodeBody(t, resp)["count"])
	resp = doReq(t, http.MethodPost, app+"/notifications/read-all", student, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, decodeBody(t, resp)["marked"])
	resp = doReq(t, http.MethodGet, app+"/notifications/unread-count", student, nil)
	require.EqualValues(t, 0, decodeBody(t, resp)["count"])

	resp = doReq(t, http.MethodGet, app+"/schools/"+school.ID+"/stats", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var stats model.SchoolStats
	decodeInto(t, resp, &stats)
	require.Equal(t, 1, stats.Teachers)
	require.Equal(t, 1, stats.Students)
	require.Equal(t, 1, stats.Courses)

	// Replacing the curriculum drops the worksheet and its submission.
	resp = doReq(t, http.MethodPut, app+"/courses/"+course.ID, teacher, map[string]interface{}{
		"title":       "Algebra I",
		"chapters":    []map[string]string{{"id": chapterID, "title": "Linear equations"}},
		"assignments": []map[string]string{{"id": course.IDMap.Assignments["as-2"], "chapterId": chapterID, "title": "Quiz"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var replaced courseWriteResponse
	decodeInto(t, resp, &replaced)
	require.Equal(t, "published", replaced.Status)
	require.Len(t, replaced.Assignments, 1)
	require.Equal(t, "Linear equations", replaced.Chapters[0].Title)
	requireError(t, doReq(t, http.MethodPut, app+"/courses/"+course.ID, teacher, map[string]interface{}{
		"title":    "Algebra I",
		"chapters": []map[string]string{{"id": uuid.NewString(), "title": "Ghost"}},
	}), http.StatusBadRequest, "invalid_chapter_id")

	// Refresh rotation and reuse detection.
	resp = doReq(t, http.MethodPost, app+"/auth/refresh", "", map[string]string{"refreshToken": studentSession.RefreshToken})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rotated authResponse
	decodeInto(t, resp, &rotated)
	requireError(t, doReq(t, http.MethodPost, app+"/auth/refresh", "", map[string]string{"refreshToken": studentSession.RefreshToken}),
		http.StatusUnauthorized, "invalid_refresh_token")
	requireError(t, doReq(t, http.MethodPost, app+"/auth/refresh", "", map[string]string{"refreshToken": rotated.RefreshToken}),
		http.StatusUnauthorized, "invalid_refresh_token")

	// Deleting the school removes everything under it.
	resp = doReq(t, http.MethodDelete, app+"/schools/"+school.ID, root, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	requireError(t, doReq(t, http.MethodGet, app+"/schools/"+school.ID, root, nil), http.StatusNotFound, "school_not_found")
	requireError(t, doReq(t, http.MethodPost, app+"/auth/login", "", map[string]string{
		"email": "student." + suffix + "@example.com", "password": testPassword,
	}), http.StatusUnauthorized, "invalid_credentials")
}

// keyPresigner echoes the key back without signing anything.
type keyPresigner struct{}

func (keyPresigner) PresignUpload(_ context.Context, key, _ string) (storage.Upload, error) {
	return storage.Upload{Key: key, URL: "https://uploads.example.com/" + key, Method: http.MethodPut}, nil
}

type captureMailer struct {
	sent []mailer.PasswordReset
}

func (m *captureMailer) SendPasswordReset(_ context.Context, msg mailer.PasswordReset) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestPasswordResetFlow(t *testing.T) {
	pool := openTestDB(t)
	if pool == nil {
		return
	}
	cfg := testConfig()
	cfg.PasswordResetTTL = time.Hour
	cfg.PasswordResetURL = "https://app.example.com/reset"
	store := db.NewStore(pool)
	mail := &captureMailer{}
	app := serve(t, NewServer(cfg, store, Dependencies{Mailer: mail})).URL
	email := seedSuperAdmin(t, store)
	session := login(t, app, email)

	resp := doReq(t, http.MethodPost, app+"/auth/password/forgot", "", map[string]string{"email": "nobody." + uuid.NewString()[:8] + "@example.com"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Empty(t, mail.sent)

	// A second request supersedes the first token.
	for i := 0; i < 2; i++ {
		resp = doReq(t, http.MethodPost, app+"/auth/password/forgot", "", map[string]string{"email": email})
		require.Equal(t, http.StatusAccepted, resp.StatusCode)
	}
	require.Len(t, mail.sent, 2)
	tokenFrom := func(link string) string {
		parsed, err := url.Parse(link)
		require.NoError(t, err)
		return parsed.Query().Get("token")
	}
	stale, fresh := tokenFrom(mail.sent[0].Link), tokenFrom(mail.sent[1].Link)

	requireError(t, doReq(t, http.MethodPost, app+"/auth/password/reset", "", map[string]string{"token": stale, "password": "brand-new-password"}),
		http.StatusBadRequest, "invalid_reset_token")
	resp = doReq(t, http.MethodPost, app+"/auth/password/reset", "", map[string]string{"token": fresh, "password": "brand-new-password"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	requireError(t, doReq(t, http.MethodPost, app+"/auth/password/reset", "", map[string]string{"token": fresh, "password": "another-password"}),
		http.StatusBadRequest, "invalid_reset_token")

	// Sessions issued before the reset are gone.
	requireError(t, doReq(t, http.MethodPost, app+"/auth/refresh", "", map[string]string{"refreshToken": session.RefreshToken}),
		http.StatusUnauthorized, "invalid_refresh_token")
	requireError(t, doReq(t, http.MethodPost, app+"/auth/login", "", map[string]string{"email": email, "password": testPassword}),
		http.StatusUnauthorized, "invalid_credentials")

	resp = doReq(t, http.MethodPost, app+"/auth/login", "", map[string]string{"email": email, "password": "brand-new-password"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var fresher authResponse
	decodeInto(t, resp, &fresher)

	requireError(t, doReq(t, http.MethodPost, app+"/auth/password/change", fresher.AccessToken, map[string]string{
		"currentPassword": "wrong-password", "newPassword": testPassword,
	}), http.StatusBadRequest, "invalid_current_password")
	resp = doReq(t, http.MethodPost, app+"/auth/password/change", fresher.AccessToken, map[string]string{
		"currentPassword": "brand-new-password", "newPassword": testPassword,
	})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	session = login(t, app, email)
	resp = doReq(t, http.MethodPost, app+"/auth/logout", session.AccessToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	requireError(t, doReq(t, http.MethodPost, app+"/auth/refresh", "", map[string]string{"refreshToken": session.RefreshToken}),
		http.StatusUnauthorized, "invalid_refresh_token")
}
