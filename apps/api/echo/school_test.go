package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsacademy/academia/core/school"
	"github.com/tsacademy/academia/core/user"
)

func Test_schoolApi_classes(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher Jo", "jo@test.cd", "", user.RoleTeacher, "", true)
	rival := createIdentity(t, env, "Teacher Ray", "ray@test.cd", "", user.RoleTeacher, "", true)
	student := createIdentity(t, env, "Student", "kid@test.cd", "", user.RoleStudent, "", true)

	adminToken := getToken(t, env.conf, admin)
	teacherToken := getToken(t, env.conf, teacher)
	studentToken := getToken(t, env.conf, student)

	joClass := createClass(t, env, "Form 1A", teacher.ID)
	rayClass := createClass(t, env, "Form 2B", rival.ID)

	tests := []httpTest{
		{
			name:     "student cannot list classes",
			method:   http.MethodGet,
			path:     "/v1/classes",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin lists all classes",
			method:   http.MethodGet,
			path:     "/v1/classes",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.Class{joClass, rayClass}),
		},
		{
			name:     "teacher only sees their own classes",
			method:   http.MethodGet,
			path:     "/v1/classes",
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.Class{joClass}),
		},
		{
			name:     "teacher filter cannot widen the scope",
			method:   http.MethodGet,
			path:     "/v1/classes?" + url.Values{"teacher_id": {rival.ID}}.Encode(),
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.Class{joClass}),
		},
		{
			name:     "teacher reads their own class",
			method:   http.MethodGet,
			path:     "/v1/classes/" + joClass.ID,
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, joClass),
		},
		{
			name:     "another teacher's class is not probeable",
			method:   http.MethodGet,
			path:     "/v1/classes/" + rayClass.ID,
			token:    teacherToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "teacher cannot create a class",
			method:   http.MethodPost,
			path:     "/v1/classes",
			token:    teacherToken,
			body:     []byte(`{"name": "Form 3C", "teacher_id": "x"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "class requires a name and a teacher",
			method:   http.MethodPost,
			path:     "/v1/classes",
			token:    adminToken,
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required", "teacher_id": "this field is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin creates a class", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/classes", adminToken,
			marchallObj(t, school.NewClass{Name: "Form 3C", TeacherID: teacher.ID}))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var cls school.Class
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cls))
		assert.NotEmpty(t, cls.ID)
		assert.Equal(t, teacher.ID, cls.TeacherID)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			req, rec := newAuthRequest(http.MethodDelete, "/v1/classes/"+rayClass.ID, adminToken)
			env.server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		}
	})

	t.Run("deleting a class leaves its attendance in place", func(t *testing.T) {
		_, err := env.schSvc.SubmitAttendance(context.Background(),
			school.NewAttendanceSheet(joClass.ID, time.Now().UTC(), []string{student.ID}))
		require.NoError(t, err)

		req, rec := newAuthRequest(http.MethodDelete, "/v1/classes/"+joClass.ID, adminToken)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		n, err := env.schSvc.AttendanceCount(context.Background(), school.AttendanceFilter{ClassID: joClass.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, n) // orphaned, tolerated
	})
}

func Test_schoolApi_attendance(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher Jo", "jo@test.cd", "", user.RoleTeacher, "", true)
	rival := createIdentity(t, env, "Teacher Ray", "ray@test.cd", "", user.RoleTeacher, "", true)
	kid1 := createIdentity(t, env, "Kid One", "kid1@test.cd", "", user.RoleStudent, "", true)
	kid2 := createIdentity(t, env, "Kid Two", "kid2@test.cd", "", user.RoleStudent, "", true)

	adminToken := getToken(t, env.conf, admin)
	teacherToken := getToken(t, env.conf, teacher)
	rivalToken := getToken(t, env.conf, rival)
	kid1Token := getToken(t, env.conf, kid1)

	cls := createClass(t, env, "Form 1A", teacher.ID)

	day := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	sheet := school.NewAttendanceSheet(cls.ID, day, []string{kid1.ID, kid2.ID})
	sheet.Mark(kid2.ID, school.AttendanceAbsent)

	t.Run("owning teacher submits a sheet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", teacherToken, marchallObj(t, sheet))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var resp CountResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
	})

	t.Run("another teacher cannot submit for that class", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", rivalToken, marchallObj(t, sheet))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("a student cannot submit attendance", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", kid1Token, marchallObj(t, sheet))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("an empty sheet is rejected", func(t *testing.T) {
		empty := school.AttendanceSheet{ClassID: cls.ID, Date: day}
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", teacherToken, marchallObj(t, empty))
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("a rejected sheet stores nothing", func(t *testing.T) {
		bad := school.NewAttendanceSheet(cls.ID, day, []string{kid1.ID})
		bad.Entries = append(bad.Entries, school.AttendanceEntry{StudentID: kid2.ID, Status: "late"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/attendance", teacherToken, marchallObj(t, bad))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		n, err := env.schSvc.AttendanceCount(context.Background(), school.AttendanceFilter{ClassID: cls.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, n) // still only the first sheet
	})

	t.Run("student queries are pinned to their own records", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance", kid1Token)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var recs []school.AttendanceRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
		require.Len(t, recs, 1)
		assert.Equal(t, kid1.ID, recs[0].StudentID)
		assert.Equal(t, school.AttendancePresent, recs[0].Status)
	})

	t.Run("teacher queries require a class they own", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance", teacherToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/attendance?class_id="+cls.ID, rivalToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/attendance?class_id="+cls.ID, teacherToken)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var recs []school.AttendanceRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
		assert.Len(t, recs, 2)
	})

	t.Run("admin filters by status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance?status=absent", adminToken)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var recs []school.AttendanceRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
		require.Len(t, recs, 1)
		assert.Equal(t, kid2.ID, recs[0].StudentID)
	})

	t.Run("export returns a workbook", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/export?class_id="+cls.ID, teacherToken)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attendance.xlsx")
		assert.NotZero(t, rec.Body.Len())
	})
}

func Test_schoolApi_fees(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher", "jo@test.cd", "", user.RoleTeacher, "", true)
	kid1 := createIdentity(t, env, "Kid One", "kid1@test.cd", "", user.RoleStudent, "", true)
	kid2 := createIdentity(t, env, "Kid Two", "kid2@test.cd", "", user.RoleStudent, "", true)

	adminToken := getToken(t, env.conf, admin)
	teacherToken := getToken(t, env.conf, teacher)
	kid1Token := getToken(t, env.conf, kid1)

	now := time.Now().UTC()
	fee1 := createFee(t, env, kid1.ID, 150, school.FeePaid, now.Add(-48*time.Hour))
	fee2 := createFee(t, env, kid1.ID, 200, school.FeePending, now.Add(-24*time.Hour))
	fee3 := createFee(t, env, kid2.ID, 320.50, school.FeePending, now)

	tests := []httpTest{
		{
			name:     "student only sees their own fees",
			method:   http.MethodGet,
			path:     "/v1/fees",
			token:    kid1Token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.FeeRecord{fee1, fee2}),
		},
		{
			name:     "student filter cannot widen the scope",
			method:   http.MethodGet,
			path:     "/v1/fees?" + url.Values{"student_id": {kid2.ID}}.Encode(),
			token:    kid1Token,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.FeeRecord{fee1, fee2}),
		},
		{
			name:     "teacher reads the full ledger",
			method:   http.MethodGet,
			path:     "/v1/fees",
			token:    teacherToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.FeeRecord{fee1, fee2, fee3}),
		},
		{
			name:     "admin filters by status",
			method:   http.MethodGet,
			path:     "/v1/fees?status=pending",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.FeeRecord{fee2, fee3}),
		},
		{
			name:     "teacher cannot record a fee",
			method:   http.MethodPost,
			path:     "/v1/fees",
			token:    teacherToken,
			body:     []byte(`{"student_id": "x", "amount": 10, "status": "paid"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "negative amounts are rejected",
			method:   http.MethodPost,
			path:     "/v1/fees",
			token:    adminToken,
			body:     []byte(`{"student_id": "x", "amount": -5, "status": "paid"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount must be 0 or greater"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin records a fee with a defaulted date", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/fees", adminToken,
			marchallObj(t, school.NewFee{StudentID: kid2.ID, Amount: 75, Status: school.FeePaid}))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var fee school.FeeRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fee))
		assert.NotEmpty(t, fee.ID)
		assert.False(t, fee.Date.IsZero())
	})
}

func Test_schoolApi_announcements(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	kid := createIdentity(t, env, "Kid", "kid@test.cd", "", user.RoleStudent, "", true)
	adminToken := getToken(t, env.conf, admin)
	kidToken := getToken(t, env.conf, kid)

	now := time.Now().UTC()
	older := createAnnouncement(t, env, "Sports day", "Bring shoes", now.Add(-48*time.Hour))
	newer := createAnnouncement(t, env, "Exams", "Good luck", now)

	tests := []httpTest{
		{
			name:     "anonymous cannot read the board",
			method:   http.MethodGet,
			path:     "/v1/announcements",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "students read most recent first",
			method:   http.MethodGet,
			path:     "/v1/announcements",
			token:    kidToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.Announcement{newer, older}),
		},
		{
			name:     "limit trims the feed",
			method:   http.MethodGet,
			path:     "/v1/announcements?limit=1",
			token:    kidToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []school.Announcement{newer}),
		},
		{
			name:     "student cannot publish",
			method:   http.MethodPost,
			path:     "/v1/announcements",
			token:    kidToken,
			body:     []byte(`{"title": "Party", "text": "At my place"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin publishes an announcement", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/announcements", adminToken,
			marchallObj(t, school.NewAnnouncement{Title: "Closure", Text: "School closed Friday"}))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var ann school.Announcement
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ann))
		assert.NotEmpty(t, ann.ID)
		assert.False(t, ann.Date.IsZero())
	})
}

func Test_schoolApi_queryOptsBinding(t *testing.T) {
	env := setup(t)

	kid := createIdentity(t, env, "Kid", "kid@test.cd", "", user.RoleStudent, "", true)
	kidToken := getToken(t, env.conf, kid)

	now := time.Now().UTC()
	oldest := createFee(t, env, kid.ID, 10, school.FeePaid, now.Add(-72*time.Hour))
	middle := createFee(t, env, kid.ID, 20, school.FeePaid, now.Add(-36*time.Hour))
	newest := createFee(t, env, kid.ID, 30, school.FeePending, now)

	t.Run("explicit descending date ordering", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees?ordering=-date", kidToken)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var fees []school.FeeRecord
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fees))
		require.Len(t, fees, 3)
		assert.Equal(t, []string{newest.ID, middle.ID, oldest.ID}, []string{fees[0].ID, fees[1].ID, fees[2].ID})
	})

	t.Run("unknown ordering fields are dropped", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/fees?ordering=amount;drop+table", kidToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
