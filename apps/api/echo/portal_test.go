package echoapi

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsacademy/academia/core/portal"
	"github.com/tsacademy/academia/core/user"
)

func Test_portalApi_nav(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher", "jo@test.cd", "", user.RoleTeacher, "", true)
	student := createIdentity(t, env, "Student", "kid@test.cd", "", user.RoleStudent, "", true)

	t.Run("anonymous gets no menu", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/portal/nav")
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	tests := []struct {
		role        string
		token       string
		wantBase    string
		wantTab     string
		wantEntries []string
	}{
		{
			role:        user.RoleAdmin,
			token:       getToken(t, env.conf, admin),
			wantBase:    "/admin",
			wantTab:     "overview",
			wantEntries: []string{"Dashboard", "Manage Staff", "Manage Students", "Classes", "Financials", "Announcements"},
		},
		{
			role:        user.RoleTeacher,
			token:       getToken(t, env.conf, teacher),
			wantBase:    "/teacher",
			wantTab:     "classes",
			wantEntries: []string{"Overview", "Attendance", "My Classes", "Fee Records", "Bulletins"},
		},
		{
			role:        user.RoleStudent,
			token:       getToken(t, env.conf, student),
			wantBase:    "/student",
			wantTab:     "overview",
			wantEntries: []string{"Profile", "My Attendance", "Tuition & Fees", "Bulletins"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/portal/nav", tt.token)
			env.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp NavResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.role, resp.Role)
			assert.Equal(t, tt.wantBase, resp.BasePath)
			assert.Equal(t, tt.wantTab, resp.DefaultTab)

			labels := make([]string, 0, len(resp.Entries))
			for _, entry := range resp.Entries {
				assert.True(t, strings.HasPrefix(entry.Path, tt.wantBase), entry.Path)
				labels = append(labels, entry.Label)
			}
			assert.Equal(t, tt.wantEntries, labels)
		})
	}
}

func Test_portalApi_navUnknownRoleHalts(t *testing.T) {
	env := setup(t)

	// an identity carrying a role outside the closed set is a
	// data-integrity failure, not a menu variant
	rogue := createIdentity(t, env, "Rogue", "rogue@test.cd", "", "superuser", "", true)
	token := getToken(t, env.conf, rogue)

	req, rec := newAuthRequest(http.MethodGet, "/v1/portal/nav", token)
	env.server.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, httpErr{Error: "Internal Server Error"}),
	}
	checkCodeAndData(t, tt, rec)

	select {
	case <-env.server.ShutdownSignal():
	default:
		t.Error("server shutdown was not signaled")
	}
}

func Test_portalApi_guard(t *testing.T) {
	env := setup(t)

	teacher := createIdentity(t, env, "Teacher", "jo@test.cd", "", user.RoleTeacher, "", true)
	teacherToken := getToken(t, env.conf, teacher)

	guardPath := func(p string) string {
		return "/v1/portal/guard?" + url.Values{"path": {p}}.Encode()
	}

	tests := []struct {
		name  string
		path  string
		token string
		want  portal.Decision
	}{
		{
			name: "anonymous renders public routes",
			path: guardPath(portal.LoginPath),
			want: portal.Decision{Action: portal.ActionRender},
		},
		{
			name: "no path defaults to the landing route",
			path: "/v1/portal/guard",
			want: portal.Decision{Action: portal.ActionRender},
		},
		{
			name: "anonymous is sent to login on guarded routes",
			path: guardPath("/teacher/attendance"),
			want: portal.Decision{Action: portal.ActionRedirect, Target: portal.LoginPath},
		},
		{
			name:  "wrong role is sent home, not to login",
			path:  guardPath("/admin/fees"),
			token: teacherToken,
			want:  portal.Decision{Action: portal.ActionRedirect, Target: portal.LandingPath},
		},
		{
			name:  "matching role renders",
			path:  guardPath("/teacher/classes"),
			token: teacherToken,
			want:  portal.Decision{Action: portal.ActionRender},
		},
		{
			name:  "unknown paths redirect to the landing route",
			path:  guardPath("/registrar"),
			token: teacherToken,
			want:  portal.Decision{Action: portal.ActionRedirect, Target: portal.LandingPath},
		},
		{
			name:  "a garbage token counts as unauthenticated",
			path:  guardPath("/teacher"),
			token: "not-a-jwt",
			want:  portal.Decision{Action: portal.ActionRedirect, Target: portal.LoginPath},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.server.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var got portal.Decision
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
