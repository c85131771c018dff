package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsacademy/academia/core/user"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)

	createIdentity(t, env, "Jo Achieng", "jo@test.cd", "LePassword7!", user.RoleTeacher, "", true)
	createIdentity(t, env, "Idle Ida", "ida@test.cd", "LePassword7!", user.RoleStudent, "", false)

	tests := []httpTest{
		{
			name:     "login requires email and password",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name:     "unknown account fails closed",
			body:     []byte(`{"email": "ghost@test.cd", "password": "LePassword7!"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "wrong password",
			body:     []byte(`{"email": "jo@test.cd", "password": "nope"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name:     "deactivated account",
			body:     []byte(`{"email": "ida@test.cd", "password": "LePassword7!"}`),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("valid credentials return a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", []byte(`{"email": "jo@test.cd", "password": "LePassword7!"}`))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp LoginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)

		// login stamps LastLogin
		idt, err := env.usrSvc.GetByEmail(context.Background(), "jo@test.cd")
		require.NoError(t, err)
		assert.False(t, idt.LastLogin.IsZero())
	})
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher", "teacher@test.cd", "", user.RoleTeacher, "", true)
	adminToken := getToken(t, env.conf, admin)
	teacherToken := getToken(t, env.conf, teacher)

	adminBody := []byte(`{
		"name": "Second Admin",
		"email": "boss@test.cd",
		"password": "Str0ng&Secret",
		"password_confirm": "Str0ng&Secret",
		"role": "admin"
	}`)

	tests := []httpTest{
		{
			name:     "unknown role is rejected",
			body:     []byte(`{"name": "X", "email": "x@test.cd", "password": "Str0ng&Secret", "password_confirm": "Str0ng&Secret", "role": "principal"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{
			name:     "duplicate email is rejected",
			body:     []byte(`{"name": "Dup", "email": "teacher@test.cd", "password": "Str0ng&Secret", "password_confirm": "Str0ng&Secret", "role": "teacher"}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "an account with this email already exists"}),
		},
		{
			name:     "anonymous cannot enroll as admin",
			body:     adminBody,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "non-admin cannot enroll an admin",
			body:     adminBody,
			token:    teacherToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("anonymous signs up as a teacher", func(t *testing.T) {
		body := []byte(`{
			"name": "New Teacher",
			"email": "newjo@test.cd",
			"password": "Str0ng&Secret",
			"password_confirm": "Str0ng&Secret",
			"role": "teacher"
		}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var idt user.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idt))
		assert.NotEmpty(t, idt.ID) // server-assigned, opaque
		assert.Equal(t, user.RoleTeacher, idt.Role)
		assert.True(t, idt.IsActive)
	})

	t.Run("anonymous signs up as a student", func(t *testing.T) {
		body := []byte(`{
			"name": "New Student",
			"email": "kid@test.cd",
			"password": "Str0ng&Secret",
			"password_confirm": "Str0ng&Secret",
			"role": "student",
			"class_id": "class-1"
		}`)
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var idt user.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idt))
		assert.Equal(t, user.RoleStudent, idt.Role)
		assert.Equal(t, "class-1", idt.ClassID)
	})

	t.Run("admin enrolls another admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", adminToken, adminBody)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var idt user.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idt))
		assert.Equal(t, user.RoleAdmin, idt.Role)
	})
}

func Test_userApi_me(t *testing.T) {
	env := setup(t)

	student := createIdentity(t, env, "Student", "kid@test.cd", "", user.RoleStudent, "class-1", true)
	token := getToken(t, env.conf, student)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", token)
	env.server.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, student)}
	checkCodeAndData(t, tt, rec)
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	teacher := createIdentity(t, env, "Teacher Jo", "jo@test.cd", "", user.RoleTeacher, "", true)
	student := createIdentity(t, env, "Student Ken", "ken@test.cd", "", user.RoleStudent, "class-1", true)
	adminToken := getToken(t, env.conf, admin)
	studentToken := getToken(t, env.conf, student)

	path := func(params url.Values) string { return "/v1/users?" + params.Encode() }

	tests := []httpTest{
		{
			name:     "anonymous is rejected",
			path:     "/v1/users",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "student is rejected",
			path:     "/v1/users",
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "admin lists everyone",
			path:     "/v1/users",
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.Identity{admin, teacher, student}),
		},
		{
			name:     "filter by role",
			path:     path(url.Values{"role": {"teacher"}}),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.Identity{teacher}),
		},
		{
			name:     "filter by class",
			path:     path(url.Values{"class_id": {"class-1"}}),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.Identity{student}),
		},
		{
			name:     "search matches name case-insensitively",
			path:     path(url.Values{"search": {"ken"}}),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, []user.Identity{student}),
		},
		{
			name:     "search misses return an empty list, not null",
			path:     path(url.Values{"search": {"nobody"}}),
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_retrieveUpdate(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	student := createIdentity(t, env, "Student", "kid@test.cd", "", user.RoleStudent, "", true)
	other := createIdentity(t, env, "Other", "other@test.cd", "", user.RoleStudent, "", true)
	adminToken := getToken(t, env.conf, admin)
	studentToken := getToken(t, env.conf, student)

	tests := []httpTest{
		{
			name:     "identity reads itself",
			method:   http.MethodGet,
			path:     "/v1/users/" + student.ID,
			token:    studentToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, student),
		},
		{
			name:     "identity cannot read another; id is not probeable",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    studentToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name:     "admin reads anyone",
			method:   http.MethodGet,
			path:     "/v1/users/" + other.ID,
			token:    adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, other),
		},
		{
			name:     "non-admin cannot toggle is_active",
			method:   http.MethodPut,
			path:     "/v1/users/" + student.ID,
			token:    studentToken,
			body:     []byte(`{"is_active": false}`),
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

	t.Run("admin renames an identity", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/users/"+student.ID, adminToken, []byte(`{"name": "Renamed Kid"}`))
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var idt user.Identity
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &idt))
		assert.Equal(t, "Renamed Kid", idt.Name)
		assert.Equal(t, user.RoleStudent, idt.Role) // role never changes post-creation
	})
}

func Test_userApi_destroy(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	student := createIdentity(t, env, "Student", "kid@test.cd", "", user.RoleStudent, "", true)
	adminToken := getToken(t, env.conf, admin)

	t.Run("admin cannot delete themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, adminToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin deletes a student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+student.ID, adminToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		_, err := env.usrSvc.GetByID(context.Background(), student.ID)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("bulk delete ignores unknown ids", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users?id="+student.ID+"&id=does-not-exist", adminToken)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)

	idt := createIdentity(t, env, "Jo Achieng", "jo@test.cd", "Old&Password1", user.RoleTeacher, "", true)

	t.Run("request always reports success", func(t *testing.T) {
		for _, email := range []string{"jo@test.cd", "ghost@test.cd"} {
			req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", marchallObj(t, PasswordResetRequest{Email: email}))
			env.server.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		}
	})

	t.Run("confirm with a valid token sets the new password", func(t *testing.T) {
		token, err := user.MakeToken(idt, env.conf.SecretKey)
		require.NoError(t, err)

		body := marchallObj(t, user.ResetIdentityPassword{
			Token:           token,
			UID:             user.EncodeUID(idt),
			Password:        "New&Password2",
			PasswordConfirm: "New&Password2",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
		env.server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		fresh, err := env.usrSvc.GetByID(context.Background(), idt.ID)
		require.NoError(t, err)
		assert.NoError(t, fresh.CheckPassword("New&Password2"))
	})

	t.Run("confirm with a bad token fails", func(t *testing.T) {
		body := marchallObj(t, user.ResetIdentityPassword{
			Token:           "bogus-token",
			UID:             user.EncodeUID(idt),
			Password:        "New&Password3",
			PasswordConfirm: "New&Password3",
		})
		req, rec := newRequest(http.MethodPost, "/v1/users/password-reset-confirm", body)
		env.server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func Test_userApi_queryRoles(t *testing.T) {
	env := setup(t)

	admin := createIdentity(t, env, "Admin", "admin@test.cd", "", user.RoleAdmin, "", true)
	token := getToken(t, env.conf, admin)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", token)
	env.server.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)}
	checkCodeAndData(t, tt, rec)
}
