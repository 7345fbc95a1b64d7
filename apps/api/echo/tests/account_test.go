package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core/user"
)

func TestAccountAPI_Login(t *testing.T) {
	env := setup(t)
	env.addUser(t, "admin", user.RoleAdmin)

	t.Run("valid credentials return a token", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{
			"username": "admin",
			"password": "S0me!Password",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp struct {
			Token    string `json:"token"`
			Username string `json:"username"`
			Role     string `json:"role"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "admin", resp.Username)
		assert.Equal(t, user.RoleAdmin, resp.Role)
	})

	t.Run("email works as the username", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{
			"username": "admin@example.com",
			"password": "S0me!Password",
		})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{
			"username": "admin",
			"password": "wrong",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{
			"username": "ghost",
			"password": "S0me!Password",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("deactivated account", func(t *testing.T) {
		usr := env.addUser(t, "gone", user.RoleTeacher)
		usr.IsActive = false
		usr.Status = user.StatusSuspended
		_, err := env.usrRepo.UpdateUser(context.Background(), usr)
		require.NoError(t, err)

		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{
			"username": "gone",
			"password": "S0me!Password",
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/login", "", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAccountAPI_Me(t *testing.T) {
	env := setup(t)
	usr := env.addUser(t, "tcher", user.RoleTeacher)
	token := env.token(t, usr)

	t.Run("returns the authenticated user", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/accounts/me", token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got user.User
		decode(t, rec, &got)
		assert.Equal(t, usr.ID, got.ID)
		assert.Equal(t, "tcher", got.Username)
	})

	t.Run("no token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/accounts/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/accounts/me", "not.a.jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAccountAPI_Logout(t *testing.T) {
	env := setup(t)
	usr := env.addUser(t, "tcher", user.RoleTeacher)
	token := env.token(t, usr)

	rec := env.do(http.MethodPost, "/api/accounts/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// the revoked token no longer authenticates
	rec = env.do(http.MethodGet, "/api/accounts/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccountAPI_AdminGates(t *testing.T) {
	env := setup(t)
	admin := env.addUser(t, "admin", user.RoleAdmin)
	teacher := env.addUser(t, "tcher", user.RoleTeacher)
	parent := env.addUser(t, "dcruz", user.RoleParentStudent)

	adminTok := env.token(t, admin)
	teacherTok := env.token(t, teacher)
	parentTok := env.token(t, parent)

	t.Run("user list is admin only", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			wantCode int
		}{
			{name: "admin", token: adminTok, wantCode: http.StatusOK},
			{name: "teacher", token: teacherTok, wantCode: http.StatusForbidden},
			{name: "parent", token: parentTok, wantCode: http.StatusForbidden},
			{name: "anonymous", token: "", wantCode: http.StatusUnauthorized},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.do(http.MethodGet, "/api/accounts/users", tt.token, nil)
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			})
		}
	})

	t.Run("sections are readable by any authenticated user", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/accounts/sections", parentTok, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		// but writes stay admin only
		rec = env.do(http.MethodPost, "/api/accounts/sections", teacherTok, map[string]interface{}{
			"name":        "Mabini",
			"grade_level": 3,
		})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admins cannot delete themselves", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/api/accounts/users/"+admin.ID, adminTok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("create user validates and persists", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/accounts/admin/create-user", adminTok, map[string]string{
			"username": "newteacher",
			"email":    "newteacher@example.com",
			"password": "S0me!Password",
			"role":     user.RoleTeacher,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		// duplicate username is a field error
		rec = env.do(http.MethodPost, "/api/accounts/admin/create-user", adminTok, map[string]string{
			"username": "newteacher",
			"email":    "other@example.com",
			"password": "S0me!Password",
			"role":     user.RoleTeacher,
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAccountAPI_TeacherAssignment(t *testing.T) {
	env := setup(t)
	admin := env.addUser(t, "admin", user.RoleAdmin)
	teacher := env.addUser(t, "tcher", user.RoleTeacher)
	parent := env.addUser(t, "dcruz", user.RoleParentStudent)
	adminTok := env.token(t, admin)

	// a subject to point the teacher at
	rec := env.do(http.MethodPost, "/api/accounts/subjects", adminTok, map[string]string{
		"name": "Mathematics",
		"code": "MATH",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var subject struct {
		ID string `json:"id"`
	}
	decode(t, rec, &subject)

	t.Run("assigns a subject to a teacher", func(t *testing.T) {
		rec := env.do(http.MethodPatch, "/api/accounts/teachers/"+teacher.ID+"/assignment", adminTok,
			map[string]string{"subject": subject.ID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("rejects non-teacher accounts", func(t *testing.T) {
		rec := env.do(http.MethodPatch, "/api/accounts/teachers/"+parent.ID+"/assignment", adminTok,
			map[string]string{"subject": subject.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
