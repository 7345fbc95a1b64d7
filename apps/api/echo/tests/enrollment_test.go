package tests

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/user"
)

func enrollmentPayload() map[string]interface{} {
	return map[string]interface{}{
		"first_name":      "Juan",
		"last_name":       "Dela Cruz",
		"birth_date":      "2015-03-10",
		"education_level": "elementary",
		"grade_level":     "grade3",
		"student_type":    "new",
		"payment_mode":    "cash",
		"mobile_number":   "09171234567",
		"email":           "parent@example.com",
	}
}

func TestEnrollmentAPI_Create(t *testing.T) {
	t.Run("public submission is accepted as pending", func(t *testing.T) {
		env := setup(t)
		env.addPublicUser(t)

		rec := env.do(http.MethodPost, "/api/enrollments", "", enrollmentPayload())
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var enr enrollment.Enrollment
		decode(t, rec, &enr)
		assert.Equal(t, enrollment.StatusPending, enr.Status)
		assert.Equal(t, "+639171234567", enr.MobileNumber)
		assert.Empty(t, enr.StudentNumber)
	})

	t.Run("invalid payload is a field error map", func(t *testing.T) {
		env := setup(t)
		env.addPublicUser(t)

		payload := enrollmentPayload()
		payload["grade_level"] = "kinder" // does not match elementary
		rec := env.do(http.MethodPost, "/api/enrollments", "", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("honeypot trips quietly", func(t *testing.T) {
		env := setup(t)
		env.addPublicUser(t)

		payload := enrollmentPayload()
		payload["website"] = "http://spam.example.com"
		rec := env.do(http.MethodPost, "/api/enrollments", "", payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestEnrollmentAPI_AdminGates(t *testing.T) {
	env := setup(t)
	env.addPublicUser(t)
	admin := env.addUser(t, "admin", user.RoleAdmin)
	teacher := env.addUser(t, "tcher", user.RoleTeacher)
	adminTok := env.token(t, admin)
	teacherTok := env.token(t, teacher)

	rec := env.do(http.MethodPost, "/api/enrollments", "", enrollmentPayload())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var enr enrollment.Enrollment
	decode(t, rec, &enr)

	t.Run("listing requires admin", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/enrollments", adminTok, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = env.do(http.MethodGet, "/api/enrollments", teacherTok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(http.MethodGet, "/api/enrollments", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("approval assigns a student number", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/enrollments/"+enr.ID+"/mark_active", adminTok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var approved enrollment.Enrollment
		decode(t, rec, &approved)
		assert.Equal(t, enrollment.StatusActive, approved.Status)
		assert.NotEmpty(t, approved.StudentNumber)
	})

	t.Run("workflow actions are admin only", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/enrollments/"+enr.ID+"/mark_completed", teacherTok, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("by_grade requires the parameter", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/enrollments/by_grade", adminTok, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(http.MethodGet, "/api/enrollments/by_grade?grade_level=grade3", adminTok, nil)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})

	t.Run("statistics roll up", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/enrollments/statistics", adminTok, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var stats enrollment.Stats
		decode(t, rec, &stats)
		assert.Equal(t, 1, stats.Total)
	})

	t.Run("unknown enrollment is 404", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/enrollments/00000000-0000-0000-0000-000000000000", adminTok, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
