package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

func setup(t *testing.T) user.Service {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return user.NewServiceMock(
		inmemdb.NewUserRepository(db),
		inmemdb.NewAcademicRepository(db),
		nil,
	)
}

func newUser(role string) user.NewUser {
	nu := user.NewUser{
		Username: "dcruz",
		Email:    "dcruz@example.com",
		Password: "S0me!Password",
		Role:     role,
		Status:   user.StatusActive,
	}
	if role == user.RoleParentStudent {
		nu.StudentFirstName = "Juan"
		nu.StudentLastName = "Dela Cruz"
		nu.GradeLevel = "grade3"
	}
	return nu
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("parent role gets a student profile", func(t *testing.T) {
		svc := setup(t)
		detail, err := svc.Create(ctx, newUser(user.RoleParentStudent))
		require.NoError(t, err)

		assert.Equal(t, user.RoleParentStudent, detail.User.Role)
		assert.False(t, detail.User.IsStaff)
		assert.True(t, detail.User.IsActive)
		assert.NoError(t, detail.User.CheckPassword("S0me!Password"))
		require.NotNil(t, detail.Profile)
		assert.Equal(t, "Juan", detail.Profile.StudentFirstName)
		assert.Nil(t, detail.TeacherProfile)
	})

	t.Run("teacher role gets a teacher profile", func(t *testing.T) {
		svc := setup(t)
		nu := newUser(user.RoleTeacher)
		nu.EmployeeID = "EMP-007"
		detail, err := svc.Create(ctx, nu)
		require.NoError(t, err)

		assert.Nil(t, detail.Profile)
		require.NotNil(t, detail.TeacherProfile)
		assert.Equal(t, "EMP-007", detail.TeacherProfile.EmployeeID)
	})

	t.Run("admin role has no profile and is staff", func(t *testing.T) {
		svc := setup(t)
		detail, err := svc.Create(ctx, newUser(user.RoleAdmin))
		require.NoError(t, err)

		assert.True(t, detail.User.IsStaff)
		assert.Nil(t, detail.Profile)
		assert.Nil(t, detail.TeacherProfile)
	})
}

func TestService_CheckUniqueness(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	existing, err := svc.Create(ctx, newUser(user.RoleAdmin))
	require.NoError(t, err)

	t.Run("username clash maps to the username field", func(t *testing.T) {
		err := svc.CheckUniqueness("DCruz", "other@example.com")
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "username", vErr.Fields[0].Field)
	})

	t.Run("email clash maps to the email field", func(t *testing.T) {
		err := svc.CheckUniqueness("someoneelse", "DCruz@Example.com")
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "email", vErr.Fields[0].Field)
	})

	t.Run("excluded user does not clash with itself", func(t *testing.T) {
		assert.NoError(t, svc.CheckUniqueness("dcruz", "dcruz@example.com", existing.User))
	})

	t.Run("free identifiers pass", func(t *testing.T) {
		assert.NoError(t, svc.CheckUniqueness("msantos", "msantos@example.com"))
	})
}

func TestService_GetDetail(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	t.Run("parent detail carries the profile", func(t *testing.T) {
		created, err := svc.Create(ctx, newUser(user.RoleParentStudent))
		require.NoError(t, err)

		detail, err := svc.GetDetail(ctx, created.User.ID)
		require.NoError(t, err)
		require.NotNil(t, detail.Profile)
		assert.Equal(t, "grade3", detail.Profile.GradeLevel)
	})

	t.Run("missing profile stays nil, never auto-created", func(t *testing.T) {
		nu := newUser(user.RoleTeacher)
		nu.Username = "tcher"
		nu.Email = "tcher@example.com"
		created, err := svc.Create(ctx, nu)
		require.NoError(t, err)

		// drop to a bare user lookup; the teacher profile row exists but a
		// parent profile was never made
		detail, err := svc.GetDetail(ctx, created.User.ID)
		require.NoError(t, err)
		assert.Nil(t, detail.Profile)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := svc.GetDetail(ctx, "nope")
		assert.Equal(t, user.ErrNotFound, err)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	created, err := svc.Create(ctx, newUser(user.RoleTeacher))
	require.NoError(t, err)

	t.Run("role change recomputes staff flag", func(t *testing.T) {
		updated, err := svc.Update(ctx, created.User.ID, user.UpdateUser{
			Username: created.User.Username,
			Email:    created.User.Email,
			Role:     user.RoleAdmin,
		})
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, updated.Role)
		assert.True(t, updated.IsStaff)
	})

	t.Run("status change recomputes active flag", func(t *testing.T) {
		updated, err := svc.Update(ctx, created.User.ID, user.UpdateUser{
			Username: created.User.Username,
			Email:    created.User.Email,
			Status:   user.StatusSuspended,
		})
		require.NoError(t, err)
		assert.Equal(t, user.StatusSuspended, updated.Status)
		assert.False(t, updated.IsActive)
	})

	t.Run("explicit is_active wins over status", func(t *testing.T) {
		active := true
		updated, err := svc.Update(ctx, created.User.ID, user.UpdateUser{
			Username: created.User.Username,
			Email:    created.User.Email,
			Status:   user.StatusSuspended,
			IsActive: &active,
		})
		require.NoError(t, err)
		assert.True(t, updated.IsActive)
	})
}

func TestService_SetPasswordWithToken(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	nu := newUser(user.RoleParentStudent)
	nu.Status = user.StatusInactive
	created, err := svc.Create(ctx, nu)
	require.NoError(t, err)
	assert.False(t, created.User.IsActive)

	token, err := user.MakeToken(created.User)
	require.NoError(t, err)

	t.Run("valid token sets the password and activates", func(t *testing.T) {
		usr, err := svc.SetPasswordWithToken(ctx, user.SetUserPassword{
			UID:      user.EncodeUID(created.User),
			Token:    token,
			Password: "N3w!Password",
		})
		require.NoError(t, err)
		assert.NoError(t, usr.CheckPassword("N3w!Password"))
		assert.Equal(t, user.StatusActive, usr.Status)
		assert.True(t, usr.IsActive)
	})

	t.Run("token is single use", func(t *testing.T) {
		// the password change invalidates the hash baked into the token
		_, err := svc.SetPasswordWithToken(ctx, user.SetUserPassword{
			UID:      user.EncodeUID(created.User),
			Token:    token,
			Password: "An0ther!Password",
		})
		assert.Error(t, err)
	})

	t.Run("garbage uid", func(t *testing.T) {
		_, err := svc.SetPasswordWithToken(ctx, user.SetUserPassword{
			UID:      "!!!",
			Token:    token,
			Password: "N3w!Password",
		})
		assert.Error(t, err)
	})
}

func TestService_TokenRevocation(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	created, err := svc.Create(ctx, newUser(user.RoleAdmin))
	require.NoError(t, err)

	revoked, err := svc.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.RevokeToken(ctx, "jti-1", created.User.ID, created.User.CreatedAt.AddDate(0, 0, 7)))

	revoked, err = svc.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}
