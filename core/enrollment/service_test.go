package enrollment_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/user"
	emailsvc "github.com/cesiedu/campus/services/email"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

type testEnv struct {
	svc     enrollment.Service
	repo    enrollment.Repository
	usrRepo user.Repository
}

func setup(t *testing.T) *testEnv {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	repo := inmemdb.NewEnrollmentRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)

	// the public sentinel must exist before any intake
	public := user.User{
		Username: user.PublicUsername,
		Role:     user.RolePublic,
		Status:   user.StatusActive,
		IsActive: true,
	}
	public.SetUnusablePassword()
	_, err = usrRepo.CreateUser(context.Background(), public)
	require.NoError(t, err)

	return &testEnv{
		svc:     enrollment.NewService(nil, repo, usrRepo, emailsvc.NewConsoleServiceMock(), nopLogger{}),
		repo:    repo,
		usrRepo: usrRepo,
	}
}

func newEnrollment() enrollment.NewEnrollment {
	return enrollment.NewEnrollment{
		FirstName:      "Juan",
		LastName:       "Dela Cruz",
		BirthDate:      core.NewDate(2015, time.March, 10),
		EducationLevel: "elementary",
		GradeLevel:     "grade3",
		StudentType:    "new",
		PaymentMode:    "cash",
		MobileNumber:   "+639171234567",
		AcademicYear:   "2024-2025",
	}
}

func TestService_Create(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("forces public student and pending status", func(t *testing.T) {
		enr, err := env.svc.Create(ctx, newEnrollment())
		require.NoError(t, err)

		public, err := env.usrRepo.GetUser(ctx, user.GetFilter{Username: user.PublicUsername})
		require.NoError(t, err)
		assert.Equal(t, public.ID, enr.StudentID)
		assert.Equal(t, enrollment.StatusPending, enr.Status)
		assert.Empty(t, enr.StudentNumber)
	})

	t.Run("flags possible duplicates", func(t *testing.T) {
		ne := newEnrollment()
		ne.FirstName = "JUAN" // case-insensitive match
		enr, err := env.svc.Create(ctx, ne)
		require.NoError(t, err)
		assert.Contains(t, enr.Remarks, enrollment.RemarkDuplicate)
	})

	t.Run("fails without the sentinel account", func(t *testing.T) {
		db, err := inmemdb.Open()
		require.NoError(t, err)
		svc := enrollment.NewService(nil,
			inmemdb.NewEnrollmentRepository(db), inmemdb.NewUserRepository(db),
			emailsvc.NewConsoleServiceMock(), nopLogger{})

		_, err = svc.Create(ctx, newEnrollment())
		assert.Equal(t, enrollment.ErrNoPublicUser, err)
	})
}

func TestService_Approve(t *testing.T) {
	year := time.Now().UTC().Year()
	ctx := context.Background()

	t.Run("assigns sequential student numbers after the existing max", func(t *testing.T) {
		env := setup(t)

		seeded, err := env.svc.Create(ctx, newEnrollment())
		require.NoError(t, err)
		seeded.StudentNumber = fmt.Sprintf("%d000005", year) // assigned by hand
		_, err = env.repo.UpdateEnrollment(ctx, seeded)
		require.NoError(t, err)

		ne := newEnrollment()
		ne.FirstName = "Maria"
		enr, err := env.svc.Create(ctx, ne)
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("%d000006", year), approved.StudentNumber)
		assert.Equal(t, enrollment.StatusActive, approved.Status)
		assert.Contains(t, approved.Remarks, enrollment.RemarkApproved)
	})

	t.Run("appends the approval note at most once", func(t *testing.T) {
		env := setup(t)

		enr, err := env.svc.Create(ctx, newEnrollment())
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		again, err := env.svc.Approve(ctx, approved.ID)
		require.NoError(t, err)

		assert.Equal(t, approved.StudentNumber, again.StudentNumber)
		assert.Equal(t, 1, strings.Count(again.Remarks, enrollment.RemarkApproved))
	})

	t.Run("rejects invalid grade before any mutation", func(t *testing.T) {
		env := setup(t)

		enr, err := env.svc.Create(ctx, newEnrollment())
		require.NoError(t, err)
		enr.GradeLevel = "grade7"
		_, err = env.repo.UpdateEnrollment(ctx, enr)
		require.NoError(t, err)

		_, err = env.svc.Approve(ctx, enr.ID)
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.NotEmpty(t, vErr.Fields)

		unchanged, err := env.repo.GetEnrollment(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusPending, unchanged.Status)
		assert.Empty(t, unchanged.StudentNumber)
	})

	t.Run("new student provisions a parent account with unusable password", func(t *testing.T) {
		env := setup(t)

		ne := newEnrollment()
		ne.Email = "Parent@Example.com"
		enr, err := env.svc.Create(ctx, ne)
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)

		parent, err := env.usrRepo.GetUser(ctx, user.GetFilter{Email: "parent@example.com"})
		require.NoError(t, err)
		assert.Equal(t, user.RoleParentStudent, parent.Role)
		assert.False(t, parent.HasUsablePassword())
		assert.Equal(t, parent.ID, approved.ParentUserID)

		prof, err := env.usrRepo.GetStudentProfileByUser(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, "Juan", prof.StudentFirstName)
		assert.Equal(t, approved.StudentNumber, prof.StudentNumber)
	})

	t.Run("promotion links the existing account and never creates one", func(t *testing.T) {
		env := setup(t)

		existing := user.User{
			Username: "olddad",
			Email:    "olddad@example.com",
			Role:     user.RoleParentStudent,
			Status:   user.StatusActive,
			IsActive: true,
		}
		require.NoError(t, existing.SetPassword("S0me!Password"))
		existing, err := env.usrRepo.CreateUser(ctx, existing)
		require.NoError(t, err)

		ne := newEnrollment()
		ne.StudentType = "old"
		ne.Email = "olddad@example.com"
		enr, err := env.svc.Create(ctx, ne)
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, approved.ParentUserID)

		// no second account was created for the email
		users, err := env.usrRepo.QueryUsers(ctx, &user.QueryFilter{Role: user.RoleParentStudent}, nil)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})

	t.Run("promotion with unknown email leaves enrollment unlinked", func(t *testing.T) {
		env := setup(t)

		ne := newEnrollment()
		ne.StudentType = "old"
		ne.Email = "ghost@example.com"
		enr, err := env.svc.Create(ctx, ne)
		require.NoError(t, err)

		approved, err := env.svc.Approve(ctx, enr.ID)
		require.NoError(t, err)
		assert.Equal(t, enrollment.StatusActive, approved.Status)
		assert.Empty(t, approved.ParentUserID)
	})
}

func TestService_CompleteAndDrop(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	enr, err := env.svc.Create(ctx, newEnrollment())
	require.NoError(t, err)

	completed, err := env.svc.Complete(ctx, enr.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusCompleted, completed.Status)
	assert.NotNil(t, completed.CompletedAt)
	assert.Contains(t, completed.Remarks, enrollment.RemarkCompleted)

	// terminal states stay terminal
	_, err = env.svc.Drop(ctx, enr.ID)
	assert.Error(t, err)
	_, err = env.svc.Approve(ctx, enr.ID)
	assert.Error(t, err)
}

func TestService_Statistics(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first, err := env.svc.Create(ctx, newEnrollment())
	require.NoError(t, err)
	_, err = env.svc.Approve(ctx, first.ID)
	require.NoError(t, err)

	ne := newEnrollment()
	ne.FirstName = "Maria"
	_, err = env.svc.Create(ctx, ne)
	require.NoError(t, err)

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.ByGrade["Grade 3"])
}
