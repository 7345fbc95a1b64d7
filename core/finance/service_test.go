package finance_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

type testEnv struct {
	svc     finance.Service
	usrRepo user.Repository
}

func setup(t *testing.T) *testEnv {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	return &testEnv{
		svc: finance.NewService(
			inmemdb.NewFinanceRepository(db),
			inmemdb.NewUserRepository(db),
			inmemdb.NewAcademicRepository(db),
		),
		usrRepo: inmemdb.NewUserRepository(db),
	}
}

func (env *testEnv) addParent(t *testing.T, username string) user.User {
	t.Helper()
	parent := user.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     user.RoleParentStudent,
		Status:   user.StatusActive,
		IsActive: true,
	}
	parent, err := env.usrRepo.CreateUser(context.Background(), parent)
	require.NoError(t, err)
	return parent
}

func newTransaction(parentID string) finance.NewTransaction {
	nt := finance.NewTransaction{
		ParentID:    parentID,
		Type:        finance.TypeTuition,
		Amount:      decimal.NewFromInt(5000),
		Description: "Q1 tuition",
		DueDate:     core.NewDate(2025, time.July, 15),
	}
	// apply the same defaulting the handlers do
	if err := nt.Validate(); err != nil {
		panic(err)
	}
	return nt
}

func TestService_Create(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	year := time.Now().UTC().Year()

	parent := env.addParent(t, "dcruz")

	t.Run("reference numbers start at 1 and increment", func(t *testing.T) {
		first, err := env.svc.Create(ctx, newTransaction(parent.ID))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("CESI-%d-00001", year), first.ReferenceNumber)
		assert.Equal(t, finance.StatusPending, first.Status)
		assert.Equal(t, finance.MethodCash, first.PaymentMethod)

		second, err := env.svc.Create(ctx, newTransaction(parent.ID))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("CESI-%d-00002", year), second.ReferenceNumber)
	})

	t.Run("student name falls back to the parent profile", func(t *testing.T) {
		_, err := env.usrRepo.SaveStudentProfile(ctx, user.StudentProfile{
			UserID:           parent.ID,
			StudentFirstName: "Juan",
			StudentLastName:  "Dela Cruz",
		})
		require.NoError(t, err)

		tx, err := env.svc.Create(ctx, newTransaction(parent.ID))
		require.NoError(t, err)
		assert.Equal(t, "Juan Dela Cruz", tx.StudentName)
	})

	t.Run("unknown parent is a field error", func(t *testing.T) {
		_, err := env.svc.Create(ctx, newTransaction("nope"))
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "parent", vErr.Fields[0].Field)
	})

	t.Run("non-parent payer is a field error", func(t *testing.T) {
		admin := user.User{
			Username: "boss",
			Email:    "boss@example.com",
			Role:     user.RoleAdmin,
			Status:   user.StatusActive,
			IsActive: true,
		}
		admin, err := env.usrRepo.CreateUser(ctx, admin)
		require.NoError(t, err)

		_, err = env.svc.Create(ctx, newTransaction(admin.ID))
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "parent", vErr.Fields[0].Field)
	})
}

func TestService_MyTransactions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	mine := env.addParent(t, "dcruz")
	other := env.addParent(t, "msantos")

	_, err := env.svc.Create(ctx, newTransaction(mine.ID))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, newTransaction(mine.ID))
	require.NoError(t, err)
	_, err = env.svc.Create(ctx, newTransaction(other.ID))
	require.NoError(t, err)

	txs, err := env.svc.MyTransactions(ctx, mine.ID)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, mine.ID, tx.ParentID)
	}
}

func TestService_Update(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.addParent(t, "dcruz")
	tx, err := env.svc.Create(ctx, newTransaction(parent.ID))
	require.NoError(t, err)

	nt := newTransaction(parent.ID)
	nt.Status = finance.StatusPaid
	nt.Amount = decimal.NewFromInt(4500)
	updated, err := env.svc.Update(ctx, tx.ID, nt)
	require.NoError(t, err)

	assert.Equal(t, finance.StatusPaid, updated.Status)
	assert.True(t, updated.Amount.Equal(decimal.NewFromInt(4500)))
	// the reference never changes once assigned
	assert.Equal(t, tx.ReferenceNumber, updated.ReferenceNumber)
}

func TestService_Statistics(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.addParent(t, "dcruz")

	paid := newTransaction(parent.ID)
	paid.Status = finance.StatusPaid
	paid.Amount = decimal.NewFromInt(3000)
	_, err := env.svc.Create(ctx, paid)
	require.NoError(t, err)

	pending := newTransaction(parent.ID)
	pending.Amount = decimal.NewFromInt(2000)
	_, err = env.svc.Create(ctx, pending)
	require.NoError(t, err)

	overdue := newTransaction(parent.ID)
	overdue.Status = finance.StatusOverdue
	overdue.Amount = decimal.NewFromInt(1000)
	_, err = env.svc.Create(ctx, overdue)
	require.NoError(t, err)

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalRevenue.Equal(decimal.NewFromInt(6000)), "got %s", stats.TotalRevenue)
	assert.True(t, stats.Collected.Equal(decimal.NewFromInt(3000)), "got %s", stats.Collected)
	// pending rolls up OVERDUE as well
	assert.True(t, stats.Pending.Equal(decimal.NewFromInt(3000)), "got %s", stats.Pending)
}

func TestService_ParentOptions(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.addParent(t, "dcruz")
	_, err := env.usrRepo.SaveStudentProfile(ctx, user.StudentProfile{
		UserID:           parent.ID,
		StudentFirstName: "Juan",
		StudentLastName:  "Dela Cruz",
		ParentFirstName:  "Jose",
		ParentLastName:   "Dela Cruz",
	})
	require.NoError(t, err)
	env.addParent(t, "msantos")

	// teachers never show up in the dropdown
	teacher := user.User{
		Username: "tcher",
		Email:    "tcher@example.com",
		Role:     user.RoleTeacher,
		Status:   user.StatusActive,
		IsActive: true,
	}
	_, err = env.usrRepo.CreateUser(ctx, teacher)
	require.NoError(t, err)

	all, err := env.svc.ParentOptions(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	matched, err := env.svc.ParentOptions(ctx, "dcruz")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, parent.ID, matched[0].ID)
	assert.Equal(t, "Juan Dela Cruz", matched[0].StudentName)
}

func TestService_ParentStudents(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := env.addParent(t, "dcruz")

	t.Run("no profile yields an empty list", func(t *testing.T) {
		students, err := env.svc.ParentStudents(ctx, parent.ID)
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("profile maps to one student row", func(t *testing.T) {
		_, err := env.usrRepo.SaveStudentProfile(ctx, user.StudentProfile{
			UserID:           parent.ID,
			StudentFirstName: "Juan",
			StudentLastName:  "Dela Cruz",
			GradeLevel:       "grade3",
			ContactNumber:    "+639171234567",
		})
		require.NoError(t, err)

		students, err := env.svc.ParentStudents(ctx, parent.ID)
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "Juan Dela Cruz", students[0].StudentName)
		assert.Equal(t, "grade3", students[0].GradeLevel)
	})

	t.Run("unknown parent", func(t *testing.T) {
		_, err := env.svc.ParentStudents(ctx, "nope")
		assert.Equal(t, finance.ErrParentNotFound, err)
	})
}
