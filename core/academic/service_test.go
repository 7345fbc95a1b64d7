package academic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

func setup(t *testing.T) academic.Service {
	svc, _ := setupWithUsers(t)
	return svc
}

func setupWithUsers(t *testing.T) (academic.Service, user.Repository) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	return academic.NewService(inmemdb.NewAcademicRepository(db)), inmemdb.NewUserRepository(db)
}

func TestGradeMatchesLevel(t *testing.T) {
	tests := []struct {
		level string
		grade string
		want  bool
	}{
		{level: "preschool", grade: "prek", want: true},
		{level: "preschool", grade: "kinder", want: true},
		{level: "preschool", grade: "grade1", want: false},
		{level: "elementary", grade: "grade1", want: true},
		{level: "elementary", grade: "grade6", want: true},
		{level: "elementary", grade: "kinder", want: false},
		{level: "elementary", grade: "grade7", want: false},
		{level: "highschool", grade: "grade1", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.level+"/"+tt.grade, func(t *testing.T) {
			assert.Equal(t, tt.want, academic.GradeMatchesLevel(tt.level, tt.grade))
		})
	}
}

func TestService_Subjects(t *testing.T) {
	ctx := context.Background()

	t.Run("create and read back", func(t *testing.T) {
		svc := setup(t)
		sub, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
		require.NoError(t, err)
		assert.NotEmpty(t, sub.ID)
		assert.Empty(t, sub.Teachers)

		got, err := svc.GetSubject(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, "MATH", got.Code)
	})

	t.Run("code clash is case-insensitive", func(t *testing.T) {
		svc := setup(t)
		_, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
		require.NoError(t, err)

		_, err = svc.CreateSubject(ctx, academic.NewSubject{Name: "More Math", Code: "math"})
		require.Error(t, err)
		vErr, ok := err.(*core.ValidationError)
		require.True(t, ok)
		assert.Equal(t, "code", vErr.Fields[0].Field)
	})

	t.Run("update keeps its own code without clashing", func(t *testing.T) {
		svc := setup(t)
		sub, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
		require.NoError(t, err)

		updated, err := svc.UpdateSubject(ctx, sub.ID, academic.NewSubject{Name: "Math 101", Code: "MATH"})
		require.NoError(t, err)
		assert.Equal(t, "Math 101", updated.Name)
	})

	t.Run("unknown subject", func(t *testing.T) {
		svc := setup(t)
		_, err := svc.GetSubject(ctx, "nope")
		assert.Equal(t, academic.ErrNotFound, err)
	})
}

func TestService_Sections(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	_, err := svc.CreateSection(ctx, academic.NewSection{Name: "Mabini", GradeLevel: 3})
	require.NoError(t, err)
	_, err = svc.CreateSection(ctx, academic.NewSection{Name: "Rizal", GradeLevel: 4})
	require.NoError(t, err)

	all, err := svc.QuerySections(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	three := 3
	filtered, err := svc.QuerySections(ctx, &three)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Mabini", filtered[0].Name)
}

func TestService_AssignTeacher(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	math, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
	require.NoError(t, err)
	science, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Science", Code: "SCI"})
	require.NoError(t, err)
	section, err := svc.CreateSection(ctx, academic.NewSection{Name: "Mabini", GradeLevel: 3})
	require.NoError(t, err)

	t.Run("creates the profile on first assignment", func(t *testing.T) {
		emp := "EMP-001"
		tp, err := svc.AssignTeacher(ctx, "teacher-1", academic.TeacherAssignment{
			SubjectID:  &math.ID,
			SectionID:  &section.ID,
			EmployeeID: &emp,
		})
		require.NoError(t, err)
		assert.Equal(t, math.ID, tp.SubjectID)
		assert.Equal(t, section.ID, tp.SectionID)
		assert.Equal(t, "EMP-001", tp.EmployeeID)
	})

	t.Run("re-pointing moves the single assignment", func(t *testing.T) {
		tp, err := svc.AssignTeacher(ctx, "teacher-1", academic.TeacherAssignment{SubjectID: &science.ID})
		require.NoError(t, err)
		assert.Equal(t, science.ID, tp.SubjectID)
		// untouched fields keep their value
		assert.Equal(t, section.ID, tp.SectionID)

		// the old subject no longer lists the teacher
		old, err := svc.GetSubject(ctx, math.ID)
		require.NoError(t, err)
		assert.Empty(t, old.Teachers)

		now, err := svc.GetSubject(ctx, science.ID)
		require.NoError(t, err)
		require.Len(t, now.Teachers, 1)
		assert.Equal(t, "teacher-1", now.Teachers[0].UserID)
	})

	t.Run("empty string unassigns", func(t *testing.T) {
		none := ""
		tp, err := svc.AssignTeacher(ctx, "teacher-1", academic.TeacherAssignment{SubjectID: &none})
		require.NoError(t, err)
		assert.Empty(t, tp.SubjectID)
	})

	t.Run("unknown subject rejects", func(t *testing.T) {
		bogus := "nope"
		_, err := svc.AssignTeacher(ctx, "teacher-1", academic.TeacherAssignment{SubjectID: &bogus})
		assert.Equal(t, academic.ErrNotFound, err)
	})
}

func TestService_SubjectAssignedTeacher(t *testing.T) {
	ctx := context.Background()
	svc, usrRepo := setupWithUsers(t)

	addUser := func(t *testing.T, username, role string) user.User {
		t.Helper()
		usr, err := usrRepo.CreateUser(ctx, user.User{Username: username, Email: username + "@cesi.edu", Role: role})
		require.NoError(t, err)
		return usr
	}
	cruz := addUser(t, "cruz", user.RoleTeacher)
	reyes := addUser(t, "reyes", user.RoleTeacher)
	parent := addUser(t, "dcruz", user.RoleParentStudent)

	math, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH", AssignedTeacher: cruz.ID})
	require.NoError(t, err)
	require.Len(t, math.Teachers, 1)
	assert.Equal(t, cruz.ID, math.Teachers[0].UserID)

	t.Run("reassignment releases the previous holder", func(t *testing.T) {
		updated, err := svc.UpdateSubject(ctx, math.ID, academic.NewSubject{Name: "Mathematics", Code: "MATH", AssignedTeacher: reyes.ID})
		require.NoError(t, err)
		require.Len(t, updated.Teachers, 1)
		assert.Equal(t, reyes.ID, updated.Teachers[0].UserID)

		info, err := svc.TeacherInfo(ctx, cruz.ID)
		require.NoError(t, err)
		assert.Nil(t, info.Subject)
	})

	t.Run("non teacher accounts are skipped", func(t *testing.T) {
		sci, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Science", Code: "SCI", AssignedTeacher: parent.ID})
		require.NoError(t, err)
		assert.Empty(t, sci.Teachers)

		info, err := svc.TeacherInfo(ctx, parent.ID)
		require.NoError(t, err)
		assert.Nil(t, info.Subject)
	})

	t.Run("unknown user ids leave the assignment alone", func(t *testing.T) {
		updated, err := svc.UpdateSubject(ctx, math.ID, academic.NewSubject{Name: "Mathematics", Code: "MATH", AssignedTeacher: "ghost"})
		require.NoError(t, err)
		require.Len(t, updated.Teachers, 1)
		assert.Equal(t, reyes.ID, updated.Teachers[0].UserID)
	})
}

func TestService_TeacherInfo(t *testing.T) {
	ctx := context.Background()
	svc := setup(t)

	t.Run("no profile yields empty info", func(t *testing.T) {
		info, err := svc.TeacherInfo(ctx, "teacher-1")
		require.NoError(t, err)
		assert.Nil(t, info.Subject)
		assert.Nil(t, info.Section)
		assert.Empty(t, info.EmployeeID)
	})

	t.Run("assignment resolves to full records", func(t *testing.T) {
		math, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Mathematics", Code: "MATH"})
		require.NoError(t, err)
		section, err := svc.CreateSection(ctx, academic.NewSection{Name: "Mabini", GradeLevel: 3})
		require.NoError(t, err)

		emp := "EMP-001"
		_, err = svc.AssignTeacher(ctx, "teacher-1", academic.TeacherAssignment{
			SubjectID:  &math.ID,
			SectionID:  &section.ID,
			EmployeeID: &emp,
		})
		require.NoError(t, err)

		info, err := svc.TeacherInfo(ctx, "teacher-1")
		require.NoError(t, err)
		require.NotNil(t, info.Subject)
		assert.Equal(t, "MATH", info.Subject.Code)
		require.NotNil(t, info.Section)
		assert.Equal(t, "Mabini", info.Section.Name)
		assert.Equal(t, "EMP-001", info.EmployeeID)
	})
}
