package grading_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

type testEnv struct {
	svc     grading.Service
	repo    grading.Repository
	usrRepo user.Repository
	subject academic.Subject
}

func setup(t *testing.T) *testEnv {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	repo := inmemdb.NewGradingRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	acadRepo := inmemdb.NewAcademicRepository(db)

	subj, err := acadRepo.CreateSubject(context.Background(), academic.Subject{Name: "Mathematics", Code: "MATH"})
	require.NoError(t, err)

	return &testEnv{
		svc:     grading.NewService(repo, usrRepo, acadRepo),
		repo:    repo,
		usrRepo: usrRepo,
		subject: subj,
	}
}

func (env *testEnv) addItem(t *testing.T, quarter int, category string, total int) grading.GradeItem {
	t.Helper()
	item, err := env.svc.CreateItem(context.Background(), "teacher-1", grading.NewGradeItem{
		SubjectID:  env.subject.ID,
		GradeLevel: 3,
		Quarter:    quarter,
		Category:   category,
		Title:      category + " work",
		TotalScore: total,
	})
	require.NoError(t, err)
	return item
}

func (env *testEnv) score(t *testing.T, studentID, itemID string, score int64) {
	t.Helper()
	_, err := env.svc.UpsertScore(context.Background(), grading.UpsertScore{
		StudentID:   studentID,
		GradeItemID: itemID,
		Score:       decimal.NewFromInt(score),
	})
	require.NoError(t, err)
}

func TestService_GetWeights(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	t.Run("auto-creates the default row", func(t *testing.T) {
		w, err := env.svc.GetWeights(ctx, env.subject.ID)
		require.NoError(t, err)
		assert.NotEmpty(t, w.ID)
		assert.Equal(t, 40, w.ActivityWeight)
		assert.Equal(t, 20, w.QuizWeight)
		assert.Equal(t, 20, w.ExamWeight)
		assert.Equal(t, 20, w.ClassStandingWeight)

		// a second read returns the same row
		again, err := env.svc.GetWeights(ctx, env.subject.ID)
		require.NoError(t, err)
		assert.Equal(t, w.ID, again.ID)
	})

	t.Run("unknown subject", func(t *testing.T) {
		_, err := env.svc.GetWeights(ctx, "nope")
		assert.Error(t, err)
	})
}

func TestService_UpdateWeights(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	thirty := 30
	w, err := env.svc.UpdateWeights(ctx, env.subject.ID, grading.UpdateGradeWeight{ActivityWeight: &thirty})
	require.NoError(t, err)

	// only the provided field changes
	assert.Equal(t, 30, w.ActivityWeight)
	assert.Equal(t, 20, w.QuizWeight)
	assert.Equal(t, 20, w.ExamWeight)
	assert.Equal(t, 20, w.ClassStandingWeight)
}

func TestService_CreateItem(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	item, err := env.svc.CreateItem(ctx, "teacher-1", grading.NewGradeItem{
		SubjectID:  env.subject.ID,
		GradeLevel: 3,
		Quarter:    1,
		Category:   grading.CategoryQuiz,
		Title:      "Quiz 1",
		TotalScore: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", item.TeacherID)
	assert.NotEmpty(t, item.ID)

	_, err = env.svc.CreateItem(ctx, "teacher-1", grading.NewGradeItem{
		SubjectID:  "nope",
		Quarter:    1,
		Category:   grading.CategoryQuiz,
		Title:      "Quiz 1",
		TotalScore: 20,
	})
	assert.Error(t, err)
}

func TestService_UpsertScore(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	item := env.addItem(t, 1, grading.CategoryQuiz, 20)

	first, err := env.svc.UpsertScore(ctx, grading.UpsertScore{
		StudentID:   "student-1",
		GradeItemID: item.ID,
		Score:       decimal.NewFromInt(15),
	})
	require.NoError(t, err)

	// same (student, item) key overwrites instead of duplicating
	second, err := env.svc.UpsertScore(ctx, grading.UpsertScore{
		StudentID:   "student-1",
		GradeItemID: item.ID,
		Score:       decimal.NewFromInt(18),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	scores, err := env.svc.QueryScores(ctx, &grading.ScoreFilter{StudentID: "student-1"})
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.True(t, scores[0].Score.Equal(decimal.NewFromInt(18)))

	t.Run("unknown item", func(t *testing.T) {
		_, err := env.svc.UpsertScore(ctx, grading.UpsertScore{
			StudentID:   "student-1",
			GradeItemID: "nope",
			Score:       decimal.NewFromInt(1),
		})
		assert.Error(t, err)
	})
}

func TestService_UpsertClassStanding(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	first, err := env.svc.UpsertClassStanding(ctx, grading.UpsertClassStanding{
		StudentID: "student-1",
		SubjectID: env.subject.ID,
		Quarter:   1,
		Score:     decimal.NewFromInt(85),
	})
	require.NoError(t, err)

	second, err := env.svc.UpsertClassStanding(ctx, grading.UpsertClassStanding{
		StudentID: "student-1",
		SubjectID: env.subject.ID,
		Quarter:   1,
		Score:     decimal.NewFromInt(90),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Score.Equal(decimal.NewFromInt(90)))
}

func TestService_QuarterGrade(t *testing.T) {
	ctx := context.Background()

	t.Run("single category renormalizes to its own weight", func(t *testing.T) {
		env := setup(t)
		item := env.addItem(t, 1, grading.CategoryActivity, 100)
		env.score(t, "student-1", item.ID, 80)

		breakdown, err := env.svc.QuarterGrade(ctx, "student-1", env.subject.ID, 1)
		require.NoError(t, err)

		require.NotNil(t, breakdown.ActivityAvg)
		assert.True(t, breakdown.ActivityAvg.Equal(decimal.NewFromInt(80)), "got %s", breakdown.ActivityAvg)
		assert.Nil(t, breakdown.QuizAvg)
		assert.Nil(t, breakdown.ExamAvg)
		assert.Nil(t, breakdown.ClassStanding)

		// 80 * 40 / 40, not 80 * 40 / 100
		require.NotNil(t, breakdown.QuarterGrade)
		assert.True(t, breakdown.QuarterGrade.Equal(decimal.NewFromInt(80)), "got %s", breakdown.QuarterGrade)
	})

	t.Run("all categories use the full weighting", func(t *testing.T) {
		env := setup(t)

		activity := env.addItem(t, 1, grading.CategoryActivity, 100)
		quiz := env.addItem(t, 1, grading.CategoryQuiz, 20)
		exam := env.addItem(t, 1, grading.CategoryExam, 50)
		env.score(t, "student-1", activity.ID, 90) // 90%
		env.score(t, "student-1", quiz.ID, 16)     // 80%
		env.score(t, "student-1", exam.ID, 35)     // 70%
		_, err := env.svc.UpsertClassStanding(ctx, grading.UpsertClassStanding{
			StudentID: "student-1",
			SubjectID: env.subject.ID,
			Quarter:   1,
			Score:     decimal.NewFromInt(100),
		})
		require.NoError(t, err)

		breakdown, err := env.svc.QuarterGrade(ctx, "student-1", env.subject.ID, 1)
		require.NoError(t, err)

		// (90*40 + 80*20 + 70*20 + 100*20) / 100 = 86
		require.NotNil(t, breakdown.QuarterGrade)
		assert.True(t, breakdown.QuarterGrade.Equal(decimal.NewFromInt(86)), "got %s", breakdown.QuarterGrade)
	})

	t.Run("category average pools raw scores over raw totals", func(t *testing.T) {
		env := setup(t)

		quiz1 := env.addItem(t, 1, grading.CategoryQuiz, 10)
		quiz2 := env.addItem(t, 1, grading.CategoryQuiz, 30)
		env.score(t, "student-1", quiz1.ID, 5)
		env.score(t, "student-1", quiz2.ID, 30)

		breakdown, err := env.svc.QuarterGrade(ctx, "student-1", env.subject.ID, 1)
		require.NoError(t, err)

		// (5 + 30) / (10 + 30) = 87.5%
		require.NotNil(t, breakdown.QuizAvg)
		assert.True(t, breakdown.QuizAvg.Equal(decimal.NewFromFloat(87.5)), "got %s", breakdown.QuizAvg)
	})

	t.Run("no data at all yields a nil grade", func(t *testing.T) {
		env := setup(t)

		breakdown, err := env.svc.QuarterGrade(ctx, "student-1", env.subject.ID, 1)
		require.NoError(t, err)
		assert.Nil(t, breakdown.QuarterGrade)
	})

	t.Run("items without a score for the student do not count", func(t *testing.T) {
		env := setup(t)

		scored := env.addItem(t, 1, grading.CategoryActivity, 100)
		env.addItem(t, 1, grading.CategoryActivity, 100) // unscored
		env.score(t, "student-1", scored.ID, 60)

		breakdown, err := env.svc.QuarterGrade(ctx, "student-1", env.subject.ID, 1)
		require.NoError(t, err)
		require.NotNil(t, breakdown.ActivityAvg)
		assert.True(t, breakdown.ActivityAvg.Equal(decimal.NewFromInt(60)), "got %s", breakdown.ActivityAvg)
	})
}

func TestService_StudentSubjectGrades(t *testing.T) {
	ctx := context.Background()

	seedQuarter := func(t *testing.T, env *testEnv, quarter int, pct int64) {
		item := env.addItem(t, quarter, grading.CategoryExam, 100)
		env.score(t, "student-1", item.ID, pct)
	}

	t.Run("final average over defined quarters only", func(t *testing.T) {
		env := setup(t)
		seedQuarter(t, env, 1, 80)
		seedQuarter(t, env, 2, 90)
		// quarters 3 and 4 have no data

		report, err := env.svc.StudentSubjectGrades(ctx, "student-1", env.subject.ID)
		require.NoError(t, err)

		require.Len(t, report.Quarters, 4)
		assert.NotNil(t, report.Quarters["q1"].QuarterGrade)
		assert.Nil(t, report.Quarters["q3"].QuarterGrade)

		require.NotNil(t, report.FinalGrade)
		assert.True(t, report.FinalGrade.Equal(decimal.NewFromInt(85)), "got %s", report.FinalGrade)
		require.NotNil(t, report.Remarks)
		assert.Equal(t, "PASSED", *report.Remarks)
	})

	t.Run("exactly the passing threshold passes", func(t *testing.T) {
		env := setup(t)
		seedQuarter(t, env, 1, 75)

		report, err := env.svc.StudentSubjectGrades(ctx, "student-1", env.subject.ID)
		require.NoError(t, err)
		require.NotNil(t, report.Remarks)
		assert.Equal(t, "PASSED", *report.Remarks)
	})

	t.Run("below the threshold fails", func(t *testing.T) {
		env := setup(t)
		seedQuarter(t, env, 1, 74)

		report, err := env.svc.StudentSubjectGrades(ctx, "student-1", env.subject.ID)
		require.NoError(t, err)
		require.NotNil(t, report.Remarks)
		assert.Equal(t, "FAILED", *report.Remarks)
	})

	t.Run("no quarters yields no final grade or remarks", func(t *testing.T) {
		env := setup(t)

		report, err := env.svc.StudentSubjectGrades(ctx, "student-1", env.subject.ID)
		require.NoError(t, err)
		assert.Nil(t, report.FinalGrade)
		assert.Nil(t, report.Remarks)
	})
}

func TestService_MyGrades(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	item := env.addItem(t, 2, grading.CategoryExam, 100)
	env.score(t, "student-1", item.ID, 88)

	cards, err := env.svc.MyGrades(ctx, "student-1")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	card := cards[0]
	assert.Equal(t, env.subject.ID, card.SubjectID)
	assert.Equal(t, "MATH", card.SubjectCode)
	assert.Nil(t, card.Q1)
	require.NotNil(t, card.Q2)
	assert.True(t, card.Q2.Equal(decimal.NewFromInt(88)))
	require.NotNil(t, card.FinalGrade)
	assert.True(t, card.FinalGrade.Equal(decimal.NewFromInt(88)))
}

func TestService_StudentsByGrade(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	parent := user.User{
		Username: "dcruz",
		Email:    "dcruz@example.com",
		Role:     user.RoleParentStudent,
		Status:   user.StatusActive,
		IsActive: true,
	}
	parent, err := env.usrRepo.CreateUser(ctx, parent)
	require.NoError(t, err)
	_, err = env.usrRepo.SaveStudentProfile(ctx, user.StudentProfile{
		UserID:           parent.ID,
		StudentFirstName: "Juan",
		StudentLastName:  "Dela Cruz",
		GradeLevel:       "grade3",
		StudentNumber:    "2024000001",
	})
	require.NoError(t, err)

	entries, err := env.svc.StudentsByGrade(ctx, "grade3")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, parent.ID, entries[0].ID)
	assert.Equal(t, "grade3", entries[0].GradeLevel)
	assert.Contains(t, entries[0].StudentName, "Juan")

	empty, err := env.svc.StudentsByGrade(ctx, "grade6")
	require.NoError(t, err)
	assert.Empty(t, empty)
}
