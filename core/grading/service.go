package grading

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
)

var (
	// errors
	ErrItemNotFound     = errors.New("grade item not found")
	ErrStandingNotFound = errors.New("class standing not found")
	ErrWeightNotFound   = errors.New("grade weights not found")

	hundred = decimal.NewFromInt(100)
)

type (
	Repository interface {
		GetWeightBySubject(ctx context.Context, subjectID string, exec ...core.DBExecutor) (GradeWeight, error)
		// SaveGradeWeight creates the row when GradeWeight.ID is empty,
		// updates it otherwise.
		SaveGradeWeight(ctx context.Context, w GradeWeight, exec ...core.DBExecutor) (GradeWeight, error)

		CreateGradeItem(ctx context.Context, item GradeItem, exec ...core.DBExecutor) (GradeItem, error)
		// QueryGradeItems orders by quarter, category, order, then id.
		QueryGradeItems(ctx context.Context, filter *ItemFilter, exec ...core.DBExecutor) ([]GradeItem, error)
		GetGradeItem(ctx context.Context, id string, exec ...core.DBExecutor) (GradeItem, error)
		UpdateGradeItem(ctx context.Context, item GradeItem, exec ...core.DBExecutor) (GradeItem, error)
		DeleteGradeItem(ctx context.Context, id string, exec ...core.DBExecutor) error

		// UpsertStudentScore is keyed by (student, grade item).
		UpsertStudentScore(ctx context.Context, score StudentScore, exec ...core.DBExecutor) (StudentScore, error)
		QueryStudentScores(ctx context.Context, filter *ScoreFilter, exec ...core.DBExecutor) ([]StudentScore, error)

		// UpsertClassStanding is keyed by (student, subject, quarter).
		UpsertClassStanding(ctx context.Context, cs ClassStanding, exec ...core.DBExecutor) (ClassStanding, error)
		QueryClassStandings(ctx context.Context, filter *StandingFilter, exec ...core.DBExecutor) ([]ClassStanding, error)
		GetClassStanding(ctx context.Context, studentID, subjectID string, quarter int, exec ...core.DBExecutor) (ClassStanding, error)
	}

	Service interface {
		// GetWeights auto-creates the default 40/20/20/20 row when missing.
		GetWeights(ctx context.Context, subjectID string) (GradeWeight, error)
		UpdateWeights(ctx context.Context, subjectID string, uw UpdateGradeWeight) (GradeWeight, error)

		CreateItem(ctx context.Context, teacherID string, ng NewGradeItem) (GradeItem, error)
		QueryItems(ctx context.Context, filter *ItemFilter) ([]GradeItem, error)
		GetItem(ctx context.Context, id string) (GradeItem, error)
		UpdateItem(ctx context.Context, id string, ng NewGradeItem) (GradeItem, error)
		DeleteItem(ctx context.Context, id string) error

		UpsertScore(ctx context.Context, us UpsertScore) (StudentScore, error)
		QueryScores(ctx context.Context, filter *ScoreFilter) ([]StudentScore, error)

		UpsertClassStanding(ctx context.Context, ucs UpsertClassStanding) (ClassStanding, error)
		QueryClassStandings(ctx context.Context, filter *StandingFilter) ([]ClassStanding, error)

		// QuarterGrade computes the weighted grade of one (student, subject,
		// quarter); components without data are excluded and the weights of
		// the present components are renormalized.
		QuarterGrade(ctx context.Context, studentID, subjectID string, quarter int) (QuarterBreakdown, error)
		// StudentSubjectGrades covers all 4 quarters plus the final average.
		StudentSubjectGrades(ctx context.Context, studentID, subjectID string) (QuarterReport, error)
		// MyGrades is the parent report card across all subjects.
		MyGrades(ctx context.Context, studentID string) ([]SubjectGradeCard, error)

		StudentsByGrade(ctx context.Context, gradeLevel string) ([]StudentEntry, error)
	}

	service struct {
		repo     Repository
		usrRepo  user.Repository
		acadRepo academic.Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, usrRepo user.Repository, acadRepo academic.Repository) Service {
	return &service{
		repo:     repo,
		usrRepo:  usrRepo,
		acadRepo: acadRepo,
	}
}

func (svc *service) GetWeights(ctx context.Context, subjectID string) (GradeWeight, error) {
	if _, err := svc.acadRepo.GetSubject(ctx, subjectID); err != nil {
		return GradeWeight{}, err
	}

	w, err := svc.repo.GetWeightBySubject(ctx, subjectID)
	if err != nil {
		if errors.Cause(err) != ErrWeightNotFound {
			return GradeWeight{}, err
		}
		return svc.repo.SaveGradeWeight(ctx, DefaultWeights(subjectID))
	}
	return w, nil
}

func (svc *service) UpdateWeights(ctx context.Context, subjectID string, uw UpdateGradeWeight) (GradeWeight, error) {
	w, err := svc.GetWeights(ctx, subjectID)
	if err != nil {
		return GradeWeight{}, err
	}

	if uw.ActivityWeight != nil {
		w.ActivityWeight = *uw.ActivityWeight
	}
	if uw.QuizWeight != nil {
		w.QuizWeight = *uw.QuizWeight
	}
	if uw.ExamWeight != nil {
		w.ExamWeight = *uw.ExamWeight
	}
	if uw.ClassStandingWeight != nil {
		w.ClassStandingWeight = *uw.ClassStandingWeight
	}
	return svc.repo.SaveGradeWeight(ctx, w)
}

func (svc *service) CreateItem(ctx context.Context, teacherID string, ng NewGradeItem) (GradeItem, error) {
	if _, err := svc.acadRepo.GetSubject(ctx, ng.SubjectID); err != nil {
		return GradeItem{}, err
	}

	item := GradeItem{
		TeacherID:   teacherID,
		SubjectID:   ng.SubjectID,
		GradeLevel:  ng.GradeLevel,
		Quarter:     ng.Quarter,
		Category:    ng.Category,
		Title:       ng.Title,
		Description: ng.Description,
		DateGiven:   ng.DateGiven,
		DueDate:     ng.DueDate,
		TotalScore:  ng.TotalScore,
		Order:       ng.Order,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateGradeItem(ctx, item)
}

func (svc *service) QueryItems(ctx context.Context, filter *ItemFilter) ([]GradeItem, error) {
	return svc.repo.QueryGradeItems(ctx, filter)
}

func (svc *service) GetItem(ctx context.Context, id string) (GradeItem, error) {
	return svc.repo.GetGradeItem(ctx, id)
}

func (svc *service) UpdateItem(ctx context.Context, id string, ng NewGradeItem) (GradeItem, error) {
	item, err := svc.repo.GetGradeItem(ctx, id)
	if err != nil {
		return GradeItem{}, err
	}

	item.SubjectID = ng.SubjectID
	item.GradeLevel = ng.GradeLevel
	item.Quarter = ng.Quarter
	item.Category = ng.Category
	item.Title = ng.Title
	item.Description = ng.Description
	item.DateGiven = ng.DateGiven
	item.DueDate = ng.DueDate
	item.TotalScore = ng.TotalScore
	item.Order = ng.Order
	return svc.repo.UpdateGradeItem(ctx, item)
}

func (svc *service) DeleteItem(ctx context.Context, id string) error {
	return svc.repo.DeleteGradeItem(ctx, id)
}

func (svc *service) UpsertScore(ctx context.Context, us UpsertScore) (StudentScore, error) {
	if _, err := svc.repo.GetGradeItem(ctx, us.GradeItemID); err != nil {
		return StudentScore{}, err
	}

	now := time.Now().UTC()
	return svc.repo.UpsertStudentScore(ctx, StudentScore{
		StudentID:   us.StudentID,
		GradeItemID: us.GradeItemID,
		Score:       us.Score,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryScores(ctx context.Context, filter *ScoreFilter) ([]StudentScore, error) {
	return svc.repo.QueryStudentScores(ctx, filter)
}

func (svc *service) UpsertClassStanding(ctx context.Context, ucs UpsertClassStanding) (ClassStanding, error) {
	if _, err := svc.acadRepo.GetSubject(ctx, ucs.SubjectID); err != nil {
		return ClassStanding{}, err
	}
	return svc.repo.UpsertClassStanding(ctx, ClassStanding{
		StudentID: ucs.StudentID,
		SubjectID: ucs.SubjectID,
		Quarter:   ucs.Quarter,
		Score:     ucs.Score,
	})
}

func (svc *service) QueryClassStandings(ctx context.Context, filter *StandingFilter) ([]ClassStanding, error) {
	return svc.repo.QueryClassStandings(ctx, filter)
}

func (svc *service) QuarterGrade(ctx context.Context, studentID, subjectID string, quarter int) (QuarterBreakdown, error) {
	weights, err := svc.weightsOrDefaults(ctx, subjectID)
	if err != nil {
		return QuarterBreakdown{}, err
	}

	var breakdown QuarterBreakdown
	if breakdown.ActivityAvg, err = svc.categoryPercentage(ctx, studentID, subjectID, quarter, CategoryActivity); err != nil {
		return QuarterBreakdown{}, err
	}
	if breakdown.QuizAvg, err = svc.categoryPercentage(ctx, studentID, subjectID, quarter, CategoryQuiz); err != nil {
		return QuarterBreakdown{}, err
	}
	if breakdown.ExamAvg, err = svc.categoryPercentage(ctx, studentID, subjectID, quarter, CategoryExam); err != nil {
		return QuarterBreakdown{}, err
	}

	cs, err := svc.repo.GetClassStanding(ctx, studentID, subjectID, quarter)
	if err == nil {
		score := cs.Score.Round(2)
		breakdown.ClassStanding = &score
	} else if errors.Cause(err) != ErrStandingNotFound {
		return QuarterBreakdown{}, err
	}

	// weighted average over the present components only: divide by the sum
	// of their weights, not by the configured total
	type component struct {
		value  *decimal.Decimal
		weight int
	}
	components := []component{
		{breakdown.ActivityAvg, weights.ActivityWeight},
		{breakdown.QuizAvg, weights.QuizWeight},
		{breakdown.ExamAvg, weights.ExamWeight},
		{breakdown.ClassStanding, weights.ClassStandingWeight},
	}

	var weightedSum decimal.Decimal
	var totalWeight int64
	for _, c := range components {
		if c.value == nil {
			continue
		}
		weightedSum = weightedSum.Add(c.value.Mul(decimal.NewFromInt(int64(c.weight))))
		totalWeight += int64(c.weight)
	}
	if totalWeight > 0 {
		grade := weightedSum.Div(decimal.NewFromInt(totalWeight)).Round(2)
		breakdown.QuarterGrade = &grade
	}
	return breakdown, nil
}

func (svc *service) StudentSubjectGrades(ctx context.Context, studentID, subjectID string) (QuarterReport, error) {
	report := QuarterReport{
		StudentID: studentID,
		SubjectID: subjectID,
		Quarters:  make(map[string]QuarterBreakdown, 4),
	}

	var parts []decimal.Decimal
	for q := 1; q <= 4; q++ {
		breakdown, err := svc.QuarterGrade(ctx, studentID, subjectID, q)
		if err != nil {
			return QuarterReport{}, err
		}
		report.Quarters[fmt.Sprintf("q%d", q)] = breakdown
		if breakdown.QuarterGrade != nil {
			parts = append(parts, *breakdown.QuarterGrade)
		}
	}

	report.FinalGrade = finalAverage(parts)
	report.Remarks = passFail(report.FinalGrade)
	return report, nil
}

func (svc *service) MyGrades(ctx context.Context, studentID string) ([]SubjectGradeCard, error) {
	subjects, err := svc.acadRepo.QuerySubjects(ctx)
	if err != nil {
		return nil, err
	}

	cards := make([]SubjectGradeCard, 0, len(subjects))
	for _, subj := range subjects {
		card := SubjectGradeCard{
			SubjectID:   subj.ID,
			SubjectName: subj.Name,
			SubjectCode: subj.Code,
		}

		var parts []decimal.Decimal
		grades := []**decimal.Decimal{&card.Q1, &card.Q2, &card.Q3, &card.Q4}
		for q := 1; q <= 4; q++ {
			breakdown, err := svc.QuarterGrade(ctx, studentID, subj.ID, q)
			if err != nil {
				return nil, err
			}
			*grades[q-1] = breakdown.QuarterGrade
			if breakdown.QuarterGrade != nil {
				parts = append(parts, *breakdown.QuarterGrade)
			}
		}

		card.FinalGrade = finalAverage(parts)
		card.Remarks = passFail(card.FinalGrade)
		cards = append(cards, card)
	}
	return cards, nil
}

func (svc *service) StudentsByGrade(ctx context.Context, gradeLevel string) ([]StudentEntry, error) {
	profiles, err := svc.usrRepo.QueryStudentProfilesByGrade(ctx, gradeLevel)
	if err != nil {
		return nil, err
	}

	entries := make([]StudentEntry, 0, len(profiles))
	for _, prof := range profiles {
		usr, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: prof.UserID})
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				continue
			}
			return nil, err
		}
		if !usr.IsParentStudent() {
			continue
		}
		entries = append(entries, StudentEntry{
			ID:          usr.ID,
			Username:    usr.Username,
			StudentName: prof.StudentName(),
			GradeLevel:  prof.GradeLevel,
		})
	}
	return entries, nil
}

// weightsOrDefaults never creates a row; computation falls back to the
// defaults when the subject is unconfigured.
func (svc *service) weightsOrDefaults(ctx context.Context, subjectID string) (GradeWeight, error) {
	w, err := svc.repo.GetWeightBySubject(ctx, subjectID)
	if err != nil {
		if errors.Cause(err) == ErrWeightNotFound {
			return DefaultWeights(subjectID), nil
		}
		return GradeWeight{}, err
	}
	return w, nil
}

// categoryPercentage returns 100 * sum(earned) / sum(max score), counting
// only items the student has a recorded score for. Nil when the category has
// no items or the student has no scores in it.
func (svc *service) categoryPercentage(ctx context.Context, studentID, subjectID string, quarter int, category string) (*decimal.Decimal, error) {
	items, err := svc.repo.QueryGradeItems(ctx, &ItemFilter{
		SubjectID: subjectID,
		Quarter:   quarter,
		Category:  category,
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	itemsByID := make(map[string]GradeItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	scores, err := svc.repo.QueryStudentScores(ctx, &ScoreFilter{
		StudentID: studentID,
		SubjectID: subjectID,
		Quarter:   quarter,
	})
	if err != nil {
		return nil, err
	}

	var earned, possible decimal.Decimal
	var any bool
	for _, score := range scores {
		item, ok := itemsByID[score.GradeItemID]
		if !ok {
			continue
		}
		earned = earned.Add(score.Score)
		possible = possible.Add(decimal.NewFromInt(int64(item.TotalScore)))
		any = true
	}
	if !any {
		return nil, nil
	}

	var pct decimal.Decimal
	if !possible.IsZero() {
		pct = earned.Div(possible).Mul(hundred).Round(2)
	}
	return &pct, nil
}

func finalAverage(parts []decimal.Decimal) *decimal.Decimal {
	if len(parts) == 0 {
		return nil
	}
	var sum decimal.Decimal
	for _, p := range parts {
		sum = sum.Add(p)
	}
	avg := sum.Div(decimal.NewFromInt(int64(len(parts)))).Round(2)
	return &avg
}

func passFail(final *decimal.Decimal) *string {
	if final == nil {
		return nil
	}
	remarks := "FAILED"
	if final.GreaterThanOrEqual(PassingGrade) {
		remarks = "PASSED"
	}
	return &remarks
}
