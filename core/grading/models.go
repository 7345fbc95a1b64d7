package grading

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cesiedu/campus/core"
)

// Categories
const (
	CategoryActivity = "ACTIVITY"
	CategoryQuiz     = "QUIZ"
	CategoryExam     = "EXAM"
)

// Default weights used when a subject has no GradeWeight row yet.
const (
	DefaultActivityWeight      = 40
	DefaultQuizWeight          = 20
	DefaultExamWeight          = 20
	DefaultClassStandingWeight = 20
)

// PassingGrade is the final-grade pass/fail threshold.
var PassingGrade = decimal.NewFromInt(75)

// GradeWeight is the per-subject category weight configuration, shared across
// grade levels. The four weights need not sum to 100.
type GradeWeight struct {
	ID                  string `json:"id"`
	SubjectID           string `json:"subject"`
	ActivityWeight      int    `json:"activity_weight"`
	QuizWeight          int    `json:"quiz_weight"`
	ExamWeight          int    `json:"exam_weight"`
	ClassStandingWeight int    `json:"class_standing_weight"`
}

func DefaultWeights(subjectID string) GradeWeight {
	return GradeWeight{
		SubjectID:           subjectID,
		ActivityWeight:      DefaultActivityWeight,
		QuizWeight:          DefaultQuizWeight,
		ExamWeight:          DefaultExamWeight,
		ClassStandingWeight: DefaultClassStandingWeight,
	}
}

// UpdateGradeWeight is a partial update; nil fields keep their current value.
type UpdateGradeWeight struct {
	ActivityWeight      *int `json:"activity_weight" validate:"omitempty,min=0,max=100"`
	QuizWeight          *int `json:"quiz_weight" validate:"omitempty,min=0,max=100"`
	ExamWeight          *int `json:"exam_weight" validate:"omitempty,min=0,max=100"`
	ClassStandingWeight *int `json:"class_standing_weight" validate:"omitempty,min=0,max=100"`
}

func (uw UpdateGradeWeight) Validate() error { return core.Validate.Struct(uw) }

// GradeItem is a single gradeable unit created by a teacher; any number per
// quarter and category.
type GradeItem struct {
	ID          string    `json:"id"`
	TeacherID   string    `json:"teacher"`
	SubjectID   string    `json:"subject"`
	GradeLevel  int       `json:"grade_level"` // -1=Pre-Kinder, 0=Kinder, 1-6=Grade 1-6
	Quarter     int       `json:"quarter"`
	Category    string    `json:"category"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DateGiven   core.Date `json:"date_given"`
	DueDate     core.Date `json:"due_date"`
	TotalScore  int       `json:"total_score"`
	Order       int       `json:"order"` // display order within category
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewGradeItem struct {
	SubjectID   string    `json:"subject" validate:"required"`
	GradeLevel  int       `json:"grade_level" validate:"min=-1,max=6"`
	Quarter     int       `json:"quarter" validate:"min=1,max=4"`
	Category    string    `json:"category" validate:"required,oneof=ACTIVITY QUIZ EXAM"`
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	DateGiven   core.Date `json:"date_given"`
	DueDate     core.Date `json:"due_date"`
	TotalScore  int       `json:"total_score" validate:"min=1"`
	Order       int       `json:"order"`
}

func (ng *NewGradeItem) Validate() error {
	ng.Category = strings.ToUpper(core.CleanString(ng.Category))
	ng.Title = core.CleanString(ng.Title)
	if ng.TotalScore == 0 {
		ng.TotalScore = 100
	}
	return core.Validate.Struct(ng)
}

// StudentScore is the score a student received for a GradeItem; unique per
// (student, grade item).
type StudentScore struct {
	ID          string          `json:"id"`
	StudentID   string          `json:"student"`
	GradeItemID string          `json:"grade_item"`
	Score       decimal.Decimal `json:"score"`
	CreatedAt   time.Time       `json:"created_at"` // UTC
	UpdatedAt   time.Time       `json:"updated_at"` // UTC
}

type UpsertScore struct {
	StudentID   string          `json:"student" validate:"required"`
	GradeItemID string          `json:"grade_item" validate:"required"`
	Score       decimal.Decimal `json:"score"`
}

func (us UpsertScore) Validate() error {
	if err := core.Validate.Struct(us); err != nil {
		return err
	}
	if us.Score.IsNegative() {
		return core.NewFieldError("score", "score cannot be negative")
	}
	return nil
}

// ClassStanding is the single holistic score per (student, subject, quarter),
// out of 100.
type ClassStanding struct {
	ID        string          `json:"id"`
	StudentID string          `json:"student"`
	SubjectID string          `json:"subject"`
	Quarter   int             `json:"quarter"`
	Score     decimal.Decimal `json:"score"`
}

type UpsertClassStanding struct {
	StudentID string          `json:"student" validate:"required"`
	SubjectID string          `json:"subject" validate:"required"`
	Quarter   int             `json:"quarter" validate:"min=1,max=4"`
	Score     decimal.Decimal `json:"score"`
}

func (ucs UpsertClassStanding) Validate() error {
	if err := core.Validate.Struct(ucs); err != nil {
		return err
	}
	if ucs.Score.IsNegative() {
		return core.NewFieldError("score", "score cannot be negative")
	}
	return nil
}

// ItemFilter narrows grade item listings; fields are ANDed. GradeLevel is a
// pointer because 0 (Kinder) is a valid value.
type ItemFilter struct {
	SubjectID  string `query:"subject"`
	GradeLevel *int   `query:"grade_level"`
	Quarter    int    `query:"quarter"`
	Category   string `query:"category"`
}

func (f *ItemFilter) Clean() {
	f.Category = strings.ToUpper(core.CleanString(f.Category))
}

// ScoreFilter narrows score listings; subject/grade level/quarter filter via
// the score's grade item.
type ScoreFilter struct {
	GradeItemID string `query:"grade_item"`
	StudentID   string `query:"student"`
	SubjectID   string `query:"subject"`
	GradeLevel  *int   `query:"grade_level"`
	Quarter     int    `query:"quarter"`
}

type StandingFilter struct {
	SubjectID string `query:"subject"`
	Quarter   int    `query:"quarter"`
	StudentID string `query:"student"`
}

// QuarterBreakdown is the computed view of one (student, subject, quarter);
// nil means the component has no data and was excluded from the weighting.
type QuarterBreakdown struct {
	ActivityAvg   *decimal.Decimal `json:"activity_avg"`
	QuizAvg       *decimal.Decimal `json:"quiz_avg"`
	ExamAvg       *decimal.Decimal `json:"exam_avg"`
	ClassStanding *decimal.Decimal `json:"class_standing"`
	QuarterGrade  *decimal.Decimal `json:"quarter_grade"`
}

// QuarterReport covers all four quarters plus the final average for one
// (student, subject).
type QuarterReport struct {
	StudentID  string                      `json:"student_id"`
	SubjectID  string                      `json:"subject_id"`
	Quarters   map[string]QuarterBreakdown `json:"quarters"` // keyed q1..q4
	FinalGrade *decimal.Decimal            `json:"final_grade"`
	Remarks    *string                     `json:"remarks"` // PASSED / FAILED
}

// SubjectGradeCard is one row of the parent's report card rollup.
type SubjectGradeCard struct {
	SubjectID   string           `json:"subject_id"`
	SubjectName string           `json:"subject_name"`
	SubjectCode string           `json:"subject_code"`
	Q1          *decimal.Decimal `json:"q1"`
	Q2          *decimal.Decimal `json:"q2"`
	Q3          *decimal.Decimal `json:"q3"`
	Q4          *decimal.Decimal `json:"q4"`
	FinalGrade  *decimal.Decimal `json:"final_grade"`
	Remarks     *string          `json:"remarks"`
}

// StudentEntry is one row of the teacher's students-by-grade listing.
type StudentEntry struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	StudentName string `json:"student_name"`
	GradeLevel  string `json:"grade_level"`
}
