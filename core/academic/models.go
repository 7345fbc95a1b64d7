package academic

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cesiedu/campus/core"
)

// Grade level codes, shared by profiles, enrollments and grading.
const (
	GradePreK   = "prek"
	GradeKinder = "kinder"
	Grade1      = "grade1"
	Grade2      = "grade2"
	Grade3      = "grade3"
	Grade4      = "grade4"
	Grade5      = "grade5"
	Grade6      = "grade6"
)

// Education levels.
const (
	LevelPreschool  = "preschool"
	LevelElementary = "elementary"
)

var (
	GradeCodes = []string{GradePreK, GradeKinder, Grade1, Grade2, Grade3, Grade4, Grade5, Grade6}

	GradeLabels = map[string]string{
		GradePreK:   "Pre-Kinder",
		GradeKinder: "Kinder",
		Grade1:      "Grade 1",
		Grade2:      "Grade 2",
		Grade3:      "Grade 3",
		Grade4:      "Grade 4",
		Grade5:      "Grade 5",
		Grade6:      "Grade 6",
	}

	PreschoolGrades  = []string{GradePreK, GradeKinder}
	ElementaryGrades = []string{Grade1, Grade2, Grade3, Grade4, Grade5, Grade6}

	// numeric levels: -1=Pre-Kinder, 0=Kinder, 1-6=Grade 1-6
	gradeNums = map[string]int{
		GradePreK:   -1,
		GradeKinder: 0,
		Grade1:      1,
		Grade2:      2,
		Grade3:      3,
		Grade4:      4,
		Grade5:      5,
		Grade6:      6,
	}
)

func ValidGradeCode(code string) bool {
	_, ok := GradeLabels[code]
	return ok
}

func GradeNum(code string) int {
	return gradeNums[code]
}

// GradeMatchesLevel reports whether a grade code belongs to an education level.
func GradeMatchesLevel(level, code string) bool {
	switch level {
	case LevelPreschool:
		return code == GradePreK || code == GradeKinder
	case LevelElementary:
		return ValidGradeCode(code) && code != GradePreK && code != GradeKinder
	}
	return false
}

type Subject struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC

	// teachers currently assigned to this subject (read-only)
	Teachers []SubjectTeacher `json:"teachers"`
}

// SubjectTeacher is the lightweight teacher info nested inside a subject.
type SubjectTeacher struct {
	UserID     string `json:"id"`
	Username   string `json:"username"`
	EmployeeID string `json:"employee_id"`
}

type Section struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	GradeLevel int    `json:"grade_level"`
	AdviserID  string `json:"adviser_id,omitempty"` // at most one section per adviser
}

// TeacherProfile links a teacher account to its assignment: one subject per
// teacher at a time, optionally one section.
type TeacherProfile struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	SubjectID  string `json:"subject_id"`
	SectionID  string `json:"section_id"`
	EmployeeID string `json:"employee_id"`
}

type NewSubject struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required"`

	// optional teacher user to (re)assign on create/update
	AssignedTeacher string `json:"assigned_teacher"`
}

func (ns *NewSubject) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code)
	return core.Validate.Struct(ns)
}

type NewSection struct {
	Name       string `json:"name" validate:"required"`
	GradeLevel int    `json:"grade_level" validate:"min=-1,max=6"`
}

func (ns *NewSection) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	return core.Validate.Struct(ns)
}

// TeacherAssignment updates a teacher's subject / section / employee id.
// Nil pointers leave the current value untouched; empty strings unassign.
type TeacherAssignment struct {
	SubjectID  *string `json:"subject"`
	SectionID  *string `json:"section"`
	EmployeeID *string `json:"employee_id"`
}

const gradeCodeTag = "gradecode"

func init() {
	// grade codes are validated wherever profiles or enrollments carry one
	_ = core.Validate.RegisterValidation(gradeCodeTag, func(fl validator.FieldLevel) bool {
		return ValidGradeCode(fl.Field().String())
	})
	core.RegisterCustomTranslation(gradeCodeTag, "invalid grade level")
}
