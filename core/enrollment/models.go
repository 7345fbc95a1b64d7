package enrollment

import (
	"strings"
	"time"

	"github.com/cesiedu/campus/core"
)

// Statuses; PENDING -> ACTIVE -> {COMPLETED, DROPPED}, PENDING -> {COMPLETED,
// DROPPED} directly. COMPLETED and DROPPED are terminal.
const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusCompleted = "COMPLETED"
	StatusDropped   = "DROPPED"
)

// Payment modes
const (
	PaymentCash        = "cash"
	PaymentInstallment = "installment"
)

// Student types
const (
	StudentTypeNew = "new" // new / transferee
	StudentTypeOld = "old" // promotion of an existing student
)

// Audit notes appended to Enrollment.Remarks.
const (
	RemarkApproved  = "APPROVED BY ADMIN"
	RemarkCompleted = "COMPLETED BY ADMIN"
	RemarkDeclined  = "DECLINED BY ADMIN"
	RemarkDuplicate = "POSSIBLE DUPLICATE ENROLLMENT"
)

// Enrollment is one application record; student identity fields are duplicated
// from the intake form, independent of any account that may be linked later.
type Enrollment struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`               // submitting account; the public sentinel for anonymous intake
	ParentUserID string `json:"parent_user_id,omitempty"` // linked on approval
	SectionID    string `json:"section_id,omitempty"`

	// academic
	GradeLevel     string `json:"grade_level"`
	Status         string `json:"status"`
	AcademicYear   string `json:"academic_year"`
	StudentType    string `json:"student_type"`
	EducationLevel string `json:"education_level"`

	// student info
	LRN           string    `json:"lrn"`
	StudentNumber string    `json:"student_number"` // unique once assigned, format {year}{6-digit-seq}
	LastName      string    `json:"last_name"`
	FirstName     string    `json:"first_name"`
	MiddleName    string    `json:"middle_name"`
	BirthDate     core.Date `json:"birth_date"`
	Gender        string    `json:"gender"`

	// contact info
	Email           string `json:"email"`
	Address         string `json:"address"`
	Religion        string `json:"religion"`
	TelephoneNumber string `json:"telephone_number"`
	MobileNumber    string `json:"mobile_number"`
	ParentFacebook  string `json:"parent_facebook"`

	// payment / tracking
	PaymentMode string     `json:"payment_mode"`
	EnrolledAt  time.Time  `json:"enrolled_at"` // UTC
	CompletedAt *time.Time `json:"completed_at"`
	Remarks     string     `json:"remarks"` // append-only audit trail

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC

	ParentInfo *ParentInfo `json:"parent_info"`
}

func (e Enrollment) StudentName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

func (e Enrollment) IsPromotion() bool {
	return strings.ToLower(strings.TrimSpace(e.StudentType)) == StudentTypeOld
}

// AppendRemark appends note to the audit trail.
func (e *Enrollment) AppendRemark(note string) {
	e.Remarks = strings.Trim(strings.TrimSpace(e.Remarks)+" | "+note, " |")
}

// AppendRemarkOnce appends note only if it is not already present.
func (e *Enrollment) AppendRemarkOnce(note string) {
	e.Remarks = strings.TrimSpace(e.Remarks)
	if !strings.Contains(e.Remarks, note) {
		e.AppendRemark(note)
	}
}

// ParentInfo is an optional 1:1 extension of an Enrollment.
type ParentInfo struct {
	ID           string `json:"-"`
	EnrollmentID string `json:"-"`

	FatherName       string `json:"father_name"`
	FatherContact    string `json:"father_contact"`
	FatherOccupation string `json:"father_occupation"`

	MotherName       string `json:"mother_name"`
	MotherContact    string `json:"mother_contact"`
	MotherOccupation string `json:"mother_occupation"`

	GuardianName         string `json:"guardian_name"`
	GuardianContact      string `json:"guardian_contact"`
	GuardianRelationship string `json:"guardian_relationship"`
}

// GuardianFullName picks the best available parent/guardian name.
func (pi ParentInfo) GuardianFullName() string {
	for _, name := range []string{pi.GuardianName, pi.MotherName, pi.FatherName} {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	return ""
}

// NewEnrollment is the public intake payload; also accepted on admin updates.
type NewEnrollment struct {
	FirstName      string    `json:"first_name" validate:"required"`
	MiddleName     string    `json:"middle_name"`
	LastName       string    `json:"last_name" validate:"required"`
	BirthDate      core.Date `json:"birth_date"`
	Gender         string    `json:"gender"`
	EducationLevel string    `json:"education_level" validate:"required,oneof=preschool elementary"`
	GradeLevel     string    `json:"grade_level" validate:"required,gradecode"`
	StudentType    string    `json:"student_type" validate:"required,oneof=new old"`
	PaymentMode    string    `json:"payment_mode" validate:"required,oneof=cash installment"`
	AcademicYear   string    `json:"academic_year"`
	SectionID      string    `json:"section_id"`
	LRN            string    `json:"lrn"`

	Email           string `json:"email" validate:"omitempty,email"`
	Address         string `json:"address"`
	Religion        string `json:"religion"`
	TelephoneNumber string `json:"telephone_number"`
	MobileNumber    string `json:"mobile_number"`
	ParentFacebook  string `json:"parent_facebook"`

	Remarks    string         `json:"remarks"`
	ParentInfo *NewParentInfo `json:"parent_info"`

	// honeypot; any non-empty value rejects the submission
	Website string `json:"website"`
}

type NewParentInfo struct {
	FatherName       string `json:"father_name"`
	FatherContact    string `json:"father_contact"`
	FatherOccupation string `json:"father_occupation"`

	MotherName       string `json:"mother_name"`
	MotherContact    string `json:"mother_contact"`
	MotherOccupation string `json:"mother_occupation"`

	GuardianName         string `json:"guardian_name"`
	GuardianContact      string `json:"guardian_contact"`
	GuardianRelationship string `json:"guardian_relationship"`
}

func (ne *NewEnrollment) Validate() error {
	ne.FirstName = core.CleanString(ne.FirstName)
	ne.LastName = core.CleanString(ne.LastName)
	ne.MiddleName = core.CleanString(ne.MiddleName)
	ne.Email = core.CleanString(ne.Email, true /* lower */)
	ne.EducationLevel = core.CleanString(ne.EducationLevel, true /* lower */)
	ne.GradeLevel = core.CleanString(ne.GradeLevel, true /* lower */)
	ne.StudentType = core.CleanString(ne.StudentType, true /* lower */)
	ne.PaymentMode = core.CleanString(ne.PaymentMode, true /* lower */)
	if ne.AcademicYear == "" {
		ne.AcademicYear = core.Conf.AcademicYear
	}
	if ne.MobileNumber != "" {
		if normalized, ok := NormalizePHMobile(ne.MobileNumber); ok {
			ne.MobileNumber = normalized
		}
	}
	return core.Validate.Struct(ne)
}

// QueryFilter narrows the admin enrollment list; fields are ANDed.
type QueryFilter struct {
	StudentID    string `query:"student_id"`
	SectionID    string `query:"section_id"`
	GradeLevel   string `query:"grade_level"`
	Status       string `query:"status"`
	AcademicYear string `query:"academic_year"`
}

func (qf *QueryFilter) Clean() {
	qf.GradeLevel = core.CleanString(qf.GradeLevel, true /* lower */)
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}

// Stats is the admin dashboard rollup.
type Stats struct {
	Total     int            `json:"total_enrollments"`
	Active    int            `json:"active_enrollments"`
	Completed int            `json:"completed_enrollments"`
	Dropped   int            `json:"dropped_enrollments"`
	Pending   int            `json:"pending_enrollments"`
	ByGrade   map[string]int `json:"by_grade"` // keyed by grade label
}
