package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
)

// Roles
const (
	RoleAdmin         = "ADMIN"
	RoleTeacher       = "TEACHER"
	RoleParentStudent = "PARENT_STUDENT"
	RolePublic        = "PUBLIC"
)

// Statuses
const (
	StatusActive    = "ACTIVE"
	StatusInactive  = "INACTIVE"
	StatusSuspended = "SUSPENDED"
)

// PublicUsername is the sentinel account anonymous enrollment submissions are
// attached to. It is provisioned explicitly (migration + `admin initpublic`),
// never materialized lazily.
const PublicUsername = "public_user"

var (
	AllRoles    = []string{RoleAdmin, RoleTeacher, RoleParentStudent, RolePublic}
	AllStatuses = []string{StatusActive, StatusInactive, StatusSuspended}
)

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	IsActive     bool      `json:"is_active"`
	IsStaff      bool      `json:"is_staff"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

// SetUnusablePassword marks the account as having no password; CheckPassword
// always fails until a real one is set (auto-provisioned parent accounts).
func (u *User) SetUnusablePassword() {
	u.PasswordHash = nil
}

func (u *User) HasUsablePassword() bool {
	return len(u.PasswordHash) > 0
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool         { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool       { return u.Role == RoleTeacher }
func (u *User) IsParentStudent() bool { return u.Role == RoleParentStudent }

// StudentProfile is the parent/student profile; exists only for
// role=PARENT_STUDENT. The account belongs to the parent, the student fields
// describe the enrolled child.
type StudentProfile struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	StudentFirstName  string `json:"student_first_name"`
	StudentMiddleName string `json:"student_middle_name"`
	StudentLastName   string `json:"student_last_name"`
	GradeLevel        string `json:"grade_level"`
	LRN               string `json:"lrn"`
	StudentNumber     string `json:"student_number"`
	PaymentMode       string `json:"payment_mode"`
	SectionID         string `json:"section_id"`

	ParentFirstName  string `json:"parent_first_name"`
	ParentMiddleName string `json:"parent_middle_name"`
	ParentLastName   string `json:"parent_last_name"`
	ContactNumber    string `json:"contact_number"`
	Address          string `json:"address"`
}

func (p StudentProfile) StudentName() string {
	return strings.TrimSpace(p.StudentFirstName + " " + p.StudentLastName)
}

func (p StudentProfile) ParentName() string {
	return strings.TrimSpace(p.ParentFirstName + " " + p.ParentLastName)
}

// Detail is the full representation returned by `me/detail` and the admin
// user list: the account plus whichever profile its role owns (explicit
// nulls, never auto-created on read).
type Detail struct {
	User
	Profile        *StudentProfile          `json:"profile"`
	TeacherProfile *academic.TeacherProfile `json:"teacher_profile"`
}

// NewUser contains information needed by the admin create-user endpoint.
// Profile fields are required only for their respective roles.
type NewUser struct {
	Username string `json:"username" validate:"required,min=3,alphanum_"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=ADMIN TEACHER PARENT_STUDENT"`
	Status   string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`

	// PARENT_STUDENT profile
	StudentFirstName  string `json:"student_first_name" validate:"required_if=Role PARENT_STUDENT"`
	StudentMiddleName string `json:"student_middle_name"`
	StudentLastName   string `json:"student_last_name" validate:"required_if=Role PARENT_STUDENT"`
	GradeLevel        string `json:"grade_level" validate:"required_if=Role PARENT_STUDENT,omitempty,gradecode"`
	SectionID         string `json:"section_id"`
	ParentFirstName   string `json:"parent_first_name"`
	ParentMiddleName  string `json:"parent_middle_name"`
	ParentLastName    string `json:"parent_last_name"`
	ContactNumber     string `json:"contact_number"`
	Address           string `json:"address"`

	// TEACHER profile
	EmployeeID string `json:"employee_id"`
}

func (nu *NewUser) Validate(svc Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	if nu.Status == "" {
		nu.Status = StatusActive
	}

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Username string `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email    string `json:"email" validate:"omitempty,email"`
	Role     string `json:"role" validate:"omitempty,oneof=ADMIN TEACHER PARENT_STUDENT"`
	Status   string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`
	IsActive *bool  `json:"is_active"`
	Password string `json:"password" validate:"omitempty"`
}

func (uu *UpdateUser) Validate(origUsr User, svc Service) error {
	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(uu.Username, uu.Email, origUsr)
}

// SetUserPassword is the body of the public set-password/{uid}/{token}
// endpoint; the uid and token come from the URL.
type SetUserPassword struct {
	UID             string `json:"-"`
	Token           string `json:"-"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password2" validate:"required,eqfield=Password"`
}

func (sp SetUserPassword) Validate() error { return core.Validate.Struct(sp) }

type QueryFilter struct {
	Search string `query:"search"`
	Role   string `query:"role"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Role == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.Role = strings.ToUpper(qf.Role)
}

// GetFilter selects a single user; the first non-empty field wins.
type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}
