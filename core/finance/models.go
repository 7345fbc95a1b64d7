package finance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cesiedu/campus/core"
)

func init() {
	// amounts serialize as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction types
const (
	TypeTuition      = "TUITION"
	TypeMisc         = "MISC"
	TypeRegistration = "REGISTRATION"
	TypeBooks        = "BOOKS"
	TypeUniform      = "UNIFORM"
	TypeOther        = "OTHER"
)

// Statuses
const (
	StatusPaid    = "PAID"
	StatusPending = "PENDING"
	StatusOverdue = "OVERDUE"
)

// Payment methods
const (
	MethodCash         = "CASH"
	MethodBankTransfer = "BANK_TRANSFER"
	MethodGCash        = "GCASH"
	MethodPayMaya      = "PAYMAYA"
	MethodCheck        = "CHECK"
	MethodOther        = "OTHER"
)

// ReferencePrefix is the school-side prefix of generated reference numbers,
// format {prefix}-{year}-{seq:05d}.
const ReferencePrefix = "CESI"

// Transaction is one ledger row belonging to a parent account.
type Transaction struct {
	ID              string          `json:"id"`
	ParentID        string          `json:"parent"`
	ParentUsername  string          `json:"parent_username"` // joined, read-only
	StudentName     string          `json:"student_name"`
	Type            string          `json:"transaction_type"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	PaymentMethod   string          `json:"payment_method"`
	ReferenceNumber string          `json:"reference_number"`
	DueDate         core.Date       `json:"due_date"`
	DateCreated     time.Time       `json:"date_created"` // UTC
	Status          string          `json:"status"`
}

// NewTransaction is the admin create/update payload.
type NewTransaction struct {
	ParentID      string          `json:"parent" validate:"required"`
	StudentName   string          `json:"student_name"`
	Type          string          `json:"transaction_type" validate:"required,oneof=TUITION MISC REGISTRATION BOOKS UNIFORM OTHER"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method" validate:"omitempty,oneof=CASH BANK_TRANSFER GCASH PAYMAYA CHECK OTHER"`
	DueDate       core.Date       `json:"due_date"`
	Status        string          `json:"status" validate:"omitempty,oneof=PAID PENDING OVERDUE"`
}

func (nt *NewTransaction) Validate() error {
	nt.StudentName = core.CleanString(nt.StudentName)
	nt.Type = strings.ToUpper(core.CleanString(nt.Type))
	nt.PaymentMethod = strings.ToUpper(core.CleanString(nt.PaymentMethod))
	nt.Status = strings.ToUpper(core.CleanString(nt.Status))
	if nt.PaymentMethod == "" {
		nt.PaymentMethod = MethodCash
	}
	if nt.Status == "" {
		nt.Status = StatusPending
	}

	if err := core.Validate.Struct(nt); err != nil {
		return err
	}
	if !nt.Amount.IsPositive() {
		return core.NewFieldError("amount", "amount must be greater than zero")
	}
	return nil
}

// QueryFilter narrows the admin transaction list; fields are ANDed.
// Search matches student name, reference number or parent username.
type QueryFilter struct {
	Search string `query:"search"`
	Status string `query:"status"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
	switch qf.Status {
	case StatusPaid, StatusPending, StatusOverdue:
	default:
		qf.Status = ""
	}
}

// Stats is the admin financial summary; pending includes OVERDUE.
type Stats struct {
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
	Collected    decimal.Decimal `json:"collected"`
	Pending      decimal.Decimal `json:"pending"`
}

// ParentOption feeds the admin parent search dropdown.
type ParentOption struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	StudentName string `json:"student_name"`
	ParentName  string `json:"parent_name"`
}

// ParentStudent describes a student enrolled under a parent account.
type ParentStudent struct {
	StudentName   string `json:"student_name"`
	GradeLevel    string `json:"grade_level"`
	Section       string `json:"section"`
	ParentName    string `json:"parent_name"`
	ContactNumber string `json:"contact_number"`
}
