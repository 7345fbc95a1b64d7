package finance

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("transaction not found")
	ErrParentNotFound = errors.New("parent not found")
	ErrNotParent      = errors.New("selected user is not a Parent/Student account")

	parentOptionsLimit = 50
)

type (
	Repository interface {
		CreateTransaction(ctx context.Context, tx Transaction, exec ...core.DBExecutor) (Transaction, error)
		// QueryTransactions applies the filter; results are ordered by
		// DateCreated descending.
		QueryTransactions(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Transaction, error)
		QueryTransactionsByParent(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]Transaction, error)
		GetTransaction(ctx context.Context, id string, exec ...core.DBExecutor) (Transaction, error)
		UpdateTransaction(ctx context.Context, tx Transaction, exec ...core.DBExecutor) (Transaction, error)
		DeleteTransaction(ctx context.Context, id string, exec ...core.DBExecutor) error

		// NextReferenceNumber atomically bumps the per-year counter and
		// returns {ReferencePrefix}-{year}-{seq:05d}.
		NextReferenceNumber(ctx context.Context, year int, exec ...core.DBExecutor) (string, error)

		GetStats(ctx context.Context, exec ...core.DBExecutor) (Stats, error)
	}

	Service interface {
		Create(ctx context.Context, nt NewTransaction) (Transaction, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Transaction, error)
		Get(ctx context.Context, id string) (Transaction, error)
		Update(ctx context.Context, id string, nt NewTransaction) (Transaction, error)
		Delete(ctx context.Context, id string) error
		Statistics(ctx context.Context) (Stats, error)

		// MyTransactions is the parent-scoped ledger view.
		MyTransactions(ctx context.Context, parentID string) ([]Transaction, error)

		ParentOptions(ctx context.Context, search string) ([]ParentOption, error)
		ParentStudents(ctx context.Context, parentID string) ([]ParentStudent, error)
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

func (svc *service) Create(ctx context.Context, nt NewTransaction) (Transaction, error) {
	parent, err := svc.getParent(ctx, nt.ParentID)
	if err != nil {
		return Transaction{}, err
	}

	studentName, err := svc.studentName(ctx, parent, nt.StudentName)
	if err != nil {
		return Transaction{}, err
	}

	reference, err := svc.repo.NextReferenceNumber(ctx, time.Now().UTC().Year())
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ParentID:        parent.ID,
		StudentName:     studentName,
		Type:            nt.Type,
		Amount:          nt.Amount,
		Description:     nt.Description,
		PaymentMethod:   nt.PaymentMethod,
		ReferenceNumber: reference,
		DueDate:         nt.DueDate,
		DateCreated:     time.Now().UTC(),
		Status:          nt.Status,
	}
	return svc.repo.CreateTransaction(ctx, tx)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Transaction, error) {
	return svc.repo.QueryTransactions(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (Transaction, error) {
	return svc.repo.GetTransaction(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, nt NewTransaction) (Transaction, error) {
	tx, err := svc.repo.GetTransaction(ctx, id)
	if err != nil {
		return Transaction{}, err
	}
	parent, err := svc.getParent(ctx, nt.ParentID)
	if err != nil {
		return Transaction{}, err
	}
	studentName, err := svc.studentName(ctx, parent, nt.StudentName)
	if err != nil {
		return Transaction{}, err
	}

	tx.ParentID = parent.ID
	tx.StudentName = studentName
	tx.Type = nt.Type
	tx.Amount = nt.Amount
	tx.Description = nt.Description
	tx.PaymentMethod = nt.PaymentMethod
	tx.DueDate = nt.DueDate
	tx.Status = nt.Status
	return svc.repo.UpdateTransaction(ctx, tx)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTransaction(ctx, id)
}

func (svc *service) Statistics(ctx context.Context) (Stats, error) {
	return svc.repo.GetStats(ctx)
}

func (svc *service) MyTransactions(ctx context.Context, parentID string) ([]Transaction, error) {
	return svc.repo.QueryTransactionsByParent(ctx, parentID)
}

func (svc *service) ParentOptions(ctx context.Context, search string) ([]ParentOption, error) {
	users, err := svc.usrRepo.QueryUsers(ctx, &user.QueryFilter{
		Search: core.CleanString(search),
		Role:   user.RoleParentStudent,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(users) > parentOptionsLimit {
		users = users[:parentOptionsLimit]
	}

	options := make([]ParentOption, 0, len(users))
	for _, usr := range users {
		opt := ParentOption{ID: usr.ID, Username: usr.Username, Email: usr.Email}
		prof, err := svc.usrRepo.GetStudentProfileByUser(ctx, usr.ID)
		if err == nil {
			opt.StudentName = prof.StudentName()
			opt.ParentName = prof.ParentName()
		} else if errors.Cause(err) != user.ErrNotFound {
			return nil, err
		}
		options = append(options, opt)
	}
	return options, nil
}

func (svc *service) ParentStudents(ctx context.Context, parentID string) ([]ParentStudent, error) {
	parent, err := svc.getParentUser(ctx, parentID)
	if err != nil {
		return nil, err
	}

	prof, err := svc.usrRepo.GetStudentProfileByUser(ctx, parent.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return []ParentStudent{}, nil
		}
		return nil, err
	}

	sectionName := "—"
	if prof.SectionID != "" {
		if sec, err := svc.acadRepo.GetSection(ctx, prof.SectionID); err == nil {
			sectionName = sec.Name
		}
	}

	name := strings.Join(strings.Fields(
		prof.StudentFirstName+" "+prof.StudentMiddleName+" "+prof.StudentLastName), " ")
	return []ParentStudent{{
		StudentName:   name,
		GradeLevel:    prof.GradeLevel,
		Section:       sectionName,
		ParentName:    prof.ParentName(),
		ContactNumber: prof.ContactNumber,
	}}, nil
}

// getParent resolves and role-checks the payer for create/update payloads,
// reporting failures as field errors.
func (svc *service) getParent(ctx context.Context, parentID string) (user.User, error) {
	parent, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: parentID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, core.NewValidationError(ErrParentNotFound,
				core.FieldError{Field: "parent", Error: ErrParentNotFound.Error()})
		}
		return user.User{}, err
	}
	if !parent.IsParentStudent() {
		return user.User{}, core.NewValidationError(ErrNotParent,
			core.FieldError{Field: "parent", Error: ErrNotParent.Error()})
	}
	return parent, nil
}

// getParentUser resolves a parent for read endpoints; a role mismatch is a
// plain not-found.
func (svc *service) getParentUser(ctx context.Context, parentID string) (user.User, error) {
	parent, err := svc.usrRepo.GetUser(ctx, user.GetFilter{ID: parentID})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, ErrParentNotFound
		}
		return user.User{}, err
	}
	if !parent.IsParentStudent() {
		return user.User{}, ErrParentNotFound
	}
	return parent, nil
}

// studentName falls back to the parent's profile, then their username.
func (svc *service) studentName(ctx context.Context, parent user.User, provided string) (string, error) {
	if provided != "" {
		return provided, nil
	}
	prof, err := svc.usrRepo.GetStudentProfileByUser(ctx, parent.ID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return parent.Username, nil
		}
		return "", err
	}
	if name := prof.StudentName(); name != "" {
		return name, nil
	}
	return parent.Username, nil
}
