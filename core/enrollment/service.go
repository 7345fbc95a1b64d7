package enrollment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
)

var (
	// errors
	ErrNotFound      = errors.New("enrollment not found")
	ErrInvalidGrade  = errors.New("invalid grade level on enrollment")
	ErrNoPublicUser  = errors.New("public intake account is not provisioned")
	ErrTerminalState = errors.New("enrollment is in a terminal state")

	maxStudentNumberRetries = 10
)

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		// QueryEnrollments applies AND operation on available QueryFilter
		// fields; results are ordered by EnrolledAt descending.
		QueryEnrollments(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Enrollment, error)
		GetEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) (Enrollment, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment, exec ...core.DBExecutor) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id string, exec ...core.DBExecutor) error

		// HasPossibleDuplicate matches on case-insensitive first+last name,
		// birth date and academic year.
		HasPossibleDuplicate(ctx context.Context, firstName, lastName string, birthDate core.Date, academicYear string, exec ...core.DBExecutor) (bool, error)

		// NextStudentNumber atomically bumps the per-year counter, seeding it
		// from max(existing) on first use, and returns {year}{seq:06d}.
		NextStudentNumber(ctx context.Context, year int, exec ...core.DBExecutor) (string, error)
		StudentNumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error)

		GetStats(ctx context.Context, exec ...core.DBExecutor) (Stats, error)
	}

	Service interface {
		// Create handles public intake: the student is forced to the public
		// sentinel account and the status to PENDING.
		Create(ctx context.Context, ne NewEnrollment) (Enrollment, error)
		Query(ctx context.Context, filter *QueryFilter) ([]Enrollment, error)
		Get(ctx context.Context, id string) (Enrollment, error)
		Update(ctx context.Context, id string, ne NewEnrollment) (Enrollment, error)
		Delete(ctx context.Context, id string) error

		// Approve transitions PENDING -> ACTIVE in one transaction: student
		// number assignment, audit note, parent account provisioning/linkage.
		Approve(ctx context.Context, id string) (Enrollment, error)
		Complete(ctx context.Context, id string) (Enrollment, error)
		Drop(ctx context.Context, id string) (Enrollment, error)

		Statistics(ctx context.Context) (Stats, error)
	}

	service struct {
		db      core.DB // nil in in-memory setups; mutations then run untransacted
		repo    Repository
		usrRepo user.Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, usrRepo user.Repository, mailSvc core.EmailService, logger core.Logger) Service {
	return &service{
		db:      db,
		repo:    repo,
		usrRepo: usrRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func (svc *service) Create(ctx context.Context, ne NewEnrollment) (Enrollment, error) {
	public, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Username: user.PublicUsername})
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Enrollment{}, ErrNoPublicUser
		}
		return Enrollment{}, err
	}

	now := time.Now().UTC()
	enr := Enrollment{
		StudentID:       public.ID,
		SectionID:       ne.SectionID,
		GradeLevel:      ne.GradeLevel,
		Status:          StatusPending, // client-supplied status is ignored
		AcademicYear:    ne.AcademicYear,
		StudentType:     ne.StudentType,
		EducationLevel:  ne.EducationLevel,
		LRN:             ne.LRN,
		LastName:        ne.LastName,
		FirstName:       ne.FirstName,
		MiddleName:      ne.MiddleName,
		BirthDate:       ne.BirthDate,
		Gender:          ne.Gender,
		Email:           ne.Email,
		Address:         ne.Address,
		Religion:        ne.Religion,
		TelephoneNumber: ne.TelephoneNumber,
		MobileNumber:    ne.MobileNumber,
		ParentFacebook:  ne.ParentFacebook,
		PaymentMode:     ne.PaymentMode,
		EnrolledAt:      now,
		Remarks:         ne.Remarks,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ne.ParentInfo != nil {
		enr.ParentInfo = newParentInfo(ne.ParentInfo)
	}

	dup, err := svc.repo.HasPossibleDuplicate(ctx, enr.FirstName, enr.LastName, enr.BirthDate, enr.AcademicYear)
	if err != nil {
		return Enrollment{}, err
	}
	if dup {
		enr.AppendRemark(RemarkDuplicate)
	}

	return svc.repo.CreateEnrollment(ctx, enr)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, filter)
}

func (svc *service) Get(ctx context.Context, id string) (Enrollment, error) {
	return svc.repo.GetEnrollment(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, ne NewEnrollment) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}

	enr.SectionID = ne.SectionID
	enr.GradeLevel = ne.GradeLevel
	enr.AcademicYear = ne.AcademicYear
	enr.StudentType = ne.StudentType
	enr.EducationLevel = ne.EducationLevel
	enr.LRN = ne.LRN
	enr.LastName = ne.LastName
	enr.FirstName = ne.FirstName
	enr.MiddleName = ne.MiddleName
	enr.BirthDate = ne.BirthDate
	enr.Gender = ne.Gender
	enr.Email = ne.Email
	enr.Address = ne.Address
	enr.Religion = ne.Religion
	enr.TelephoneNumber = ne.TelephoneNumber
	enr.MobileNumber = ne.MobileNumber
	enr.ParentFacebook = ne.ParentFacebook
	enr.PaymentMode = ne.PaymentMode
	enr.Remarks = ne.Remarks
	if ne.ParentInfo != nil {
		pi := newParentInfo(ne.ParentInfo)
		if enr.ParentInfo != nil {
			pi.ID = enr.ParentInfo.ID
			pi.EnrollmentID = enr.ParentInfo.EnrollmentID
		}
		enr.ParentInfo = pi
	}
	enr.UpdatedAt = time.Now().UTC()

	return svc.repo.UpdateEnrollment(ctx, enr)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteEnrollment(ctx, id)
}

func (svc *service) Approve(ctx context.Context, id string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}

	// fail fast before any mutation
	if enr.Status == StatusCompleted || enr.Status == StatusDropped {
		return Enrollment{}, core.NewValidationError(ErrTerminalState)
	}
	if !academic.ValidGradeCode(strings.TrimSpace(enr.GradeLevel)) {
		return Enrollment{}, core.NewValidationError(ErrInvalidGrade,
			core.FieldError{Field: "grade_level", Error: fmt.Sprintf("invalid grade level: %s", enr.GradeLevel)})
	}

	var mails []*core.EmailMessage
	err = core.RunInTx(ctx, svc.db, func(exec ...core.DBExecutor) error {
		if enr.StudentNumber == "" {
			number, err := svc.nextFreeStudentNumber(ctx, exec...)
			if err != nil {
				return err
			}
			enr.StudentNumber = number
		}

		enr.Status = StatusActive
		enr.AppendRemarkOnce(RemarkApproved)
		enr.UpdatedAt = time.Now().UTC()

		var err error
		if enr, err = svc.repo.UpdateEnrollment(ctx, enr, exec...); err != nil {
			return err
		}

		parentEmail := core.CleanString(enr.Email, true /* lower */)
		if parentEmail == "" {
			return nil
		}

		if enr.IsPromotion() {
			mails, err = svc.approvePromotion(ctx, &enr, parentEmail, exec...)
		} else {
			mails, err = svc.approveNewStudent(ctx, &enr, parentEmail, exec...)
		}
		return err
	})
	if err != nil {
		return Enrollment{}, err
	}

	if len(mails) > 0 {
		svc.mailSvc.SendMessages(mails...)
	}
	return enr, nil
}

func (svc *service) Complete(ctx context.Context, id string) (Enrollment, error) {
	return svc.close(ctx, id, StatusCompleted, RemarkCompleted)
}

func (svc *service) Drop(ctx context.Context, id string) (Enrollment, error) {
	return svc.close(ctx, id, StatusDropped, RemarkDeclined)
}

func (svc *service) Statistics(ctx context.Context) (Stats, error) {
	return svc.repo.GetStats(ctx)
}

func (svc *service) close(ctx context.Context, id, status, note string) (Enrollment, error) {
	enr, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if enr.Status == StatusCompleted || enr.Status == StatusDropped {
		return Enrollment{}, core.NewValidationError(ErrTerminalState)
	}

	now := time.Now().UTC()
	enr.Status = status
	enr.CompletedAt = &now
	enr.AppendRemark(note)
	enr.UpdatedAt = now
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// nextFreeStudentNumber bumps the counter until an unused number comes out;
// the existence check covers numbers assigned outside the counter.
func (svc *service) nextFreeStudentNumber(ctx context.Context, exec ...core.DBExecutor) (string, error) {
	year := time.Now().UTC().Year()
	for i := 0; i < maxStudentNumberRetries; i++ {
		number, err := svc.repo.NextStudentNumber(ctx, year, exec...)
		if err != nil {
			return "", err
		}
		exists, err := svc.repo.StudentNumberExists(ctx, number, exec...)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
	}
	return "", errors.New("could not generate a free student number")
}

// approvePromotion links the enrollment to an existing parent account and
// refreshes its profile; no account is ever created on this path.
func (svc *service) approvePromotion(ctx context.Context, enr *Enrollment, parentEmail string, exec ...core.DBExecutor) ([]*core.EmailMessage, error) {
	parent, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Email: parentEmail}, exec...)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			svc.logger.Warn(
				"promotion approved but no existing parent user found; profile not updated",
				"enrollment", enr.ID, "email", parentEmail,
			)
			return nil, nil
		}
		return nil, err
	}

	enr.ParentUserID = parent.ID
	if *enr, err = svc.repo.UpdateEnrollment(ctx, *enr, exec...); err != nil {
		return nil, err
	}

	prof, err := svc.usrRepo.GetStudentProfileByUser(ctx, parent.ID, exec...)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return nil, err
	}
	if err == nil {
		prof.GradeLevel = enr.GradeLevel
		prof.StudentNumber = firstNonEmpty(enr.StudentNumber, prof.StudentNumber)
		prof.PaymentMode = firstNonEmpty(enr.PaymentMode, prof.PaymentMode)
		prof.SectionID = firstNonEmpty(enr.SectionID, prof.SectionID)
		prof.ContactNumber = firstNonEmpty(enr.MobileNumber, enr.TelephoneNumber, prof.ContactNumber)
		prof.Address = firstNonEmpty(enr.Address, prof.Address)
		if _, err = svc.usrRepo.SaveStudentProfile(ctx, prof, exec...); err != nil {
			return nil, err
		}
	}

	return []*core.EmailMessage{PromotionEmail(parent, *enr)}, nil
}

// approveNewStudent finds or creates the parent account, fills its profile
// and links the enrollment; brand new accounts get a set-password email.
func (svc *service) approveNewStudent(ctx context.Context, enr *Enrollment, parentEmail string, exec ...core.DBExecutor) ([]*core.EmailMessage, error) {
	var created bool

	parent, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Email: parentEmail}, exec...)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return nil, err
		}
		if parent, err = svc.createParentUser(ctx, enr, parentEmail, exec...); err != nil {
			return nil, err
		}
		created = true
	}

	if err = svc.fillParentProfile(ctx, parent, enr, exec...); err != nil {
		return nil, err
	}

	enr.ParentUserID = parent.ID
	if *enr, err = svc.repo.UpdateEnrollment(ctx, *enr, exec...); err != nil {
		return nil, err
	}

	if !created {
		return nil, nil
	}
	token, err := user.MakeToken(parent)
	if err != nil {
		return nil, err
	}
	return []*core.EmailMessage{ParentAccountEmail(parent, *enr, token)}, nil
}

func (svc *service) createParentUser(ctx context.Context, enr *Enrollment, parentEmail string, exec ...core.DBExecutor) (user.User, error) {
	username, err := svc.freeUsername(ctx, enr, exec...)
	if err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	parent := user.User{
		Username:  username,
		Email:     parentEmail,
		Role:      user.RoleParentStudent,
		Status:    user.StatusActive,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	parent.SetUnusablePassword()
	return svc.usrRepo.CreateUser(ctx, parent, exec...)
}

// freeUsername derives a username from the student name and suffixes a
// counter until it is unique.
func (svc *service) freeUsername(ctx context.Context, enr *Enrollment, exec ...core.DBExecutor) (string, error) {
	base := strings.ReplaceAll(strings.ToLower(enr.FirstName+enr.LastName), " ", "")
	if base == "" {
		base = "parent"
	}

	username := base
	for i := 1; ; i++ {
		_, err := svc.usrRepo.GetUser(ctx, user.GetFilter{Username: username}, exec...)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return username, nil
			}
			return "", err
		}
		username = fmt.Sprintf("%s%d", base, i+1)
	}
}

func (svc *service) fillParentProfile(ctx context.Context, parent user.User, enr *Enrollment, exec ...core.DBExecutor) error {
	parentFirst, parentLast := splitGuardianName(enr)

	prof, err := svc.usrRepo.GetStudentProfileByUser(ctx, parent.ID, exec...)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		prof = user.StudentProfile{
			UserID:            parent.ID,
			StudentFirstName:  enr.FirstName,
			StudentMiddleName: enr.MiddleName,
			StudentLastName:   enr.LastName,
			GradeLevel:        enr.GradeLevel,
			LRN:               enr.LRN,
			StudentNumber:     enr.StudentNumber,
			PaymentMode:       enr.PaymentMode,
			SectionID:         enr.SectionID,
			ParentFirstName:   parentFirst,
			ParentLastName:    parentLast,
			ContactNumber:     firstNonEmpty(enr.MobileNumber, enr.TelephoneNumber),
			Address:           enr.Address,
		}
		_, err = svc.usrRepo.SaveStudentProfile(ctx, prof, exec...)
		return err
	}

	// existing profile: fill blanks, refresh what the new form supplies
	prof.StudentFirstName = firstNonEmpty(prof.StudentFirstName, enr.FirstName)
	prof.StudentMiddleName = firstNonEmpty(prof.StudentMiddleName, enr.MiddleName)
	prof.StudentLastName = firstNonEmpty(prof.StudentLastName, enr.LastName)
	prof.GradeLevel = firstNonEmpty(enr.GradeLevel, prof.GradeLevel)
	prof.LRN = firstNonEmpty(enr.LRN, prof.LRN)
	prof.StudentNumber = firstNonEmpty(enr.StudentNumber, prof.StudentNumber)
	prof.PaymentMode = firstNonEmpty(enr.PaymentMode, prof.PaymentMode)
	prof.SectionID = firstNonEmpty(enr.SectionID, prof.SectionID)
	prof.ContactNumber = firstNonEmpty(enr.MobileNumber, enr.TelephoneNumber, prof.ContactNumber)
	prof.Address = firstNonEmpty(enr.Address, prof.Address)
	_, err = svc.usrRepo.SaveStudentProfile(ctx, prof, exec...)
	return err
}

func newParentInfo(npi *NewParentInfo) *ParentInfo {
	return &ParentInfo{
		FatherName:           npi.FatherName,
		FatherContact:        npi.FatherContact,
		FatherOccupation:     npi.FatherOccupation,
		MotherName:           npi.MotherName,
		MotherContact:        npi.MotherContact,
		MotherOccupation:     npi.MotherOccupation,
		GuardianName:         npi.GuardianName,
		GuardianContact:      npi.GuardianContact,
		GuardianRelationship: npi.GuardianRelationship,
	}
}

func splitGuardianName(enr *Enrollment) (first, last string) {
	if enr.ParentInfo == nil {
		return "", ""
	}
	parts := strings.Fields(enr.ParentInfo.GuardianFullName())
	if len(parts) == 0 {
		return "", ""
	}
	first = parts[0]
	if len(parts) > 1 {
		last = strings.Join(parts[1:], " ")
	}
	return first, last
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
