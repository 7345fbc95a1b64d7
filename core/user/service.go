package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUserExists     = errors.New("a user with this username or email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists on
		// a (case-insensitive) clash, ignoring excludedUsers.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of
		// User.Username, User.Email or the profile's student/parent names.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		DeleteUsersByID(ctx context.Context, ids []string, exec ...core.DBExecutor) (int, error)

		GetStudentProfileByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (StudentProfile, error)
		// SaveStudentProfile creates the profile when StudentProfile.ID is empty,
		// updates it otherwise.
		SaveStudentProfile(ctx context.Context, prof StudentProfile, exec ...core.DBExecutor) (StudentProfile, error)
		QueryStudentProfilesByGrade(ctx context.Context, gradeLevel string, exec ...core.DBExecutor) ([]StudentProfile, error)

		// token revocation (logout)
		RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time, exec ...core.DBExecutor) error
		IsTokenRevoked(ctx context.Context, jti string, exec ...core.DBExecutor) (bool, error)
	}

	Service interface {
		CheckUniqueness(uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (Detail, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		QueryDetails(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Detail, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		GetDetail(ctx context.Context, id string) (Detail, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		Delete(ctx context.Context, ids ...string) error
		SetLastLogin(ctx context.Context, usr User) (User, error)

		GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error)
		SaveStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)

		RequestPasswordReset(ctx context.Context, email string) error
		SetPasswordWithToken(ctx context.Context, sp SetUserPassword) (User, error)

		RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
		IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	}

	service struct {
		db       core.DB // nil in in-memory setups; mutations then run untransacted
		repo     Repository
		acadRepo academic.Repository
		mailSvc  core.EmailService
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, acadRepo academic.Repository, mailSvc core.EmailService) Service {
	return &service{
		db:       db,
		repo:     repo,
		acadRepo: acadRepo,
		mailSvc:  mailSvc,
	}
}

func (svc *service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(context.Background(), uname, email, exclUsers); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: errors.Cause(err).Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (Detail, error) {
	now := time.Now().UTC()
	usr := User{
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		Status:    nu.Status,
		IsActive:  nu.Status == StatusActive,
		IsStaff:   nu.Role == RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return Detail{}, err
	}

	detail := Detail{}
	err := core.RunInTx(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		if detail.User, err = svc.repo.CreateUser(ctx, usr, exec...); err != nil {
			return err
		}

		switch nu.Role {
		case RoleParentStudent:
			prof := StudentProfile{
				UserID:            detail.User.ID,
				StudentFirstName:  nu.StudentFirstName,
				StudentMiddleName: nu.StudentMiddleName,
				StudentLastName:   nu.StudentLastName,
				GradeLevel:        nu.GradeLevel,
				SectionID:         nu.SectionID,
				ParentFirstName:   nu.ParentFirstName,
				ParentMiddleName:  nu.ParentMiddleName,
				ParentLastName:    nu.ParentLastName,
				ContactNumber:     nu.ContactNumber,
				Address:           nu.Address,
			}
			if prof, err = svc.repo.SaveStudentProfile(ctx, prof, exec...); err != nil {
				return err
			}
			detail.Profile = &prof
		case RoleTeacher:
			tp := academic.TeacherProfile{
				UserID:     detail.User.ID,
				EmployeeID: nu.EmployeeID,
			}
			if tp, err = svc.acadRepo.SaveTeacherProfile(ctx, tp, exec...); err != nil {
				return err
			}
			detail.TeacherProfile = &tp
		}
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	return detail, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *service) QueryDetails(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Detail, error) {
	users, err := svc.repo.QueryUsers(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	details := make([]Detail, 0, len(users))
	for _, usr := range users {
		detail, err := svc.attachProfiles(ctx, usr)
		if err != nil {
			return nil, err
		}
		details = append(details, detail)
	}
	return details, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) GetDetail(ctx context.Context, id string) (Detail, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	return svc.attachProfiles(ctx, usr)
}

func (svc *service) attachProfiles(ctx context.Context, usr User) (Detail, error) {
	detail := Detail{User: usr}

	switch usr.Role {
	case RoleParentStudent:
		prof, err := svc.repo.GetStudentProfileByUser(ctx, usr.ID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return detail, nil
			}
			return Detail{}, err
		}
		detail.Profile = &prof
	case RoleTeacher:
		tp, err := svc.acadRepo.GetTeacherProfileByUser(ctx, usr.ID)
		if err != nil {
			if errors.Cause(err) == academic.ErrNotFound {
				return detail, nil
			}
			return Detail{}, err
		}
		detail.TeacherProfile = &tp
	}
	return detail, nil
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	usr.Username = uu.Username
	usr.Email = uu.Email
	if uu.Role != "" {
		usr.Role = uu.Role
		usr.IsStaff = uu.Role == RoleAdmin
	}
	if uu.Status != "" {
		usr.Status = uu.Status
		usr.IsActive = uu.Status == StatusActive
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	_, err := svc.repo.DeleteUsersByID(ctx, ids)
	return err
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error) {
	return svc.repo.GetStudentProfileByUser(ctx, userID)
}

func (svc *service) SaveStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error) {
	return svc.repo.SaveStudentProfile(ctx, prof)
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	go svc.sendPasswordSetMail(usr)
	return nil
}

func (svc *service) SetPasswordWithToken(ctx context.Context, sp SetUserPassword) (User, error) {
	id, err := decodeUID(sp.UID)
	if err != nil {
		return User{}, errInvalidToken
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, errInvalidToken
		}
		return User{}, err
	}
	if err = verifyToken(usr, sp.Token); err != nil {
		return User{}, err
	}

	if err = usr.SetPassword(sp.Password); err != nil {
		return User{}, err
	}
	// setting a password activates the account
	usr.Status = StatusActive
	usr.IsActive = true
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time) error {
	return svc.repo.RevokeToken(ctx, jti, userID, expiresAt)
}

func (svc *service) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	return svc.repo.IsTokenRevoked(ctx, jti)
}

func (svc *service) sendPasswordSetMail(usr User) {
	token, err := MakeToken(usr)
	if err != nil {
		return
	}
	svc.mailSvc.SendMessages(PasswordSetEmail(usr, token))
}
