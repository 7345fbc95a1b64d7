package academic

import (
	"context"
	"errors"

	"github.com/cesiedu/campus/core"
)

var (
	// errors
	ErrNotFound          = errors.New("record not found")
	ErrSubjectCodeExists = errors.New("a subject with this code already exists")
	ErrSectionNameExists = errors.New("a section with this name already exists")
)

type (
	Repository interface {
		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		// QuerySubjects returns all subjects with their assigned teachers attached.
		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		CheckSubjectCodeUniqueness(ctx context.Context, code string, excludedIDs []string, exec ...core.DBExecutor) error
		UpdateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		DeleteSubject(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		// QuerySections filters by grade level when gradeLevel is non-nil.
		QuerySections(ctx context.Context, gradeLevel *int, exec ...core.DBExecutor) ([]Section, error)
		GetSection(ctx context.Context, id string, exec ...core.DBExecutor) (Section, error)
		UpdateSection(ctx context.Context, sec Section, exec ...core.DBExecutor) (Section, error)
		DeleteSection(ctx context.Context, id string, exec ...core.DBExecutor) error

		GetTeacherProfileByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (TeacherProfile, error)
		// SaveTeacherProfile creates the profile when TeacherProfile.ID is empty,
		// updates it otherwise.
		SaveTeacherProfile(ctx context.Context, tp TeacherProfile, exec ...core.DBExecutor) (TeacherProfile, error)
		// UnassignSubject releases every teacher currently assigned to subjectID.
		UnassignSubject(ctx context.Context, subjectID string, exec ...core.DBExecutor) error
		// IsTeacherUser reports whether userID is an existing TEACHER account.
		IsTeacherUser(ctx context.Context, userID string, exec ...core.DBExecutor) (bool, error)
	}

	// TeacherInfo is a teacher's current assignment; nil fields mean unassigned.
	TeacherInfo struct {
		Subject    *Subject `json:"subject"`
		Section    *Section `json:"section"`
		EmployeeID string   `json:"employee_id"`
	}

	Service interface {
		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		UpdateSubject(ctx context.Context, id string, ns NewSubject) (Subject, error)
		DeleteSubject(ctx context.Context, id string) error

		CreateSection(ctx context.Context, ns NewSection) (Section, error)
		QuerySections(ctx context.Context, gradeLevel *int) ([]Section, error)
		GetSection(ctx context.Context, id string) (Section, error)
		UpdateSection(ctx context.Context, id string, ns NewSection) (Section, error)
		DeleteSection(ctx context.Context, id string) error

		// AssignTeacher re-points a teacher's assignment; the caller is
		// responsible for checking that userID belongs to a TEACHER account.
		AssignTeacher(ctx context.Context, userID string, ta TeacherAssignment) (TeacherProfile, error)
		TeacherInfo(ctx context.Context, userID string) (TeacherInfo, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := svc.checkSubjectCode(ctx, ns.Code, nil); err != nil {
		return Subject{}, err
	}
	sub, err := svc.repo.CreateSubject(ctx, Subject{Name: ns.Name, Code: ns.Code})
	if err != nil {
		return Subject{}, err
	}
	if ns.AssignedTeacher != "" {
		if err = svc.pointTeacherAt(ctx, ns.AssignedTeacher, sub.ID); err != nil {
			return Subject{}, err
		}
	}
	return svc.repo.GetSubject(ctx, sub.ID)
}

func (svc *service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

func (svc *service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) UpdateSubject(ctx context.Context, id string, ns NewSubject) (Subject, error) {
	sub, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if err = svc.checkSubjectCode(ctx, ns.Code, []string{sub.ID}); err != nil {
		return Subject{}, err
	}

	sub.Name = ns.Name
	sub.Code = ns.Code
	if _, err = svc.repo.UpdateSubject(ctx, sub); err != nil {
		return Subject{}, err
	}
	if ns.AssignedTeacher != "" {
		if err = svc.pointTeacherAt(ctx, ns.AssignedTeacher, sub.ID); err != nil {
			return Subject{}, err
		}
	}
	return svc.repo.GetSubject(ctx, sub.ID)
}

func (svc *service) DeleteSubject(ctx context.Context, id string) error {
	return svc.repo.DeleteSubject(ctx, id)
}

func (svc *service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	return svc.repo.CreateSection(ctx, Section{Name: ns.Name, GradeLevel: ns.GradeLevel})
}

func (svc *service) QuerySections(ctx context.Context, gradeLevel *int) ([]Section, error) {
	return svc.repo.QuerySections(ctx, gradeLevel)
}

func (svc *service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *service) UpdateSection(ctx context.Context, id string, ns NewSection) (Section, error) {
	sec, err := svc.repo.GetSection(ctx, id)
	if err != nil {
		return Section{}, err
	}
	sec.Name = ns.Name
	sec.GradeLevel = ns.GradeLevel
	return svc.repo.UpdateSection(ctx, sec)
}

func (svc *service) DeleteSection(ctx context.Context, id string) error {
	return svc.repo.DeleteSection(ctx, id)
}

func (svc *service) AssignTeacher(ctx context.Context, userID string, ta TeacherAssignment) (TeacherProfile, error) {
	tp, err := svc.getOrNewTeacherProfile(ctx, userID)
	if err != nil {
		return TeacherProfile{}, err
	}

	if ta.SubjectID != nil {
		if *ta.SubjectID != "" {
			if _, err = svc.repo.GetSubject(ctx, *ta.SubjectID); err != nil {
				return TeacherProfile{}, err
			}
		}
		tp.SubjectID = *ta.SubjectID
	}
	if ta.SectionID != nil {
		if *ta.SectionID != "" {
			if _, err = svc.repo.GetSection(ctx, *ta.SectionID); err != nil {
				return TeacherProfile{}, err
			}
		}
		tp.SectionID = *ta.SectionID
	}
	if ta.EmployeeID != nil {
		tp.EmployeeID = *ta.EmployeeID
	}
	return svc.repo.SaveTeacherProfile(ctx, tp)
}

func (svc *service) TeacherInfo(ctx context.Context, userID string) (TeacherInfo, error) {
	tp, err := svc.repo.GetTeacherProfileByUser(ctx, userID)
	if err != nil {
		if err == ErrNotFound {
			return TeacherInfo{}, nil
		}
		return TeacherInfo{}, err
	}

	info := TeacherInfo{EmployeeID: tp.EmployeeID}
	if tp.SubjectID != "" {
		if sub, err := svc.repo.GetSubject(ctx, tp.SubjectID); err == nil {
			info.Subject = &sub
		}
	}
	if tp.SectionID != "" {
		if sec, err := svc.repo.GetSection(ctx, tp.SectionID); err == nil {
			info.Section = &sec
		}
	}
	return info, nil
}

func (svc *service) checkSubjectCode(ctx context.Context, code string, exclIDs []string) error {
	if err := svc.repo.CheckSubjectCodeUniqueness(ctx, code, exclIDs); err != nil {
		if err == ErrSubjectCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

// pointTeacherAt makes userID's assignment point at subjectID, creating the
// profile when the teacher has none yet. Prior holders are released first so
// the subject keeps a single teacher. IDs that do not belong to a TEACHER
// account are skipped.
func (svc *service) pointTeacherAt(ctx context.Context, userID, subjectID string) error {
	isTeacher, err := svc.repo.IsTeacherUser(ctx, userID)
	if err != nil {
		return err
	}
	if !isTeacher {
		return nil
	}

	if err = svc.repo.UnassignSubject(ctx, subjectID); err != nil {
		return err
	}
	tp, err := svc.getOrNewTeacherProfile(ctx, userID)
	if err != nil {
		return err
	}
	tp.SubjectID = subjectID
	_, err = svc.repo.SaveTeacherProfile(ctx, tp)
	return err
}

func (svc *service) getOrNewTeacherProfile(ctx context.Context, userID string) (TeacherProfile, error) {
	tp, err := svc.repo.GetTeacherProfileByUser(ctx, userID)
	if err != nil {
		if err != ErrNotFound {
			return TeacherProfile{}, err
		}
		tp = TeacherProfile{UserID: userID}
	}
	return tp, nil
}
