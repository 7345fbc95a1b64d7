package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
)

type academicRepository struct {
	db     *academicTable
	userDB *userTable
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db.academic, userDB: db.user}
}

func (repo *academicRepository) CreateSubject(_ context.Context, sub academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	sub.CreatedAt = time.Now().UTC()
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *academicRepository) QuerySubjects(_ context.Context, _ ...core.DBExecutor) ([]academic.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]academic.Subject, 0, len(repo.db.subjects))
	for _, sub := range repo.db.subjects {
		s := *sub
		s.Teachers = repo.subjectTeachers(s.ID)
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].Name < subs[j].Name })
	return subs, nil
}

func (repo *academicRepository) GetSubject(_ context.Context, id string, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sub, ok := repo.db.subjects[id]
	if !ok {
		return academic.Subject{}, academic.ErrNotFound
	}
	s := *sub
	s.Teachers = repo.subjectTeachers(s.ID)
	return s, nil
}

func (repo *academicRepository) subjectTeachers(subjectID string) []academic.SubjectTeacher {
	repo.userDB.RLock()
	defer repo.userDB.RUnlock()

	var teachers []academic.SubjectTeacher
	for _, tp := range repo.db.teachers {
		if tp.SubjectID != subjectID {
			continue
		}
		t := academic.SubjectTeacher{UserID: tp.UserID, EmployeeID: tp.EmployeeID}
		if usr, ok := repo.userDB.users[tp.UserID]; ok {
			t.Username = usr.Username
		}
		teachers = append(teachers, t)
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Username < teachers[j].Username })
	return teachers
}

func (repo *academicRepository) CheckSubjectCodeUniqueness(_ context.Context, code string, excludedIDs []string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, sub := range repo.db.subjects {
		if !excluded[sub.ID] && strings.EqualFold(sub.Code, code) {
			return academic.ErrSubjectCodeExists
		}
	}
	return nil
}

func (repo *academicRepository) UpdateSubject(_ context.Context, sub academic.Subject, _ ...core.DBExecutor) (academic.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[sub.ID]; !ok {
		return academic.Subject{}, academic.ErrNotFound
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *academicRepository) DeleteSubject(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return academic.ErrNotFound
	}
	delete(repo.db.subjects, id)
	for _, tp := range repo.db.teachers {
		if tp.SubjectID == id {
			tp.SubjectID = ""
		}
	}
	return nil
}

func (repo *academicRepository) CreateSection(_ context.Context, sec academic.Section, _ ...core.DBExecutor) (academic.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sec.ID = uuid.New().String()
	repo.db.sections[sec.ID] = &sec
	return sec, nil
}

func (repo *academicRepository) QuerySections(_ context.Context, gradeLevel *int, _ ...core.DBExecutor) ([]academic.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var secs []academic.Section
	for _, sec := range repo.db.sections {
		if gradeLevel != nil && sec.GradeLevel != *gradeLevel {
			continue
		}
		secs = append(secs, *sec)
	}
	sort.Slice(secs, func(i, j int) bool {
		if secs[i].GradeLevel != secs[j].GradeLevel {
			return secs[i].GradeLevel < secs[j].GradeLevel
		}
		return secs[i].Name < secs[j].Name
	})
	return secs, nil
}

func (repo *academicRepository) GetSection(_ context.Context, id string, _ ...core.DBExecutor) (academic.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sec, ok := repo.db.sections[id]
	if !ok {
		return academic.Section{}, academic.ErrNotFound
	}
	return *sec, nil
}

func (repo *academicRepository) UpdateSection(_ context.Context, sec academic.Section, _ ...core.DBExecutor) (academic.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[sec.ID]; !ok {
		return academic.Section{}, academic.ErrNotFound
	}
	repo.db.sections[sec.ID] = &sec
	return sec, nil
}

func (repo *academicRepository) DeleteSection(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[id]; !ok {
		return academic.ErrNotFound
	}
	delete(repo.db.sections, id)
	for _, tp := range repo.db.teachers {
		if tp.SectionID == id {
			tp.SectionID = ""
		}
	}
	return nil
}

func (repo *academicRepository) GetTeacherProfileByUser(_ context.Context, userID string, _ ...core.DBExecutor) (academic.TeacherProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, tp := range repo.db.teachers {
		if tp.UserID == userID {
			return *tp, nil
		}
	}
	return academic.TeacherProfile{}, academic.ErrNotFound
}

func (repo *academicRepository) UnassignSubject(_ context.Context, subjectID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, tp := range repo.db.teachers {
		if tp.SubjectID == subjectID {
			tp.SubjectID = ""
		}
	}
	return nil
}

func (repo *academicRepository) IsTeacherUser(_ context.Context, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.userDB.RLock()
	defer repo.userDB.RUnlock()

	usr, ok := repo.userDB.users[userID]
	return ok && usr.Role == user.RoleTeacher, nil
}

func (repo *academicRepository) SaveTeacherProfile(_ context.Context, tp academic.TeacherProfile, _ ...core.DBExecutor) (academic.TeacherProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if tp.ID == "" {
		tp.ID = uuid.New().String()
	} else if _, ok := repo.db.teachers[tp.ID]; !ok {
		return academic.TeacherProfile{}, academic.ErrNotFound
	}
	repo.db.teachers[tp.ID] = &tp
	return tp, nil
}
