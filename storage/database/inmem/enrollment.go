package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/enrollment"
)

type enrollmentRepository struct {
	db *enrollmentTable
}

var _ enrollment.Repository = (*enrollmentRepository)(nil) // interface compliance check

func NewEnrollmentRepository(db *DB) *enrollmentRepository {
	return &enrollmentRepository{db: db.enrollment}
}

func copyEnrollment(enr *enrollment.Enrollment) enrollment.Enrollment {
	e := *enr
	if enr.ParentInfo != nil {
		pi := *enr.ParentInfo
		e.ParentInfo = &pi
	}
	if enr.CompletedAt != nil {
		t := *enr.CompletedAt
		e.CompletedAt = &t
	}
	return e
}

func (repo *enrollmentRepository) CreateEnrollment(_ context.Context, enr enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	enr.ID = uuid.New().String()
	if enr.ParentInfo != nil {
		enr.ParentInfo.ID = uuid.New().String()
		enr.ParentInfo.EnrollmentID = enr.ID
	}
	stored := copyEnrollment(&enr)
	repo.db.enrollments[enr.ID] = &stored
	return enr, nil
}

func (repo *enrollmentRepository) QueryEnrollments(_ context.Context, filter *enrollment.QueryFilter, _ ...core.DBExecutor) ([]enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []enrollment.Enrollment
	for _, enr := range repo.db.enrollments {
		if filter != nil {
			if filter.StudentID != "" && enr.StudentID != filter.StudentID {
				continue
			}
			if filter.SectionID != "" && enr.SectionID != filter.SectionID {
				continue
			}
			if filter.GradeLevel != "" && enr.GradeLevel != filter.GradeLevel {
				continue
			}
			if filter.Status != "" && enr.Status != filter.Status {
				continue
			}
			if filter.AcademicYear != "" && enr.AcademicYear != filter.AcademicYear {
				continue
			}
		}
		enrs = append(enrs, copyEnrollment(enr))
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *enrollmentRepository) GetEnrollment(_ context.Context, id string, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	enr, ok := repo.db.enrollments[id]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	return copyEnrollment(enr), nil
}

func (repo *enrollmentRepository) UpdateEnrollment(_ context.Context, enr enrollment.Enrollment, _ ...core.DBExecutor) (enrollment.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.enrollments[enr.ID]
	if !ok {
		return enrollment.Enrollment{}, enrollment.ErrNotFound
	}
	if enr.ParentInfo != nil {
		if enr.ParentInfo.ID == "" {
			enr.ParentInfo.ID = uuid.New().String()
		}
		enr.ParentInfo.EnrollmentID = enr.ID
	} else {
		enr.ParentInfo = orig.ParentInfo
	}
	stored := copyEnrollment(&enr)
	repo.db.enrollments[enr.ID] = &stored
	return enr, nil
}

func (repo *enrollmentRepository) DeleteEnrollment(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.enrollments[id]; !ok {
		return enrollment.ErrNotFound
	}
	delete(repo.db.enrollments, id)
	return nil
}

func (repo *enrollmentRepository) HasPossibleDuplicate(_ context.Context, firstName, lastName string, birthDate core.Date, academicYear string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if strings.EqualFold(enr.FirstName, firstName) &&
			strings.EqualFold(enr.LastName, lastName) &&
			enr.BirthDate.Equal(birthDate.Time) &&
			enr.AcademicYear == academicYear {
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollmentRepository) NextStudentNumber(_ context.Context, year int, _ ...core.DBExecutor) (string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	name := fmt.Sprintf("student_number_%d", year)
	if _, ok := repo.db.counters[name]; !ok {
		repo.db.counters[name] = repo.maxStudentSeq(year)
	}
	repo.db.counters[name]++
	return fmt.Sprintf("%d%06d", year, repo.db.counters[name]), nil
}

func (repo *enrollmentRepository) maxStudentSeq(year int) int64 {
	prefix := strconv.Itoa(year)
	var max int64
	for _, enr := range repo.db.enrollments {
		if !strings.HasPrefix(enr.StudentNumber, prefix) {
			continue
		}
		if seq, err := strconv.ParseInt(enr.StudentNumber[len(prefix):], 10, 64); err == nil && seq > max {
			max = seq
		}
	}
	return max
}

func (repo *enrollmentRepository) StudentNumberExists(_ context.Context, number string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.StudentNumber == number {
			return true, nil
		}
	}
	return false, nil
}

func (repo *enrollmentRepository) GetStats(_ context.Context, _ ...core.DBExecutor) (enrollment.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := enrollment.Stats{ByGrade: make(map[string]int)}
	for _, enr := range repo.db.enrollments {
		stats.Total++
		switch enr.Status {
		case enrollment.StatusActive:
			stats.Active++
			label := academic.GradeLabels[enr.GradeLevel]
			if label == "" {
				label = enr.GradeLevel
			}
			stats.ByGrade[label]++
		case enrollment.StatusCompleted:
			stats.Completed++
		case enrollment.StatusDropped:
			stats.Dropped++
		case enrollment.StatusPending:
			stats.Pending++
		}
	}
	return stats, nil
}
