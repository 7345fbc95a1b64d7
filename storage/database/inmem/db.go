// Package inmemdb is a map-backed implementation of the domain repositories,
// used by tests and local tooling. Executor arguments are accepted for
// interface compatibility and ignored.
package inmemdb

import (
	"sync"

	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"

	"github.com/cesiedu/campus/core/academic"
)

type (
	DB struct {
		user         *userTable
		academic     *academicTable
		enrollment   *enrollmentTable
		finance      *financeTable
		grading      *gradingTable
		announcement *announcementTable
	}

	userTable struct {
		sync.RWMutex
		users    map[string]*user.User
		profiles map[string]*user.StudentProfile // keyed by profile ID
		revoked  map[string]revokedToken
	}

	academicTable struct {
		sync.RWMutex
		subjects map[string]*academic.Subject
		sections map[string]*academic.Section
		teachers map[string]*academic.TeacherProfile
	}

	enrollmentTable struct {
		sync.RWMutex
		enrollments map[string]*enrollment.Enrollment
		counters    map[string]int64
	}

	financeTable struct {
		sync.RWMutex
		transactions map[string]*finance.Transaction
		counters     map[string]int64
	}

	gradingTable struct {
		sync.RWMutex
		weights   map[string]*grading.GradeWeight // keyed by subject ID
		items     map[string]*grading.GradeItem
		scores    map[string]*grading.StudentScore
		standings map[string]*grading.ClassStanding
	}

	announcementTable struct {
		sync.RWMutex
		announcements map[string]*announcement.Announcement
		media         map[string][]announcement.Media // keyed by announcement ID
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			users:    make(map[string]*user.User),
			profiles: make(map[string]*user.StudentProfile),
			revoked:  make(map[string]revokedToken),
		},
		academic: &academicTable{
			subjects: make(map[string]*academic.Subject),
			sections: make(map[string]*academic.Section),
			teachers: make(map[string]*academic.TeacherProfile),
		},
		enrollment: &enrollmentTable{
			enrollments: make(map[string]*enrollment.Enrollment),
			counters:    make(map[string]int64),
		},
		finance: &financeTable{
			transactions: make(map[string]*finance.Transaction),
			counters:     make(map[string]int64),
		},
		grading: &gradingTable{
			weights:   make(map[string]*grading.GradeWeight),
			items:     make(map[string]*grading.GradeItem),
			scores:    make(map[string]*grading.StudentScore),
			standings: make(map[string]*grading.ClassStanding),
		},
		announcement: &announcementTable{
			announcements: make(map[string]*announcement.Announcement),
			media:         make(map[string][]announcement.Media),
		},
	}
	return db, nil
}
