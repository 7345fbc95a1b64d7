package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
)

type revokedToken struct {
	userID    string
	expiresAt time.Time
}

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, usr := range repo.db.users {
		if excluded[usr.ID] {
			continue
		}
		if strings.EqualFold(usr.Username, username) {
			return user.ErrUsernameExists
		}
		if strings.EqualFold(usr.Email, email) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.New().String()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var users []user.User
	for _, usr := range repo.query() {
		if filter != nil {
			if filter.Role != "" && usr.Role != filter.Role {
				continue
			}
			if filter.Search != "" && !repo.matchesSearch(usr, filter.Search) {
				continue
			}
		}
		users = append(users, usr)
	}
	return users, nil
}

func (repo *userRepository) matchesSearch(usr user.User, search string) bool {
	search = strings.ToLower(search)
	if strings.Contains(strings.ToLower(usr.Username), search) ||
		strings.Contains(strings.ToLower(usr.Email), search) {
		return true
	}
	for _, prof := range repo.db.profiles {
		if prof.UserID != usr.ID {
			continue
		}
		return strings.Contains(strings.ToLower(prof.StudentName()), search) ||
			strings.Contains(strings.ToLower(prof.ParentName()), search)
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.users {
		switch {
		case filter.ID != "":
			if usr.ID == filter.ID {
				return *usr, nil
			}
		case filter.Username != "":
			if strings.EqualFold(usr.Username, filter.Username) {
				return *usr, nil
			}
		case filter.Email != "":
			if strings.EqualFold(usr.Email, filter.Email) {
				return *usr, nil
			}
		case filter.UsernameOrEmail != "":
			if strings.EqualFold(usr.Username, filter.UsernameOrEmail) ||
				strings.EqualFold(usr.Email, filter.UsernameOrEmail) {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; ok {
			delete(repo.db.users, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *userRepository) GetStudentProfileByUser(_ context.Context, userID string, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, prof := range repo.db.profiles {
		if prof.UserID == userID {
			return *prof, nil
		}
	}
	return user.StudentProfile{}, user.ErrNotFound
}

func (repo *userRepository) SaveStudentProfile(_ context.Context, prof user.StudentProfile, _ ...core.DBExecutor) (user.StudentProfile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if prof.ID == "" {
		prof.ID = uuid.New().String()
	} else if _, ok := repo.db.profiles[prof.ID]; !ok {
		return user.StudentProfile{}, user.ErrNotFound
	}
	repo.db.profiles[prof.ID] = &prof
	return prof, nil
}

func (repo *userRepository) QueryStudentProfilesByGrade(_ context.Context, gradeLevel string, _ ...core.DBExecutor) ([]user.StudentProfile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var profs []user.StudentProfile
	for _, prof := range repo.db.profiles {
		if prof.GradeLevel == gradeLevel {
			profs = append(profs, *prof)
		}
	}
	sort.Slice(profs, func(i, j int) bool {
		if profs[i].StudentLastName != profs[j].StudentLastName {
			return profs[i].StudentLastName < profs[j].StudentLastName
		}
		return profs[i].StudentFirstName < profs[j].StudentFirstName
	})
	return profs, nil
}

func (repo *userRepository) RevokeToken(_ context.Context, jti, userID string, expiresAt time.Time, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.revoked[jti] = revokedToken{userID: userID, expiresAt: expiresAt}
	return nil
}

func (repo *userRepository) IsTokenRevoked(_ context.Context, jti string, _ ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tok, ok := repo.db.revoked[jti]
	return ok && tok.expiresAt.After(time.Now()), nil
}
