package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/grading"
)

type gradingRepository struct {
	db *gradingTable
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) *gradingRepository {
	return &gradingRepository{db: db.grading}
}

func (repo *gradingRepository) GetWeightBySubject(_ context.Context, subjectID string, _ ...core.DBExecutor) (grading.GradeWeight, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	w, ok := repo.db.weights[subjectID]
	if !ok {
		return grading.GradeWeight{}, grading.ErrWeightNotFound
	}
	return *w, nil
}

func (repo *gradingRepository) SaveGradeWeight(_ context.Context, w grading.GradeWeight, _ ...core.DBExecutor) (grading.GradeWeight, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	repo.db.weights[w.SubjectID] = &w
	return w, nil
}

func (repo *gradingRepository) CreateGradeItem(_ context.Context, item grading.GradeItem, _ ...core.DBExecutor) (grading.GradeItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	item.ID = uuid.New().String()
	repo.db.items[item.ID] = &item
	return item, nil
}

func (repo *gradingRepository) QueryGradeItems(_ context.Context, filter *grading.ItemFilter, _ ...core.DBExecutor) ([]grading.GradeItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var items []grading.GradeItem
	for _, item := range repo.db.items {
		if filter != nil {
			if filter.SubjectID != "" && item.SubjectID != filter.SubjectID {
				continue
			}
			if filter.GradeLevel != nil && item.GradeLevel != *filter.GradeLevel {
				continue
			}
			if filter.Quarter != 0 && item.Quarter != filter.Quarter {
				continue
			}
			if filter.Category != "" && item.Category != filter.Category {
				continue
			}
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Quarter != items[j].Quarter {
			return items[i].Quarter < items[j].Quarter
		}
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (repo *gradingRepository) GetGradeItem(_ context.Context, id string, _ ...core.DBExecutor) (grading.GradeItem, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	item, ok := repo.db.items[id]
	if !ok {
		return grading.GradeItem{}, grading.ErrItemNotFound
	}
	return *item, nil
}

func (repo *gradingRepository) UpdateGradeItem(_ context.Context, item grading.GradeItem, _ ...core.DBExecutor) (grading.GradeItem, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.items[item.ID]; !ok {
		return grading.GradeItem{}, grading.ErrItemNotFound
	}
	repo.db.items[item.ID] = &item
	return item, nil
}

func (repo *gradingRepository) DeleteGradeItem(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.items[id]; !ok {
		return grading.ErrItemNotFound
	}
	delete(repo.db.items, id)
	for sid, score := range repo.db.scores {
		if score.GradeItemID == id {
			delete(repo.db.scores, sid)
		}
	}
	return nil
}

func (repo *gradingRepository) UpsertStudentScore(_ context.Context, score grading.StudentScore, _ ...core.DBExecutor) (grading.StudentScore, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	for _, existing := range repo.db.scores {
		if existing.StudentID == score.StudentID && existing.GradeItemID == score.GradeItemID {
			existing.Score = score.Score
			existing.UpdatedAt = now
			return *existing, nil
		}
	}

	score.ID = uuid.New().String()
	score.CreatedAt = now
	score.UpdatedAt = now
	repo.db.scores[score.ID] = &score
	return score, nil
}

func (repo *gradingRepository) QueryStudentScores(_ context.Context, filter *grading.ScoreFilter, _ ...core.DBExecutor) ([]grading.StudentScore, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var scores []grading.StudentScore
	for _, score := range repo.db.scores {
		if filter != nil {
			if filter.GradeItemID != "" && score.GradeItemID != filter.GradeItemID {
				continue
			}
			if filter.StudentID != "" && score.StudentID != filter.StudentID {
				continue
			}
			if filter.SubjectID != "" || filter.GradeLevel != nil || filter.Quarter != 0 {
				item, ok := repo.db.items[score.GradeItemID]
				if !ok {
					continue
				}
				if filter.SubjectID != "" && item.SubjectID != filter.SubjectID {
					continue
				}
				if filter.GradeLevel != nil && item.GradeLevel != *filter.GradeLevel {
					continue
				}
				if filter.Quarter != 0 && item.Quarter != filter.Quarter {
					continue
				}
			}
		}
		scores = append(scores, *score)
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].CreatedAt.Before(scores[j].CreatedAt) })
	return scores, nil
}

func (repo *gradingRepository) UpsertClassStanding(_ context.Context, cs grading.ClassStanding, _ ...core.DBExecutor) (grading.ClassStanding, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, existing := range repo.db.standings {
		if existing.StudentID == cs.StudentID && existing.SubjectID == cs.SubjectID && existing.Quarter == cs.Quarter {
			existing.Score = cs.Score
			return *existing, nil
		}
	}

	cs.ID = uuid.New().String()
	repo.db.standings[cs.ID] = &cs
	return cs, nil
}

func (repo *gradingRepository) QueryClassStandings(_ context.Context, filter *grading.StandingFilter, _ ...core.DBExecutor) ([]grading.ClassStanding, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var standings []grading.ClassStanding
	for _, cs := range repo.db.standings {
		if filter != nil {
			if filter.SubjectID != "" && cs.SubjectID != filter.SubjectID {
				continue
			}
			if filter.Quarter != 0 && cs.Quarter != filter.Quarter {
				continue
			}
			if filter.StudentID != "" && cs.StudentID != filter.StudentID {
				continue
			}
		}
		standings = append(standings, *cs)
	}
	sort.Slice(standings, func(i, j int) bool { return standings[i].Quarter < standings[j].Quarter })
	return standings, nil
}

func (repo *gradingRepository) GetClassStanding(_ context.Context, studentID, subjectID string, quarter int, _ ...core.DBExecutor) (grading.ClassStanding, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, cs := range repo.db.standings {
		if cs.StudentID == studentID && cs.SubjectID == subjectID && cs.Quarter == quarter {
			return *cs, nil
		}
	}
	return grading.ClassStanding{}, grading.ErrStandingNotFound
}
