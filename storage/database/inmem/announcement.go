package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/announcement"
)

type announcementRepository struct {
	db *announcementTable
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) *announcementRepository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, ann announcement.Announcement, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	ann.ID = uuid.New().String()
	stored := ann
	stored.Media = nil
	repo.db.announcements[ann.ID] = &stored
	return ann, nil
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, filter *announcement.QueryFilter, _ ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var anns []announcement.Announcement
	for _, ann := range repo.db.announcements {
		if filter != nil {
			if filter.ActiveOnly && !ann.IsActive {
				continue
			}
			if len(filter.TargetRoles) > 0 && !contains(filter.TargetRoles, ann.TargetRole) {
				continue
			}
			if filter.PublishedBefore != nil && ann.PublishDate.After(*filter.PublishedBefore) {
				continue
			}
		}
		a := *ann
		a.Media = append([]announcement.Media(nil), repo.db.media[ann.ID]...)
		anns = append(anns, a)
	}
	sort.Slice(anns, func(i, j int) bool { return anns[i].PublishDate.After(anns[j].PublishDate) })
	return anns, nil
}

func (repo *announcementRepository) GetAnnouncement(_ context.Context, id string, _ ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ann, ok := repo.db.announcements[id]
	if !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	a := *ann
	a.Media = append([]announcement.Media(nil), repo.db.media[id]...)
	return a, nil
}

func (repo *announcementRepository) DeleteAnnouncement(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.announcements[id]; !ok {
		return announcement.ErrNotFound
	}
	delete(repo.db.announcements, id)
	delete(repo.db.media, id)
	return nil
}

func (repo *announcementRepository) CreateMedia(_ context.Context, m announcement.Media, _ ...core.DBExecutor) (announcement.Media, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	m.ID = uuid.New().String()
	repo.db.media[m.AnnouncementID] = append(repo.db.media[m.AnnouncementID], m)
	return m, nil
}

func contains(vals []string, v string) bool {
	for _, val := range vals {
		if val == v {
			return true
		}
	}
	return false
}
