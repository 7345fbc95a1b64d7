package announcement

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
)

var (
	// errors
	ErrNotFound = errors.New("announcement not found")
)

// uploadDir is the path under the media root where attachments land.
const uploadDir = "announcements"

type (
	// FileStore persists uploaded media and resolves stored paths to URLs.
	FileStore interface {
		// Save writes src under dir with a name derived from filename and
		// returns the stored path relative to the media root.
		Save(dir, filename string, src io.Reader) (string, error)
		URL(path string) string
	}

	Repository interface {
		CreateAnnouncement(ctx context.Context, ann Announcement, exec ...core.DBExecutor) (Announcement, error)
		// QueryAnnouncements attaches media; results are ordered by
		// PublishDate descending.
		QueryAnnouncements(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Announcement, error)
		GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error
		CreateMedia(ctx context.Context, m Media, exec ...core.DBExecutor) (Media, error)
	}

	Service interface {
		Create(ctx context.Context, na NewAnnouncement, createdByID string, uploads []Upload) (Announcement, error)
		// VisibleTo lists the active announcements the caller may see; pass an
		// empty role for anonymous callers.
		VisibleTo(ctx context.Context, role string) ([]Announcement, error)
		Get(ctx context.Context, id string) (Announcement, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		db    core.DB // nil in in-memory setups; mutations then run untransacted
		repo  Repository
		store FileStore
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(db core.DB, repo Repository, store FileStore) Service {
	return &service{
		db:    db,
		repo:  repo,
		store: store,
	}
}

func (svc *service) Create(ctx context.Context, na NewAnnouncement, createdByID string, uploads []Upload) (Announcement, error) {
	for _, up := range uploads {
		if err := up.Validate(); err != nil {
			return Announcement{}, err
		}
	}

	now := time.Now().UTC()
	ann := Announcement{
		Title:       na.Title,
		Content:     na.Content,
		TargetRole:  na.TargetRole,
		PublishDate: na.PublishDate.UTC(),
		CreatedByID: createdByID,
		IsActive:    true,
		CreatedAt:   now,
	}

	// files are stored before the rows so a failed write aborts the whole
	// create; orphaned files are harmless.
	paths := make([]string, 0, len(uploads))
	for _, up := range uploads {
		path, err := svc.store.Save(uploadDir, up.Filename, up.Content)
		if err != nil {
			return Announcement{}, err
		}
		paths = append(paths, path)
	}

	err := core.RunInTx(ctx, svc.db, func(exec ...core.DBExecutor) error {
		var err error
		if ann, err = svc.repo.CreateAnnouncement(ctx, ann, exec...); err != nil {
			return err
		}
		for i, up := range uploads {
			m := Media{
				AnnouncementID: ann.ID,
				File:           paths[i],
				Caption:        up.Caption,
				UploadedAt:     now,
			}
			if m, err = svc.repo.CreateMedia(ctx, m, exec...); err != nil {
				return err
			}
			ann.Media = append(ann.Media, m)
		}
		return nil
	})
	if err != nil {
		return Announcement{}, err
	}

	svc.resolveURLs(&ann)
	return ann, nil
}

func (svc *service) VisibleTo(ctx context.Context, role string) ([]Announcement, error) {
	filter := &QueryFilter{ActiveOnly: true}
	switch role {
	case user.RoleAdmin:
		// admins see everything active, scheduled posts included
	case user.RoleTeacher:
		filter.TargetRoles = []string{TargetAll, TargetTeachers}
	case user.RoleParentStudent:
		filter.TargetRoles = []string{TargetAll, TargetParentStudent}
	default:
		now := time.Now().UTC()
		filter.TargetRoles = []string{TargetAll}
		filter.PublishedBefore = &now
	}

	anns, err := svc.repo.QueryAnnouncements(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range anns {
		svc.resolveURLs(&anns[i])
	}
	return anns, nil
}

func (svc *service) Get(ctx context.Context, id string) (Announcement, error) {
	ann, err := svc.repo.GetAnnouncement(ctx, id)
	if err != nil {
		return Announcement{}, err
	}
	svc.resolveURLs(&ann)
	return ann, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteAnnouncement(ctx, id)
}

func (svc *service) resolveURLs(ann *Announcement) {
	for i := range ann.Media {
		ann.Media[i].FileURL = svc.store.URL(ann.Media[i].File)
	}
}
