package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/announcement"
)

type announcementRepository struct {
	exec core.DBExecutor
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(exec core.DBExecutor) *announcementRepository {
	return &announcementRepository{exec: exec}
}

// trapNoRowsErr maps psql "no rows" err to announcement.ErrNotFound
func (repo announcementRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return announcement.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, ann announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	ann.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO announcement (id, title, content, target_role, publish_date, created_by, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ann.ID, ann.Title, ann.Content, ann.TargetRole, ann.PublishDate.UTC(), ann.CreatedByID,
		ann.IsActive, ann.CreatedAt.UTC(),
	)
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return ann, nil
}

func (repo announcementRepository) QueryAnnouncements(ctx context.Context, filter *announcement.QueryFilter, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	exe := getExec(repo.exec, exec)

	query := `SELECT id, title, content, target_role, publish_date, created_by, is_active, created_at
		 FROM announcement WHERE true`
	var args []interface{}
	if filter != nil {
		if filter.ActiveOnly {
			query += ` AND is_active`
		}
		if len(filter.TargetRoles) > 0 {
			query += ` AND target_role IN (?)`
			args = append(args, filter.TargetRoles)
		}
		if filter.PublishedBefore != nil {
			query += ` AND publish_date <= ?`
			args = append(args, filter.PublishedBefore.UTC())
		}
	}
	query += ` ORDER BY publish_date DESC`

	query, args, err := in(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}

	rows, err := exe.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	defer func() { _ = rows.Close() }()

	var anns []announcement.Announcement
	for rows.Next() {
		var ann announcement.Announcement
		err = rows.Scan(&ann.ID, &ann.Title, &ann.Content, &ann.TargetRole, &ann.PublishDate,
			&ann.CreatedByID, &ann.IsActive, &ann.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "querying announcements")
		}
		anns = append(anns, ann)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}

	for i := range anns {
		if anns[i].Media, err = repo.queryMedia(ctx, exe, anns[i].ID); err != nil {
			return nil, err
		}
	}
	return anns, nil
}

func (repo announcementRepository) GetAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	if _, err := uuid.Parse(id); err != nil {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	exe := getExec(repo.exec, exec)

	var ann announcement.Announcement
	err := exe.QueryRowContext(ctx,
		`SELECT id, title, content, target_role, publish_date, created_by, is_active, created_at
		 FROM announcement WHERE id = $1`, id,
	).Scan(&ann.ID, &ann.Title, &ann.Content, &ann.TargetRole, &ann.PublishDate,
		&ann.CreatedByID, &ann.IsActive, &ann.CreatedAt)
	if err != nil {
		return announcement.Announcement{}, repo.trapNoRowsErr(err, "finding announcement")
	}
	if ann.Media, err = repo.queryMedia(ctx, exe, ann.ID); err != nil {
		return announcement.Announcement{}, err
	}
	return ann, nil
}

func (repo announcementRepository) DeleteAnnouncement(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := getExec(repo.exec, exec).ExecContext(ctx, `DELETE FROM announcement WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return announcement.ErrNotFound
	}
	return nil
}

func (repo announcementRepository) CreateMedia(ctx context.Context, m announcement.Media, exec ...core.DBExecutor) (announcement.Media, error) {
	m.ID = uuid.New().String()
	_, err := getExec(repo.exec, exec).ExecContext(ctx,
		`INSERT INTO announcement_media (id, announcement_id, file, caption, uploaded_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.AnnouncementID, m.File, m.Caption, m.UploadedAt.UTC(),
	)
	if err != nil {
		return announcement.Media{}, errors.Wrap(err, "inserting announcement media")
	}
	return m, nil
}

func (repo announcementRepository) queryMedia(ctx context.Context, exe core.DBExecutor, announcementID string) ([]announcement.Media, error) {
	rows, err := exe.QueryContext(ctx,
		`SELECT id, announcement_id, file, caption, uploaded_at
		 FROM announcement_media WHERE announcement_id = $1 ORDER BY uploaded_at, id`, announcementID)
	if err != nil {
		return nil, errors.Wrap(err, "querying announcement media")
	}
	defer func() { _ = rows.Close() }()

	var media []announcement.Media
	for rows.Next() {
		var m announcement.Media
		if err = rows.Scan(&m.ID, &m.AnnouncementID, &m.File, &m.Caption, &m.UploadedAt); err != nil {
			return nil, errors.Wrap(err, "querying announcement media")
		}
		media = append(media, m)
	}
	return media, errors.Wrap(rows.Err(), "querying announcement media")
}
