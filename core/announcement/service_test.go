package announcement_test

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

// memStore keeps uploads in memory instead of on disk.
type memStore struct {
	saved []string
}

func (s *memStore) Save(dir, filename string, _ io.Reader) (string, error) {
	path := dir + "/" + filename
	s.saved = append(s.saved, path)
	return path, nil
}

func (s *memStore) URL(path string) string { return "/media/" + path }

func setup(t *testing.T) (announcement.Service, *memStore) {
	db, err := inmemdb.Open()
	require.NoError(t, err)
	store := &memStore{}
	return announcement.NewService(nil, inmemdb.NewAnnouncementRepository(db), store), store
}

func newAnnouncement(target string, publish time.Time) announcement.NewAnnouncement {
	na := announcement.NewAnnouncement{
		Title:       "Foundation Day",
		Content:     "Classes are suspended.",
		TargetRole:  target,
		PublishDate: publish,
	}
	if err := na.Validate(); err != nil {
		panic(err)
	}
	return na
}

func TestUpload_Validate(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  bool
	}{
		{name: "image", filename: "banner.png", size: 1 << 20},
		{name: "video", filename: "clip.mp4", size: 1 << 20},
		{name: "uppercase ext", filename: "BANNER.PNG", size: 1 << 20},
		{name: "document", filename: "notes.pdf", size: 1 << 10, wantErr: true},
		{name: "no extension", filename: "banner", size: 1 << 10, wantErr: true},
		{name: "too large", filename: "banner.png", size: core.Conf.Media.MaxUploadSize + 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := announcement.Upload{
				Filename: tt.filename,
				Size:     tt.size,
				Content:  strings.NewReader("x"),
			}
			err := up.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("stores uploads and resolves media urls", func(t *testing.T) {
		svc, store := setup(t)

		uploads := []announcement.Upload{
			{Filename: "banner.png", Size: 1 << 20, Content: strings.NewReader("img"), Caption: "Banner"},
			{Filename: "clip.mp4", Size: 1 << 20, Content: strings.NewReader("vid")},
		}
		ann, err := svc.Create(ctx, newAnnouncement("", time.Now().UTC()), "admin-1", uploads)
		require.NoError(t, err)

		assert.Equal(t, announcement.TargetAll, ann.TargetRole)
		assert.True(t, ann.IsActive)
		assert.Equal(t, "admin-1", ann.CreatedByID)
		require.Len(t, ann.Media, 2)
		assert.Equal(t, "Banner", ann.Media[0].Caption)
		assert.True(t, strings.HasPrefix(ann.Media[0].FileURL, "/media/announcements/"))
		assert.Len(t, store.saved, 2)
	})

	t.Run("a bad upload aborts before anything is stored", func(t *testing.T) {
		svc, store := setup(t)

		uploads := []announcement.Upload{
			{Filename: "banner.png", Size: 1 << 20, Content: strings.NewReader("img")},
			{Filename: "malware.exe", Size: 1 << 10, Content: strings.NewReader("x")},
		}
		_, err := svc.Create(ctx, newAnnouncement("", time.Now().UTC()), "admin-1", uploads)
		require.Error(t, err)
		assert.Empty(t, store.saved)
	})
}

func TestService_VisibleTo(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	mustCreate := func(target string, publish time.Time) announcement.Announcement {
		ann, err := svc.Create(ctx, newAnnouncement(target, publish), "admin-1", nil)
		require.NoError(t, err)
		return ann
	}

	everyone := mustCreate(announcement.TargetAll, past)
	teachersOnly := mustCreate(announcement.TargetTeachers, past)
	parentsOnly := mustCreate(announcement.TargetParentStudent, past)
	scheduled := mustCreate(announcement.TargetAll, future)

	ids := func(anns []announcement.Announcement) []string {
		out := make([]string, 0, len(anns))
		for _, a := range anns {
			out = append(out, a.ID)
		}
		return out
	}

	t.Run("admin sees everything including scheduled", func(t *testing.T) {
		anns, err := svc.VisibleTo(ctx, user.RoleAdmin)
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{everyone.ID, teachersOnly.ID, parentsOnly.ID, scheduled.ID}, ids(anns))
	})

	t.Run("teacher sees all plus teachers", func(t *testing.T) {
		anns, err := svc.VisibleTo(ctx, user.RoleTeacher)
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{everyone.ID, teachersOnly.ID, scheduled.ID}, ids(anns))
	})

	t.Run("parent sees all plus parent_student", func(t *testing.T) {
		anns, err := svc.VisibleTo(ctx, user.RoleParentStudent)
		require.NoError(t, err)
		assert.ElementsMatch(t,
			[]string{everyone.ID, parentsOnly.ID, scheduled.ID}, ids(anns))
	})

	t.Run("anonymous sees only published all-audience posts", func(t *testing.T) {
		anns, err := svc.VisibleTo(ctx, "")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{everyone.ID}, ids(anns))
	})
}

func TestService_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	ann, err := svc.Create(ctx, newAnnouncement("", time.Now().UTC()), "admin-1", nil)
	require.NoError(t, err)

	got, err := svc.Get(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, ann.Title, got.Title)

	require.NoError(t, svc.Delete(ctx, ann.ID))

	_, err = svc.Get(ctx, ann.ID)
	assert.Error(t, err)
}
