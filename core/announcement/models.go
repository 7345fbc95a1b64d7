package announcement

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cesiedu/campus/core"
)

// Target audiences
const (
	TargetAll           = "all"
	TargetTeachers      = "teachers"
	TargetParentStudent = "parent_student"
)

var (
	allowedImageExts = []string{".gif", ".jpeg", ".jpg", ".png", ".webp"}
	allowedVideoExts = []string{".mov", ".mp4", ".ogg", ".webm"} // browser-friendly
)

// Announcement is a school-wide post targeted at an audience; scheduled ones
// have a future PublishDate.
type Announcement struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	TargetRole  string    `json:"target_role"`
	PublishDate time.Time `json:"publish_date"` // UTC
	CreatedByID string    `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	Media       []Media   `json:"media"`
}

// Media is a file attached to an announcement.
type Media struct {
	ID             string    `json:"id"`
	AnnouncementID string    `json:"-"`
	File           string    `json:"file"`     // path relative to the media root
	FileURL        string    `json:"file_url"` // resolved by the file store
	Caption        string    `json:"caption"`
	UploadedAt     time.Time `json:"uploaded_at"` // UTC
}

type NewAnnouncement struct {
	Title       string    `json:"title" form:"title" validate:"required"`
	Content     string    `json:"content" form:"content" validate:"required"`
	TargetRole  string    `json:"target_role" form:"target_role" validate:"omitempty,oneof=all teachers parent_student"`
	PublishDate time.Time `json:"publish_date" form:"publish_date" validate:"required"`
}

func (na *NewAnnouncement) Validate() error {
	na.Title = core.CleanString(na.Title)
	na.TargetRole = core.CleanString(na.TargetRole, true /* lower */)
	if na.TargetRole == "" {
		na.TargetRole = TargetAll
	}
	return core.Validate.Struct(na)
}

// Upload is an incoming media file pending storage.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
	Caption  string
}

func (u Upload) Validate() error {
	ext := strings.ToLower(filepath.Ext(u.Filename))
	if !extAllowed(ext) {
		err := fmt.Errorf(
			"unsupported file type: %s. allowed images: %s. allowed videos: %s",
			ext, strings.Join(allowedImageExts, ", "), strings.Join(allowedVideoExts, ", "),
		)
		return core.NewValidationError(err, core.FieldError{Field: "files", Error: err.Error()})
	}
	if max := core.Conf.Media.MaxUploadSize; u.Size > max {
		err := fmt.Errorf("file too large. max size is %dMB", max>>20)
		return core.NewValidationError(err, core.FieldError{Field: "files", Error: err.Error()})
	}
	return nil
}

func extAllowed(ext string) bool {
	if i := sort.SearchStrings(allowedImageExts, ext); i < len(allowedImageExts) && allowedImageExts[i] == ext {
		return true
	}
	i := sort.SearchStrings(allowedVideoExts, ext)
	return i < len(allowedVideoExts) && allowedVideoExts[i] == ext
}

// QueryFilter narrows announcement listings; fields are ANDed. An empty
// TargetRoles imposes no audience restriction.
type QueryFilter struct {
	ActiveOnly      bool
	TargetRoles     []string
	PublishedBefore *time.Time
}
