package filestore

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/announcement"
)

// Local stores uploaded files on disk under the configured media root and
// serves them back under the /media URL prefix.
type Local struct {
	root string
}

var _ announcement.FileStore = (*Local)(nil) // interface compliance check

func NewLocal() *Local {
	return &Local{root: core.Conf.Media.Root}
}

// Save writes src to <root>/<dir>/<unique>-<filename> and returns the path
// relative to the media root. The stored name carries a random prefix so two
// uploads with the same name never clash.
func (s *Local) Save(dir, filename string, src io.Reader) (string, error) {
	filename = sanitizeFilename(filename)
	name := uuid.New().String()[:8] + "-" + filename

	absDir := filepath.Join(s.root, dir)
	if err := os.MkdirAll(absDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating media directory")
	}

	dst, err := os.Create(filepath.Join(absDir, name))
	if err != nil {
		return "", errors.Wrap(err, "creating media file")
	}
	defer dst.Close()

	if _, err = io.Copy(dst, src); err != nil {
		return "", errors.Wrap(err, "writing media file")
	}
	return path.Join(dir, name), nil
}

func (s *Local) URL(p string) string {
	return "/media/" + strings.TrimPrefix(p, "/")
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	return name
}
