package echoapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/user"
)

type announcementApi struct {
	svc    announcement.Service
	usrSvc user.Service
}

func registerAnnouncementAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc announcement.Service, usrSvc user.Service) {
	api := announcementApi{svc: svc, usrSvc: usrSvc}

	ag := g.Group("/announcements")

	// the list is public; visibility narrows with the caller's role
	ag.GET("", api.query)

	staff := append(append([]echo.MiddlewareFunc{}, authed...), requireRole(user.RoleTeacher, user.RoleAdmin))
	ag.POST("", api.create, staff...)
	ag.GET("/:id", api.retrieve, authed...)
	ag.DELETE("/:id", api.destroy, append(append([]echo.MiddlewareFunc{}, authed...), adminMiddleware())...)
}

// Handlers

func (api *announcementApi) query(ctx echo.Context) error {
	var role string
	if claims := optionalContextClaims(ctx, api.usrSvc); claims != nil {
		role = claims.Role
	}

	anns, err := api.svc.VisibleTo(ctx.Request().Context(), role)
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if anns == nil {
		anns = []announcement.Announcement{}
	}
	absolutizeMediaURLs(ctx, anns)
	return ctx.JSON(http.StatusOK, anns)
}

func (api *announcementApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data announcement.NewAnnouncement
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if data.PublishDate.IsZero() {
		data.PublishDate = time.Now().UTC()
	}
	if err = data.Validate(); err != nil {
		return err
	}

	uploads, err := api.collectUploads(ctx)
	if err != nil {
		return err
	}

	ann, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject, uploads)
	if err != nil {
		return errors.Wrap(err, "creating announcement")
	}
	absolutizeMediaURLs(ctx, []announcement.Announcement{ann})
	return ctx.JSON(http.StatusCreated, ann)
}

func (api *announcementApi) retrieve(ctx echo.Context) error {
	ann, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting announcement")
	}
	absolutizeMediaURLs(ctx, []announcement.Announcement{ann})
	return ctx.JSON(http.StatusOK, ann)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// collectUploads pulls the "files" multipart parts and their parallel
// "captions" values. A JSON body simply yields no uploads.
func (api *announcementApi) collectUploads(ctx echo.Context) ([]announcement.Upload, error) {
	form, err := ctx.MultipartForm()
	if err != nil {
		if err == http.ErrNotMultipart || errors.Cause(err) == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, core.NewFieldError("files", "invalid multipart form")
	}

	captions := form.Value["captions"]
	var uploads []announcement.Upload
	for i, fh := range form.File["files"] {
		src, err := fh.Open()
		if err != nil {
			return nil, errors.Wrap(err, "opening uploaded file")
		}
		defer src.Close()

		up := announcement.Upload{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  src,
		}
		if i < len(captions) {
			up.Caption = captions[i]
		}
		uploads = append(uploads, up)
	}
	return uploads, nil
}

// absolutizeMediaURLs rewrites relative media URLs against the request host
// so clients can fetch attachments directly.
func absolutizeMediaURLs(ctx echo.Context, anns []announcement.Announcement) {
	base := ctx.Scheme() + "://" + ctx.Request().Host
	for i := range anns {
		for j := range anns[i].Media {
			if url := anns[i].Media[j].FileURL; strings.HasPrefix(url, "/") {
				anns[i].Media[j].FileURL = base + url
			}
		}
	}
}
