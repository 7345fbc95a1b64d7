package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/enrollment"
)

type enrollmentApi struct {
	svc enrollment.Service
}

func registerEnrollmentAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc enrollment.Service, limiter *ipRateLimiter) {
	api := enrollmentApi{svc: svc}

	eg := g.Group("/enrollments")

	// public intake
	eg.POST("", api.create, rateLimitMiddleware(limiter))

	// admin endpoints
	admin := append(append([]echo.MiddlewareFunc{}, authed...), adminMiddleware())
	ag := eg.Group("", admin...)
	ag.GET("", api.query)
	ag.GET("/statistics", api.statistics)
	ag.GET("/active", api.active)
	ag.GET("/by_student", api.byStudent)
	ag.GET("/by_section", api.bySection)
	ag.GET("/by_grade", api.byGrade)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)
	ag.POST("/:id/mark_active", api.markActive)
	ag.POST("/:id/mark_completed", api.markCompleted)
	ag.POST("/:id/mark_dropped", api.markDropped)
}

// Handlers

func (api *enrollmentApi) create(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	enr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating enrollment")
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	filter := new(enrollment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []enrollment.Enrollment{})
	}
	filter.Clean()
	return api.list(ctx, filter)
}

func (api *enrollmentApi) active(ctx echo.Context) error {
	return api.list(ctx, &enrollment.QueryFilter{Status: enrollment.StatusActive})
}

// byStudent, bySection and byGrade mirror the dedicated dashboard views; a
// missing query param is a client error, not an empty filter.

func (api *enrollmentApi) byStudent(ctx echo.Context) error {
	studentID := ctx.QueryParam("student_id")
	if studentID == "" {
		return core.NewFieldError("student_id", "this parameter is required")
	}
	return api.list(ctx, &enrollment.QueryFilter{StudentID: studentID})
}

func (api *enrollmentApi) bySection(ctx echo.Context) error {
	sectionID := ctx.QueryParam("section_id")
	if sectionID == "" {
		return core.NewFieldError("section_id", "this parameter is required")
	}
	return api.list(ctx, &enrollment.QueryFilter{SectionID: sectionID})
}

func (api *enrollmentApi) byGrade(ctx echo.Context) error {
	gradeLevel := ctx.QueryParam("grade_level")
	if gradeLevel == "" {
		return core.NewFieldError("grade_level", "this parameter is required")
	}
	filter := &enrollment.QueryFilter{GradeLevel: gradeLevel}
	filter.Clean()
	return api.list(ctx, filter)
}

func (api *enrollmentApi) list(ctx echo.Context, filter *enrollment.QueryFilter) error {
	enrs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	enr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) update(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	enr, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *enrollmentApi) markActive(ctx echo.Context) error {
	enr, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) markCompleted(ctx echo.Context) error {
	enr, err := api.svc.Complete(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) markDropped(ctx echo.Context) error {
	enr, err := api.svc.Drop(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "dropping enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) statistics(ctx echo.Context) error {
	stats, err := api.svc.Statistics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting enrollment statistics")
	}
	return ctx.JSON(http.StatusOK, stats)
}
