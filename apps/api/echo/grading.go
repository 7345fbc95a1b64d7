package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"
)

type gradingApi struct {
	svc     grading.Service
	acadSvc academic.Service
}

func registerGradingAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc grading.Service, acadSvc academic.Service) {
	api := gradingApi{svc: svc, acadSvc: acadSvc}

	gg := g.Group("/grades", authed...)

	staff := requireRole(user.RoleTeacher, user.RoleAdmin)
	teacher := requireRole(user.RoleTeacher)
	parent := requireRole(user.RoleParentStudent)

	gg.GET("/weights/:subject", api.getWeights, staff)
	gg.PUT("/weights/:subject", api.updateWeights, teacher)

	gg.GET("/items", api.queryItems, staff)
	gg.POST("/items", api.createItem, staff)
	gg.GET("/items/:id", api.retrieveItem, staff)
	gg.PUT("/items/:id", api.updateItem, staff)
	gg.DELETE("/items/:id", api.destroyItem, staff)

	gg.GET("/scores", api.queryScores, staff)
	gg.POST("/scores/upsert", api.upsertScore, staff)

	gg.GET("/class-standings", api.queryClassStandings, staff)
	gg.POST("/class-standings/upsert", api.upsertClassStanding, staff)

	gg.GET("/students/:grade", api.studentsByGrade, staff)
	gg.GET("/student/:sid/subject/:subject", api.studentSubjectGrades, staff)
	gg.GET("/student/:sid/subject/:subject/quarter/:quarter", api.quarterGrade, staff)

	gg.GET("/my-grades", api.myGrades, parent)
	gg.GET("/teacher-info", api.teacherInfo, teacher)
}

// Handlers

func (api *gradingApi) getWeights(ctx echo.Context) error {
	w, err := api.svc.GetWeights(ctx.Request().Context(), ctx.Param("subject"))
	if err != nil {
		return errors.Wrap(err, "getting grade weights")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *gradingApi) updateWeights(ctx echo.Context) error {
	var data grading.UpdateGradeWeight
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateGradeWeight")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	w, err := api.svc.UpdateWeights(ctx.Request().Context(), ctx.Param("subject"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade weights")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *gradingApi) createItem(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data grading.NewGradeItem
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGradeItem")
	}
	if err = data.Validate(); err != nil {
		return err
	}

	item, err := api.svc.CreateItem(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating grade item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

func (api *gradingApi) queryItems(ctx echo.Context) error {
	filter := new(grading.ItemFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grading.GradeItem{})
	}

	items, err := api.svc.QueryItems(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying grade items")
	}
	if items == nil {
		items = []grading.GradeItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *gradingApi) retrieveItem(ctx echo.Context) error {
	item, err := api.svc.GetItem(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting grade item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *gradingApi) updateItem(ctx echo.Context) error {
	var data grading.NewGradeItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGradeItem")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	item, err := api.svc.UpdateItem(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating grade item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *gradingApi) destroyItem(ctx echo.Context) error {
	if err := api.svc.DeleteItem(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting grade item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradingApi) queryScores(ctx echo.Context) error {
	filter := new(grading.ScoreFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grading.StudentScore{})
	}

	scores, err := api.svc.QueryScores(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying scores")
	}
	if scores == nil {
		scores = []grading.StudentScore{}
	}
	return ctx.JSON(http.StatusOK, scores)
}

func (api *gradingApi) upsertScore(ctx echo.Context) error {
	var data grading.UpsertScore
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertScore")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	score, err := api.svc.UpsertScore(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting score")
	}
	return ctx.JSON(http.StatusOK, score)
}

func (api *gradingApi) queryClassStandings(ctx echo.Context) error {
	filter := new(grading.StandingFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []grading.ClassStanding{})
	}

	standings, err := api.svc.QueryClassStandings(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying class standings")
	}
	if standings == nil {
		standings = []grading.ClassStanding{}
	}
	return ctx.JSON(http.StatusOK, standings)
}

func (api *gradingApi) upsertClassStanding(ctx echo.Context) error {
	var data grading.UpsertClassStanding
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpsertClassStanding")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	cs, err := api.svc.UpsertClassStanding(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "upserting class standing")
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *gradingApi) studentsByGrade(ctx echo.Context) error {
	students, err := api.svc.StudentsByGrade(ctx.Request().Context(), ctx.Param("grade"))
	if err != nil {
		return errors.Wrap(err, "querying students by grade")
	}
	if students == nil {
		students = []grading.StudentEntry{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *gradingApi) quarterGrade(ctx echo.Context) error {
	quarter, err := parseQuarter(ctx.Param("quarter"))
	if err != nil {
		return err
	}

	breakdown, err := api.svc.QuarterGrade(ctx.Request().Context(), ctx.Param("sid"), ctx.Param("subject"), quarter)
	if err != nil {
		return errors.Wrap(err, "computing quarter grade")
	}
	return ctx.JSON(http.StatusOK, breakdown)
}

func (api *gradingApi) studentSubjectGrades(ctx echo.Context) error {
	report, err := api.svc.StudentSubjectGrades(ctx.Request().Context(), ctx.Param("sid"), ctx.Param("subject"))
	if err != nil {
		return errors.Wrap(err, "computing subject grades")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *gradingApi) myGrades(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	cards, err := api.svc.MyGrades(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "computing report card")
	}
	if cards == nil {
		cards = []grading.SubjectGradeCard{}
	}
	return ctx.JSON(http.StatusOK, cards)
}

func parseQuarter(raw string) (int, error) {
	quarter, err := strconv.Atoi(raw)
	if err != nil || quarter < 1 || quarter > 4 {
		return 0, core.NewFieldError("quarter", "quarter must be between 1 and 4")
	}
	return quarter, nil
}

func (api *gradingApi) teacherInfo(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	info, err := api.acadSvc.TeacherInfo(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting teacher info")
	}
	return ctx.JSON(http.StatusOK, info)
}
