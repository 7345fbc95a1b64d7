package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/user"
)

type accountApi struct {
	svc     user.Service
	acadSvc academic.Service
}

func registerAccountAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc user.Service, acadSvc academic.Service) {
	api := accountApi{svc: svc, acadSvc: acadSvc}

	ag := g.Group("/accounts")

	// un-authed endpoints
	ag.POST("/login", api.login)
	ag.POST("/password-reset", api.resetPassword)
	ag.POST("/set-password/:uid/:token", api.setPassword)

	// authed endpoints
	auth := ag.Group("", authed...)
	auth.POST("/logout", api.logout)
	auth.POST("/token-refresh", api.refreshToken)
	auth.GET("/me", api.me)
	auth.GET("/me/detail", api.meDetail)

	admin := adminMiddleware()
	auth.POST("/admin/create-user", api.createUser, admin)
	auth.GET("/users", api.queryUsers, admin)
	auth.GET("/users/:id", api.retrieveUser, admin)
	auth.PUT("/users/:id", api.updateUser, admin)
	auth.DELETE("/users/:id", api.destroyUser, admin)

	auth.GET("/subjects", api.querySubjects, admin)
	auth.POST("/subjects", api.createSubject, admin)
	auth.GET("/subjects/:id", api.retrieveSubject, admin)
	auth.PUT("/subjects/:id", api.updateSubject, admin)
	auth.DELETE("/subjects/:id", api.destroySubject, admin)

	auth.GET("/sections", api.querySections)
	auth.POST("/sections", api.createSection, admin)
	auth.GET("/sections/:id", api.retrieveSection)
	auth.PUT("/sections/:id", api.updateSection, admin)
	auth.DELETE("/sections/:id", api.destroySection, admin)

	auth.PATCH("/teachers/:id/assignment", api.assignTeacher, admin)
}

// Handlers

func (api *accountApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := authenticate(ctx, data.Username, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		Username: claims.Username,
		Role:     claims.Role,
	})
}

func (api *accountApi) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	expiresAt := time.Unix(claims.ExpiresAt, 0)
	if err = api.svc.RevokeToken(ctx.Request().Context(), claims.Id, claims.Subject, expiresAt); err != nil {
		return errors.Wrap(err, "revoking token")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out."})
}

func (api *accountApi) refreshToken(ctx echo.Context) error {
	token, err := refreshToken(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *accountApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) meDetail(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	detail, err := api.svc.GetDetail(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting user detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *accountApi) createUser(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	detail, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, detail)
}

func (api *accountApi) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.Detail{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.QueryDetails(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.Detail{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *accountApi) retrieveUser(ctx echo.Context) error {
	detail, err := api.svc.GetDetail(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting user detail")
	}
	return ctx.JSON(http.StatusOK, detail)
}

func (api *accountApi) updateUser(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err = data.Validate(usr, api.svc); err != nil {
		return err
	}

	usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *accountApi) destroyUser(ctx echo.Context) error {
	// ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if claims.Subject == ctx.Param("id") {
		return errHttpForbidden
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to set your password.",
	})
}

func (api *accountApi) setPassword(ctx echo.Context) error {
	var data user.SetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetUserPassword")
	}
	data.UID = ctx.Param("uid")
	data.Token = ctx.Param("token")
	if err := data.Validate(); err != nil {
		return err
	}

	usr, err := api.svc.SetPasswordWithToken(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "setting password")
	}

	// a fresh token lets the frontend log the user straight in
	token, err := GenerateToken(GetUserClaims(usr))
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:    token,
		Username: usr.Username,
		Role:     usr.Role,
	})
}

// Academic catalog

func (api *accountApi) querySubjects(ctx echo.Context) error {
	subs, err := api.acadSvc.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subs == nil {
		subs = []academic.Subject{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *accountApi) createSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.acadSvc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *accountApi) retrieveSubject(ctx echo.Context) error {
	sub, err := api.acadSvc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *accountApi) updateSubject(ctx echo.Context) error {
	var data academic.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.acadSvc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *accountApi) destroySubject(ctx echo.Context) error {
	if err := api.acadSvc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) querySections(ctx echo.Context) error {
	var gradeLevel *int
	if raw := ctx.QueryParam("grade_level"); raw != "" {
		lvl, err := strconv.Atoi(raw)
		if err != nil {
			return core.NewFieldError("grade_level", "invalid grade level")
		}
		gradeLevel = &lvl
	}

	secs, err := api.acadSvc.QuerySections(ctx.Request().Context(), gradeLevel)
	if err != nil {
		return errors.Wrap(err, "querying sections")
	}
	if secs == nil {
		secs = []academic.Section{}
	}
	return ctx.JSON(http.StatusOK, secs)
}

func (api *accountApi) createSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sec, err := api.acadSvc.CreateSection(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *accountApi) retrieveSection(ctx echo.Context) error {
	sec, err := api.acadSvc.GetSection(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *accountApi) updateSection(ctx echo.Context) error {
	var data academic.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sec, err := api.acadSvc.UpdateSection(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *accountApi) destroySection(ctx echo.Context) error {
	if err := api.acadSvc.DeleteSection(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting section")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *accountApi) assignTeacher(ctx echo.Context) error {
	usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsTeacher() {
		return core.NewFieldError("user", "user is not a teacher")
	}

	var data academic.TeacherAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TeacherAssignment")
	}

	tp, err := api.acadSvc.AssignTeacher(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "assigning teacher")
	}
	return ctx.JSON(http.StatusOK, tp)
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token    string `json:"token"`
		Username string `json:"username,omitempty"`
		Role     string `json:"role,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return core.Validate.Struct(pr)
}
