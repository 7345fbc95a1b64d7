package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/user"
)

type financeApi struct {
	svc finance.Service
}

func registerFinanceAPI(g *echo.Group, authed []echo.MiddlewareFunc, svc finance.Service) {
	api := financeApi{svc: svc}

	tg := g.Group("/finance/transactions", authed...)

	// the parent-scoped view; admins use the full list instead
	tg.GET("/my-transactions", api.myTransactions, requireRole(user.RoleParentStudent))

	admin := adminMiddleware()
	tg.GET("", api.query, admin)
	tg.POST("", api.create, admin)
	tg.GET("/stats", api.stats, admin)
	tg.GET("/parents", api.parents, admin)
	tg.GET("/parents/:id/students", api.parentStudents, admin)
	tg.GET("/:id", api.retrieve, admin)
	tg.PUT("/:id", api.update, admin)
	tg.DELETE("/:id", api.destroy, admin)
}

// Handlers

func (api *financeApi) create(ctx echo.Context) error {
	var data finance.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tx, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating transaction")
	}
	return ctx.JSON(http.StatusCreated, tx)
}

func (api *financeApi) query(ctx echo.Context) error {
	filter := new(finance.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []finance.Transaction{})
	}
	filter.Clean()

	txs, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	if txs == nil {
		txs = []finance.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *financeApi) retrieve(ctx echo.Context) error {
	tx, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting transaction")
	}
	return ctx.JSON(http.StatusOK, tx)
}

func (api *financeApi) update(ctx echo.Context) error {
	var data finance.NewTransaction
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTransaction")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tx, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating transaction")
	}
	return ctx.JSON(http.StatusOK, tx)
}

func (api *financeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting transaction")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *financeApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Statistics(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting transaction stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *financeApi) myTransactions(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	txs, err := api.svc.MyTransactions(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying parent transactions")
	}
	if txs == nil {
		txs = []finance.Transaction{}
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *financeApi) parents(ctx echo.Context) error {
	opts, err := api.svc.ParentOptions(ctx.Request().Context(), ctx.QueryParam("search"))
	if err != nil {
		return errors.Wrap(err, "querying parent options")
	}
	if opts == nil {
		opts = []finance.ParentOption{}
	}
	return ctx.JSON(http.StatusOK, opts)
}

func (api *financeApi) parentStudents(ctx echo.Context) error {
	students, err := api.svc.ParentStudents(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying parent students")
	}
	if students == nil {
		students = []finance.ParentStudent{}
	}
	return ctx.JSON(http.StatusOK, students)
}
