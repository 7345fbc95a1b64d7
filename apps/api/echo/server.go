package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"golang.org/x/time/rate"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"
)

type (
	Options struct {
		Address         string
		DisableReqLogs  bool
		Logger          core.Logger
		UserSvc         user.Service
		AcademicSvc     academic.Service
		EnrollmentSvc   enrollment.Service
		FinanceSvc      finance.Service
		GradingSvc      grading.Service
		AnnouncementSvc announcement.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
		Shutdown() chan os.Signal
	}

	server struct {
		opts     *Options
		app      *echo.Echo
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(core.Conf.Debug || core.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = core.Conf.Debug

	s.app.GET("/", home)
	s.app.Static("/media", core.Conf.Media.Root)

	api := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(appJWTConfig)
	authed := []echo.MiddlewareFunc{jwt, revocationMiddleware(s.opts.UserSvc)}

	// public intake gets its own bucket so bots cannot starve the rest
	enrollLimiter := newIPRateLimiter(rate.Limit(1), 5)

	registerAccountAPI(api, authed, s.opts.UserSvc, s.opts.AcademicSvc)
	registerEnrollmentAPI(api, authed, s.opts.EnrollmentSvc, enrollLimiter)
	registerFinanceAPI(api, authed, s.opts.FinanceSvc)
	registerGradingAPI(api, authed, s.opts.GradingSvc, s.opts.AcademicSvc)
	registerAnnouncementAPI(api, authed, s.opts.AnnouncementSvc, s.opts.UserSvc)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Address))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

// Shutdown exposes the channel the error handler signals on fatal errors;
// main selects on it alongside OS signals.
func (s *server) Shutdown() chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	s.shutdown <- syscall.SIGTERM
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to CESI Campus API!")
}
