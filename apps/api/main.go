package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"

	echoapi "github.com/cesiedu/campus/apps/api/echo"
	emailsvc "github.com/cesiedu/campus/services/email"
	logsvc "github.com/cesiedu/campus/services/logger"
	"github.com/cesiedu/campus/storage/database"
	sqlxrepos "github.com/cesiedu/campus/storage/database/sqlx"
	"github.com/cesiedu/campus/storage/filestore"
)

func main() {
	std := log.New(os.Stdout, core.Conf.AppName+" : ", log.LstdFlags|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(std, core.Conf)
	logger.Enable(!core.Conf.Debug)

	if err := run(logger); err != nil {
		logger.Fatal("api main error", err)
	}
}

func run(logger core.Logger) error {
	// set up DB
	db, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer db.Close()

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}

	usrRepo := sqlxrepos.NewUserRepository(db)
	acadRepo := sqlxrepos.NewAcademicRepository(db)
	enrRepo := sqlxrepos.NewEnrollmentRepository(db)
	finRepo := sqlxrepos.NewFinanceRepository(db)
	grdRepo := sqlxrepos.NewGradingRepository(db)
	annRepo := sqlxrepos.NewAnnouncementRepository(db)

	usrSvc := user.NewService(db, usrRepo, acadRepo, mailSvc)
	acadSvc := academic.NewService(acadRepo)
	enrSvc := enrollment.NewService(db, enrRepo, usrRepo, mailSvc, logger)
	finSvc := finance.NewService(finRepo, usrRepo, acadRepo)
	grdSvc := grading.NewService(grdRepo, usrRepo, acadRepo)
	annSvc := announcement.NewService(db, annRepo, filestore.NewLocal())

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Address:         core.Conf.Addr(),
		Logger:          logger,
		UserSvc:         usrSvc,
		AcademicSvc:     acadSvc,
		EnrollmentSvc:   enrSvc,
		FinanceSvc:      finSvc,
		GradingSvc:      grdSvc,
		AnnouncementSvc: annSvc,
	})

	shutdown := app.Shutdown()
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go app.Start()

	sig := <-shutdown
	logger.Info("shutting down", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.Stop(ctx)
}
