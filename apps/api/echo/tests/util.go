package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	echoapi "github.com/cesiedu/campus/apps/api/echo"
	"github.com/cesiedu/campus/core/academic"
	"github.com/cesiedu/campus/core/announcement"
	"github.com/cesiedu/campus/core/enrollment"
	"github.com/cesiedu/campus/core/finance"
	"github.com/cesiedu/campus/core/grading"
	"github.com/cesiedu/campus/core/user"
	emailsvc "github.com/cesiedu/campus/services/email"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// nopStore satisfies the announcement file store without touching disk.
type nopStore struct{}

func (nopStore) Save(dir, filename string, _ io.Reader) (string, error) {
	return dir + "/" + filename, nil
}
func (nopStore) URL(path string) string { return "/media/" + path }

type testEnv struct {
	app     echoapi.Server
	usrRepo user.Repository
	usrSvc  user.Service
	finSvc  finance.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := inmemdb.Open()
	require.NoError(t, err)

	usrRepo := inmemdb.NewUserRepository(db)
	acadRepo := inmemdb.NewAcademicRepository(db)
	enrRepo := inmemdb.NewEnrollmentRepository(db)
	finRepo := inmemdb.NewFinanceRepository(db)
	gradRepo := inmemdb.NewGradingRepository(db)
	annRepo := inmemdb.NewAnnouncementRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock()
	usrSvc := user.NewServiceMock(usrRepo, acadRepo, mailSvc)
	finSvc := finance.NewService(finRepo, usrRepo, acadRepo)

	app := echoapi.NewServer(&echoapi.Options{
		DisableReqLogs:  true,
		Logger:          nopLogger{},
		UserSvc:         usrSvc,
		AcademicSvc:     academic.NewService(acadRepo),
		EnrollmentSvc:   enrollment.NewService(nil, enrRepo, usrRepo, mailSvc, nopLogger{}),
		FinanceSvc:      finSvc,
		GradingSvc:      grading.NewService(gradRepo, usrRepo, acadRepo),
		AnnouncementSvc: announcement.NewService(nil, annRepo, nopStore{}),
	})

	return &testEnv{
		app:     app,
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		finSvc:  finSvc,
	}
}

// addUser seeds an active account straight through the repository.
func (env *testEnv) addUser(t *testing.T, username, role string) user.User {
	t.Helper()

	usr := user.User{
		Username: username,
		Email:    username + "@example.com",
		Role:     role,
		Status:   user.StatusActive,
		IsActive: true,
		IsStaff:  role == user.RoleAdmin,
	}
	require.NoError(t, usr.SetPassword("S0me!Password"))
	usr, err := env.usrRepo.CreateUser(context.Background(), usr)
	require.NoError(t, err)
	return usr
}

// addPublicUser seeds the sentinel the public enrollment intake requires.
func (env *testEnv) addPublicUser(t *testing.T) user.User {
	t.Helper()

	public := user.User{
		Username: user.PublicUsername,
		Role:     user.RolePublic,
		Status:   user.StatusActive,
		IsActive: true,
	}
	public.SetUnusablePassword()
	public, err := env.usrRepo.CreateUser(context.Background(), public)
	require.NoError(t, err)
	return public
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr))
	require.NoError(t, err)
	return token
}

// do runs one request against the test server and returns the recorder.
func (env *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), "body: %s", rec.Body.String())
}
