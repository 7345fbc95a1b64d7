package main

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesiedu/campus/core/user"
	inmemdb "github.com/cesiedu/campus/storage/database/inmem"
)

func setup(t *testing.T) *commandLine {
	db, err := inmemdb.Open()
	require.NoError(t, err)

	return &commandLine{usrRepo: inmemdb.NewUserRepository(db)}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func Test_commandLine_run_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no args", args: nil, wantErr: errHelp},
		{name: "unknown command", args: []string{"frobnicate"}, wantErr: errHelp},
		{name: "migrate without args", args: []string{"migrate"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(append([]string{"admin"}, tt.args...))
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var gotCommand string
	var gotArgs []string
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		gotCommand = command
		gotArgs = args
		return nil
	}

	require.NoError(t, cli.run([]string{"admin", "migrate", "up-to", "2"}))
	assert.Equal(t, "up-to", gotCommand)
	assert.Equal(t, []string{"2"}, gotArgs)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("Qwerty!12345"), nil }

	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "Principal", "-email", "head@cesi.edu", "-admin"}))

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "principal"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.True(t, usr.IsStaff)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Qwerty!12345"))

	// running again updates in place
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("An0ther!Secret"), nil }
	require.NoError(t, cli.run([]string{"admin", "adduser", "-username", "principal", "-email", "head@cesi.edu"}))

	again, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: "principal"})
	require.NoError(t, err)
	assert.Equal(t, usr.ID, again.ID)
	assert.NoError(t, again.CheckPassword("An0ther!Secret"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	usr := user.User{Username: "teacher1", Email: "t1@cesi.edu", Role: user.RoleTeacher, Status: user.StatusActive, IsActive: true}
	require.NoError(t, usr.SetPassword("0ldPassword!"))
	usr, err := cli.usrRepo.CreateUser(ctx, usr)
	require.NoError(t, err)

	readPasswordFunc = func(fd int) ([]byte, error) { return []byte("N3wPassword!"), nil }
	require.NoError(t, cli.run([]string{"admin", "resetpassword", "-username", "t1@cesi.edu"}))

	usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3wPassword!"))
	assert.Error(t, usr.CheckPassword("0ldPassword!"))
}

func Test_commandLine_initPublic(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	require.NoError(t, cli.run([]string{"admin", "initpublic"}))

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: user.PublicUsername})
	require.NoError(t, err)
	assert.Equal(t, user.RolePublic, usr.Role)
	assert.False(t, usr.HasUsablePassword())

	// idempotent
	require.NoError(t, cli.run([]string{"admin", "initpublic"}))
	users, err := cli.usrRepo.QueryUsers(ctx, &user.QueryFilter{Role: user.RolePublic}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
