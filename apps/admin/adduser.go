package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core"
	"github.com/cesiedu/campus/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email}); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{
				Username:  uname,
				Email:     email,
				Role:      user.RoleTeacher,
				CreatedAt: now,
			}
		}
	}

	if isAdmin {
		usr.Role = user.RoleAdmin
		usr.IsStaff = true
	}
	usr.Status = user.StatusActive
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == "" {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
