package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cesiedu/campus/core/user"
)

// initPublic ensures the sentinel account that owns public enrollment
// submissions exists. It is never created lazily by request handlers.
func (cli *commandLine) initPublic() error {
	ctx := context.Background()

	if _, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: user.PublicUsername}); err == nil {
		fmt.Printf("%q already exists\n", user.PublicUsername)
		return nil
	} else if errors.Cause(err) != user.ErrNotFound {
		return err
	}

	now := time.Now().UTC()
	usr := user.User{
		Username:  user.PublicUsername,
		Email:     user.PublicUsername + "@localhost",
		Role:      user.RolePublic,
		Status:    user.StatusActive,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetUnusablePassword()

	if _, err := cli.usrRepo.CreateUser(ctx, usr); err != nil {
		return err
	}
	fmt.Printf("%q created\n", user.PublicUsername)
	return nil
}
